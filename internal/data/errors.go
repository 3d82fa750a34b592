package data

import "errors"

// Sentinel errors shared by the stores. Callers match with errors.Is and map
// them to transport-level responses.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
