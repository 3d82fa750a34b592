package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"

	"classroom/internal/data"

	"github.com/go-playground/validator/v10"
)

// validate holds the shared validator instance for request bodies.
var validate = validator.New()

// writeJSON marshals v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// errorJSON writes a JSON error body in the shape {"status":"fail","message":...}.
func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "fail", "message": message})
}

// readJSON decodes the request body into dst and runs struct validation.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// storeError maps store sentinel errors to a status code, defaulting to 500.
// The original cause is logged by the caller, never leaked to the client.
func storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, data.ErrNotFound):
		errorJSON(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, data.ErrAlreadyExists):
		errorJSON(w, http.StatusConflict, "already exists")
	default:
		log.Printf("store error: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

// generateAccessCode produces a random 6-digit one-time code.
func generateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
