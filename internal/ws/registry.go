package ws

import "sync"

// Handle is the minimal interface the registry needs from a live connection:
// the ability to push a named event to the connected client.
type Handle interface {
	Push(event string, data any) error
}

// SessionRegistry maps authenticated user ids to their single live connection
// handle. It is process-local, rebuilt empty on every start, and mutex-guarded
// because connection reader goroutines mutate it concurrently. The registry is
// owned by the Gateway and never exposed for direct external mutation.
type SessionRegistry struct {
	mu       sync.Mutex
	bindings map[string]Handle
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{bindings: make(map[string]Handle)}
}

// Register binds userID to the handle. At most one live handle per user:
// a later registration replaces the earlier one atomically under the lock, so
// the orphaned handle stops receiving pushes immediately.
func (r *SessionRegistry) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[userID] = h
}

// Unregister removes the mapping bound to exactly this handle. If the user
// has since re-registered with a newer handle, the newer mapping is left
// untouched. Called once per disconnect; a handle that was never registered
// (or already replaced) is a no-op.
func (r *SessionRegistry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, bound := range r.bindings {
		if bound == h {
			delete(r.bindings, userID)
			return
		}
	}
}

// Lookup returns the live handle currently registered for userID, if any.
// Read-only; used at delivery time.
func (r *SessionRegistry) Lookup(userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.bindings[userID]
	return h, ok
}

// Len reports the number of registered users. Used for logging.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}
