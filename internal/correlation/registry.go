// Package correlation keeps the ephemeral association between orders and the
// anonymous client sessions that placed them.
//
// The association lives in memory only and is lost on restart. Clients that
// lose it fall back to the order id returned when they submitted.
package correlation

import "sync"

// Registry is a lock-guarded map from order id to client token.
// It is owned by the application and shared by reference.
type Registry struct {
	mu     sync.RWMutex
	tokens map[int64]string
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[int64]string),
	}
}

// Remember associates token with orderID. Empty tokens are ignored.
func (r *Registry) Remember(orderID int64, token string) {
	if token == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.tokens[orderID] = token
}

// Token returns the token associated with orderID.
func (r *Registry) Token(orderID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[orderID]

	return token, ok
}

// Forget drops the association for orderID.
func (r *Registry) Forget(orderID int64) {
	r.mu.Lock()
	delete(r.tokens, orderID)
	r.mu.Unlock()
}

// Len returns the number of tracked orders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}

// Close drops every association. Later calls to Remember are ignored.
func (r *Registry) Close() {
	r.mu.Lock()
	r.tokens = make(map[int64]string)
	r.closed = true
	r.mu.Unlock()
}
