// Package registry enforces per-user job exclusivity: at most one
// non-terminal training job per user at any time.
package registry

import "sync"

// Registry is the per-user exclusivity store. The check-and-set in
// TryAcquire is atomic; it is the only structure in the orchestrator mutated
// by more than one logical path.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// TryAcquire claims the user's slot. It returns false if the user already
// has an active job.
func (r *Registry) TryAcquire(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[userID]; ok {
		return false
	}
	r.active[userID] = struct{}{}
	return true
}

// Release frees the user's slot. Releasing an unheld slot is a no-op, so a
// terminal observation may release idempotently.
func (r *Registry) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userID)
}

// Held reports whether the user currently holds the slot.
func (r *Registry) Held(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[userID]
	return ok
}
