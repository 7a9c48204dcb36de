package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context is the per-user-session state object handed into every handler.
// It replaces what a shared global store would be: one Context per session,
// empty registry at init, discarded at session end.
//
// The registry assumes one interaction at a time; Context carries the lock
// that makes that true. Whoever dispatches requests into a session must
// hold it for the full interaction, reads included (Get evicts stale
// bindings, so even retrieval writes the registry map).
type Context struct {
	ID        string
	Registry  *Registry
	CreatedAt time.Time

	mu sync.Mutex
}

// Lock serializes one interaction against this session.
func (c *Context) Lock() { c.mu.Lock() }

// Unlock releases the interaction lock.
func (c *Context) Unlock() { c.mu.Unlock() }

// NewContext creates a fresh session with an empty registry.
func NewContext(resolver SampleResolver) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Registry:  NewRegistry(resolver),
		CreatedAt: time.Now(),
	}
}
