// Package auth defines the contract shared by authentication methods and a
// registry to select them by name.
package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Request carries what the upstream layer asserted about the caller.
type Request struct {
	// RemoteUser is the principal authenticated upstream (REMOTE_USER).
	RemoteUser string
	// RemoteDomain optionally names the principal's domain (REMOTE_DOMAIN).
	RemoteDomain string
	// AuthType is the upstream mechanism, e.g. "Negotiate" (AUTH_TYPE).
	AuthType string
}

// Response is the outcome of a successful authentication.
type Response struct {
	Status bool
	Data   map[string]any
}

// UserID returns the resolved user ID, if any.
func (r *Response) UserID() string {
	id, _ := r.Data["user_id"].(string)
	return id
}

// Method authenticates a request.
type Method interface {
	Authenticate(ctx context.Context, req *Request) (*Response, error)
}

// Registry maps configured method names to implementations.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// Register adds m under name. Names are unique.
func (r *Registry) Register(name string, m Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.methods[name]; ok {
		return fmt.Errorf("auth method %q already registered", name)
	}
	r.methods[name] = m
	return nil
}

// Get returns the method registered under name.
func (r *Registry) Get(name string) (Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	if !ok {
		return nil, fmt.Errorf("auth method %q is not registered", name)
	}
	return m, nil
}

// Names lists registered methods in name order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.methods))
	for name := range r.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
