package authstate

import (
	"context"
	"sync"
)

// TokenChecker reports whether a browser scope holds a stored token.
type TokenChecker interface {
	HasToken(ctx context.Context, scope string) (bool, error)
}

// Registry keeps one Store per browser scope.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	tokens TokenChecker
}

// NewRegistry creates a Registry that initializes stores from tokens.
func NewRegistry(tokens TokenChecker) *Registry {
	return &Registry{
		stores: make(map[string]*Store),
		tokens: tokens,
	}
}

// For returns the store for scope, initializing it from token presence on
// first use. A failed lookup initializes it as signed out.
func (r *Registry) For(ctx context.Context, scope string) *Store {
	r.mu.Lock()
	s, ok := r.stores[scope]
	if !ok {
		s = New()
		r.stores[scope] = s
	}
	r.mu.Unlock()

	if !s.Initialized() {
		hasToken := false
		if r.tokens != nil {
			if ok, err := r.tokens.HasToken(ctx, scope); err == nil {
				hasToken = ok
			}
		}
		s.Init(hasToken)
	}
	return s
}

// Forget drops the store for scope if nobody is subscribed to it.
func (r *Registry) Forget(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[scope]; ok && s.Subscribers() == 0 {
		delete(r.stores, scope)
	}
}

// Len returns the number of tracked scopes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
