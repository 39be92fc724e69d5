package auth

import (
	"context"
	"sync"
)

// Keys shared between the opener and the login window. They live in
// origin-scoped storage so both browsing contexts can read them.
const (
	KeyCodeVerifier = "wallet_code_verifier"
	KeyOAuthState   = "wallet_oauth_state"
	KeyRedirectURI  = "wallet_redirect_uri"
	KeyReturnURL    = "wallet_return_url"
)

// PKCEKeys are the single-use entries cleared after a successful exchange.
var PKCEKeys = []string{KeyCodeVerifier, KeyOAuthState, KeyRedirectURI}

// SharedStore is origin-scoped key/value storage, partitioned by browser scope.
type SharedStore interface {
	GetItem(ctx context.Context, scope, key string) (string, bool, error)
	SetItems(ctx context.Context, scope string, items map[string]string) error
	RemoveItems(ctx context.Context, scope string, keys ...string) error
}

// TokenSink persists the token obtained by a successful exchange.
type TokenSink interface {
	StoreWalletToken(ctx context.Context, scope, token string) error
}

// InMemorySharedStore provides an in-memory implementation of SharedStore.
type InMemorySharedStore struct {
	mu    sync.Mutex
	items map[string]map[string]string
}

// NewInMemorySharedStore creates a new InMemorySharedStore.
func NewInMemorySharedStore() *InMemorySharedStore {
	return &InMemorySharedStore{
		items: make(map[string]map[string]string),
	}
}

// GetItem returns the value stored under key for scope.
func (s *InMemorySharedStore) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[scope][key]
	return v, ok, nil
}

// SetItems writes all items for scope, overwriting existing values.
func (s *InMemorySharedStore) SetItems(ctx context.Context, scope string, items map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.items[scope]
	if !ok {
		bucket = make(map[string]string)
		s.items[scope] = bucket
	}
	for k, v := range items {
		bucket[k] = v
	}
	return nil
}

// RemoveItems deletes keys for scope.
func (s *InMemorySharedStore) RemoveItems(ctx context.Context, scope string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.items[scope]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(bucket, k)
	}
	if len(bucket) == 0 {
		delete(s.items, scope)
	}
	return nil
}

// InMemoryTokenSink keeps tokens in memory, keyed by scope.
type InMemoryTokenSink struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewInMemoryTokenSink creates a new InMemoryTokenSink.
func NewInMemoryTokenSink() *InMemoryTokenSink {
	return &InMemoryTokenSink{tokens: make(map[string]string)}
}

// StoreWalletToken records token for scope.
func (s *InMemoryTokenSink) StoreWalletToken(ctx context.Context, scope, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[scope] = token
	return nil
}

// Token returns the token stored for scope.
func (s *InMemoryTokenSink) Token(scope string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[scope]
	return t, ok
}
