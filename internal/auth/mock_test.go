package auth

import (
	"context"
	"errors"
	"sync"
)

// Mock Exchanger
type mockExchanger struct {
	mu       sync.Mutex
	result   *ExchangeResult
	err      error
	requests []ExchangeRequest
}

func (m *mockExchanger) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result, m.err
}

func (m *mockExchanger) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Mock SharedStore that fails selected operations
type failingSharedStore struct {
	*InMemorySharedStore
	failGet    bool
	failRemove bool
}

func (f *failingSharedStore) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("storage unavailable")
	}
	return f.InMemorySharedStore.GetItem(ctx, scope, key)
}

func (f *failingSharedStore) RemoveItems(ctx context.Context, scope string, keys ...string) error {
	if f.failRemove {
		return errors.New("storage unavailable")
	}
	return f.InMemorySharedStore.RemoveItems(ctx, scope, keys...)
}

// Mock TokenSink that always fails
type failingTokenSink struct{}

func (failingTokenSink) StoreWalletToken(ctx context.Context, scope, token string) error {
	return errors.New("disk full")
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}
