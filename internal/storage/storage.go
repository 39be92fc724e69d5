package storage

import (
	"context"
	"time"
)

// Storage defines the interface for low-level database operations
// required by the higher-level TokenStore.
type Storage interface {
	GetToken(ctx context.Context, scope string) ([]byte, []byte, error)
	StoreToken(ctx context.Context, scope string, token, nonce []byte, expiresAt *time.Time) error
	HasToken(ctx context.Context, scope string) (bool, error)
	DeleteToken(ctx context.Context, scope string) error
}
