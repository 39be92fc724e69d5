// Package session identifies browsers by an opaque cookie. The session ID is
// the browser scope under which shared login values and tokens are stored.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Session is one browser's identity.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store defines the interface for session management.
type Store interface {
	// Create starts a new session that lives for duration.
	Create(ctx context.Context, duration time.Duration) (*Session, error)
	// Get returns a live session.
	Get(ctx context.Context, id string) (*Session, error)
	// Extend moves a live session's expiry to now plus duration.
	Extend(ctx context.Context, id string, duration time.Duration) error
	// Delete removes a session.
	Delete(ctx context.Context, id string) error
	// Cleanup removes expired sessions and returns their IDs.
	Cleanup(ctx context.Context) ([]string, error)
}
