package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of the Store interface.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create starts a new session that lives for duration.
func (s *InMemoryStore) Create(ctx context.Context, duration time.Duration) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := Session{ID: id, CreatedAt: now, ExpiresAt: now.Add(duration)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess

	return &sess, nil
}

// Get returns a live session. Expired sessions stay until Cleanup runs.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(sess.ExpiresAt) {
		return nil, ErrExpired
	}
	return &sess, nil
}

// Extend moves a live session's expiry to now plus duration.
func (s *InMemoryStore) Extend(ctx context.Context, id string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	if now.After(sess.ExpiresAt) {
		return ErrExpired
	}
	sess.ExpiresAt = now.Add(duration)
	s.sessions[id] = sess
	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Cleanup removes expired sessions and returns their IDs.
func (s *InMemoryStore) Cleanup(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed []string
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// generateSessionID creates a new random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
