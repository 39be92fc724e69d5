package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenStore handles the logic for storing and retrieving wallet session
// tokens, including encryption and decryption.
type TokenStore struct {
	db            Storage
	encryptionKey []byte
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db Storage, key []byte) (*TokenStore, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &TokenStore{db: db, encryptionKey: key}, nil
}

// StoreWalletToken wraps the backend token in an oauth2.Token, encrypts it and stores it.
// When the token is a JWT its exp claim becomes the expiry; the signature is
// not checked here since the backend that issued it is the verifier.
func (ts *TokenStore) StoreWalletToken(ctx context.Context, scope, raw string) error {
	if raw == "" {
		return errors.New("token cannot be empty")
	}
	token := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, ok := tokenExpiry(raw); ok {
		token.Expiry = exp
	}
	return ts.StoreToken(ctx, scope, token)
}

// StoreToken encrypts and stores an oauth2.Token for a scope.
func (ts *TokenStore) StoreToken(ctx context.Context, scope string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}

	tokenBytes, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	encrypted, nonce, err := EncryptToken(ts.encryptionKey, tokenBytes, scope)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}
	return ts.db.StoreToken(ctx, scope, encrypted, nonce, expiresAt)
}

// GetToken retrieves a decrypted oauth2.Token for a scope.
func (ts *TokenStore) GetToken(ctx context.Context, scope string) (*oauth2.Token, error) {
	encryptedToken, nonce, err := ts.db.GetToken(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to get encrypted token from db: %w", err)
	}

	decryptedData, err := DecryptToken(ts.encryptionKey, encryptedToken, nonce, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(decryptedData, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// HasToken reports whether scope holds an unexpired token.
func (ts *TokenStore) HasToken(ctx context.Context, scope string) (bool, error) {
	return ts.db.HasToken(ctx, scope)
}

// DeleteToken removes a token for a scope.
func (ts *TokenStore) DeleteToken(ctx context.Context, scope string) error {
	return ts.db.DeleteToken(ctx, scope)
}

func tokenExpiry(raw string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
