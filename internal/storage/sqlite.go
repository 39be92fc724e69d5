package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// SQLiteStorage handles all database operations
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLiteStorage instance
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// DB returns the underlying database handle.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

func validateScope(scope string) error {
	if scope == "" {
		return fmt.Errorf("%w: scope cannot be empty", ErrInvalidInput)
	}
	return nil
}

// validateTokenInput checks if the token input parameters are valid
func validateTokenInput(scope string, token, nonce []byte) error {
	if err := validateScope(scope); err != nil {
		return err
	}
	if len(token) == 0 {
		return fmt.Errorf("%w: token cannot be empty", ErrInvalidInput)
	}
	if len(nonce) == 0 {
		return fmt.Errorf("%w: nonce cannot be empty", ErrInvalidInput)
	}
	return nil
}

// GetItem returns a shared item for a browser scope.
func (s *SQLiteStorage) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	if err := validateScope(scope); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT item_value FROM shared_items WHERE scope = ? AND item_key = ?",
		scope, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get shared item: %w", err)
	}
	return value, true, nil
}

// SetItems writes shared items for a browser scope in one transaction.
func (s *SQLiteStorage) SetItems(ctx context.Context, scope string, items map[string]string) error {
	if err := validateScope(scope); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shared_items (scope, item_key, item_value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (scope, item_key) DO UPDATE SET
				item_value = excluded.item_value,
				updated_at = CURRENT_TIMESTAMP`,
			scope, k, v)
		if err != nil {
			return fmt.Errorf("failed to set shared item %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveItems deletes shared items for a browser scope.
func (s *SQLiteStorage) RemoveItems(ctx context.Context, scope string, keys ...string) error {
	if err := validateScope(scope); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM shared_items WHERE scope = ? AND item_key = ?", scope, k); err != nil {
			return fmt.Errorf("failed to remove shared item %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// StoreToken stores or updates an encrypted token and its nonce
func (s *SQLiteStorage) StoreToken(ctx context.Context, scope string, token, nonce []byte, expiresAt *time.Time) error {
	if err := validateTokenInput(scope, token, nonce); err != nil {
		return err
	}

	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (scope, encrypted_token, nonce, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scope) DO UPDATE SET
			encrypted_token = excluded.encrypted_token,
			nonce = excluded.nonce,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		scope, token, nonce, expires)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetToken retrieves an encrypted token and its nonce
func (s *SQLiteStorage) GetToken(ctx context.Context, scope string) ([]byte, []byte, error) {
	if err := validateScope(scope); err != nil {
		return nil, nil, err
	}

	var token, nonce []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT encrypted_token, nonce FROM tokens WHERE scope = ?",
		scope).Scan(&token, &nonce)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: token not found for scope %s", ErrNotFound, scope)
		}
		return nil, nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nonce, nil
}

// HasToken reports whether an unexpired token exists for scope.
func (s *SQLiteStorage) HasToken(ctx context.Context, scope string) (bool, error) {
	if err := validateScope(scope); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tokens
			WHERE scope = ? AND (expires_at IS NULL OR expires_at > ?)
		)`,
		scope, time.Now().UTC()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return exists, nil
}

// DeleteToken removes a token from the database.
func (s *SQLiteStorage) DeleteToken(ctx context.Context, scope string) error {
	if err := validateScope(scope); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE scope = ?", scope)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
