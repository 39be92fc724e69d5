package storage

import (
	"context"
	"fmt"
	"time"
)

// CleanupSharedItems removes shared items not written for longer than maxAge.
// These are PKCE entries of logins that never completed.
func (s *SQLiteStorage) CleanupSharedItems(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", ErrInvalidInput)
	}

	query := `
		DELETE FROM shared_items
		WHERE updated_at < datetime('now', ?)
	`
	result, err := s.db.ExecContext(ctx, query, fmt.Sprintf("-%d seconds", int64(maxAge.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup shared items: %w", err)
	}

	return result.RowsAffected()
}

// CleanupExpiredTokens removes tokens whose expiry has passed.
func (s *SQLiteStorage) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	return result.RowsAffected()
}

// DeleteScope removes every shared item and the token of scope.
func (s *SQLiteStorage) DeleteScope(ctx context.Context, scope string) error {
	if err := validateScope(scope); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shared_items WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("failed to delete shared items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tokens WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
