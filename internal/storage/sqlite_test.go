package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Migrate(t *testing.T) {
	s := newTestStorage(t)

	status, err := s.GetMigrationStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.Version)
	assert.False(t, status.Dirty)

	for _, table := range []string{"shared_items", "tokens"} {
		var exists bool
		err := s.DB().QueryRow(`SELECT EXISTS (
			SELECT 1 FROM sqlite_master WHERE type='table' AND name=?
		)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "Table %s should exist", table)
	}

	// Running again is a no-op
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStorage_SharedItems(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, "scope-a", "wallet_oauth_state")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.SetItems(ctx, "scope-a", map[string]string{
		"wallet_oauth_state":   "state-1",
		"wallet_code_verifier": "verifier-1",
		"wallet_redirect_uri":  "http://localhost/az/auth/wallet/callback",
	})
	require.NoError(t, err)

	v, ok, err := s.GetItem(ctx, "scope-a", "wallet_oauth_state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "state-1", v)

	// Overwrite keeps a single slot per key
	require.NoError(t, s.SetItems(ctx, "scope-a", map[string]string{"wallet_oauth_state": "state-2"}))
	v, _, err = s.GetItem(ctx, "scope-a", "wallet_oauth_state")
	require.NoError(t, err)
	assert.Equal(t, "state-2", v)

	// Scopes are isolated
	_, ok, err = s.GetItem(ctx, "scope-b", "wallet_oauth_state")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveItems(ctx, "scope-a", "wallet_oauth_state", "wallet_code_verifier"))
	_, ok, err = s.GetItem(ctx, "scope-a", "wallet_oauth_state")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.GetItem(ctx, "scope-a", "wallet_redirect_uri")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://localhost/az/auth/wallet/callback", v)
}

func TestSQLiteStorage_SharedItemsInvalidScope(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, _, err := s.GetItem(ctx, "", "k")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, s.SetItems(ctx, "", map[string]string{"k": "v"}), ErrInvalidInput)
	assert.ErrorIs(t, s.RemoveItems(ctx, "", "k"), ErrInvalidInput)
}

func TestSQLiteStorage_Tokens(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   string
		token   []byte
		nonce   []byte
		wantErr error
	}{
		{name: "valid", scope: "scope-a", token: []byte("encrypted"), nonce: []byte("nonce")},
		{name: "empty scope", scope: "", token: []byte("encrypted"), nonce: []byte("nonce"), wantErr: ErrInvalidInput},
		{name: "empty token", scope: "scope-a", token: nil, nonce: []byte("nonce"), wantErr: ErrInvalidInput},
		{name: "empty nonce", scope: "scope-a", token: []byte("encrypted"), nonce: nil, wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.StoreToken(ctx, tt.scope, tt.token, tt.nonce, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	token, nonce, err := s.GetToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("encrypted"), token)
	assert.Equal(t, []byte("nonce"), nonce)

	has, err := s.HasToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.DeleteToken(ctx, "scope-a"))
	_, _, err = s.GetToken(ctx, "scope-a")
	assert.ErrorIs(t, err, ErrNotFound)

	has, err = s.HasToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLiteStorage_HasTokenExpiry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, s.StoreToken(ctx, "expired", []byte("t"), []byte("n"), &past))
	require.NoError(t, s.StoreToken(ctx, "valid", []byte("t"), []byte("n"), &future))

	has, err := s.HasToken(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasToken(ctx, "valid")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSQLiteStorage_GetStats(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SetItems(ctx, "a", map[string]string{"wallet_oauth_state": "s", "wallet_code_verifier": "v"}))
	require.NoError(t, s.SetItems(ctx, "b", map[string]string{"wallet_return_url": "/az"}))
	require.NoError(t, s.StoreToken(ctx, "a", []byte("t"), []byte("n"), nil))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.SharedItems)
	assert.Equal(t, int64(1), stats.PendingLogins)
	assert.Equal(t, int64(1), stats.Tokens)
	assert.False(t, stats.CollectedAt.IsZero())
}
