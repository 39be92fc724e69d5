package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key := testKey()
	plaintext := []byte(`{"access_token":"abc"}`)

	ct, nonce, err := EncryptToken(key, plaintext, "scope-a")
	require.NoError(t, err)
	assert.Len(t, nonce, NonceSize)
	assert.NotEqual(t, plaintext, ct)

	got, err := DecryptToken(key, ct, nonce, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_WrongScope(t *testing.T) {
	key := testKey()
	ct, nonce, err := EncryptToken(key, []byte("secret"), "scope-a")
	require.NoError(t, err)

	_, err = DecryptToken(key, ct, nonce, "scope-b")
	assert.Error(t, err)
}

func TestEncryption_InvalidInput(t *testing.T) {
	_, _, err := EncryptToken([]byte("short"), []byte("x"), "s")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = DecryptToken(testKey(), []byte("x"), []byte("bad"), "s")
	assert.ErrorIs(t, err, ErrInvalidNonce)

	ct, nonce, err := EncryptToken(testKey(), []byte("x"), "s")
	require.NoError(t, err)
	other := testKey()
	other[0] ^= 0xff
	_, err = DecryptToken(other, ct, nonce, "s")
	assert.Error(t, err)
}

func TestTokenStore_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := NewTokenStore(s, []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	ts, err := NewTokenStore(s, testKey())
	require.NoError(t, err)

	require.NoError(t, ts.StoreWalletToken(ctx, "scope-a", "opaque-token"))

	token, err := ts.GetToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.Expiry.IsZero())

	has, err := ts.HasToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.True(t, has)

	// Ciphertext stored for one scope cannot be read under another
	ct, nonce, err := s.GetToken(ctx, "scope-a")
	require.NoError(t, err)
	require.NoError(t, s.StoreToken(ctx, "scope-b", ct, nonce, nil))
	_, err = ts.GetToken(ctx, "scope-b")
	assert.Error(t, err)

	require.NoError(t, ts.DeleteToken(ctx, "scope-a"))
	has, err = ts.HasToken(ctx, "scope-a")
	require.NoError(t, err)
	assert.False(t, has)

	assert.Error(t, ts.StoreWalletToken(ctx, "scope-a", ""))
}

func TestTokenStore_JWTExpiry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ts, err := NewTokenStore(s, testKey())
	require.NoError(t, err)

	tests := []struct {
		name    string
		exp     time.Time
		wantHas bool
	}{
		{name: "future", exp: time.Now().Add(time.Hour), wantHas: true},
		{name: "past", exp: time.Now().Add(-time.Hour), wantHas: false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "user-1",
				"exp": tt.exp.Unix(),
			}).SignedString([]byte("backend-secret"))
			require.NoError(t, err)

			scope := fmt.Sprintf("jwt-%d", i)
			require.NoError(t, ts.StoreWalletToken(ctx, scope, raw))

			token, err := ts.GetToken(ctx, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.exp.Unix(), token.Expiry.Unix())

			has, err := ts.HasToken(ctx, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHas, has)
		})
	}
}
