package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.EncryptionKey = testKey
	cfg.PublicOrigin = "https://market.example.az"
	cfg.Wallet.URL = "https://wallet.example.az"
	cfg.Wallet.ClientID = "marketfront"
	cfg.API.URL = "https://api.example.az/api"
	return cfg
}

func TestConfig_LoadFromFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeConfig(t, `{
		"http_port": 3000,
		"log_level": "debug",
		"db_path": "/var/lib/marketfront/data.db",
		"encryption_key": "`+testKey+`",
		"public_origin": "https://market.example.az",
		"default_locale": "en",
		"wallet": {
			"url": "https://wallet.example.az",
			"client_id": "marketfront",
			"scopes": ["profile:name"]
		},
		"api": {"url": "https://api.example.az/api", "timeout": "5s"},
		"auth": {"login_timeout": "2m", "close_delay": "500ms", "landing_path": "/az"},
		"cors": {"allowed_origins": ["https://admin.example.az"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.MetricsPort, "defaults survive a partial file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.Equal(t, []string{"profile:name"}, cfg.Wallet.Scopes)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Auth.LoginTimeout.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Auth.CloseDelay.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Auth.StateTTL.Duration)
	assert.Equal(t, "/az", cfg.Auth.LandingPath)
	assert.Equal(t, []string{"https://admin.example.az"}, cfg.CORS.AllowedOrigins)

	key, err := cfg.KeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = Load("non-existent.json")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "{invalid json}"))
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("PUBLIC_ORIGIN", "http://localhost:8181")
	t.Setenv("WALLET_URL", "http://localhost:3001")
	t.Setenv("WALLET_CLIENT_ID", "local")
	t.Setenv("API_URL", "http://localhost:8000/api")
	t.Setenv("AUTH_LOGIN_TIMEOUT", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.Equal(t, "local", cfg.Wallet.ClientID)
	assert.Equal(t, 90*time.Second, cfg.Auth.LoginTimeout.Duration)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)

	t.Setenv("HTTP_PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "HTTP_PORT")

	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("AUTH_STATE_TTL", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "AUTH_STATE_TTL")
}

func TestConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	env := strings.Join([]string{
		"ENCRYPTION_KEY=" + testKey,
		"PUBLIC_ORIGIN=http://localhost:8080",
		"WALLET_URL=http://localhost:3001",
		"WALLET_CLIENT_ID=from-dotenv",
		"API_URL=http://localhost:8000/api",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644))

	// Values already in the environment win over .env
	t.Setenv("WALLET_CLIENT_ID", "from-env")
	for _, k := range []string{"ENCRYPTION_KEY", "PUBLIC_ORIGIN", "WALLET_URL", "API_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Wallet.ClientID)
	assert.Equal(t, "http://localhost:8080", cfg.PublicOrigin)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		shouldError bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }, shouldError: true},
		{name: "bad log format", modify: func(c *Config) { c.LogFormat = "xml" }, shouldError: true},
		{name: "short key", modify: func(c *Config) { c.EncryptionKey = "abcd" }, shouldError: true},
		{name: "non hex key", modify: func(c *Config) { c.EncryptionKey = strings.Repeat("z", 64) }, shouldError: true},
		{name: "missing origin", modify: func(c *Config) { c.PublicOrigin = "" }, shouldError: true},
		{name: "origin with slash", modify: func(c *Config) { c.PublicOrigin = "https://market.example.az/" }, shouldError: true},
		{name: "unknown locale", modify: func(c *Config) { c.DefaultLocale = "de" }, shouldError: true},
		{name: "missing client id", modify: func(c *Config) { c.Wallet.ClientID = "" }, shouldError: true},
		{name: "close delay above a second", modify: func(c *Config) { c.Auth.CloseDelay = Duration{2 * time.Second} }, shouldError: true},
		{name: "login timeout too short", modify: func(c *Config) { c.Auth.LoginTimeout = Duration{10 * time.Millisecond} }, shouldError: true},
		{name: "relative landing path", modify: func(c *Config) { c.Auth.LandingPath = "home" }, shouldError: true},
		{name: "bad cors origin", modify: func(c *Config) { c.CORS.AllowedOrigins = []string{"not a url"} }, shouldError: true},
		{name: "zero workers", modify: func(c *Config) { c.NumWorkers = 0 }, shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.validate()
			if tt.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`"forever"`)))

	out, err := Duration{2 * time.Hour}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2h0m0s"`, string(out))
}
