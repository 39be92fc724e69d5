package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPPort      int    `json:"http_port" validate:"gte=0,lte=65535"`
	MetricsPort   int    `json:"metrics_port" validate:"gte=0,lte=65535"`
	LogLevel      string `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `json:"log_format" validate:"oneof=text json"`
	NumWorkers    int    `json:"num_workers" validate:"min=1"`
	DBPath        string `json:"db_path" validate:"required"`
	EncryptionKey string `json:"encryption_key" validate:"required,len=64,hexadecimal"`
	// PublicOrigin is the scheme and host browsers use to reach this server.
	PublicOrigin  string `json:"public_origin" validate:"required,url"`
	DefaultLocale string `json:"default_locale" validate:"oneof=az en ru"`

	Wallet struct {
		URL      string   `json:"url" validate:"required,url"`
		ClientID string   `json:"client_id" validate:"required"`
		Scopes   []string `json:"scopes"`
	} `json:"wallet"`

	API struct {
		URL     string   `json:"url" validate:"required,url"`
		Timeout Duration `json:"timeout" validate:"min=1s"`
	} `json:"api"`

	Auth struct {
		LoginTimeout  Duration `json:"login_timeout" validate:"min=1s"`
		CloseDelay    Duration `json:"close_delay" validate:"gte=0,max=1s"`
		RedirectDelay Duration `json:"redirect_delay" validate:"gte=0"`
		StateTTL      Duration `json:"state_ttl" validate:"min=1m"`
		SessionTTL    Duration `json:"session_ttl" validate:"min=1m"`
		LandingPath   string   `json:"landing_path" validate:"startswith=/"`
		SecureCookies bool     `json:"secure_cookies"`
	} `json:"auth"`

	CORS struct {
		AllowedOrigins []string `json:"allowed_origins" validate:"dive,url"`
	} `json:"cors"`

	Housekeeping struct {
		Interval Duration `json:"interval" validate:"min=1s"`
	} `json:"housekeeping"`
}

// Duration is a wrapper around time.Duration that implements JSON marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	cfg := &Config{
		HTTPPort:      8080,
		MetricsPort:   9090,
		LogLevel:      "info",
		LogFormat:     "text",
		NumWorkers:    2,
		DBPath:        "marketfront.db",
		DefaultLocale: "az",
	}
	cfg.API.Timeout = Duration{15 * time.Second}
	cfg.Auth.LoginTimeout = Duration{time.Minute}
	cfg.Auth.CloseDelay = Duration{300 * time.Millisecond}
	cfg.Auth.RedirectDelay = Duration{1500 * time.Millisecond}
	cfg.Auth.StateTTL = Duration{10 * time.Minute}
	cfg.Auth.SessionTTL = Duration{30 * 24 * time.Hour}
	cfg.Auth.LandingPath = "/"
	cfg.Housekeeping.Interval = Duration{5 * time.Minute}
	return cfg
}

// Load reads configuration from a file and overrides with environment
// variables. A .env file next to the working directory is loaded first;
// variables already set in the environment win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// KeyBytes decodes the hex encryption key.
func (c *Config) KeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	return key, nil
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"HTTP_PORT", &c.HTTPPort},
		{"METRICS_PORT", &c.MetricsPort},
		{"NUM_WORKERS", &c.NumWorkers},
	}
	for _, o := range ints {
		if v := os.Getenv(o.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", o.name, err)
			}
			*o.dst = n
		}
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"LOG_LEVEL", &c.LogLevel},
		{"LOG_FORMAT", &c.LogFormat},
		{"DB_PATH", &c.DBPath},
		{"ENCRYPTION_KEY", &c.EncryptionKey},
		{"PUBLIC_ORIGIN", &c.PublicOrigin},
		{"DEFAULT_LOCALE", &c.DefaultLocale},
		{"WALLET_URL", &c.Wallet.URL},
		{"WALLET_CLIENT_ID", &c.Wallet.ClientID},
		{"API_URL", &c.API.URL},
	}
	for _, o := range strs {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}

	durations := []struct {
		name string
		dst  *Duration
	}{
		{"API_TIMEOUT", &c.API.Timeout},
		{"AUTH_LOGIN_TIMEOUT", &c.Auth.LoginTimeout},
		{"AUTH_STATE_TTL", &c.Auth.StateTTL},
		{"AUTH_SESSION_TTL", &c.Auth.SessionTTL},
		{"HOUSEKEEPING_INTERVAL", &c.Housekeeping.Interval},
	}
	for _, o := range durations {
		if v := os.Getenv(o.name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", o.name, err)
			}
			*o.dst = Duration{d}
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WALLET_SCOPES"); v != "" {
		c.Wallet.Scopes = splitList(v)
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if strings.HasSuffix(c.PublicOrigin, "/") {
		return fmt.Errorf("public_origin must not end with a slash")
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
