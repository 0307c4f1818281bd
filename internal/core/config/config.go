// Package config provides configuration management for linewarden.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
	// orders.timezone must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/solatis/linewarden/internal/types"
)

// Config is the full process configuration.
type Config struct {
	Source      SourceConfig                   `mapstructure:"source"`
	Orders      OrdersConfig                   `mapstructure:"orders"`
	Queries     map[string]types.QueryTemplate `mapstructure:"queries" validate:"dive"`
	Validations ValidationsConfig              `mapstructure:"validations"`
	Bulk        BulkConfig                     `mapstructure:"bulk"`
	Server      ServerConfig                   `mapstructure:"server"`
	Database    DatabaseConfig                 `mapstructure:"database"`
	Log         LogConfig                      `mapstructure:"log"`

	// SourceToken is read from LW_SOURCE_TOKEN only.
	SourceToken string `mapstructure:"-"`
}

// SourceConfig locates the catalog query API.
type SourceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PageSize   int           `mapstructure:"page_size" validate:"gte=0"`
}

// OrdersConfig controls order retrieval and classification.
type OrdersConfig struct {
	Strategy      string   `mapstructure:"strategy" validate:"required,oneof=latest filtered"`
	Reason        string   `mapstructure:"reason"`
	ValidReasons  []string `mapstructure:"valid_reasons"`
	Timezone      string   `mapstructure:"timezone" validate:"required"`
	IgnoreReasons []string `mapstructure:"ignore_reasons"`
	IgnoreTypes   []string `mapstructure:"ignore_types"`
}

// Location resolves Timezone.
func (o OrdersConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, types.NewConfigError("config", "invalid orders.timezone %q: %v", o.Timezone, err)
	}
	return loc, nil
}

// ValidationsConfig declares the check sets.
type ValidationsConfig struct {
	Basic       []types.CheckDescriptor `mapstructure:"basic" validate:"dive"`
	ReasonBased []types.ReasonCheckSet  `mapstructure:"reason_based" validate:"dive"`
	SystemUsers []string                `mapstructure:"system_users"`
}

// BulkConfig tunes the bulk executor and its reports.
type BulkConfig struct {
	Workers              int           `mapstructure:"workers" validate:"gte=1"`
	Pause                time.Duration `mapstructure:"pause" validate:"gte=0"`
	MaxRequestsPerSecond float64       `mapstructure:"max_requests_per_second" validate:"gte=0"`
	CallTimeout          time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	ProgressEvery        int           `mapstructure:"progress_every" validate:"gte=1"`
	OutputFormat         string        `mapstructure:"output_format" validate:"oneof=json csv xlsx"`
	OutputDir            string        `mapstructure:"output_dir"`
	Region               string        `mapstructure:"region"`
}

// ServerConfig holds the validation service listener and the client target.
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	// Address is the remote validation service used by bulk runs. Empty
	// means validate in process.
	Address string `mapstructure:"address"`
}

// DatabaseConfig locates the run history store. Empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			APIVersion: "v59.0",
			Timeout:    30 * time.Second,
			PageSize:   2000,
		},
		Orders: OrdersConfig{
			Strategy: "latest",
			Timezone: "UTC",
		},
		Bulk: BulkConfig{
			Workers:       5,
			Pause:         100 * time.Millisecond,
			CallTimeout:   30 * time.Second,
			ProgressEvery: 10,
			OutputFormat:  "json",
			OutputDir:     ".",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			RequestTimeout: 60 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// HMACSecrets extracts request-signing secrets from environment variables.
// Supports LW_HMAC_SECRET (single) and LW_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' in LW_HMAC_SECRET and LW_HMAC_SECRET_*", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	if val := os.Getenv("LW_HMAC_SECRET"); val != "" {
		if err := add("LW_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}
	for i := 1; ; i++ {
		key := fmt.Sprintf("LW_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}
	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}
	return secretID, secret, nil
}

// SigningSecret returns the first configured secret for outbound calls:
// LW_HMAC_SECRET, else LW_HMAC_SECRET_1. ok is false when none is set.
func SigningSecret() (secretID string, secret []byte, ok bool, err error) {
	for _, key := range []string{"LW_HMAC_SECRET", "LW_HMAC_SECRET_1"} {
		if val := os.Getenv(key); val != "" {
			id, s, err := ParseHMACSecretWithID(val)
			if err != nil {
				return "", nil, false, fmt.Errorf("%s: %w", key, err)
			}
			return id, s, true, nil
		}
	}
	return "", nil, false, nil
}
