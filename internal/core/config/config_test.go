package config

import (
	"errors"
	"testing"
	"time"

	"github.com/solatis/linewarden/internal/types"
)

const (
	secretA = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	secretB = "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	secretC = "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func clearSecrets(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LW_HMAC_SECRET", "LW_HMAC_SECRET_1", "LW_HMAC_SECRET_2"} {
		t.Setenv(k, "")
	}
}

func TestHMACSecrets(t *testing.T) {
	t.Run("single secret", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("LW_HMAC_SECRET", secretA)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 1 {
			t.Errorf("len(secrets) = %d, want 1", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("numbered secrets for rotation", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("LW_HMAC_SECRET_1", secretA)
		t.Setenv("LW_HMAC_SECRET_2", secretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 2 {
			t.Errorf("len(secrets) = %d, want 2", len(secrets))
		}
	})

	t.Run("duplicate between single and numbered", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("LW_HMAC_SECRET", secretA)
		t.Setenv("LW_HMAC_SECRET_1", secretC)

		if _, err := HMACSecrets(); err == nil {
			t.Error("HMACSecrets() error = nil, want duplicate secret_id error")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("LW_HMAC_SECRET", "invalid_format")

		if _, err := HMACSecrets(); err == nil {
			t.Error("HMACSecrets() error = nil, want format error")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "valid", value: secretA},
		{name: "missing colon", value: "0123456789abcdef0123456789abcdef", wantErr: true},
		{name: "short secret_id", value: "tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w", wantErr: true},
		{name: "non-hex secret_id", value: "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w", wantErr: true},
		{name: "bad base64", value: "0123456789abcdef0123456789abcdef:!!!", wantErr: true},
		{name: "secret too short", value: "0123456789abcdef0123456789abcdef:c2hvcnQ=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := ParseHMACSecretWithID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHMACSecretWithID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (id != "0123456789abcdef0123456789abcdef" || len(secret) < 32) {
				t.Errorf("ParseHMACSecretWithID() = %q, %d bytes", id, len(secret))
			}
		})
	}
}

func TestSigningSecret(t *testing.T) {
	clearSecrets(t)
	if _, _, ok, err := SigningSecret(); ok || err != nil {
		t.Errorf("SigningSecret() ok = %v, err = %v, want false, nil", ok, err)
	}

	t.Setenv("LW_HMAC_SECRET_1", secretB)
	id, _, ok, err := SigningSecret()
	if err != nil || !ok || id != "fedcba9876543210fedcba9876543210" {
		t.Errorf("SigningSecret() = %q, %v, %v", id, ok, err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Bulk.Workers != 5 {
		t.Errorf("Bulk.Workers = %d, want 5", cfg.Bulk.Workers)
	}
	if cfg.Bulk.Pause != 100*time.Millisecond {
		t.Errorf("Bulk.Pause = %v, want 100ms", cfg.Bulk.Pause)
	}
	if cfg.Bulk.CallTimeout != 30*time.Second {
		t.Errorf("Bulk.CallTimeout = %v, want 30s", cfg.Bulk.CallTimeout)
	}
	if cfg.Source.APIVersion != "v59.0" {
		t.Errorf("Source.APIVersion = %q, want v59.0", cfg.Source.APIVersion)
	}
	if cfg.Orders.Strategy != "latest" || cfg.Orders.Timezone != "UTC" {
		t.Errorf("Orders = %+v", cfg.Orders)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("LW_BULK_WORKERS", "12")
	t.Setenv("LW_SERVER_ADDRESS", "validator:50061")
	t.Setenv("LW_SOURCE_TOKEN", "tok")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Bulk.Workers != 12 {
		t.Errorf("Bulk.Workers = %d, want 12", cfg.Bulk.Workers)
	}
	if cfg.Server.Address != "validator:50061" {
		t.Errorf("Server.Address = %q", cfg.Server.Address)
	}
	if cfg.SourceToken != "tok" {
		t.Errorf("SourceToken = %q, want tok", cfg.SourceToken)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero workers", mutate: func(c *Config) { c.Bulk.Workers = 0 }},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "unknown strategy", mutate: func(c *Config) { c.Orders.Strategy = "oldest" }},
		{name: "filtered without reason", mutate: func(c *Config) { c.Orders.Strategy = "filtered" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Orders.Timezone = "Mars/Olympus" }},
		{name: "bad output format", mutate: func(c *Config) { c.Bulk.OutputFormat = "pdf" }},
		{name: "check without id", mutate: func(c *Config) {
			c.Validations.Basic = []types.CheckDescriptor{{ValidationType: types.ValidationPresence}}
		}},
		{name: "template without table", mutate: func(c *Config) {
			c.Queries = map[string]types.QueryTemplate{"x": {Fields: []string{"Id"}}}
		}},
	}

	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) error = %v, want nil", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, types.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
