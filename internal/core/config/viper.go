package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/solatis/linewarden/internal/types"
)

// secretKeys must never appear in a config file.
var secretKeys = []string{
	"source_token",
	"source.token",
	"hmac_secret",
	"server.hmac_secret",
}

// LoadConfig loads configuration from file using viper.
// environment > config file > defaults precedence. Flags are applied by the
// caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Bind environment variables with LW_ prefix
	v.SetEnvPrefix("LW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Secrets must be environment-only
		if err := validateNoSecretsInConfig(v); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.NewConfigError("config", "decode: %v", err)
	}
	cfg.SourceToken = os.Getenv("LW_SOURCE_TOKEN")

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source.base_url", d.Source.BaseURL)
	v.SetDefault("source.api_version", d.Source.APIVersion)
	v.SetDefault("source.timeout", d.Source.Timeout)
	v.SetDefault("source.page_size", d.Source.PageSize)

	v.SetDefault("orders.strategy", d.Orders.Strategy)
	v.SetDefault("orders.reason", d.Orders.Reason)
	v.SetDefault("orders.timezone", d.Orders.Timezone)

	v.SetDefault("bulk.workers", d.Bulk.Workers)
	v.SetDefault("bulk.pause", d.Bulk.Pause)
	v.SetDefault("bulk.max_requests_per_second", d.Bulk.MaxRequestsPerSecond)
	v.SetDefault("bulk.call_timeout", d.Bulk.CallTimeout)
	v.SetDefault("bulk.progress_every", d.Bulk.ProgressEvery)
	v.SetDefault("bulk.output_format", d.Bulk.OutputFormat)
	v.SetDefault("bulk.output_dir", d.Bulk.OutputDir)
	v.SetDefault("bulk.region", d.Bulk.Region)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.address", d.Server.Address)

	v.SetDefault("database.url", d.Database.URL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate runs the struct tag checks and the cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return types.NewConfigError("config", "%s", strings.Join(msgs, "; "))
		}
		return types.NewConfigError("config", "%v", err)
	}
	if cfg.Orders.Strategy == "filtered" && cfg.Orders.Reason == "" {
		return types.NewConfigError("config", "orders.reason required for the filtered strategy")
	}
	if _, err := cfg.Orders.Location(); err != nil {
		return err
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("secrets not allowed in config files (use LW_SOURCE_TOKEN and LW_HMAC_SECRET environment variables)")
		}
	}
	return nil
}
