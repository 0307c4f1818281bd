package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/linewarden/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linewarden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: https://catalog.example.com
orders:
  strategy: filtered
  reason: Change Plan
  ignore_reasons: [Move]
queries:
  latest_line_for_msisdn:
    fields: [Id, PR_MSISDN__c]
    from_table: Asset
    where_conditions: ["PR_MSISDN__c = {msisdn}"]
validations:
  system_users: [Integration User]
  basic:
    - id: device_present
      validation_type: presence
      logic: validate_device_exists
    - id: device_charges
      validation_type: charges
      logic: validate_device_charges
      allow_zero: false
  reason_based:
    - reason: Change Plan
      checks:
        - id: line_active
          validation_type: status
          field: line.status
          expected_value: Active
bulk:
  pause: 250ms
  output_format: xlsx
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Source.BaseURL != "https://catalog.example.com" {
		t.Errorf("Source.BaseURL = %q", cfg.Source.BaseURL)
	}
	if cfg.Orders.Reason != "Change Plan" || len(cfg.Orders.IgnoreReasons) != 1 {
		t.Errorf("Orders = %+v", cfg.Orders)
	}
	if tmpl, ok := cfg.Queries["latest_line_for_msisdn"]; !ok || tmpl.FromTable != "Asset" {
		t.Errorf("Queries = %+v", cfg.Queries)
	}
	if len(cfg.Validations.Basic) != 2 {
		t.Fatalf("len(Basic) = %d, want 2", len(cfg.Validations.Basic))
	}
	if az := cfg.Validations.Basic[1].AllowZero; az == nil || *az {
		t.Errorf("Basic[1].AllowZero = %v, want false", az)
	}
	if cfg.Validations.Basic[0].AllowZero != nil {
		t.Errorf("Basic[0].AllowZero set, want nil")
	}
	rb := cfg.Validations.ReasonBased
	if len(rb) != 1 || rb[0].Reason != "Change Plan" || rb[0].Checks[0].ValidationType != types.ValidationStatus {
		t.Errorf("ReasonBased = %+v", rb)
	}
	if cfg.Bulk.Pause.String() != "250ms" || cfg.Bulk.OutputFormat != "xlsx" {
		t.Errorf("Bulk = %+v", cfg.Bulk)
	}
	// untouched sections keep defaults
	if cfg.Bulk.Workers != 5 {
		t.Errorf("Bulk.Workers = %d, want default 5", cfg.Bulk.Workers)
	}
}

func TestLoadConfig_RejectsSecretsInFile(t *testing.T) {
	for _, content := range []string{
		"source:\n  token: abc\n",
		"hmac_secret: abc\n",
		"source_token: abc\n",
	} {
		_, err := LoadConfig(writeConfig(t, content))
		if err == nil {
			t.Errorf("LoadConfig(%q) error = nil, want secret rejection", content)
			continue
		}
		if err.Error() != "secrets not allowed in config files (use LW_SOURCE_TOKEN and LW_HMAC_SECRET environment variables)" {
			t.Errorf("LoadConfig() error = %v", err)
		}
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("LW_SERVER_PORT", "8080")

	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 from environment", cfg.Server.Port)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() error = nil, want read error")
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "linewarden.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig(example) error = %v, want nil", err)
	}
	if len(cfg.Validations.Basic) == 0 || len(cfg.Validations.ReasonBased) == 0 {
		t.Errorf("example validations = %+v, want basic and reason sets", cfg.Validations)
	}
	if _, ok := cfg.Queries["order_history_for_msisdn"]; !ok {
		t.Errorf("example queries = %v, want order_history_for_msisdn override", cfg.Queries)
	}
	if cfg.Bulk.OutputFormat != "xlsx" || cfg.Bulk.Region != "PR" {
		t.Errorf("example bulk = %+v", cfg.Bulk)
	}
}
