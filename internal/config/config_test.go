package config

import "testing"

func TestConfigSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.ServePort != 8091 {
		t.Errorf("ServePort = %d, want 8091", cfg.ServePort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestConfigSetDefaultsPreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		DSN:       "postgres://localhost/ironclad",
		ServePort: 9090,
		LogLevel:  "warn",
	}
	cfg.SetDefaults()

	if cfg.ServePort != 9090 {
		t.Errorf("ServePort was overwritten: got %d, want 9090", cfg.ServePort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel was overwritten: got %q, want %q", cfg.LogLevel, "warn")
	}
}

func TestConfigSetDefaultsLeavesAdminAPIKeyEmpty(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.AdminAPIKey != "" {
		t.Errorf("AdminAPIKey = %q, want empty (auth is optional until configured)", cfg.AdminAPIKey)
	}
}
