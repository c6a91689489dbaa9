package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// InitViper wires viper to read configuration exclusively from the
// environment, using bare variable names (DSN, SERVE_PORT, LOG_LEVEL,
// ADMIN_API_KEY) rather than a prefixed or nested scheme. There is no
// config file for this service.
func InitViper() {
	bindEnvKeys()
}

func bindEnvKeys() {
	_ = viper.BindEnv("dsn", "DSN")
	_ = viper.BindEnv("serve_port", "SERVE_PORT")
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("admin_api_key", "ADMIN_API_KEY")
}

// LoadConfig reads environment variables, applies defaults, and validates
// the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
