package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("database.url", "")
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.max_connections", def.Server.MaxConnections)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("rules.max_condition_depth", def.Rules.MaxConditionDepth)
	v.SetDefault("rules.max_condition_cost", def.Rules.MaxConditionCost)

	// AG_SERVER_PORT -> server.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: v.GetString("database.url"),
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Rules: RulesConfig{
			MaxConditionDepth: v.GetInt("rules.max_condition_depth"),
			MaxConditionCost:  v.GetInt("rules.max_condition_cost"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port range and that limits, connections and timeout are positive.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Rules.MaxConditionDepth <= 0 {
		return fmt.Errorf("max_condition_depth must be positive, got %d", cfg.Rules.MaxConditionDepth)
	}
	if cfg.Rules.MaxConditionCost <= 0 {
		return fmt.Errorf("max_condition_cost must be positive, got %d", cfg.Rules.MaxConditionCost)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// Only the config file is inspected; AG_HMAC_SECRET in the environment is expected.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use %s_HMAC_SECRET environment variable)", EnvPrefix)
	}
	return nil
}
