// Package config provides configuration management for approvalgate services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/approvalgate/internal/rules"
	"github.com/solatis/approvalgate/internal/types"
)

// EnvPrefix is the prefix of every environment variable read by approvalgate.
const EnvPrefix = "AG"

// Config is the complete service configuration.
type Config struct {
	DatabaseURL string
	Server      ServerConfig
	Rules       RulesConfig
}

// ServerConfig holds configuration for the gRPC API.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
}

// RulesConfig bounds the condition trees the evaluator accepts.
type RulesConfig struct {
	MaxConditionDepth int
	MaxConditionCost  int
}

// Limits converts the rules configuration to evaluator limits.
func (r RulesConfig) Limits() rules.Limits {
	return rules.Limits{MaxDepth: r.MaxConditionDepth, MaxCost: r.MaxConditionCost}
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
		},
		Rules: RulesConfig{
			MaxConditionDepth: types.DefaultMaxConditionDepth,
			MaxConditionCost:  types.DefaultMaxConditionCost,
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports AG_HMAC_SECRET (single) and AG_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)
	single := EnvPrefix + "_HMAC_SECRET"

	add := func(name, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check %s and %s_* for conflicts)", secretID, single, single)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv(single); val != "" {
		if err := add(single, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets enable rotation: old and new keys valid during migration
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", single, i)
		val := os.Getenv(name)
		if val == "" {
			break
		}
		if err := add(name, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes base64-encoded HMAC secret from environment variable.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
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
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}

	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
