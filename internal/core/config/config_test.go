package config

import (
	"testing"

	"github.com/solatis/approvalgate/internal/types"
)

const (
	validSecretA = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	validSecretB = "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	sameIDSecret = "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func TestHMACSecrets(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		t.Setenv("AG_HMAC_SECRET", "")
		t.Setenv("AG_HMAC_SECRET_1", "")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 0 {
			t.Errorf("expected 0 secrets, got %d", len(secrets))
		}
	})

	t.Run("single secret", func(t *testing.T) {
		t.Setenv("AG_HMAC_SECRET", validSecretA)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("AG_HMAC_SECRET", "")
		t.Setenv("AG_HMAC_SECRET_1", validSecretA)
		t.Setenv("AG_HMAC_SECRET_2", validSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("AG_HMAC_SECRET", "")
		t.Setenv("AG_HMAC_SECRET_1", validSecretA)
		t.Setenv("AG_HMAC_SECRET_2", "")
		t.Setenv("AG_HMAC_SECRET_3", validSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
	})

	invalid := []struct {
		name string
		env  map[string]string
	}{
		{"invalid format", map[string]string{"AG_HMAC_SECRET": "invalid_format"}},
		{"short secret_id", map[string]string{"AG_HMAC_SECRET": "short:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"}},
		{"non-hex secret_id", map[string]string{"AG_HMAC_SECRET": "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"}},
		{"duplicate in numbered", map[string]string{"AG_HMAC_SECRET": "", "AG_HMAC_SECRET_1": validSecretA, "AG_HMAC_SECRET_2": sameIDSecret}},
		{"duplicate single and numbered", map[string]string{"AG_HMAC_SECRET": validSecretA, "AG_HMAC_SECRET_1": sameIDSecret}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := HMACSecrets(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestParseHMACSecret(t *testing.T) {
	t.Run("valid base64", func(t *testing.T) {
		secret, err := ParseHMACSecret("dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err != nil {
			t.Fatalf("ParseHMACSecret failed: %v", err)
		}
		if len(secret) < 32 {
			t.Errorf("secret too short: %d bytes", len(secret))
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		if _, err := ParseHMACSecret("not-valid-base64!!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("secret too short", func(t *testing.T) {
		if _, err := ParseHMACSecret("c2hvcnQ="); err == nil {
			t.Error("expected error for secret < 32 bytes")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	secretID, secret, err := ParseHMACSecretWithID(validSecretA)
	if err != nil {
		t.Fatalf("ParseHMACSecretWithID failed: %v", err)
	}
	if secretID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected secret_id: %s", secretID)
	}
	if len(secret) == 0 {
		t.Error("secret should not be empty")
	}

	for _, bad := range []string{
		"0123456789abcdef0123456789abcdef",
		"tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w",
		"0123456789abcdef0123456789abcdef:c2hvcnQ=",
	} {
		if _, _, err := ParseHMACSecretWithID(bad); err == nil {
			t.Errorf("ParseHMACSecretWithID(%q) expected error", bad)
		}
	}
}

func TestRulesConfig_Limits(t *testing.T) {
	got := Default().Rules.Limits()
	if got.MaxDepth != types.DefaultMaxConditionDepth {
		t.Errorf("MaxDepth = %d, want %d", got.MaxDepth, types.DefaultMaxConditionDepth)
	}
	if got.MaxCost != types.DefaultMaxConditionCost {
		t.Errorf("MaxCost = %d, want %d", got.MaxCost, types.DefaultMaxConditionCost)
	}
}
