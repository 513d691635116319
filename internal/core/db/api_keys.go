package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAPIKeyNotFound indicates no active API key exists with the requested id.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKey is the stored record of an issued API key. The key itself is never
// stored, only its HMAC.
type APIKey struct {
	ID       string
	TenantID string
	Name     string
	SecretID string
	KeyHash  []byte
}

// CreateAPIKey records an issued key and returns its id.
func (s *Store) CreateAPIKey(ctx context.Context, key APIKey) (string, error) {
	if key.TenantID == "" || key.SecretID == "" || len(key.KeyHash) == 0 {
		return "", fmt.Errorf("tenant, secret id and key hash are required")
	}
	id := uuid.Must(uuid.NewV7()).String()

	_, err := s.queries.ExecContext(ctx, "insert-api-key",
		id, key.TenantID, key.Name, key.SecretID, key.KeyHash, s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	s.logger.Info("created api key",
		zap.String("api_key_id", id),
		zap.String("tenant_id", key.TenantID),
		zap.String("secret_id", key.SecretID),
	)
	return id, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice returns ErrAPIKeyNotFound.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.queries.ExecContext(ctx, "revoke-api-key", s.now(), id)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if n == 0 {
		return ErrAPIKeyNotFound
	}

	s.logger.Info("revoked api key", zap.String("api_key_id", id))
	return nil
}

// Queries returns the named query set, used by the authenticator.
func (s *Store) Queries() *Queries {
	return s.queries
}
