// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// Queries interface defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	ExecContext(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *zap.Logger
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
	}
}

// Authenticate validates API key and returns tenant_id on success.
// Returns specific error for each failure mode.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var result struct {
		TenantID   string       `db:"tenant_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps busy clients from writing on every call
	if shouldUpdateLastUsed(result.LastUsedAt) {
		if _, err := a.queries.ExecContext(ctx, "update-last-used", time.Now().UTC(), result.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at",
				zap.String("api_key_id", result.APIKeyID),
				zap.Error(err),
			)
		}
	}

	return result.TenantID, nil
}

// shouldUpdateLastUsed implements 1-minute throttle to reduce write amplification.
func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// StatusFromError maps an authentication failure to a gRPC status.
// Revoked keys are PERMISSION_DENIED, database failures UNAVAILABLE and
// everything else UNAUTHENTICATED (which does not confirm the key exists).
func StatusFromError(err error) error {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrDatabase):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Methods listed in skip (full method names) bypass authentication.
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	skipped := make(map[string]bool, len(skip))
	for _, m := range skip {
		skipped[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if skipped[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			a.logger.Debug("authentication failed",
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return nil, StatusFromError(err)
		}

		return handler(WithTenantID(ctx, tenantID), req)
	}
}

// WithTenantID returns a context carrying the authenticated tenant.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}
