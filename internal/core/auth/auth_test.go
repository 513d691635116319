package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/approvalgate/internal/core/db"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("0123456789abcdef0123456789abcdef-secret")

var keyColumns = []string{"api_key_id", "tenant_id", "revoked_at", "last_used_at"}

func newMockAuthenticator(t *testing.T) (*Authenticator, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	queries, err := db.LoadQueries(sqlx.NewDb(mockDB, db.DriverPostgres))
	require.NoError(t, err)

	return NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil), mock
}

func TestParseAPIKey(t *testing.T) {
	random := strings.Repeat("ab", 32)

	secretID, data, err := ParseAPIKey(FormatAPIKey(testSecretID, random))
	require.NoError(t, err)
	assert.Equal(t, testSecretID, secretID)
	assert.Equal(t, random, data)

	invalid := []string{
		"",
		"xx-v1-" + testSecretID + "-" + random,
		"ag-v2-" + testSecretID + "-" + random,
		"ag-v1-" + testSecretID[:31] + "-" + random,
		"ag-v1-" + testSecretID + "-" + random[:63],
		"ag-v1-" + strings.ToUpper(testSecretID) + "-" + random,
		"ag-v1-" + testSecretID + "-" + random + "-extra",
	}
	for _, key := range invalid {
		_, _, err := ParseAPIKey(key)
		assert.ErrorIs(t, err, ErrInvalidKeyFormat, "key %q", key)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	assert.Len(t, key, 103)

	secretID, _, err := ParseAPIKey(key)
	require.NoError(t, err)
	assert.Equal(t, testSecretID, secretID)
	assert.True(t, VerifyHMAC(hash, ComputeHMAC(testSecret, key)))

	other, _, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, _, err = GenerateAPIKey("short", testSecret)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)

	t.Run("valid key updates last used", func(t *testing.T) {
		a, mock := newMockAuthenticator(t)
		mock.ExpectQuery(`FROM api_keys`).
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows(keyColumns).AddRow("k1", "acme", nil, nil))
		mock.ExpectExec(`UPDATE api_keys`).
			WithArgs(sqlmock.AnyArg(), "k1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		tenant, err := a.Authenticate(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "acme", tenant)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recent use is not rewritten", func(t *testing.T) {
		a, mock := newMockAuthenticator(t)
		mock.ExpectQuery(`FROM api_keys`).
			WillReturnRows(sqlmock.NewRows(keyColumns).AddRow("k1", "acme", nil, time.Now().UTC()))

		_, err := a.Authenticate(context.Background(), key)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoked", func(t *testing.T) {
		a, mock := newMockAuthenticator(t)
		mock.ExpectQuery(`FROM api_keys`).
			WillReturnRows(sqlmock.NewRows(keyColumns).AddRow("k1", "acme", time.Now().UTC(), nil))

		_, err := a.Authenticate(context.Background(), key)
		assert.ErrorIs(t, err, ErrKeyRevoked)
	})

	t.Run("unknown hash", func(t *testing.T) {
		a, mock := newMockAuthenticator(t)
		mock.ExpectQuery(`FROM api_keys`).WillReturnRows(sqlmock.NewRows(keyColumns))

		_, err := a.Authenticate(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("database failure", func(t *testing.T) {
		a, mock := newMockAuthenticator(t)
		mock.ExpectQuery(`FROM api_keys`).WillReturnError(errors.New("connection refused"))

		_, err := a.Authenticate(context.Background(), key)
		assert.ErrorIs(t, err, ErrDatabase)
	})

	t.Run("unknown secret id", func(t *testing.T) {
		a, _ := newMockAuthenticator(t)
		foreign := FormatAPIKey(strings.Repeat("f", 32), strings.Repeat("0", 64))

		_, err := a.Authenticate(context.Background(), foreign)
		assert.ErrorIs(t, err, ErrUnknownKey)
	})
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{ErrKeyRevoked, codes.PermissionDenied},
		{ErrDatabase, codes.Unavailable},
		{ErrInvalidKey, codes.Unauthenticated},
		{ErrInvalidKeyFormat, codes.Unauthenticated},
		{ErrUnknownKey, codes.Unauthenticated},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(StatusFromError(tt.err)), tt.err.Error())
	}
}

func TestUnaryInterceptor(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)

	a, mock := newMockAuthenticator(t)
	interceptor := a.UnaryInterceptor("/grpc.health.v1.Health/Check")

	var seenTenant string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seenTenant = TenantIDFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/approvalgate.v1.ApprovalService/RequiresApproval"}

	// No metadata
	_, err = interceptor(context.Background(), nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// Metadata without key
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "x"))
	_, err = interceptor(ctx, nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// Valid key
	mock.ExpectQuery(`FROM api_keys`).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(keyColumns).AddRow("k1", "acme", nil, time.Now().UTC()))
	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKey, key))
	resp, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "acme", seenTenant)

	// Skipped method
	seenTenant = "unset"
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "", seenTenant)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantIDFromContext(t *testing.T) {
	assert.Equal(t, "", TenantIDFromContext(context.Background()))
	assert.Equal(t, "acme", TenantIDFromContext(WithTenantID(context.Background(), "acme")))
}
