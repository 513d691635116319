package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/approvalgate/internal/core/auth"
	"github.com/solatis/approvalgate/internal/rules"
	"github.com/solatis/approvalgate/internal/types"
)

// fakeRepository serves rules from memory and can be made to fail.
type fakeRepository struct {
	*rules.MemoryRepository
	byID map[types.RuleID]types.Rule
	err  error
}

func newFakeRepository(rs ...types.Rule) *fakeRepository {
	f := &fakeRepository{MemoryRepository: rules.NewMemoryRepository(), byID: map[types.RuleID]types.Rule{}}
	for _, r := range rs {
		f.Add(r)
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRepository) FindActiveByClassification(ctx context.Context, key types.ClassificationKey) ([]types.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryRepository.FindActiveByClassification(ctx, key)
}

func (f *fakeRepository) GetRule(ctx context.Context, id types.RuleID) (types.Rule, error) {
	if f.err != nil {
		return types.Rule{}, f.err
	}
	r, ok := f.byID[id]
	if !ok {
		return types.Rule{}, types.ErrRuleNotFound
	}
	return r, nil
}

func testRule(name string, priority int, cond *types.Condition) types.Rule {
	return types.Rule{
		ID:                types.NewRuleID(),
		ClassificationKey: "invoices",
		Name:              name,
		Priority:          priority,
		Active:            true,
		Condition:         cond,
	}
}

var largeAmount = &types.Condition{Field: "amount", Operator: ">", Value: 1000.0}

func newTestService(t *testing.T, tenants map[string]*fakeRepository, limits rules.Limits, logger *zap.Logger) *ApprovalService {
	t.Helper()
	svc, err := NewApprovalService(func(tenantID string) TenantRepository {
		if repo, ok := tenants[tenantID]; ok {
			return repo
		}
		return newFakeRepository()
	}, limits, logger)
	require.NoError(t, err)
	return svc
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func tenantCtx(tenantID string) context.Context {
	return auth.WithTenantID(context.Background(), tenantID)
}

func TestNewApprovalService(t *testing.T) {
	_, err := NewApprovalService(nil, rules.DefaultLimits(), nil)
	assert.Error(t, err)
}

func TestFindMatchingRule(t *testing.T) {
	high := testRule("high value", 10, largeAmount)
	catchAll := testRule("catch all", 1, nil)
	svc := newTestService(t, map[string]*fakeRepository{
		"acme":   newFakeRepository(catchAll, high),
		"single": newFakeRepository(high),
	}, rules.DefaultLimits(), nil)

	t.Run("highest priority match", func(t *testing.T) {
		resp, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
			"classification_key": "invoices",
			"record":             map[string]any{"amount": 5000},
		}))
		require.NoError(t, err)
		assert.True(t, resp.Fields["matched"].GetBoolValue())
		rule := resp.Fields["rule"].GetStructValue()
		require.NotNil(t, rule)
		assert.Equal(t, "high value", rule.Fields["name"].GetStringValue())
		assert.Equal(t, string(high.ID), rule.Fields["id"].GetStringValue())
		assert.Equal(t, float64(10), rule.Fields["priority"].GetNumberValue())
	})

	t.Run("falls through to lower priority", func(t *testing.T) {
		resp, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
			"classification_key": "invoices",
			"record":             map[string]any{"amount": 10},
		}))
		require.NoError(t, err)
		assert.True(t, resp.Fields["matched"].GetBoolValue())
		assert.Equal(t, "catch all", resp.Fields["rule"].GetStructValue().Fields["name"].GetStringValue())
	})

	t.Run("no match", func(t *testing.T) {
		resp, err := svc.FindMatchingRule(tenantCtx("single"), mustStruct(t, map[string]any{
			"classification_key": "invoices",
			"record":             map[string]any{"amount": 10},
		}))
		require.NoError(t, err)
		assert.False(t, resp.Fields["matched"].GetBoolValue())
		_, isNull := resp.Fields["rule"].GetKind().(*structpb.Value_NullValue)
		assert.True(t, isNull)
	})

	t.Run("missing record matches unconditional rule", func(t *testing.T) {
		resp, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
			"classification_key": "invoices",
		}))
		require.NoError(t, err)
		assert.Equal(t, "catch all", resp.Fields["rule"].GetStructValue().Fields["name"].GetStringValue())
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		resp, err := svc.FindMatchingRule(tenantCtx("other"), mustStruct(t, map[string]any{
			"classification_key": "invoices",
			"record":             map[string]any{"amount": 5000},
		}))
		require.NoError(t, err)
		assert.False(t, resp.Fields["matched"].GetBoolValue())
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := svc.FindMatchingRule(context.Background(), mustStruct(t, map[string]any{
			"classification_key": "invoices",
		}))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestFindMatchingRule_NumericClassificationKey(t *testing.T) {
	r := testRule("module rule", 1, nil)
	r.ClassificationKey = types.KeyFromInt(42)
	svc := newTestService(t, map[string]*fakeRepository{"acme": newFakeRepository(r)}, rules.DefaultLimits(), nil)

	resp, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": 42,
	}))
	require.NoError(t, err)
	assert.True(t, resp.Fields["matched"].GetBoolValue())
}

func TestFindMatchingRule_InvalidArgument(t *testing.T) {
	svc := newTestService(t, nil, rules.DefaultLimits(), nil)

	requests := map[string]map[string]any{
		"missing key":    {"record": map[string]any{}},
		"empty key":      {"classification_key": ""},
		"fractional key": {"classification_key": 1.5},
		"bool key":       {"classification_key": true},
		"record string":  {"classification_key": "invoices", "record": "amount=5"},
		"record list":    {"classification_key": "invoices", "record": []any{1, 2}},
	}
	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, req))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestFindMatchingRule_RepositoryFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("database error: connection refused")
	svc := newTestService(t, map[string]*fakeRepository{"acme": repo}, rules.DefaultLimits(), nil)

	_, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": "invoices",
	}))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = svc.RequiresApproval(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": "invoices",
	}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestFindMatchingRule_LimitViolationLogged(t *testing.T) {
	deep := &types.Condition{Logic: types.LogicNot, Conditions: []types.Condition{{
		Logic: types.LogicNot, Conditions: []types.Condition{{
			Logic: types.LogicNot, Conditions: []types.Condition{*largeAmount},
		}},
	}}}
	tooDeep := testRule("too deep", 10, deep)
	fallback := testRule("fallback", 1, nil)

	core, logs := observer.New(zap.WarnLevel)
	svc := newTestService(t, map[string]*fakeRepository{"acme": newFakeRepository(tooDeep, fallback)},
		rules.Limits{MaxDepth: 2}, zap.New(core))

	resp, err := svc.FindMatchingRule(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": "invoices",
		"record":             map[string]any{"amount": 1},
	}))
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Fields["rule"].GetStructValue().Fields["name"].GetStringValue())

	entries := logs.FilterField(zap.String("rule_id", string(tooDeep.ID))).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "acme", entries[0].ContextMap()["tenant_id"])
}

func TestRequiresApproval(t *testing.T) {
	high := testRule("high value", 10, largeAmount)
	svc := newTestService(t, map[string]*fakeRepository{"acme": newFakeRepository(high)}, rules.DefaultLimits(), nil)

	resp, err := svc.RequiresApproval(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": "invoices",
		"record":             map[string]any{"amount": 1500},
	}))
	require.NoError(t, err)
	assert.True(t, resp.Fields["needs_approval"].GetBoolValue())
	assert.Equal(t, "high value", resp.Fields["rule"].GetStructValue().Fields["name"].GetStringValue())

	resp, err = svc.RequiresApproval(tenantCtx("acme"), mustStruct(t, map[string]any{
		"classification_key": "invoices",
		"record":             map[string]any{"amount": 500},
	}))
	require.NoError(t, err)
	assert.False(t, resp.Fields["needs_approval"].GetBoolValue())

	_, err = svc.RequiresApproval(context.Background(), mustStruct(t, map[string]any{"classification_key": "invoices"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestEvaluateConditions(t *testing.T) {
	stored := testRule("stored", 1, largeAmount)
	svc := newTestService(t, map[string]*fakeRepository{"acme": newFakeRepository(stored)}, rules.DefaultLimits(), nil)

	tests := []struct {
		name    string
		req     map[string]any
		matched bool
	}{
		{
			name: "inline tree matches",
			req: map[string]any{
				"condition": map[string]any{"logic": "and", "conditions": []any{
					map[string]any{"field": "amount", "operator": ">", "value": 1000},
					map[string]any{"field": "region", "operator": "in", "value": []any{"EU", "US"}},
				}},
				"record": map[string]any{"amount": 1500, "region": "EU"},
			},
			matched: true,
		},
		{
			name: "inline tree does not match",
			req: map[string]any{
				"condition": map[string]any{"field": "amount", "operator": ">", "value": 1000},
				"record":    map[string]any{"amount": 999},
			},
			matched: false,
		},
		{
			name: "inline list shape",
			req: map[string]any{
				"condition": []any{
					map[string]any{"field": "status", "operator": "=", "value": "open"},
				},
				"record": map[string]any{"status": "open"},
			},
			matched: true,
		},
		{
			name: "null condition always matches",
			req: map[string]any{
				"condition": nil,
				"record":    map[string]any{},
			},
			matched: true,
		},
		{
			name: "stored rule by id",
			req: map[string]any{
				"rule_id": string(stored.ID),
				"record":  map[string]any{"amount": 2000},
			},
			matched: true,
		},
		{
			name: "inline condition wins over rule id",
			req: map[string]any{
				"rule_id":   string(stored.ID),
				"condition": map[string]any{"field": "amount", "operator": "<", "value": 10},
				"record":    map[string]any{"amount": 2000},
			},
			matched: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.EvaluateConditions(tenantCtx("acme"), mustStruct(t, tt.req))
			require.NoError(t, err)
			assert.Equal(t, tt.matched, resp.Fields["matched"].GetBoolValue())
		})
	}
}

func TestEvaluateConditions_Errors(t *testing.T) {
	failing := newFakeRepository()
	failing.err = errors.New("database error: timeout")
	svc := newTestService(t, map[string]*fakeRepository{
		"acme":   newFakeRepository(),
		"broken": failing,
	}, rules.DefaultLimits(), nil)

	tests := []struct {
		name   string
		tenant string
		req    map[string]any
		code   codes.Code
	}{
		{"neither condition nor rule id", "acme", map[string]any{"record": map[string]any{}}, codes.InvalidArgument},
		{"malformed rule id", "acme", map[string]any{"rule_id": "not-a-uuid"}, codes.InvalidArgument},
		{"unknown rule id", "acme", map[string]any{"rule_id": string(types.NewRuleID())}, codes.NotFound},
		{"condition not an object", "acme", map[string]any{"condition": "amount > 5"}, codes.InvalidArgument},
		{"store unavailable", "broken", map[string]any{"rule_id": string(types.NewRuleID())}, codes.Unavailable},
		{"missing tenant", "", map[string]any{"condition": nil}, codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.tenant != "" {
				ctx = tenantCtx(tt.tenant)
			}
			_, err := svc.EvaluateConditions(ctx, mustStruct(t, tt.req))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{types.ErrRuleNotFound, codes.NotFound},
		{types.ErrInvalidCondition, codes.InvalidArgument},
		{errors.New("database error: boom"), codes.Unavailable},
		{status.Error(codes.PermissionDenied, "denied"), codes.PermissionDenied},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(statusFromError(tt.err)), tt.err.Error())
	}
}
