// Package api provides the gRPC approval service.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/approvalgate/internal/rules"
	"github.com/solatis/approvalgate/internal/types"
)

// TenantRepository is the tenant-scoped rule source the service evaluates against.
type TenantRepository interface {
	rules.RuleRepository
	GetRule(ctx context.Context, id types.RuleID) (types.Rule, error)
}

// TenantResolver returns the rule repository of one tenant.
type TenantResolver func(tenantID string) TenantRepository

// ApprovalService implements ApprovalServiceServer.
// Thin orchestration layer delegating to the rules engine and the rule store.
type ApprovalService struct {
	resolve   TenantResolver
	evaluator *rules.Evaluator
	logger    *zap.Logger
}

// NewApprovalService creates service instance with dependencies.
func NewApprovalService(resolve TenantResolver, limits rules.Limits, logger *zap.Logger) (*ApprovalService, error) {
	if resolve == nil {
		return nil, fmt.Errorf("resolve cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		resolve:   resolve,
		evaluator: rules.NewEvaluator(limits),
		logger:    logger,
	}, nil
}

// engine builds a per-request engine over the tenant's rules.
// Engines are stateless, so building one per call is cheap.
func (s *ApprovalService) engine(tenantID string) (*rules.Engine, TenantRepository) {
	repo := s.resolve(tenantID)
	logger := s.logger.With(zap.String("tenant_id", tenantID))
	return rules.NewEngine(repo,
		rules.WithEvaluator(s.evaluator),
		rules.WithViolationHandler(func(rule types.Rule, err error) {
			logger.Warn("rule condition exceeds limits, treated as no match",
				zap.String("rule_id", string(rule.ID)),
				zap.String("rule_name", rule.Name),
				zap.Error(err),
			)
		}),
	), repo
}
