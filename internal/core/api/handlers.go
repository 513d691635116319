package api

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/approvalgate/internal/core/auth"
	"github.com/solatis/approvalgate/internal/types"
)

// FindMatchingRule returns the highest-priority rule matching the record.
// Request: {classification_key, record}. Response: {matched, rule}.
func (s *ApprovalService) FindMatchingRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, errMissingTenant
	}
	key, rec, err := matchRequest(req)
	if err != nil {
		return nil, err
	}

	engine, _ := s.engine(tenantID)
	match, err := engine.FindMatchingRule(ctx, key, rec)
	if err != nil {
		s.logger.Error("failed to find matching rule",
			zap.String("tenant_id", tenantID),
			zap.String("classification_key", string(key)),
			zap.Error(err),
		)
		return nil, statusFromError(err)
	}

	var rule *types.Rule
	if match != nil {
		rule = &match.Rule
	}
	resp, err := matchResponse(fieldMatched, rule)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// RequiresApproval reports whether any rule matches the record.
// Request: {classification_key, record}. Response: {needs_approval, rule}.
func (s *ApprovalService) RequiresApproval(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, errMissingTenant
	}
	key, rec, err := matchRequest(req)
	if err != nil {
		return nil, err
	}

	// FindMatchingRule rather than Engine.RequiresApproval: the response
	// carries the rule that triggered approval.
	engine, _ := s.engine(tenantID)
	match, err := engine.FindMatchingRule(ctx, key, rec)
	if err != nil {
		s.logger.Error("failed to check approval requirement",
			zap.String("tenant_id", tenantID),
			zap.String("classification_key", string(key)),
			zap.Error(err),
		)
		return nil, statusFromError(err)
	}

	var rule *types.Rule
	if match != nil {
		rule = &match.Rule
	}
	resp, err := matchResponse(fieldNeedsApproval, rule)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// EvaluateConditions evaluates one condition tree against the record.
// Request: {condition | rule_id, record}. Response: {matched}.
// An inline condition takes precedence over rule_id.
func (s *ApprovalService) EvaluateConditions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, errMissingTenant
	}
	rec, err := record(req)
	if err != nil {
		return nil, err
	}

	engine, repo := s.engine(tenantID)

	var rule types.Rule
	fields := req.GetFields()
	if v, ok := fields[fieldCondition]; ok {
		cond, err := condition(v)
		if err != nil {
			return nil, err
		}
		rule = types.Rule{Name: "inline", Condition: cond}
	} else if v, ok := fields[fieldRuleID]; ok && v.GetStringValue() != "" {
		id, err := types.ParseRuleID(v.GetStringValue())
		if err != nil {
			return nil, invalidArgument("%s: %v", fieldRuleID, err)
		}
		rule, err = repo.GetRule(ctx, id)
		if err != nil {
			return nil, statusFromError(err)
		}
	} else {
		return nil, invalidArgument("%s or %s is required", fieldCondition, fieldRuleID)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldMatched: structpb.NewBoolValue(engine.EvaluateConditions(&rule, rec)),
	}}, nil
}

func matchRequest(req *structpb.Struct) (types.ClassificationKey, types.Record, error) {
	key, err := classificationKey(req)
	if err != nil {
		return "", nil, err
	}
	rec, err := record(req)
	if err != nil {
		return "", nil, err
	}
	return key, rec, nil
}
