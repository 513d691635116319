package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/approvalgate/internal/rules"
	"github.com/solatis/approvalgate/internal/types"
)

/*
 * SQL rule store.
 *
 * Rules are tenant-scoped: every query filters on tenant_id, and the only way
 * to reach rule operations is through Store.ForTenant. Conditions are stored
 * as JSON text in any of the accepted condition shapes and decoded on read.
 *
 * FindActiveByClassification returns rules in insertion order
 * (created_at, rule_id). The engine uses that order as the tie-break between
 * equal priorities, so it must be stable across calls.
 *
 * A row whose conditions cannot be decoded is skipped and logged: one bad
 * rule must not stop the others from being evaluated.
 */

// Store provides SQL-backed rule and API key persistence.
type Store struct {
	queries *Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore creates a store over loaded queries.
func NewStore(queries *Queries, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TenantRules is the rule store scoped to one tenant.
// It implements rules.RuleRepository.
type TenantRules struct {
	store    *Store
	tenantID string
}

var _ rules.RuleRepository = (*TenantRules)(nil)

// ForTenant scopes rule operations to tenantID.
func (s *Store) ForTenant(tenantID string) *TenantRules {
	return &TenantRules{store: s, tenantID: tenantID}
}

// ruleRow mirrors the approval_rules table.
type ruleRow struct {
	RuleID            string         `db:"rule_id"`
	TenantID          string         `db:"tenant_id"`
	ClassificationKey string         `db:"classification_key"`
	Name              string         `db:"name"`
	Description       string         `db:"description"`
	Priority          int            `db:"priority"`
	IsActive          bool           `db:"is_active"`
	Conditions        sql.NullString `db:"conditions"`
	ApprovalType      string         `db:"approval_type"`
	SLAHours          int            `db:"sla_hours"`
	RequireComments   bool           `db:"require_comments"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r ruleRow) toRule() (types.Rule, error) {
	var cond *types.Condition
	if r.Conditions.Valid {
		var err error
		cond, err = types.ParseCondition([]byte(r.Conditions.String))
		if err != nil {
			return types.Rule{}, err
		}
	}
	return types.Rule{
		ID:                types.RuleID(r.RuleID),
		TenantID:          r.TenantID,
		ClassificationKey: types.ClassificationKey(r.ClassificationKey),
		Name:              r.Name,
		Description:       r.Description,
		Priority:          r.Priority,
		Active:            r.IsActive,
		Condition:         cond,
		ApprovalType:      types.ApprovalType(r.ApprovalType),
		SLAHours:          r.SLAHours,
		RequireComments:   r.RequireComments,
		CreatedAt:         r.CreatedAt,
	}, nil
}

// decodeRows converts rows, skipping and logging those with bad conditions.
func (t *TenantRules) decodeRows(rows []ruleRow) []types.Rule {
	out := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toRule()
		if err != nil {
			t.store.logger.Warn("skipping rule with undecodable conditions",
				zap.String("tenant_id", t.tenantID),
				zap.String("rule_id", row.RuleID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rule)
	}
	return out
}

// FindActiveByClassification returns the tenant's active rules for key in
// insertion order.
func (t *TenantRules) FindActiveByClassification(ctx context.Context, key types.ClassificationKey) ([]types.Rule, error) {
	var rows []ruleRow
	if err := t.store.queries.SelectContext(ctx, "find-active-rules", &rows, t.tenantID, string(key), true); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return t.decodeRows(rows), nil
}

// ListRules returns the tenant's rules, active or not. An empty key lists
// every classification.
func (t *TenantRules) ListRules(ctx context.Context, key types.ClassificationKey) ([]types.Rule, error) {
	var rows []ruleRow
	var err error
	if key == "" {
		err = t.store.queries.SelectContext(ctx, "list-rules", &rows, t.tenantID)
	} else {
		err = t.store.queries.SelectContext(ctx, "list-rules-by-classification", &rows, t.tenantID, string(key))
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return t.decodeRows(rows), nil
}

// GetRule returns one rule. Returns types.ErrRuleNotFound when absent.
func (t *TenantRules) GetRule(ctx context.Context, id types.RuleID) (types.Rule, error) {
	var row ruleRow
	err := t.store.queries.GetContext(ctx, "get-rule", &row, t.tenantID, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Rule{}, types.ErrRuleNotFound
	}
	if err != nil {
		return types.Rule{}, fmt.Errorf("database error: %w", err)
	}

	rule, err := row.toRule()
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: %w", id, err)
	}
	return rule, nil
}

// CreateRule validates and inserts a rule, assigning ID and timestamps.
// The condition tree is stored as JSON.
func (t *TenantRules) CreateRule(ctx context.Context, rule types.Rule) (types.Rule, error) {
	if rule.ApprovalType == "" {
		rule.ApprovalType = types.ApprovalSequential
	}
	if err := ValidateRule(rule); err != nil {
		return types.Rule{}, err
	}

	var conditions sql.NullString
	if !rule.Condition.IsEmpty() {
		data, err := json.Marshal(rule.Condition)
		if err != nil {
			return types.Rule{}, fmt.Errorf("%w: %v", types.ErrInvalidCondition, err)
		}
		conditions = sql.NullString{String: string(data), Valid: true}
	}

	now := t.store.now()
	rule.ID = types.NewRuleID()
	rule.TenantID = t.tenantID
	rule.CreatedAt = now

	_, err := t.store.queries.ExecContext(ctx, "insert-rule",
		string(rule.ID), t.tenantID, string(rule.ClassificationKey), rule.Name, rule.Description,
		rule.Priority, rule.Active, conditions, string(rule.ApprovalType), rule.SLAHours,
		rule.RequireComments, now, now,
	)
	if err != nil {
		return types.Rule{}, fmt.Errorf("database error: %w", err)
	}

	t.store.logger.Info("created rule",
		zap.String("tenant_id", t.tenantID),
		zap.String("rule_id", string(rule.ID)),
		zap.String("classification_key", string(rule.ClassificationKey)),
		zap.Int("priority", rule.Priority),
	)
	return rule, nil
}

// SetRuleActive enables or disables a rule.
func (t *TenantRules) SetRuleActive(ctx context.Context, id types.RuleID, active bool) error {
	res, err := t.store.queries.ExecContext(ctx, "set-rule-active", active, t.store.now(), t.tenantID, string(id))
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	t.store.logger.Info("updated rule status",
		zap.String("tenant_id", t.tenantID),
		zap.String("rule_id", string(id)),
		zap.Bool("active", active),
	)
	return nil
}

// DeleteRule removes a rule.
func (t *TenantRules) DeleteRule(ctx context.Context, id types.RuleID) error {
	res, err := t.store.queries.ExecContext(ctx, "delete-rule", t.tenantID, string(id))
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	t.store.logger.Info("deleted rule",
		zap.String("tenant_id", t.tenantID),
		zap.String("rule_id", string(id)),
	)
	return nil
}

// requireAffected maps a zero-row update to types.ErrRuleNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if n == 0 {
		return types.ErrRuleNotFound
	}
	return nil
}
