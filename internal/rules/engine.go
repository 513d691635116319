package rules

import (
	"context"
	"sort"

	"github.com/solatis/approvalgate/internal/types"
)

// RuleRepository supplies candidate rules for a classification key.
// Implementations return only active rules, in a stable order that serves
// as the tie-break between equal priorities.
type RuleRepository interface {
	FindActiveByClassification(ctx context.Context, key types.ClassificationKey) ([]types.Rule, error)
}

// Match is the winning rule together with the input it matched.
type Match struct {
	Rule              types.Rule
	ClassificationKey types.ClassificationKey
	Record            types.Record
}

// ViolationHandler is told about rules whose condition tree exceeded the
// evaluator's structural limits. The rule is treated as not matching.
type ViolationHandler func(rule types.Rule, err error)

// Engine matches records against prioritized rules.
// It keeps no state between calls; rules are fetched fresh every time.
type Engine struct {
	repo        RuleRepository
	evaluator   *Evaluator
	onViolation ViolationHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator sets the evaluator (and thus the structural limits).
func WithEvaluator(ev *Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithViolationHandler registers a callback for structural violations.
func WithViolationHandler(fn ViolationHandler) Option {
	return func(e *Engine) {
		e.onViolation = fn
	}
}

// NewEngine creates a rules engine over the given repository.
func NewEngine(repo RuleRepository, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		evaluator: NewEvaluator(DefaultLimits()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindMatchingRule returns the highest-priority active rule whose condition
// matches record, or nil when none does. Repository errors are returned
// unchanged.
func (e *Engine) FindMatchingRule(ctx context.Context, key types.ClassificationKey, record types.Record) (*Match, error) {
	candidates, err := e.repo.FindActiveByClassification(ctx, key)
	if err != nil {
		return nil, err
	}

	evalCtx := NewContext(record)
	for _, rule := range OrderByPriority(candidates) {
		if !rule.Active {
			continue
		}
		if e.matches(rule, evalCtx) {
			return &Match{Rule: rule, ClassificationKey: key, Record: record}, nil
		}
	}
	return nil, nil
}

// RequiresApproval reports whether any rule matches record.
func (e *Engine) RequiresApproval(ctx context.Context, key types.ClassificationKey, record types.Record) (bool, error) {
	match, err := e.FindMatchingRule(ctx, key, record)
	if err != nil {
		return false, err
	}
	return match != nil, nil
}

// EvaluateConditions checks a single rule's condition against record.
// A rule without a condition always matches; a nil rule never does.
func (e *Engine) EvaluateConditions(rule *types.Rule, record types.Record) bool {
	if rule == nil {
		return false
	}
	return e.matches(*rule, NewContext(record))
}

func (e *Engine) matches(rule types.Rule, evalCtx Context) bool {
	matched, err := e.evaluator.EvaluateChecked(Compile(rule.Condition), evalCtx)
	if err != nil && e.onViolation != nil {
		e.onViolation(rule, err)
	}
	return matched
}

// rankedRule pairs a rule with its position in the repository result.
type rankedRule struct {
	rule  types.Rule
	index int
}

// byPriority orders rules by priority descending, then by repository
// position ascending, so equal priorities keep repository order.
func byPriority(a, b rankedRule) bool {
	if a.rule.Priority != b.rule.Priority {
		return a.rule.Priority > b.rule.Priority
	}
	return a.index < b.index
}

// OrderByPriority returns a new slice in evaluation order.
// The input is not modified.
func OrderByPriority(candidates []types.Rule) []types.Rule {
	ranked := make([]rankedRule, len(candidates))
	for i, r := range candidates {
		ranked[i] = rankedRule{rule: r, index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return byPriority(ranked[i], ranked[j])
	})

	ordered := make([]types.Rule, len(ranked))
	for i, r := range ranked {
		ordered[i] = r.rule
	}
	return ordered
}
