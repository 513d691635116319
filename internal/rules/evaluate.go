// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/approvalgate/internal/types"
)

/*
 * Condition evaluation.
 *
 * Evaluates a compiled Node tree against an evaluation context of the form
 * {"record": <record>} by recursive descent.
 *
 * Evaluation flow:
 *   1. Structural check: depth and cost are measured with caps. A tree over
 *      either limit evaluates false as a whole, not just the offending
 *      subtree, so NOT nodes above it cannot turn the violation into a match.
 *      The caps also stop measurement of cyclic hand-built trees.
 *   2. Empty tree (nil Node, childless AND/OR) -> true.
 *   3. AND short-circuits on first false, OR on first true, NOT negates its
 *      only child. Any other NOT arity or unknown logic -> false.
 *   4. Comparison: resolve path against context.record -> Compare. A
 *      wildcard path matches when any expansion satisfies the comparison.
 *
 * The evaluator never returns an error for ambiguous data: malformed paths,
 * unknown operators and type mismatches are false (fail-closed). Structural
 * violations are reported by Check / EvaluateChecked so callers may log them.
 *
 * Evaluator holds only immutable limits and is safe for concurrent use.
 */

// RecordKey is the context key under which the evaluated record is stored.
const RecordKey = "record"

// Context is the read-only evaluation context.
type Context map[string]any

// NewContext wraps a record as {"record": record}.
func NewContext(record types.Record) Context {
	return Context{RecordKey: record}
}

// Limits bounds the size of trees the evaluator accepts.
type Limits struct {
	MaxDepth int // maximum nesting depth; the root is depth 1
	MaxCost  int // maximum tree cost per CalculateComparisonCost
}

// DefaultLimits returns the default structural limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth: types.DefaultMaxConditionDepth,
		MaxCost:  types.DefaultMaxConditionCost,
	}
}

// Evaluator evaluates condition trees under fixed limits.
type Evaluator struct {
	limits Limits
}

// NewEvaluator creates an evaluator. Non-positive limits fall back to defaults.
func NewEvaluator(limits Limits) *Evaluator {
	def := DefaultLimits()
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = def.MaxDepth
	}
	if limits.MaxCost <= 0 {
		limits.MaxCost = def.MaxCost
	}
	return &Evaluator{limits: limits}
}

// Limits returns the evaluator's limits.
func (e *Evaluator) Limits() Limits {
	return e.limits
}

// Check verifies the tree stays within depth and cost limits.
// Returns ErrConditionTooDeep or ErrConditionTooCostly.
func (e *Evaluator) Check(n Node) error {
	cost := 0
	return e.measure(n, 1, &cost)
}

// measure walks the tree once, stopping as soon as a limit is crossed.
func (e *Evaluator) measure(n Node, depth int, cost *int) error {
	if n == nil {
		return nil
	}
	if depth > e.limits.MaxDepth {
		return types.ErrConditionTooDeep
	}
	switch v := n.(type) {
	case *Comparison:
		if v == nil {
			return nil
		}
		*cost += CalculateComparisonCost(v.Path, v.Operator)
	case *Combinator:
		if v == nil {
			return nil
		}
		*cost += CostCombinator
		if *cost > e.limits.MaxCost {
			return types.ErrConditionTooCostly
		}
		for _, child := range v.Children {
			if err := e.measure(child, depth+1, cost); err != nil {
				return err
			}
		}
	}
	if *cost > e.limits.MaxCost {
		return types.ErrConditionTooCostly
	}
	return nil
}

// Evaluate returns whether the tree matches the context. Never panics on
// well-formed Go values; structural violations yield false.
func (e *Evaluator) Evaluate(n Node, ctx Context) bool {
	matched, _ := e.EvaluateChecked(n, ctx)
	return matched
}

// EvaluateChecked is Evaluate that also reports a structural violation.
// The boolean is always false when the error is non-nil.
func (e *Evaluator) EvaluateChecked(n Node, ctx Context) (bool, error) {
	if err := e.Check(n); err != nil {
		return false, err
	}
	return eval(n, ctx[RecordKey]), nil
}

// EvaluateCondition compiles a stored condition and evaluates it against record.
func (e *Evaluator) EvaluateCondition(cond *types.Condition, record types.Record) bool {
	return e.Evaluate(Compile(cond), NewContext(record))
}

// eval is the recursive descent over a tree that already passed Check.
func eval(n Node, record any) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Comparison:
		if v == nil {
			return true
		}
		return evalComparison(v, record)
	case *Combinator:
		if v == nil {
			return true
		}
		return evalCombinator(v, record)
	default:
		return false
	}
}

func evalCombinator(c *Combinator, record any) bool {
	if c.Logic == types.LogicNot {
		if len(c.Children) != 1 {
			return false
		}
		return !eval(c.Children[0], record)
	}

	if len(c.Children) == 0 {
		// Childless group is an empty tree
		return c.Logic == types.LogicAnd || c.Logic == types.LogicOr
	}

	switch c.Logic {
	case types.LogicAnd:
		for _, child := range c.Children {
			if !eval(child, record) {
				return false
			}
		}
		return true
	case types.LogicOr:
		for _, child := range c.Children {
			if eval(child, record) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalComparison(c *Comparison, record any) bool {
	if c.PathErr != nil || c.Operator == OpUnknown {
		return false
	}
	if HasWildcard(c.Path) {
		return evalWildcard(c, record)
	}
	resolved, err := Resolve(c.Path, record)
	present := err == nil && resolved.Found
	return Compare(c.Operator, resolved.Value, present, c.Value)
}

// evalWildcard matches when any expansion satisfies the comparison.
// A path that reaches no value is compared as absent.
func evalWildcard(c *Comparison, record any) bool {
	reached := false
	matched := ResolveAll(c.Path, record, func(r ResolveResult) bool {
		reached = true
		return Compare(c.Operator, r.Value, r.Found, c.Value)
	})
	if !reached {
		return Compare(c.Operator, nil, false, c.Value)
	}
	return matched
}
