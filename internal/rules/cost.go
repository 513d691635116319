// internal/rules/cost.go
package rules

import "github.com/solatis/approvalgate/internal/types"

/*
 * Cost model for condition trees.
 *
 * Cost formula per comparison: lookup_cost + operator_cost * 8^wildcards.
 * Each combinator adds CostCombinator on top of its children.
 *
 * The evaluator sums tree cost before evaluating and rejects trees above
 * the configured budget, so a stored rule cannot make evaluation arbitrarily
 * expensive. Wildcards fan out over sequences, hence the 8x multiplier.
 */

// Canonical cost constants
const (
	// Operator base costs
	CostNullCheck = 1
	CostEq        = 5
	CostOrdered   = 7
	CostIn        = 8
	CostString    = 10
	CostRegex     = 20
	CostUnknown   = 1

	// Field lookup cost per named segment
	CostLookupPerSegment = 128

	// Combinator overhead
	CostCombinator = 1
)

// CalculateComparisonCost computes cost for a single comparison.
// cost = lookup_cost + operator_cost * 8^wildcards
func CalculateComparisonCost(path []types.PathSegment, op Operator) int {
	lookupCost := 0
	wildcardCount := 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcardCount++
			continue
		}
		lookupCost += CostLookupPerSegment
	}

	// Execution multiplier: 8^n for n wildcards
	execMult := 1
	for i := 0; i < wildcardCount; i++ {
		execMult *= 8
	}

	return lookupCost + operatorCost(op)*execMult
}

// operatorCost returns base cost for operator execution.
func operatorCost(op Operator) int {
	switch op {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return CostNullCheck
	case OpEq, OpNeq:
		return CostEq
	case OpGt, OpLt, OpGte, OpLte, OpBetween:
		return CostOrdered
	case OpIn, OpNotIn:
		return CostIn
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		return CostString
	case OpRegexMatch:
		return CostRegex
	default:
		return CostUnknown
	}
}
