// Package types provides domain models shared across approvalgate components.
//
// Rules, condition trees and records live here so that the evaluation core
// (internal/rules), the SQL store (internal/core/db) and the gRPC API can
// exchange them without importing each other. Wire conversion (structpb,
// SQL rows) happens at the boundaries.
package types

import (
	"strconv"
)

// RuleID represents a UUIDv7 rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// ClassificationKey groups candidate rules, e.g. a module id or entity type.
type ClassificationKey string

// KeyFromInt formats an integer module id as a ClassificationKey.
func KeyFromInt(id int64) ClassificationKey {
	return ClassificationKey(strconv.FormatInt(id, 10))
}

// Record is the payload evaluated against rule conditions.
// Values are scalars, nested records or sequences; nested fields are
// addressed with dot notation.
type Record map[string]any

// Resource limits enforced by the rule engine to bound evaluation cost.
const (
	// MaxPathDepth prevents unbounded traversal during field path resolution.
	MaxPathDepth = 16

	// MaxNestedWildcards limits wildcard expansion to prevent combinatorial explosion.
	// 2 wildcards allow patterns like lines.*.taxes.*.rate.
	MaxNestedWildcards = 2

	// MaxInOperatorValues limits IN/NOT IN literal lists.
	MaxInOperatorValues = 1024

	// MaxRegexPatternLength bounds regex_match patterns before compilation.
	MaxRegexPatternLength = 1024

	// DefaultMaxConditionDepth bounds condition tree nesting.
	// Real approval rules nest 2-4 levels; 32 leaves ample room.
	DefaultMaxConditionDepth = 32

	// DefaultMaxConditionCost bounds total tree cost as measured by rules.Evaluator.Check.
	// A 200-comparison tree over 3-segment string paths costs roughly 200k.
	DefaultMaxConditionCost = 1 << 20
)
