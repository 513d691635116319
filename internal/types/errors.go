package types

import "errors"

// Sentinel errors for approvalgate operations.
var (
	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyWildcards indicates a field path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("field path has too many wildcards")

	// ErrMalformedPath indicates an empty path or an empty path segment.
	ErrMalformedPath = errors.New("malformed field path")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrConditionTooDeep indicates a condition tree exceeds the configured depth.
	ErrConditionTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrConditionTooCostly indicates a condition tree exceeds the configured cost budget.
	ErrConditionTooCostly = errors.New("condition tree exceeds maximum cost")

	// ErrInvalidPattern indicates a regex_match pattern is empty, too long or unparsable.
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrInvalidCondition indicates a condition document could not be decoded.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidRule indicates a rule failed validation before being stored.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleNotFound indicates no rule exists with the requested id.
	ErrRuleNotFound = errors.New("rule not found")
)
