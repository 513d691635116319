// internal/rules/operators.go
package rules

import (
	"reflect"
	"strings"

	"github.com/solatis/approvalgate/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Operators:
 *   - equals/not_equals: numeric when either side is a number and the other
 *     coerces, case-sensitive for strings, elementwise for sequences
 *   - greater_than/less_than/..._or_equals: numeric when both sides coerce,
 *     lexicographic when both are non-numeric strings
 *   - contains/not_contains: substring for strings, membership for sequences
 *   - starts_with/ends_with: strings only
 *   - in/not_in: set membership against a sequence literal
 *   - between: inclusive range against a [low, high] literal
 *   - is_empty/is_not_empty/is_null/is_not_null: no literal
 *   - regex_match: RE2 pattern against strings, see CompileRegex
 *
 * Absent values (missing path or null) fail every comparison except
 * not_equals/not_in against a concrete literal, equals against a null
 * literal, and the null/empty checks.
 * Type mismatches return false instead of an error.
 *
 * Why function-based: operators share almost all behaviour; a switch over a
 * small enum is clearer than one type per operator.
 */

// Operator identifies a comparison.
type Operator int

const (
	OpUnknown Operator = iota
	OpEq
	OpNeq
	OpGt
	OpLt
	OpGte
	OpLte
	OpContains
	OpNotContains
	OpIn
	OpNotIn
	OpStartsWith
	OpEndsWith
	OpBetween
	OpIsEmpty
	OpIsNotEmpty
	OpIsNull
	OpIsNotNull
	OpRegexMatch
)

var operatorNames = map[Operator]string{
	OpEq:          "equals",
	OpNeq:         "not_equals",
	OpGt:          "greater_than",
	OpLt:          "less_than",
	OpGte:         "greater_than_or_equals",
	OpLte:         "less_than_or_equals",
	OpContains:    "contains",
	OpNotContains: "not_contains",
	OpIn:          "in",
	OpNotIn:       "not_in",
	OpStartsWith:  "starts_with",
	OpEndsWith:    "ends_with",
	OpBetween:     "between",
	OpIsEmpty:     "is_empty",
	OpIsNotEmpty:  "is_not_empty",
	OpIsNull:      "is_null",
	OpIsNotNull:   "is_not_null",
	OpRegexMatch:  "regex_match",
}

var operatorAliases = map[string]Operator{
	"=": OpEq, "==": OpEq, "eq": OpEq,
	"!=": OpNeq, "<>": OpNeq, "neq": OpNeq,
	">": OpGt, "gt": OpGt,
	"<": OpLt, "lt": OpLt,
	">=": OpGte, "gte": OpGte,
	"<=": OpLte, "lte": OpLte,
	"regex": OpRegexMatch,
}

func init() {
	for op, name := range operatorNames {
		operatorAliases[name] = op
	}
}

// String returns the canonical operator name.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unknown"
}

// ParseOperator maps a stored operator name or alias to an Operator.
// Matching ignores case and surrounding whitespace. Unknown names map to
// OpUnknown, which never matches.
func ParseOperator(name string) Operator {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return op
	}
	return OpUnknown
}

// Compare applies the operator to the resolved value and literal.
// present is false when the field path did not resolve.
func Compare(op Operator, value any, present bool, literal any) bool {
	if !present || value == nil {
		return compareAbsent(op, literal)
	}

	switch op {
	case OpEq:
		return compareEqual(value, literal)
	case OpNeq:
		return !compareEqual(value, literal)
	case OpGt:
		c, ok := compareOrdered(value, literal)
		return ok && c > 0
	case OpLt:
		c, ok := compareOrdered(value, literal)
		return ok && c < 0
	case OpGte:
		c, ok := compareOrdered(value, literal)
		return ok && c >= 0
	case OpLte:
		c, ok := compareOrdered(value, literal)
		return ok && c <= 0
	case OpContains:
		found, ok := compareContains(value, literal)
		return ok && found
	case OpNotContains:
		found, ok := compareContains(value, literal)
		return ok && !found
	case OpIn:
		found, ok := compareIn(value, literal)
		return ok && found
	case OpNotIn:
		found, ok := compareIn(value, literal)
		return ok && !found
	case OpStartsWith:
		return compareStrings(value, literal, strings.HasPrefix)
	case OpEndsWith:
		return compareStrings(value, literal, strings.HasSuffix)
	case OpBetween:
		return compareBetween(value, literal)
	case OpIsEmpty:
		return isEmpty(value)
	case OpIsNotEmpty:
		return !isEmpty(value)
	case OpIsNull:
		return false
	case OpIsNotNull:
		return true
	case OpRegexMatch:
		return compareRegex(value, literal)
	default:
		return false
	}
}

// compareAbsent decides comparisons whose field is missing or null.
func compareAbsent(op Operator, literal any) bool {
	switch op {
	case OpEq:
		return literal == nil
	case OpNeq:
		return literal != nil
	case OpNotIn:
		_, err := CoerceSequence(literal)
		return err == nil
	case OpIsNull, OpIsEmpty:
		return true
	default:
		return false
	}
}

// compareEqual performs equality with numeric coercion when a number is involved.
func compareEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	switch {
	case ka == kindNull || kb == kindNull:
		return ka == kb
	case ka == kindNumber || kb == kindNumber:
		na, errA := CoerceNumeric(a)
		nb, errB := CoerceNumeric(b)
		return errA == nil && errB == nil && na == nb
	case ka == kindString && kb == kindString:
		return a.(string) == b.(string)
	case ka == kindBool && kb == kindBool:
		return a.(bool) == b.(bool)
	case ka == kindSequence && kb == kindSequence:
		sa, _ := CoerceSequence(a)
		sb, _ := CoerceSequence(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !compareEqual(sa[i], sb[i]) {
				return false
			}
		}
		return true
	case ka == kindMap && kb == kindMap:
		return reflect.DeepEqual(a, b)
	default:
		return false
	}
}

// compareOrdered performs three-way comparison (-1/0/1).
// ok is false when the values are not comparable.
func compareOrdered(a, b any) (int, bool) {
	na, errA := CoerceNumeric(a)
	nb, errB := CoerceNumeric(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// compareContains is substring match for strings and membership for sequences.
func compareContains(value, literal any) (bool, bool) {
	if s, ok := value.(string); ok {
		sub, ok := literal.(string)
		if !ok {
			return false, false
		}
		return strings.Contains(s, sub), true
	}
	seq, err := CoerceSequence(value)
	if err != nil {
		return false, false
	}
	return member(literal, seq), true
}

// compareIn checks membership of value in the sequence literal.
// Oversized literals are rejected rather than scanned.
func compareIn(value, literal any) (bool, bool) {
	set, err := CoerceSequence(literal)
	if err != nil || len(set) > types.MaxInOperatorValues {
		return false, false
	}
	return member(value, set), true
}

func member(value any, set []any) bool {
	for _, elem := range set {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

func compareStrings(value, literal any, fn func(s, affix string) bool) bool {
	s, ok1 := value.(string)
	affix, ok2 := literal.(string)
	if !ok1 || !ok2 {
		return false
	}
	return fn(s, affix)
}

// compareBetween checks low <= value <= high for a two-element literal.
func compareBetween(value, literal any) bool {
	bounds, err := CoerceSequence(literal)
	if err != nil || len(bounds) != 2 {
		return false
	}
	lo, ok := compareOrdered(value, bounds[0])
	if !ok || lo < 0 {
		return false
	}
	hi, ok := compareOrdered(value, bounds[1])
	return ok && hi <= 0
}

// isEmpty treats empty strings, sequences and maps as empty.
func isEmpty(value any) bool {
	switch kindOf(value) {
	case kindNull:
		return true
	case kindString:
		return value.(string) == ""
	case kindSequence, kindMap:
		return reflect.ValueOf(value).Len() == 0
	default:
		return false
	}
}
