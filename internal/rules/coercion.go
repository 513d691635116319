// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/solatis/approvalgate/internal/types"
)

/*
 * Type coercion for rule evaluation.
 *
 * Record values arrive from JSON (float64, string, bool, []any, map), from
 * structpb (same shapes) or from Go callers (any int/uint/float kind,
 * json.Number, typed slices). Coercion normalises them before Compare.
 *
 * Numeric coercion is strict: numbers of any Go kind and json.Number pass,
 * strings pass only when they are an unambiguous decimal literal (trimmed,
 * non-empty, finite, no hex/underscore/inf/nan spellings). Booleans never
 * coerce to numbers, so "true" vs 1 cannot compare equal.
 *
 * Text is never coerced: string operators on non-strings are a type
 * mismatch and evaluate false.
 */

// valueKind classifies a record or literal value for comparison.
type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindSequence
	kindMap
	kindOther
)

// kindOf returns the comparison kind of v without coercing strings.
func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case string:
		return kindString
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return kindNumber
	case []any:
		return kindSequence
	case map[string]any, types.Record:
		return kindMap
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return kindSequence
	case reflect.Map:
		return kindMap
	default:
		return kindOther
	}
}

// CoerceNumeric converts value to float64 for numeric comparison.
// Returns ErrCoercionFailed for booleans, ambiguous strings and non-numbers.
func CoerceNumeric(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return parseDecimal(string(v))
	case string:
		return parseDecimal(v)
	default:
		// Booleans and containers never coerce
		return 0, types.ErrCoercionFailed
	}
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, types.ErrCoercionFailed
	}
	return f, nil
}

// parseDecimal accepts plain decimal literals with optional sign, fraction
// and exponent. Whitespace-only strings are not numbers.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, types.ErrCoercionFailed
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E':
		default:
			// Rejects hex floats, digit separators, "Inf", "NaN"
			return 0, types.ErrCoercionFailed
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, types.ErrCoercionFailed
	}
	return finite(f)
}

// CoerceSequence returns v as []any when it is a slice or array.
func CoerceSequence(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case nil:
		return nil, types.ErrCoercionFailed
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, types.ErrCoercionFailed
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
