// internal/rules/fieldpath.go
package rules

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/approvalgate/internal/types"
)

/*
 * Field path resolution for records.
 *
 * Parses dot-notation paths ("customer.address.country", "lines.0.sku",
 * "lines.*.sku") and resolves them through nested maps and sequences.
 * Resolve returns the first value a path reaches; ResolveAll visits every
 * wildcard expansion so comparisons can use ANY semantics.
 * MaxPathDepth (16) and MaxNestedWildcards (2) are enforced at parse time.
 *
 * Key functions:
 *   - ParsePath: dotted string to PathSegment chain
 *   - Resolve: traverses a record following the chain
 *   - ResolveAll: visits every expansion of a wildcard path
 *
 * Wildcard on a map iterates keys in sorted order so that the same record
 * always expands in the same order.
 *
 * Records normally hold map[string]any / []any (JSON or structpb shapes).
 * Other map and slice kinds from Go callers are walked via reflection.
 */

// ResolveResult contains the resolved value and the actual path taken.
type ResolveResult struct {
	Value        any                 // resolved value (nil if not found or JSON null)
	ResolvedPath []types.PathSegment // path with wildcards replaced by actual indices
	Found        bool                // true if path resolved to a value
}

// ParsePath splits a dotted field path into segments.
// Returns ErrMalformedPath for empty paths or empty segments ("a..b").
// Returns ErrPathTooDeep or ErrTooManyWildcards when limits are exceeded.
func ParsePath(field string) ([]types.PathSegment, error) {
	if strings.TrimSpace(field) == "" {
		return nil, types.ErrMalformedPath
	}

	parts := strings.Split(field, ".")
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}

	path := make([]types.PathSegment, 0, len(parts))
	wildcards := 0
	for _, part := range parts {
		if part == "" {
			return nil, types.ErrMalformedPath
		}
		if part == "*" {
			wildcards++
			path = append(path, types.PathSegment{Wildcard: true})
			continue
		}
		seg := types.PathSegment{Key: part}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 && isDigits(part) {
			seg.Index = n
			seg.IsIndex = true
		}
		path = append(path, seg)
	}

	if wildcards > types.MaxNestedWildcards {
		return nil, types.ErrTooManyWildcards
	}
	return path, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Resolve traverses data following path segments and returns the first
// value the path reaches. Returns ErrFieldNotFound if the path does not
// exist in data.
func Resolve(path []types.PathSegment, data any) (ResolveResult, error) {
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}
	var first ResolveResult
	found := walk(path, data, nil, func(r ResolveResult) bool {
		first = r
		return true
	})
	if !found {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return first, nil
}

// ResolveAll visits every value the path reaches, expanding each wildcard
// over all elements in order. The walk stops as soon as visit returns true;
// ResolveAll reports whether it did.
func ResolveAll(path []types.PathSegment, data any, visit func(ResolveResult) bool) bool {
	if len(path) > types.MaxPathDepth {
		return false
	}
	return walk(path, data, nil, visit)
}

// HasWildcard reports whether the path contains a "*" segment.
func HasWildcard(path []types.PathSegment) bool {
	for _, seg := range path {
		if seg.Wildcard {
			return true
		}
	}
	return false
}

// walk follows path depth-first. ResolvedPath accumulates actual keys and
// indices in place of wildcards.
func walk(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment, visit func(ResolveResult) bool) bool {
	if len(path) == 0 {
		return visit(ResolveResult{
			Value:        current,
			ResolvedPath: resolvedSoFar,
			Found:        true,
		})
	}

	for _, st := range expand(path[0], current) {
		if walk(path[1:], st.value, appendSegment(resolvedSoFar, st.seg), visit) {
			return true
		}
	}
	return false
}

// step is one child reached from a segment.
type step struct {
	seg   types.PathSegment
	value any
}

// expand returns the children seg selects in current: none, one, or every
// element for a wildcard.
func expand(seg types.PathSegment, current any) []step {
	switch v := current.(type) {
	case types.Record:
		return expandMap(seg, map[string]any(v))
	case map[string]any:
		return expandMap(seg, v)
	case []any:
		return expandSlice(seg, v)
	case nil:
		// Null value at intermediate position
		return nil
	default:
		return expandReflect(seg, v)
	}
}

func expandMap(seg types.PathSegment, m map[string]any) []step {
	if seg.Wildcard {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		steps := make([]step, len(keys))
		for i, key := range keys {
			steps[i] = step{seg: types.PathSegment{Key: key}, value: m[key]}
		}
		return steps
	}
	val, ok := m[seg.Key]
	if !ok {
		return nil
	}
	return []step{{seg: types.PathSegment{Key: seg.Key}, value: val}}
}

func expandSlice(seg types.PathSegment, s []any) []step {
	if seg.Wildcard {
		steps := make([]step, len(s))
		for i, elem := range s {
			steps[i] = step{seg: types.PathSegment{Index: i, IsIndex: true}, value: elem}
		}
		return steps
	}
	if !seg.IsIndex || seg.Index >= len(s) {
		return nil
	}
	return []step{{seg: types.PathSegment{Index: seg.Index, IsIndex: true}, value: s[seg.Index]}}
}

// expandReflect handles typed maps and slices handed in by Go callers,
// e.g. map[string]string or []map[string]any.
func expandReflect(seg types.PathSegment, current any) []step {
	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return expandMap(seg, m)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		s := make([]any, rv.Len())
		for i := range s {
			s[i] = rv.Index(i).Interface()
		}
		return expandSlice(seg, s)
	default:
		// Scalar value but path continues
		return nil
	}
}

// appendSegment copies before appending so sibling wildcard branches never
// share a backing array.
func appendSegment(path []types.PathSegment, seg types.PathSegment) []types.PathSegment {
	out := make([]types.PathSegment, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
