package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solatis/approvalgate/internal/types"
)

// CompileRegex compiles a stored regex_match pattern.
// Patterns are bare ("^INV-[0-9]+$") or slash-delimited with trailing
// flags ("/^inv-/i"); flags i, m, s and U are supported. Patterns are RE2,
// so matching is linear in the input. Returns ErrInvalidPattern for empty,
// oversized or unparsable patterns.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" || len(pattern) > types.MaxRegexPatternLength {
		return nil, types.ErrInvalidPattern
	}

	if strings.HasPrefix(pattern, "/") {
		end := strings.LastIndex(pattern, "/")
		if end == 0 {
			return nil, fmt.Errorf("%w: missing closing delimiter", types.ErrInvalidPattern)
		}
		body, flags := pattern[1:end], pattern[end+1:]
		for _, f := range flags {
			if !strings.ContainsRune("imsU", f) {
				return nil, fmt.Errorf("%w: unsupported flag %q", types.ErrInvalidPattern, f)
			}
		}
		if flags != "" {
			body = "(?" + flags + ")" + body
		}
		pattern = body
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPattern, err)
	}
	return re, nil
}

// compareRegex matches string values. The literal is a pattern precompiled
// by Cmp, or a raw pattern compiled on the spot.
func compareRegex(value, literal any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	switch p := literal.(type) {
	case *regexp.Regexp:
		return p.MatchString(s)
	case string:
		re, err := CompileRegex(p)
		return err == nil && re.MatchString(s)
	default:
		return false
	}
}
