// internal/rules/compile.go
package rules

import (
	"strings"

	"github.com/solatis/approvalgate/internal/types"
)

/*
 * Condition compilation.
 *
 * Compiles a stored types.Condition document into a Node tree ready for
 * evaluation: field paths are parsed once, operator names and aliases are
 * resolved to Operator values, and legacy shapes have already been
 * normalised by types.Condition decoding.
 *
 * Node is a closed sum type: *Comparison or *Combinator. A nil Node is the
 * empty tree and always matches.
 *
 * A comparison without an operator is an equality check, as older rule
 * editors stored {"field": ..., "value": ...}.
 *
 * Compilation never fails. Problems are recorded on the node and make it
 * evaluate false: a bad field path sets PathErr, an unknown operator becomes
 * OpUnknown, an unknown logic keyword is kept verbatim, an invalid regex
 * pattern stays a string that never matches. One malformed
 * condition therefore cannot abort evaluation of other rules.
 */

// Node is one node of a compiled condition tree.
type Node interface {
	isNode()
}

// Comparison compares the value at Field against a literal.
type Comparison struct {
	Field    string
	Path     []types.PathSegment
	PathErr  error // non-nil when Field could not be parsed
	Operator Operator
	Value    any
}

// Combinator joins child nodes with AND, OR or NOT.
// NOT requires exactly one child.
type Combinator struct {
	Logic    types.Logic
	Children []Node
}

func (*Comparison) isNode() {}
func (*Combinator) isNode() {}

// Compile converts a condition document into a Node tree.
// nil and empty documents compile to a nil Node.
func Compile(cond *types.Condition) Node {
	if cond.IsEmpty() {
		return nil
	}
	if cond.IsComparison() {
		op := OpEq
		if strings.TrimSpace(cond.Operator) != "" {
			op = ParseOperator(cond.Operator)
		}
		return Cmp(cond.Field, op, cond.Value)
	}
	if cond.Logic == "" && len(cond.Conditions) == 0 {
		// Operator or value without a field
		return &Comparison{PathErr: types.ErrMalformedPath, Operator: ParseOperator(cond.Operator), Value: cond.Value}
	}

	children := make([]Node, 0, len(cond.Conditions))
	for i := range cond.Conditions {
		children = append(children, Compile(&cond.Conditions[i]))
	}
	return &Combinator{
		Logic:    types.Logic(strings.ToLower(strings.TrimSpace(string(cond.Logic)))),
		Children: children,
	}
}

// Cmp builds a comparison node, parsing the field path.
// regex_match patterns are compiled once here.
func Cmp(field string, op Operator, value any) *Comparison {
	if op == OpRegexMatch {
		if pattern, ok := value.(string); ok {
			if re, err := CompileRegex(pattern); err == nil {
				value = re
			}
		}
	}
	path, err := ParsePath(field)
	return &Comparison{
		Field:    field,
		Path:     path,
		PathErr:  err,
		Operator: op,
		Value:    value,
	}
}

// And builds an AND combinator.
func And(children ...Node) *Combinator {
	return &Combinator{Logic: types.LogicAnd, Children: children}
}

// Or builds an OR combinator.
func Or(children ...Node) *Combinator {
	return &Combinator{Logic: types.LogicOr, Children: children}
}

// Not builds a NOT combinator around a single child.
func Not(child Node) *Combinator {
	return &Combinator{Logic: types.LogicNot, Children: []Node{child}}
}
