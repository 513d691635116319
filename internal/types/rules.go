// internal/types/rules.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

/*
 * Domain types for rule evaluation.
 *
 * Provides Rule, Condition and PathSegment structures used by
 * internal/rules for compilation and evaluation. These types are wire-format
 * agnostic apart from their JSON shape, which is also the storage format of
 * the conditions column.
 *
 * Condition documents accept three shapes:
 *   - tree:   {"logic": "and|or|not", "conditions": [...]} or
 *             {"field": "amount", "operator": ">", "value": 1000}
 *   - list:   [{"field": ...}, {"field": ...}]               (implicit AND)
 *   - groups: {"logic": "or", "groups": [{"logic": "and", "conditions": [...]}]}
 * List and groups are the shapes stored by older rule editors.
 */

// PathSegment represents one component of a dotted field path.
// Numeric segments carry both Key and Index so they can address either an
// object key ("2024") or a sequence position.
type PathSegment struct {
	Key      string // object key
	Index    int    // sequence index (valid when IsIndex)
	IsIndex  bool   // disambiguates Index=0 from unset
	Wildcard bool   // true = "*" segment
}

// Logic names the boolean operator of a combinator node.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
	LogicNot Logic = "not"
)

// Condition is one node of a stored condition tree.
// A node is a comparison when Field is set and a combinator otherwise.
type Condition struct {
	Field      string      `json:"field,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	Value      any         `json:"value,omitempty"`
	Logic      Logic       `json:"logic,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// rawCondition is the decoding shape; it has no UnmarshalJSON of its own.
type rawCondition struct {
	Field      string      `json:"field"`
	Operator   string      `json:"operator"`
	Value      any         `json:"value"`
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
	Groups     []Condition `json:"groups"`
}

// IsEmpty reports whether the node carries neither a comparison nor children.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Field == "" && c.Operator == "" && c.Logic == "" && len(c.Conditions) == 0)
}

// IsComparison reports whether the node is a leaf comparison.
func (c *Condition) IsComparison() bool {
	return c != nil && c.Field != ""
}

// UnmarshalJSON implements json.Unmarshaler for all accepted shapes.
func (c *Condition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Condition{}
		return nil
	}

	if data[0] == '[' {
		var list []Condition
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
		*c = Condition{Logic: LogicAnd, Conditions: list}
		return nil
	}

	var raw rawCondition
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}

	children := raw.Conditions
	if len(children) == 0 && len(raw.Groups) > 0 {
		children = raw.Groups
	}
	logic := raw.Logic
	if logic == "" && len(children) > 0 {
		logic = LogicAnd
	}

	*c = Condition{
		Field:      raw.Field,
		Operator:   raw.Operator,
		Value:      raw.Value,
		Logic:      logic,
		Conditions: children,
	}
	return nil
}

// ParseCondition decodes a stored condition document.
// Empty input and JSON null yield a nil tree (always matches).
func ParseCondition(data []byte) (*Condition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApprovalType describes how a matched rule's approver chain is processed.
type ApprovalType string

const (
	ApprovalSequential ApprovalType = "sequential"
	ApprovalParallel   ApprovalType = "parallel"
	ApprovalAny        ApprovalType = "any"
)

// Rule is a prioritized approval policy scoped to a classification key.
// Rules are snapshots: the engine never mutates them.
type Rule struct {
	ID                RuleID            `json:"id"`
	TenantID          string            `json:"tenant_id,omitempty"`
	ClassificationKey ClassificationKey `json:"classification_key" validate:"required,max=128"`
	Name              string            `json:"name" validate:"required,max=255"`
	Description       string            `json:"description,omitempty"`
	Priority          int               `json:"priority"`
	Active            bool              `json:"active"`
	Condition         *Condition        `json:"conditions,omitempty"`
	ApprovalType      ApprovalType      `json:"approval_type,omitempty" validate:"omitempty,oneof=sequential parallel any"`
	SLAHours          int               `json:"sla_hours,omitempty" validate:"gte=0"`
	RequireComments   bool              `json:"require_comments,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
