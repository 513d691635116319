package api

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/approvalgate/internal/types"
)

// Request and response field names.
const (
	fieldClassificationKey = "classification_key"
	fieldRecord            = "record"
	fieldCondition         = "condition"
	fieldRuleID            = "rule_id"
	fieldMatched           = "matched"
	fieldNeedsApproval     = "needs_approval"
	fieldRule              = "rule"
)

// classificationKey reads a string key or an integral module id.
func classificationKey(req *structpb.Struct) (types.ClassificationKey, error) {
	v, ok := req.GetFields()[fieldClassificationKey]
	if !ok {
		return "", invalidArgument("%s is required", fieldClassificationKey)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return "", invalidArgument("%s is required", fieldClassificationKey)
		}
		return types.ClassificationKey(k.StringValue), nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return "", invalidArgument("%s must be an integer, got %v", fieldClassificationKey, n)
		}
		return types.KeyFromInt(int64(n)), nil
	default:
		return "", invalidArgument("%s must be a string or integer", fieldClassificationKey)
	}
}

// record reads the record to evaluate. An absent or null record is empty.
func record(req *structpb.Struct) (types.Record, error) {
	v, ok := req.GetFields()[fieldRecord]
	if !ok {
		return types.Record{}, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return types.Record{}, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, invalidArgument("%s must be an object", fieldRecord)
	}
	return types.Record(s.AsMap()), nil
}

// condition decodes an inline condition document in any accepted shape.
func condition(v *structpb.Value) (*types.Condition, error) {
	data, err := protojson.Marshal(v)
	if err != nil {
		return nil, invalidArgument("%s: %v", fieldCondition, err)
	}
	cond, err := types.ParseCondition(data)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	return cond, nil
}

// ruleValue converts a rule to its JSON shape as a struct value.
func ruleValue(rule types.Rule) (*structpb.Value, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	return structpb.NewStructValue(s), nil
}

// matchResponse builds {<flag>: bool, rule: <rule>|null}.
func matchResponse(flag string, rule *types.Rule) (*structpb.Struct, error) {
	resp := &structpb.Struct{Fields: map[string]*structpb.Value{
		flag:      structpb.NewBoolValue(rule != nil),
		fieldRule: structpb.NewNullValue(),
	}}
	if rule != nil {
		v, err := ruleValue(*rule)
		if err != nil {
			return nil, err
		}
		resp.Fields[fieldRule] = v
	}
	return resp, nil
}
