package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// VariableType is the workflow engine's type tag for a variable value.
type VariableType string

const (
	VariableString  VariableType = "String"
	VariableInteger VariableType = "Integer"
	VariableLong    VariableType = "Long"
	VariableDouble  VariableType = "Double"
	VariableBoolean VariableType = "Boolean"
	VariableJSON    VariableType = "Json"
	VariableNull    VariableType = "Null"
)

var knownVariableTypes = map[string]VariableType{
	"string":  VariableString,
	"integer": VariableInteger,
	"long":    VariableLong,
	"double":  VariableDouble,
	"boolean": VariableBoolean,
	"json":    VariableJSON,
	"null":    VariableNull,
}

// ParseVariableType canonicalizes a type name; matching is case-insensitive.
func ParseVariableType(s string) (VariableType, error) {
	t, ok := knownVariableTypes[strings.ToLower(s)]
	if !ok {
		return "", fmt.Errorf("unsupported variable type %q", s)
	}
	return t, nil
}

// Variable is a typed value as exchanged with the workflow engine.
type Variable struct {
	Value     interface{}            `json:"value"`
	Type      VariableType           `json:"type"`
	ValueInfo map[string]interface{} `json:"valueInfo,omitempty"`
}

// StringVariable builds a String variable.
func StringVariable(value string) Variable {
	return Variable{Value: value, Type: VariableString}
}

// VariableMap is a set of named typed variables.
type VariableMap map[string]Variable

// Plain strips type information and returns name → value.
func (m VariableMap) Plain() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Value
	}
	return out
}

// Clone returns a shallow copy of the map.
func (m VariableMap) Clone() VariableMap {
	out := make(VariableMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Names returns the variable names in sorted order.
func (m VariableMap) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NormalizeVariables converts a client supplied JSON object into a VariableMap.
// Entries already shaped as {"value": ..., "type": ...} keep their value and get a
// canonical type; anything else is wrapped with an inferred type.
func NormalizeVariables(raw map[string]json.RawMessage) (VariableMap, error) {
	out := make(VariableMap, len(raw))
	for name, msg := range raw {
		if name == "" {
			return nil, fmt.Errorf("variable with empty name")
		}
		v, err := normalizeVariable(msg)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func normalizeVariable(msg json.RawMessage) (Variable, error) {
	var typed struct {
		Value     json.RawMessage        `json:"value"`
		Type      *string                `json:"type"`
		ValueInfo map[string]interface{} `json:"valueInfo"`
	}
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &typed); err == nil && typed.Type != nil && typed.Value != nil {
			t, err := ParseVariableType(*typed.Type)
			if err != nil {
				return Variable{}, err
			}
			value, err := decodeValue(typed.Value)
			if err != nil {
				return Variable{}, err
			}
			return Variable{Value: value, Type: t, ValueInfo: typed.ValueInfo}, nil
		}
	}

	value, err := decodeValue(trimmed)
	if err != nil {
		return Variable{}, err
	}
	return InferVariable(value), nil
}

func decodeValue(msg json.RawMessage) (interface{}, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	return v, nil
}

// InferVariable wraps a decoded JSON value with the matching engine type.
// Integral numbers become Integer (or Long beyond 32 bits), other numbers Double;
// objects and arrays are serialized to a Json string value.
func InferVariable(value interface{}) Variable {
	switch v := value.(type) {
	case nil:
		return Variable{Value: nil, Type: VariableNull}
	case bool:
		return Variable{Value: v, Type: VariableBoolean}
	case string:
		return Variable{Value: v, Type: VariableString}
	case json.Number:
		return inferNumber(v)
	case float64:
		return inferNumber(json.Number(fmt.Sprintf("%v", v)))
	case int:
		return inferNumber(json.Number(fmt.Sprintf("%d", v)))
	case int64:
		return inferNumber(json.Number(fmt.Sprintf("%d", v)))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return Variable{Value: fmt.Sprintf("%v", v), Type: VariableString}
		}
		return Variable{Value: string(encoded), Type: VariableJSON}
	}
}

func inferNumber(n json.Number) Variable {
	if i, err := n.Int64(); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return Variable{Value: i, Type: VariableInteger}
		}
		return Variable{Value: i, Type: VariableLong}
	}
	f, err := n.Float64()
	if err != nil {
		return Variable{Value: n.String(), Type: VariableString}
	}
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) <= math.MaxInt32 {
		return Variable{Value: int64(f), Type: VariableInteger}
	}
	return Variable{Value: f, Type: VariableDouble}
}
