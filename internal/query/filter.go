package query

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
)

// Expr is a parsed filter expression.
type Expr interface {
	isExpr()
}

// Leaf is a single condition on one field.
type Leaf struct {
	Field   string
	Op      Op
	Operand any
}

// Group combines expressions with AND, or with OR when Or is set.
type Group struct {
	Or    bool
	Items []Expr
}

func (Leaf) isExpr()  {}
func (Group) isExpr() {}

const (
	keyAnd = "$and"
	keyOr  = "$or"
)

// ParseFilter turns a decoded filter object into an expression tree. Sibling
// keys are combined with AND; keys are visited in sorted order so the generated
// SQL is stable.
func ParseFilter(raw map[string]any) (Expr, error) {
	g := Group{}
	for _, key := range sortedKeys(raw) {
		val := raw[key]
		switch key {
		case keyAnd, keyOr:
			sub, err := parseCombinator(key, val)
			if err != nil {
				return nil, err
			}
			g.Items = append(g.Items, sub)
		default:
			leaf, err := parseLeaf(key, val)
			if err != nil {
				return nil, err
			}
			g.Items = append(g.Items, leaf)
		}
	}
	return g, nil
}

func parseCombinator(key string, val any) (Expr, error) {
	g := Group{Or: key == keyOr}
	switch v := val.(type) {
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &InvalidFilterError{Field: key, Reason: "expected a list of objects"}
			}
			sub, err := ParseFilter(obj)
			if err != nil {
				return nil, err
			}
			g.Items = append(g.Items, sub)
		}
	case map[string]any:
		// {"$or": {"a": 1, "b": 2}}: every key is its own alternative
		for _, k := range sortedKeys(v) {
			sub, err := ParseFilter(map[string]any{k: v[k]})
			if err != nil {
				return nil, err
			}
			g.Items = append(g.Items, sub)
		}
	default:
		return nil, &InvalidFilterError{Field: key, Reason: "expected a list of objects"}
	}
	return g, nil
}

func parseLeaf(field string, val any) (Expr, error) {
	obj, ok := val.(map[string]any)
	if !ok {
		return Leaf{Field: field, Op: OpEq, Operand: val}, nil
	}
	if len(obj) != 1 {
		return nil, &InvalidFilterError{Field: field, Reason: fmt.Sprintf("expected exactly one operator, got %d", len(obj))}
	}
	for name, operand := range obj {
		op, ok := ParseOp(name)
		if !ok {
			return nil, &UnknownOperatorError{Field: field, Operator: name}
		}
		return Leaf{Field: field, Op: op, Operand: operand}, nil
	}
	panic("unreachable")
}

// DecodeObject decodes a JSON object keeping integers exact: whole numbers
// become int64 and the rest float64.
func DecodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return normalizeNumbers(out).(map[string]any), nil
}

// DecodeObjectString is DecodeObject over a string.
func DecodeObjectString(s string) (map[string]any, error) {
	return DecodeObject(bytes.NewReader([]byte(s)))
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
