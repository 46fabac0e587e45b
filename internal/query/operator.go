package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Op is a filter operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpLike
	OpILike
	OpNotLike
	OpNotILike
	OpStartsWith
	OpEndsWith
	OpContains
	OpMatch
	OpIn
	OpNotIn
	OpIs
	OpIsNot
	OpBetween
)

var opNames = [...]string{
	OpEq:         "eq",
	OpNe:         "ne",
	OpGt:         "gt",
	OpGe:         "ge",
	OpLt:         "lt",
	OpLe:         "le",
	OpLike:       "like",
	OpILike:      "ilike",
	OpNotLike:    "notlike",
	OpNotILike:   "notilike",
	OpStartsWith: "startswith",
	OpEndsWith:   "endswith",
	OpContains:   "contains",
	OpMatch:      "match",
	OpIn:         "in",
	OpNotIn:      "notin",
	OpIs:         "is",
	OpIsNot:      "isnot",
	OpBetween:    "between",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = Op(op)
	}
	return m
}()

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp resolves an operator name.
func ParseOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

// textual operators take a pattern, never a coerced column value
func (o Op) textual() bool {
	switch o {
	case OpLike, OpILike, OpNotLike, OpNotILike, OpStartsWith, OpEndsWith, OpContains, OpMatch:
		return true
	}
	return false
}

type condFunc func(col string, operand any) (sq.Sqlizer, error)

var conditions = [...]condFunc{
	OpEq: func(col string, v any) (sq.Sqlizer, error) { return sq.Eq{col: v}, nil },
	OpNe: func(col string, v any) (sq.Sqlizer, error) { return sq.NotEq{col: v}, nil },
	OpGt: comparison(func(col string, v any) sq.Sqlizer { return sq.Gt{col: v} }),
	OpGe: comparison(func(col string, v any) sq.Sqlizer { return sq.GtOrEq{col: v} }),
	OpLt: comparison(func(col string, v any) sq.Sqlizer { return sq.Lt{col: v} }),
	OpLe: comparison(func(col string, v any) sq.Sqlizer { return sq.LtOrEq{col: v} }),

	OpLike:       pattern("", "", func(col, p string) sq.Sqlizer { return sq.Like{col: p} }),
	OpILike:      pattern("", "", func(col, p string) sq.Sqlizer { return sq.ILike{col: p} }),
	OpNotLike:    pattern("", "", func(col, p string) sq.Sqlizer { return sq.NotLike{col: p} }),
	OpNotILike:   pattern("", "", func(col, p string) sq.Sqlizer { return sq.NotILike{col: p} }),
	OpStartsWith: pattern("", "%", func(col, p string) sq.Sqlizer { return sq.Like{col: p} }),
	OpEndsWith:   pattern("%", "", func(col, p string) sq.Sqlizer { return sq.Like{col: p} }),
	OpContains:   pattern("%", "%", func(col, p string) sq.Sqlizer { return sq.Like{col: p} }),
	OpMatch: pattern("", "", func(col, p string) sq.Sqlizer {
		return sq.Expr(col+" @@ plainto_tsquery(?)", p)
	}),

	OpIn:    list(func(col string, v []any) sq.Sqlizer { return sq.Eq{col: v} }),
	OpNotIn: list(func(col string, v []any) sq.Sqlizer { return sq.NotEq{col: v} }),

	OpIs:    isCond(""),
	OpIsNot: isCond("NOT "),

	OpBetween: func(col string, v any) (sq.Sqlizer, error) {
		bounds, ok := v.([]any)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("between needs a list of two values")
		}
		if bounds[0] == nil || bounds[1] == nil {
			return nil, fmt.Errorf("between bounds cannot be null")
		}
		return sq.Expr(col+" BETWEEN ? AND ?", bounds[0], bounds[1]), nil
	},
}

func comparison(build func(string, any) sq.Sqlizer) condFunc {
	return func(col string, v any) (sq.Sqlizer, error) {
		if v == nil {
			return nil, fmt.Errorf("cannot compare with null")
		}
		if _, isList := v.([]any); isList {
			return nil, fmt.Errorf("expected a single value")
		}
		return build(col, v), nil
	}
}

func pattern(prefix, suffix string, build func(string, string) sq.Sqlizer) condFunc {
	return func(col string, v any) (sq.Sqlizer, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string")
		}
		return build(col, prefix+s+suffix), nil
	}
}

func list(build func(string, []any) sq.Sqlizer) condFunc {
	return func(col string, v any) (sq.Sqlizer, error) {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list")
		}
		return build(col, items), nil
	}
}

func isCond(not string) condFunc {
	return func(col string, v any) (sq.Sqlizer, error) {
		switch b := v.(type) {
		case nil:
			return sq.Expr(col + " IS " + not + "NULL"), nil
		case bool:
			if b {
				return sq.Expr(col + " IS " + not + "TRUE"), nil
			}
			return sq.Expr(col + " IS " + not + "FALSE"), nil
		}
		return nil, fmt.Errorf("expected null, true or false")
	}
}
