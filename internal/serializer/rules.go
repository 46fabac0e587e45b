package serializer

import (
	"fmt"

	"CrudAPI/internal/model"
)

// Rule attaches a coercer to columns. Name is what a YAML field refers to with
// `coercer: <name>`; Match decides automatic detection by column.
type Rule struct {
	Name  string
	Match func(col *model.Column) bool
	New   func(col *model.Column) Coercer
}

// Rules is an ordered rule list; the first match wins.
type Rules []Rule

// NoCoercer disables detection for a declared field.
const NoCoercer = "none"

func ofType(types ...string) func(*model.Column) bool {
	return func(c *model.Column) bool {
		for _, t := range types {
			if c.Type == t {
				return true
			}
		}
		return false
	}
}

func static(c Coercer) func(*model.Column) Coercer {
	return func(*model.Column) Coercer { return c }
}

// DefaultRules covers every column type that needs conversion between JSON and pgx.
func DefaultRules() Rules {
	return Rules{
		{Name: "datetime", Match: ofType(model.TypeDateTime), New: static(DateTimeCoercer{})},
		{Name: "date", Match: ofType(model.TypeDate), New: static(DateCoercer{})},
		{Name: "time", Match: ofType(model.TypeTime), New: static(TimeOfDayCoercer{})},
		{Name: "enum", Match: ofType(model.TypeEnum), New: func(c *model.Column) Coercer {
			return EnumCoercer{Values: append([]string(nil), c.Values...)}
		}},
		{Name: "int", Match: ofType(model.TypeInt, model.TypeBigInt), New: static(IntCoercer{})},
		{Name: "float", Match: ofType(model.TypeFloat, model.TypeNumeric), New: static(FloatCoercer{})},
		{Name: "bool", Match: ofType(model.TypeBool), New: static(BoolCoercer{})},
		{Name: "uuid", Match: ofType(model.TypeUUID), New: static(UUIDCoercer{})},
	}
}

// With returns a copy of r with extra rules placed before the existing ones.
func (r Rules) With(extra ...Rule) Rules {
	out := make(Rules, 0, len(r)+len(extra))
	out = append(out, extra...)
	return append(out, r...)
}

// Detect returns the coercer of the first rule matching col, nil if none.
func (r Rules) Detect(col *model.Column) Coercer {
	for _, rule := range r {
		if rule.Match != nil && rule.Match(col) {
			return rule.New(col)
		}
	}
	return nil
}

// Named resolves a coercer declared by name for col.
func (r Rules) Named(name string, col *model.Column) (Coercer, error) {
	if name == NoCoercer {
		return nil, nil
	}
	for _, rule := range r {
		if rule.Name == name {
			return rule.New(col), nil
		}
	}
	return nil, fmt.Errorf("unknown coercer '%s'", name)
}
