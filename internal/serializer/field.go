package serializer

import "CrudAPI/internal/model"

// Kind is the closed set of field shapes.
type Kind int

const (
	// KindValue is a plain column, computed column or proxy value.
	KindValue Kind = iota
	// KindNested renders a to-one relation with the related model's serializer.
	KindNested
	// KindNestedList renders a to-many relation with the related model's serializer.
	KindNestedList
	// KindPrimaryKeys renders a to-many relation as a list of primary keys.
	KindPrimaryKeys
	// KindAttributes renders selected columns of a relation, read-only.
	KindAttributes
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindNested:
		return "nested"
	case KindNestedList:
		return "nested_list"
	case KindPrimaryKeys:
		return "primary_keys"
	case KindAttributes:
		return "attributes"
	}
	return "unknown"
}

// Field describes how one attribute is dumped and loaded.
type Field struct {
	Name     string
	Kind     Kind
	DumpOnly bool
	LoadOnly bool
	Coercer  Coercer

	// set for relation kinds
	Relation *model.Relation
	// set for KindNested and KindNestedList once the owning Set is linked
	Nested *Serializer
	// KindAttributes columns and their coercers
	Attributes []string
	attrCoerce map[string]Coercer
}

// Column returns the column behind a value field, if any.
func (f *Field) Column(m *model.Model) (*model.Column, bool) {
	if f.Kind != KindValue {
		return nil, false
	}
	return m.Column(f.Name)
}
