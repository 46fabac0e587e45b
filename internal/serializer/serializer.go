package serializer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"CrudAPI/internal/model"
)

// Finder resolves entities by primary key while loading nested payloads.
// A missing row is reported as (nil, nil).
type Finder interface {
	FindByPK(ctx context.Context, m *model.Model, pk any) (*model.Entity, error)
}

// Serializer converts entities of one model to and from plain mappings.
// It is immutable once its Set is linked.
type Serializer struct {
	model  *model.Model
	fields []*Field
	index  map[string]*Field
}

// New builds the fields of m: declared fields first, then the remaining columns.
// Nested fields are left unlinked; use NewSet to wire them.
func New(m *model.Model, rules Rules) (*Serializer, error) {
	s := &Serializer{model: m, index: map[string]*Field{}}

	for _, spec := range m.Fields {
		f, err := buildField(m, spec, rules)
		if err != nil {
			return nil, err
		}
		s.add(f)
	}
	for _, col := range m.Columns {
		if _, declared := s.index[col.Name]; declared {
			continue
		}
		s.add(&Field{
			Name:     col.Name,
			Kind:     KindValue,
			DumpOnly: col.Computed(),
			Coercer:  rules.Detect(col),
		})
	}
	return s, nil
}

func (s *Serializer) add(f *Field) {
	s.fields = append(s.fields, f)
	s.index[f.Name] = f
}

func buildField(m *model.Model, spec *model.FieldSpec, rules Rules) (*Field, error) {
	f := &Field{Name: spec.Name, DumpOnly: spec.DumpOnly, LoadOnly: spec.LoadOnly}
	if f.DumpOnly && f.LoadOnly {
		return nil, fmt.Errorf("%s.%s: dump_only and load_only are mutually exclusive", m.Name, spec.Name)
	}

	if rel := m.GetRelation(spec.Name); rel != nil {
		f.Relation = rel
		switch {
		case spec.Nested && rel.ToMany():
			f.Kind = KindNestedList
		case spec.Nested:
			f.Kind = KindNested
		case spec.PrimaryKeys:
			f.Kind = KindPrimaryKeys
		case len(spec.Attributes) > 0:
			f.Kind = KindAttributes
			f.DumpOnly = true
			f.Attributes = append([]string(nil), spec.Attributes...)
			f.attrCoerce = map[string]Coercer{}
			for _, attr := range spec.Attributes {
				if col, ok := rel.GetModelRef().Column(attr); ok {
					if c := rules.Detect(col); c != nil {
						f.attrCoerce[attr] = c
					}
				}
			}
		default:
			return nil, fmt.Errorf("%s.%s: relation field needs nested, primary_keys or attributes", m.Name, spec.Name)
		}
		return f, nil
	}

	var col *model.Column
	if c, ok := m.Column(spec.Name); ok {
		col = c
		if c.Computed() {
			f.DumpOnly = true
		}
	} else if p := m.GetProxy(spec.Name); p != nil {
		col, _ = p.RemoteColumn()
		f.DumpOnly = true
	} else {
		return nil, &UnknownFieldError{Model: m.Name, Field: spec.Name}
	}

	f.Kind = KindValue
	var err error
	switch {
	case col == nil:
	case spec.Coercer != "":
		f.Coercer, err = rules.Named(spec.Coercer, col)
	default:
		f.Coercer = rules.Detect(col)
	}
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", m.Name, spec.Name, err)
	}
	return f, nil
}

// Model returns the model the serializer is bound to.
func (s *Serializer) Model() *model.Model { return s.model }

// Fields returns the fields in dump order.
func (s *Serializer) Fields() []*Field { return s.fields }

// Field looks up a field by name.
func (s *Serializer) Field(name string) (*Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// Relations returns the relation names the serializer reads when dumping, so
// the store can load them up front.
func (s *Serializer) Relations() []string {
	var out []string
	for _, f := range s.fields {
		if f.Relation != nil && !f.LoadOnly {
			out = append(out, f.Name)
		}
	}
	return out
}

// Dump renders e as a mapping. Missing values dump as nil.
func (s *Serializer) Dump(e *model.Entity) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if f.LoadOnly {
			continue
		}
		v, err := s.dumpField(f, e)
		if err != nil {
			return nil, fmt.Errorf("dump %s.%s: %w", s.model.Name, f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// DumpMany renders a list of entities; an empty input yields an empty, non-nil list.
func (s *Serializer) DumpMany(list []*model.Entity) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		m, err := s.Dump(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Serializer) dumpField(f *Field, e *model.Entity) (any, error) {
	switch f.Kind {
	case KindValue:
		v, _ := e.Get(f.Name)
		if v == nil || f.Coercer == nil {
			return v, nil
		}
		return f.Coercer.Dump(v)

	case KindNested:
		child := e.RelatedOne(f.Name)
		if child == nil {
			return nil, nil
		}
		return f.nested().Dump(child)

	case KindNestedList:
		return f.nested().DumpMany(e.RelatedMany(f.Name))

	case KindPrimaryKeys:
		list := e.RelatedMany(f.Name)
		out := make([]any, 0, len(list))
		for _, child := range list {
			pk := child.PrimaryKey()
			if c := pkCoercer(child.Model); c != nil && pk != nil {
				var err error
				if pk, err = c.Dump(pk); err != nil {
					return nil, err
				}
			}
			out = append(out, pk)
		}
		return out, nil

	case KindAttributes:
		if f.Relation.ToMany() {
			list := e.RelatedMany(f.Name)
			out := make([]map[string]any, 0, len(list))
			for _, child := range list {
				m, err := f.dumpAttributes(child)
				if err != nil {
					return nil, err
				}
				out = append(out, m)
			}
			return out, nil
		}
		child := e.RelatedOne(f.Name)
		if child == nil {
			return nil, nil
		}
		return f.dumpAttributes(child)
	}
	return nil, fmt.Errorf("unsupported field kind %s", f.Kind)
}

func (f *Field) dumpAttributes(e *model.Entity) (map[string]any, error) {
	out := make(map[string]any, len(f.Attributes))
	for _, attr := range f.Attributes {
		v, _ := e.Get(attr)
		if c := f.attrCoerce[attr]; c != nil && v != nil {
			var err error
			if v, err = c.Dump(v); err != nil {
				return nil, err
			}
		}
		out[attr] = v
	}
	return out, nil
}

func (f *Field) nested() *Serializer {
	if f.Nested == nil {
		// New without NewSet; nested serializers are never linked that way
		panic(fmt.Sprintf("serializer: nested field '%s' is not linked", f.Name))
	}
	return f.Nested
}

func pkCoercer(m *model.Model) Coercer {
	col, ok := m.Column(m.PrimaryKey())
	if !ok {
		return nil
	}
	return DefaultRules().Detect(col)
}

// Load assigns data to existing, or to a fresh entity when existing is nil.
// Only the keys present in data are touched. finder may be nil, in which case
// nested payloads carrying a primary key build fresh entities.
func (s *Serializer) Load(ctx context.Context, finder Finder, data map[string]any, existing *model.Entity) (*model.Entity, error) {
	e := existing
	if e == nil {
		e = model.NewEntity(s.model)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		f, ok := s.index[name]
		if !ok {
			return nil, &UnknownFieldError{Model: s.model.Name, Field: name}
		}
		if f.DumpOnly {
			continue
		}
		if err := s.loadField(ctx, finder, f, data[name], e, existing != nil); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Serializer) loadField(ctx context.Context, finder Finder, f *Field, raw any, e *model.Entity, updating bool) error {
	switch f.Kind {
	case KindValue:
		if raw == nil || f.Coercer == nil {
			e.Set(f.Name, raw)
			return nil
		}
		v, err := f.Coercer.Load(raw)
		if err != nil {
			return &ValueCoercionError{Field: f.Name, Value: raw, Err: err}
		}
		e.Set(f.Name, v)
		return nil

	case KindNested:
		if raw == nil {
			e.SetRelated(f.Name, nil)
			if f.Relation.Type == model.BelongsTo {
				e.Set(f.Relation.FK, nil)
			}
			return nil
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return &ValueCoercionError{Field: f.Name, Value: raw, Err: errors.New("expected an object")}
		}
		var current *model.Entity
		if updating {
			current = e.RelatedOne(f.Name)
		}
		child, err := f.nested().loadNested(ctx, finder, f.Name, obj, current)
		if err != nil {
			return err
		}
		e.SetRelated(f.Name, child)
		return nil

	case KindNestedList:
		items, err := asList(f.Name, raw)
		if err != nil {
			return err
		}
		nested := f.nested()
		var current []*model.Entity
		if updating {
			current = e.RelatedMany(f.Name)
		}
		out := make([]*model.Entity, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return &ValueCoercionError{Field: f.Name, Value: item, Err: errors.New("expected a list of objects")}
			}
			match, err := nested.matchByPK(obj, current)
			if err != nil {
				return &ValueCoercionError{Field: f.Name, Value: item, Err: err}
			}
			child, err := nested.loadNested(ctx, finder, f.Name, obj, match)
			if err != nil {
				return err
			}
			out = append(out, child)
		}
		e.SetRelated(f.Name, out)
		return nil

	case KindPrimaryKeys:
		items, err := asList(f.Name, raw)
		if err != nil {
			return err
		}
		target := f.Relation.GetModelRef()
		if finder == nil {
			return &ValueCoercionError{Field: f.Name, Value: raw, Err: errors.New("primary keys cannot be resolved here")}
		}
		out := make([]*model.Entity, 0, len(items))
		for _, item := range items {
			pk, err := coercePK(target, item)
			if err != nil {
				return &ValueCoercionError{Field: f.Name, Value: item, Err: err}
			}
			child, err := finder.FindByPK(ctx, target, pk)
			if err != nil {
				return err
			}
			if child == nil {
				return &ValueCoercionError{Field: f.Name, Value: item, Err: fmt.Errorf("%s not found", target.Name)}
			}
			out = append(out, child)
		}
		e.SetRelated(f.Name, out)
		return nil
	}
	return fmt.Errorf("field '%s' of kind %s cannot be loaded", f.Name, f.Kind)
}

// loadNested loads obj into current when given, checking that a payload key
// matches it. Otherwise a keyed payload is resolved through finder.
func (s *Serializer) loadNested(ctx context.Context, finder Finder, fieldName string, obj map[string]any, current *model.Entity) (*model.Entity, error) {
	pkName := s.model.PrimaryKey()
	rawPK, keyed := obj[pkName]
	keyed = keyed && rawPK != nil

	if current != nil {
		if keyed && current.PrimaryKey() != nil {
			pk, err := coercePK(s.model, rawPK)
			if err != nil {
				return nil, &ValueCoercionError{Field: fieldName, Value: rawPK, Err: err}
			}
			if model.PKString(pk) != model.PKString(current.PrimaryKey()) {
				return nil, &PrimaryKeyMismatchError{Model: s.model.Name, Field: fieldName, Want: current.PrimaryKey(), Got: rawPK}
			}
		}
		return s.Load(ctx, finder, obj, current)
	}

	if keyed && finder != nil {
		pk, err := coercePK(s.model, rawPK)
		if err != nil {
			return nil, &ValueCoercionError{Field: fieldName, Value: rawPK, Err: err}
		}
		found, err := finder.FindByPK(ctx, s.model, pk)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return s.Load(ctx, finder, obj, found)
		}
	}
	return s.Load(ctx, finder, obj, nil)
}

func (s *Serializer) matchByPK(obj map[string]any, current []*model.Entity) (*model.Entity, error) {
	rawPK, ok := obj[s.model.PrimaryKey()]
	if !ok || rawPK == nil || len(current) == 0 {
		return nil, nil
	}
	pk, err := coercePK(s.model, rawPK)
	if err != nil {
		return nil, err
	}
	for _, c := range current {
		if model.PKString(c.PrimaryKey()) == model.PKString(pk) {
			return c, nil
		}
	}
	return nil, nil
}

func coercePK(m *model.Model, raw any) (any, error) {
	c := pkCoercer(m)
	if c == nil {
		return raw, nil
	}
	return c.Load(raw)
}

func asList(field string, raw any) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ValueCoercionError{Field: field, Value: raw, Err: errors.New("expected a list")}
	}
	return items, nil
}
