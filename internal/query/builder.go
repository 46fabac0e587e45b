package query

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"CrudAPI/internal/model"
	"CrudAPI/internal/serializer"
)

// MainAlias is the alias of the queried table in every base query.
const MainAlias = "main"

// Modifier adjusts the base query before filters are applied.
type Modifier func(sb sq.SelectBuilder, m *model.Model) sq.SelectBuilder

// Query is a built select with its paging request.
type Query struct {
	filtered sq.SelectBuilder // joins and WHERE, no ORDER BY
	ordered  sq.SelectBuilder
	limit    *uint64
	page     *Page
}

// Build applies modifiers, filter, ordering and limit of p to base, a select
// over m aliased as "main". s supplies value coercers for filter operands and
// may be nil, in which case coercers are detected with the default rules.
func Build(base sq.SelectBuilder, m *model.Model, s *serializer.Serializer, p Params, mods ...Modifier) (*Query, error) {
	for _, mod := range mods {
		if mod != nil {
			base = mod(base, m)
		}
	}

	b := &builder{model: m, ser: s, sb: base, joined: map[string]bool{}}

	if len(p.Filter) > 0 {
		expr, err := ParseFilter(p.Filter)
		if err != nil {
			return nil, err
		}
		cond, err := b.build(expr)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			b.sb = b.sb.Where(cond)
		}
	}

	// count over the filter alone; joins added for ordering stay out of it
	filtered := b.sb
	orderExprs := make([]string, 0, len(p.OrderBy))
	for _, o := range p.OrderBy {
		t, err := b.resolve(o.Field)
		if err != nil {
			return nil, err
		}
		expr := t.expr
		if t.col != nil && t.col.IsString() {
			expr = "LOWER(" + expr + ")"
		}
		if o.Desc {
			expr += " DESC"
		}
		orderExprs = append(orderExprs, expr)
	}

	q := &Query{filtered: filtered, limit: p.Limit, page: p.Page}
	q.ordered = b.sb
	if len(orderExprs) > 0 {
		q.ordered = q.ordered.OrderBy(orderExprs...)
	}
	return q, nil
}

// Paged reports whether a page was requested.
func (q *Query) Paged() bool { return q.page != nil }

// Page returns the requested page, nil when none.
func (q *Query) Page() *Page { return q.page }

// List returns the ordered select with the limit applied.
func (q *Query) List() sq.SelectBuilder {
	if q.limit != nil {
		return q.ordered.Limit(*q.limit)
	}
	return q.ordered
}

// CountQuery counts the rows List would return.
func (q *Query) CountQuery() sq.SelectBuilder {
	inner := q.filtered
	if q.limit != nil {
		inner = inner.Limit(*q.limit)
	}
	return sq.Select("COUNT(*)").FromSelect(inner, "counted")
}

// PageQuery returns the rows of the requested page. A page beyond the limit
// selects nothing.
func (q *Query) PageQuery() sq.SelectBuilder {
	if q.page == nil {
		return q.List()
	}
	offset := q.page.Offset()
	size := q.page.PerPage
	if q.limit != nil {
		switch {
		case *q.limit <= offset:
			size = 0
		case *q.limit-offset < size:
			size = *q.limit - offset
		}
	}
	sb := q.ordered.Limit(size)
	if offset > 0 {
		sb = sb.Offset(offset)
	}
	return sb
}

// Envelope is the paged response body.
type Envelope struct {
	Page    uint64 `json:"page"`
	PerPage uint64 `json:"per_page"`
	Count   int64  `json:"count"`
	Results any    `json:"results"`
}

// NewEnvelope wraps page results with the total count.
func (q *Query) NewEnvelope(count int64, results any) Envelope {
	return Envelope{Page: q.page.Number, PerPage: q.page.PerPage, Count: count, Results: results}
}

type builder struct {
	model  *model.Model
	ser    *serializer.Serializer
	sb     sq.SelectBuilder
	joined map[string]bool
}

func (b *builder) build(e Expr) (sq.Sqlizer, error) {
	switch e := e.(type) {
	case Leaf:
		return b.leaf(e)
	case Group:
		parts := make([]sq.Sqlizer, 0, len(e.Items))
		for _, item := range e.Items {
			cond, err := b.build(item)
			if err != nil {
				return nil, err
			}
			if cond != nil {
				parts = append(parts, cond)
			}
		}
		switch {
		case len(parts) == 0:
			return nil, nil
		case len(parts) == 1:
			return parts[0], nil
		case e.Or:
			return sq.Or(parts), nil
		default:
			return sq.And(parts), nil
		}
	}
	return nil, fmt.Errorf("unsupported filter expression %T", e)
}

func (b *builder) leaf(l Leaf) (sq.Sqlizer, error) {
	t, err := b.resolve(l.Field)
	if err != nil {
		return nil, err
	}
	operand := l.Operand
	if t.relation != nil {
		if operand, err = reduceToKey(l.Field, t.relation, operand); err != nil {
			return nil, err
		}
	}
	if !l.Op.textual() && l.Op != OpIs && l.Op != OpIsNot {
		if operand, err = coerce(l.Field, t.coercer, operand); err != nil {
			return nil, err
		}
	}
	cond, err := conditions[l.Op](t.expr, operand)
	if err != nil {
		return nil, &InvalidFilterError{Field: l.Field, Reason: fmt.Sprintf("%s: %v", l.Op, err)}
	}
	return cond, nil
}

// target is a resolved field reference.
type target struct {
	expr     string
	col      *model.Column
	coercer  serializer.Coercer
	relation *model.Relation // filtering a to-one relation by key
}

func (b *builder) resolve(name string) (target, error) {
	m := b.model
	if col, ok := m.Column(name); ok {
		expr := MainAlias + "." + col.Name
		if col.Computed() {
			expr = "(" + col.Expr + ")"
		}
		return target{expr: expr, col: col, coercer: b.coercer(name, col)}, nil
	}

	if p := m.GetProxy(name); p != nil {
		rel := p.GetRelationRef()
		remote, _ := p.RemoteColumn()
		alias := b.join(rel)
		return target{expr: alias + "." + remote.Name, col: remote, coercer: b.coercer(name, remote)}, nil
	}

	if rel := m.GetRelation(name); rel != nil && !rel.ToMany() {
		remote := rel.GetModelRef()
		pkCol, _ := remote.Column(remote.PrimaryKey())
		t := targetForKey(rel, pkCol)
		if rel.Type == model.BelongsTo {
			fkCol, _ := m.Column(rel.FK)
			t.expr = MainAlias + "." + rel.FK
			t.col = fkCol
		} else {
			t.expr = b.join(rel) + "." + pkCol.Name
		}
		return t, nil
	}

	return target{}, &serializer.UnknownFieldError{Model: m.Name, Field: name}
}

func targetForKey(rel *model.Relation, pkCol *model.Column) target {
	return target{col: pkCol, coercer: serializer.DefaultRules().Detect(pkCol), relation: rel}
}

func (b *builder) coercer(field string, col *model.Column) serializer.Coercer {
	if b.ser != nil {
		if f, ok := b.ser.Field(field); ok && f.Kind == serializer.KindValue {
			return f.Coercer
		}
	}
	return serializer.DefaultRules().Detect(col)
}

// join adds a LEFT JOIN for a to-one relation once and returns its alias.
func (b *builder) join(rel *model.Relation) string {
	alias := JoinAlias(rel)
	if b.joined[rel.Name] {
		return alias
	}
	b.joined[rel.Name] = true
	remote := rel.GetModelRef()
	var on string
	if rel.Type == model.BelongsTo {
		on = fmt.Sprintf("%s.%s = %s.%s", alias, rel.PK, MainAlias, rel.FK)
	} else {
		on = fmt.Sprintf("%s.%s = %s.%s", alias, rel.FK, MainAlias, rel.PK)
	}
	b.sb = b.sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", remote.Table, alias, on))
	return alias
}

// JoinAlias is the table alias used when joining rel.
func JoinAlias(rel *model.Relation) string {
	return "j_" + rel.Name
}

// reduceToKey turns {"id": 3, ...} into 3 for relation filters.
func reduceToKey(field string, rel *model.Relation, operand any) (any, error) {
	pk := rel.GetModelRef().PrimaryKey()
	reduce := func(v any) (any, error) {
		obj, ok := v.(map[string]any)
		if !ok {
			return v, nil
		}
		key, ok := obj[pk]
		if !ok {
			return nil, &InvalidFilterError{Field: field, Reason: fmt.Sprintf("related object without '%s'", pk)}
		}
		return key, nil
	}
	if items, ok := operand.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			v, err := reduce(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return reduce(operand)
}

func coerce(field string, c serializer.Coercer, operand any) (any, error) {
	if c == nil || operand == nil {
		return operand, nil
	}
	if items, ok := operand.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerce(field, c, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	v, err := c.Load(operand)
	if err != nil {
		return nil, &serializer.ValueCoercionError{Field: field, Value: operand, Err: err}
	}
	return v, nil
}

// IsClientError reports whether err was caused by the request parameters.
func IsClientError(err error) bool {
	var (
		op    *UnknownOperatorError
		flt   *InvalidFilterError
		param *InvalidParamError
		field *serializer.UnknownFieldError
		value *serializer.ValueCoercionError
	)
	return errors.As(err, &op) || errors.As(err, &flt) || errors.As(err, &param) ||
		errors.As(err, &field) || errors.As(err, &value)
}
