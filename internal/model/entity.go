package model

import (
	"fmt"
	"reflect"
	"time"
)

// Entity is one row of a model together with its loaded relations.
// Column values live in values; related entities (*Entity or []*Entity) in related.
// Entities are not safe for concurrent use; each request owns its own.
type Entity struct {
	Model *Model

	values    map[string]any
	related   map[string]any
	dirty     map[string]struct{}
	detached  map[string][]*Entity
	persisted bool
}

// NewEntity returns an empty, not yet persisted entity of m.
func NewEntity(m *Model) *Entity {
	return &Entity{
		Model:   m,
		values:  map[string]any{},
		related: map[string]any{},
		dirty:   map[string]struct{}{},
	}
}

// Hydrate builds a persisted entity from scanned column values. Nothing is dirty.
func Hydrate(m *Model, values map[string]any) *Entity {
	e := NewEntity(m)
	for k, v := range values {
		e.values[k] = v
	}
	e.persisted = true
	return e
}

// Get returns a column (or proxy/computed) value.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Set assigns a column value and marks it dirty. On a persisted entity a
// value equal to the stored one leaves the column clean.
func (e *Entity) Set(name string, v any) {
	if old, ok := e.values[name]; ok && e.persisted && sameValue(old, v) {
		return
	}
	e.values[name] = v
	e.dirty[name] = struct{}{}
}

// sameValue compares a stored value with an assigned one. Integers compare
// across widths since the driver and the request decoder pick different ones.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ia, ok := asInt(a); ok {
		ib, ok := asInt(b)
		return ok && ia == ib
	}
	return reflect.DeepEqual(a, b)
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// PrimaryKey returns the value of the model's primary key column, nil if unset.
func (e *Entity) PrimaryKey() any {
	return e.values[e.Model.PrimaryKey()]
}

// PKString renders a key for comparison; the driver may return int32 where
// the request decoded int64.
func PKString(pk any) string {
	return fmt.Sprint(pk)
}

// Related returns a loaded relation value: *Entity, []*Entity or nil.
func (e *Entity) Related(name string) (any, bool) {
	v, ok := e.related[name]
	return v, ok
}

// RelatedOne returns a loaded to-one relation.
func (e *Entity) RelatedOne(name string) *Entity {
	v, _ := e.related[name].(*Entity)
	return v
}

// RelatedMany returns a loaded to-many relation.
func (e *Entity) RelatedMany(name string) []*Entity {
	v, _ := e.related[name].([]*Entity)
	return v
}

// SetRelated assigns a relation. Persisted members of the previous value that
// are not part of the new one are remembered as detached, so the store can
// release them.
func (e *Entity) SetRelated(name string, v any) {
	if list, ok := v.([]*Entity); ok {
		if prev := e.RelatedMany(name); len(prev) > 0 {
			keep := make(map[string]struct{}, len(list))
			for _, it := range list {
				if pk := it.PrimaryKey(); pk != nil {
					keep[PKString(pk)] = struct{}{}
				}
			}
			for _, old := range prev {
				if _, ok := keep[PKString(old.PrimaryKey())]; !ok && old.persisted {
					e.detach(name, old)
				}
			}
		}
	}
	if prev := e.RelatedOne(name); prev != nil && prev.persisted {
		next, _ := v.(*Entity)
		if next == nil || PKString(next.PrimaryKey()) != PKString(prev.PrimaryKey()) {
			e.detach(name, prev)
		}
	}
	e.related[name] = v
	e.dirty[name] = struct{}{}
}

func (e *Entity) detach(name string, old *Entity) {
	if e.detached == nil {
		e.detached = map[string][]*Entity{}
	}
	e.detached[name] = append(e.detached[name], old)
}

// AttachLoaded stores a relation fetched from the database without marking it dirty.
func (e *Entity) AttachLoaded(name string, v any) {
	e.related[name] = v
}

// Detached returns members removed from a to-many relation since it was loaded.
func (e *Entity) Detached(name string) []*Entity {
	return e.detached[name]
}

// IsDirty reports whether a column or relation was assigned since hydration.
func (e *Entity) IsDirty(name string) bool {
	_, ok := e.dirty[name]
	return ok
}

// DirtyColumns returns assigned stored columns in declaration order.
func (e *Entity) DirtyColumns() []string {
	out := make([]string, 0, len(e.dirty))
	for _, c := range e.Model.StoredColumns() {
		if _, ok := e.dirty[c.Name]; ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// Persisted reports whether the entity exists in the database.
func (e *Entity) Persisted() bool {
	return e.persisted
}

// MarkPersisted is called by the store after a successful write.
func (e *Entity) MarkPersisted(values map[string]any) {
	for k, v := range values {
		e.values[k] = v
	}
	e.persisted = true
	e.dirty = map[string]struct{}{}
	e.detached = nil
}

// Values returns a copy of the column values.
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
