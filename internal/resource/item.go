package resource

import (
	"context"
	"net/http"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-chi/chi/v5"

	"CrudAPI/internal/model"
	"CrudAPI/internal/serializer"
	"CrudAPI/internal/store"
)

// URL parameter names shared with the router.
const (
	ParamID      = "id"
	ParamSub     = "sub"
	ParamChildID = "child_id"
)

// Get serves GET on an item.
func (h *Handler) Get(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pk, err := h.pathKey(m, chi.URLParam(r, ParamID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.respondEntity(w, r, http.StatusOK, m, pk)
	}
}

// Update serves PUT on an item. The current dump is merged with the body, so
// omitted fields keep their values.
func (h *Handler) Update(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pk, err := h.pathKey(m, chi.URLParam(r, ParamID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		data, err := decodeBody(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		base := store.ByKey(store.SelectQuery(m), m, pk)
		e, err := h.write(r.Context(), m, h.mergeInto(m, base, data), false)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.respondEntity(w, r, http.StatusOK, m, e.PrimaryKey())
	}
}

// mergeInto returns a loader that reads the first row of base, overlays data
// on its dump and loads the result back into it.
func (h *Handler) mergeInto(m *model.Model, base sq.SelectBuilder, data map[string]any) func(context.Context, *store.Store) (*model.Entity, error) {
	return func(ctx context.Context, tx *store.Store) (*model.Entity, error) {
		e, err := tx.First(ctx, m, base)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, errNotFound
		}
		ser := h.serializer(m)
		if err := tx.LoadFor(ctx, ser, []*model.Entity{e}); err != nil {
			return nil, err
		}
		current, err := ser.Dump(e)
		if err != nil {
			return nil, err
		}
		return ser.Load(ctx, tx, merge(ser, current, data), e)
	}
}

// merge overlays data on current, dropping dump-only keys of current.
// A belongs_to relation and its foreign key describe the same link, so when
// data carries one of them the other is not taken from current.
func merge(ser *serializer.Serializer, current, data map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(data))
	for k, v := range current {
		if f, ok := ser.Field(k); ok && f.DumpOnly {
			continue
		}
		out[k] = v
	}
	for _, f := range ser.Fields() {
		if f.Relation == nil || f.Relation.Type != model.BelongsTo {
			continue
		}
		if _, ok := data[f.Relation.FK]; ok {
			delete(out, f.Name)
		}
		if _, ok := data[f.Name]; ok {
			delete(out, f.Relation.FK)
		}
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Delete serves DELETE on an item.
func (h *Handler) Delete(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pk, err := h.pathKey(m, chi.URLParam(r, ParamID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		found, err := h.store.Delete(r.Context(), m, pk)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !found {
			writeError(w, r, errNotFound)
			return
		}
		h.counts.Invalidate(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

// pathKey converts a URL segment (or a key from a body) to a primary key
// value. Unparsable keys are reported as not found.
func (h *Handler) pathKey(m *model.Model, raw any) (any, error) {
	var c serializer.Coercer
	if f, ok := h.serializer(m).Field(m.PrimaryKey()); ok {
		c = f.Coercer
	} else if col, ok := m.Column(m.PrimaryKey()); ok {
		c = serializer.DefaultRules().Detect(col)
	}
	if c == nil {
		return raw, nil
	}
	pk, err := c.Load(raw)
	if err != nil {
		return nil, errNotFound
	}
	return pk, nil
}
