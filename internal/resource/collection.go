package resource

import (
	"context"
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"CrudAPI/internal/model"
	"CrudAPI/internal/query"
	"CrudAPI/internal/serializer"
	"CrudAPI/internal/store"
)

// List serves GET on a collection: a flat list, or the paged envelope when
// page is given.
func (h *Handler) List(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.list(r, m, store.SelectQuery(m), h.mods[m.Name]...)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

// list runs the query builder over base and dumps the result.
func (h *Handler) list(r *http.Request, m *model.Model, base sq.SelectBuilder, mods ...query.Modifier) (any, error) {
	ctx := r.Context()
	params, err := query.ParseParams(r.URL.Query(), h.paging)
	if err != nil {
		return nil, err
	}
	ser := h.serializer(m)
	q, err := query.Build(base, m, ser, params, mods...)
	if err != nil {
		return nil, err
	}

	if !q.Paged() {
		return h.fetchAndDump(ctx, ser, q.List())
	}

	countQ := q.CountQuery()
	sqlStr, args, err := countQ.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	count, err := h.counts.Count(ctx, sqlStr, args, func(ctx context.Context) (int64, error) {
		return h.store.Count(ctx, countQ)
	})
	if err != nil {
		return nil, err
	}
	results, err := h.fetchAndDump(ctx, ser, q.PageQuery())
	if err != nil {
		return nil, err
	}
	return q.NewEnvelope(count, results), nil
}

func (h *Handler) fetchAndDump(ctx context.Context, ser *serializer.Serializer, sb sq.SelectBuilder) ([]map[string]any, error) {
	items, err := h.store.List(ctx, ser.Model(), sb)
	if err != nil {
		return nil, err
	}
	if err := h.store.LoadFor(ctx, ser, items); err != nil {
		return nil, err
	}
	return ser.DumpMany(items)
}

// Create serves POST on a collection.
func (h *Handler) Create(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := decodeBody(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		e, err := h.write(r.Context(), m, func(ctx context.Context, tx *store.Store) (*model.Entity, error) {
			return h.serializer(m).Load(ctx, tx, data, nil)
		}, true)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.respondEntity(w, r, http.StatusCreated, m, e.PrimaryKey())
	}
}

// write loads an entity with load inside a transaction, saves it and runs the
// hooks of m.
func (h *Handler) write(ctx context.Context, m *model.Model, load func(context.Context, *store.Store) (*model.Entity, error), created bool) (*model.Entity, error) {
	hooks := h.hooks[m.Name]
	var e *model.Entity
	err := h.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		if e, err = load(ctx, tx); err != nil {
			return err
		}
		if err := tx.Save(ctx, e); err != nil {
			return err
		}
		if hooks.BeforeCommit != nil {
			return hooks.BeforeCommit(ctx, tx, e, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.counts.Invalidate(ctx)
	if hooks.AfterCommit != nil {
		hooks.AfterCommit(ctx, e, created)
	}
	return e, nil
}

// respondEntity re-reads the entity so computed columns and proxies are current.
func (h *Handler) respondEntity(w http.ResponseWriter, r *http.Request, status int, m *model.Model, pk any) {
	out, err := h.dumpOne(r.Context(), m, pk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, status, out)
}

func (h *Handler) dumpOne(ctx context.Context, m *model.Model, pk any) (map[string]any, error) {
	e, err := h.store.Get(ctx, m, pk)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errNotFound
	}
	ser := h.serializer(m)
	if err := h.store.LoadFor(ctx, ser, []*model.Entity{e}); err != nil {
		return nil, err
	}
	return ser.Dump(e)
}
