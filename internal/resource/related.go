package resource

import (
	"context"
	"net/http"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-chi/chi/v5"

	"CrudAPI/internal/model"
	"CrudAPI/internal/query"
	"CrudAPI/internal/store"
)

// Related serves GET /{id}/{sub}: a to-many relation or a property as a
// filterable collection, or a to-one relation as a single object.
func (h *Handler) Related(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.related(r, m)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

func (h *Handler) related(r *http.Request, m *model.Model) (any, error) {
	ctx := r.Context()
	parent, err := h.parent(ctx, h.store, m, chi.URLParam(r, ParamID))
	if err != nil {
		return nil, err
	}
	sub := chi.URLParam(r, ParamSub)

	if rel := m.GetRelation(sub); rel != nil {
		child := rel.GetModelRef()
		if rel.ToMany() {
			return h.list(r, child, childrenOf(parent, rel), h.mods[child.Name]...)
		}
		if err := h.store.LoadRelations(ctx, []*model.Entity{parent}, []string{rel.Name}); err != nil {
			return nil, err
		}
		one := parent.RelatedOne(rel.Name)
		if one == nil {
			return nil, errNotFound
		}
		return h.dumpOne(ctx, child, one.PrimaryKey())
	}

	if prop := m.GetProperty(sub); prop != nil {
		where, args, err := model.BindPlaceholders(prop.Where, parent)
		if err != nil {
			return nil, err
		}
		target := prop.GetModelRef()
		base := store.SelectQuery(target).Where(sq.Expr(where, args...))
		return h.list(r, target, base, h.mods[target.Name]...)
	}
	return nil, errNotFound
}

// CreateRelated serves POST /{id}/{sub} for to-many relations. A body carrying
// the primary key of an existing row attaches that row to the parent (200);
// otherwise a new child is created (201).
func (h *Handler) CreateRelated(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := chi.URLParam(r, ParamSub)
		rel := m.GetRelation(sub)
		if rel == nil {
			if m.GetProperty(sub) != nil {
				writeError(w, r, errMethodNotAllowed)
				return
			}
			writeError(w, r, errNotFound)
			return
		}
		if !rel.ToMany() {
			writeError(w, r, errMethodNotAllowed)
			return
		}
		data, err := decodeBody(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		child := rel.GetModelRef()
		rawKey, attach := data[child.PrimaryKey()]
		attach = attach && rawKey != nil
		id := chi.URLParam(r, ParamID)

		e, err := h.write(r.Context(), child, func(ctx context.Context, tx *store.Store) (*model.Entity, error) {
			parent, err := h.parent(ctx, tx, m, id)
			if err != nil {
				return nil, err
			}
			var existing *model.Entity
			if attach {
				key, err := h.pathKey(child, rawKey)
				if err != nil {
					return nil, err
				}
				if existing, err = tx.Get(ctx, child, key); err != nil {
					return nil, err
				}
				if existing == nil {
					return nil, errNotFound
				}
			}
			e, err := h.serializer(child).Load(ctx, tx, data, existing)
			if err != nil {
				return nil, err
			}
			parentKey, _ := parent.Get(rel.PK)
			e.Set(rel.FK, parentKey)
			return e, nil
		}, !attach)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusCreated
		if attach {
			status = http.StatusOK
		}
		h.respondEntity(w, r, status, child, e.PrimaryKey())
	}
}

// RelatedItem serves GET/PUT/DELETE /{id}/{sub}/{child_id}. The child must
// belong to the parent.
func (h *Handler) RelatedItem(m *model.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rel := m.GetRelation(chi.URLParam(r, ParamSub))
		if rel == nil || !rel.ToMany() {
			writeError(w, r, errNotFound)
			return
		}
		child := rel.GetModelRef()
		parent, err := h.parent(ctx, h.store, m, chi.URLParam(r, ParamID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		childKey, err := h.pathKey(child, chi.URLParam(r, ParamChildID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		base := store.ByKey(childrenOf(parent, rel), child, childKey)

		switch r.Method {
		case http.MethodGet:
			owned, err := h.store.First(ctx, child, base)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if owned == nil {
				writeError(w, r, errNotFound)
				return
			}
			h.respondEntity(w, r, http.StatusOK, child, owned.PrimaryKey())

		case http.MethodPut:
			data, err := decodeBody(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			e, err := h.write(ctx, child, h.mergeInto(child, base, data), false)
			if err != nil {
				writeError(w, r, err)
				return
			}
			h.respondEntity(w, r, http.StatusOK, child, e.PrimaryKey())

		case http.MethodDelete:
			owned, err := h.store.First(ctx, child, base)
			if err == nil && owned == nil {
				err = errNotFound
			}
			if err == nil {
				_, err = h.store.Delete(ctx, child, owned.PrimaryKey())
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
			h.counts.Invalidate(ctx)
			w.WriteHeader(http.StatusNoContent)

		default:
			writeError(w, r, errMethodNotAllowed)
		}
	}
}

// parent loads the entity addressed by id, errNotFound when absent.
func (h *Handler) parent(ctx context.Context, st *store.Store, m *model.Model, id string) (*model.Entity, error) {
	pk, err := h.pathKey(m, id)
	if err != nil {
		return nil, err
	}
	e, err := st.Get(ctx, m, pk)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errNotFound
	}
	return e, nil
}

// childrenOf selects the rows of a to-many relation of parent.
func childrenOf(parent *model.Entity, rel *model.Relation) sq.SelectBuilder {
	key, _ := parent.Get(rel.PK)
	return store.SelectQuery(rel.GetModelRef()).Where(sq.Eq{query.MainAlias + "." + rel.FK: key})
}
