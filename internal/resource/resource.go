package resource

import (
	"context"

	"CrudAPI/internal/cache"
	"CrudAPI/internal/model"
	"CrudAPI/internal/query"
	"CrudAPI/internal/serializer"
	"CrudAPI/internal/store"
)

// Hooks run around writes of one model. BeforeCommit runs inside the
// transaction after the entity was saved and may abort it by returning an
// error; AfterCommit runs once the transaction is committed.
type Hooks struct {
	BeforeCommit func(ctx context.Context, tx *store.Store, e *model.Entity, created bool) error
	AfterCommit  func(ctx context.Context, e *model.Entity, created bool)
}

// Options tune the handlers.
type Options struct {
	Paging query.ParamConfig
	Counts *cache.CountCache
}

// Handler serves the generated endpoints of every registered model.
type Handler struct {
	reg    *model.Registry
	sers   *serializer.Set
	store  *store.Store
	counts *cache.CountCache
	paging query.ParamConfig
	hooks  map[string]Hooks
	mods   map[string][]query.Modifier
}

func New(reg *model.Registry, sers *serializer.Set, st *store.Store, opts Options) *Handler {
	return &Handler{
		reg:    reg,
		sers:   sers,
		store:  st,
		counts: opts.Counts,
		paging: opts.Paging,
		hooks:  map[string]Hooks{},
		mods:   map[string][]query.Modifier{},
	}
}

// SetHooks registers write hooks for a model. Call before serving.
func (h *Handler) SetHooks(modelName string, hooks Hooks) {
	h.hooks[modelName] = hooks
}

// AddModifier registers a base query modifier for list endpoints of a model.
// Call before serving.
func (h *Handler) AddModifier(modelName string, mod query.Modifier) {
	h.mods[modelName] = append(h.mods[modelName], mod)
}

// Registry returns the models served by h.
func (h *Handler) Registry() *model.Registry { return h.reg }

func (h *Handler) serializer(m *model.Model) *serializer.Serializer {
	s, _ := h.sers.For(m.Name)
	return s
}
