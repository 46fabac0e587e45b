package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"CrudAPI/internal/model"
	"CrudAPI/internal/serializer"
)

// LoadRelations fetches the named relations of items with one query per
// relation and attaches the results. Items must all belong to the same model.
func (s *Store) LoadRelations(ctx context.Context, items []*model.Entity, names []string) error {
	if len(items) == 0 || len(names) == 0 {
		return nil
	}
	m := items[0].Model

	type batch struct {
		rel      *model.Relation
		children []*model.Entity
	}
	batches := make([]*batch, 0, len(names))
	for _, name := range names {
		rel := m.GetRelation(name)
		if rel == nil {
			return fmt.Errorf("%s has no relation '%s'", m.Name, name)
		}
		batches = append(batches, &batch{rel: rel})
	}

	fetch := func(ctx context.Context, b *batch) error {
		keys := parentKeys(items, b.rel)
		if len(keys) == 0 {
			return nil
		}
		children, err := s.List(ctx, b.rel.GetModelRef(), relationQuery(b.rel, keys))
		if err != nil {
			return fmt.Errorf("relation %s.%s: %w", m.Name, b.rel.Name, err)
		}
		b.children = children
		return nil
	}

	// a pool serves concurrent queries, a transaction does not
	if s.pool != nil && len(batches) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, b := range batches {
			g.Go(func() error { return fetch(gctx, b) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, b := range batches {
			if err := fetch(ctx, b); err != nil {
				return err
			}
		}
	}

	for _, b := range batches {
		attach(items, b.rel, b.children)
	}
	return nil
}

// parentKeys collects the distinct values of the column items are joined on.
func parentKeys(items []*model.Entity, rel *model.Relation) []any {
	col := rel.PK
	if rel.Type == model.BelongsTo {
		col = rel.FK
	}
	seen := map[string]struct{}{}
	keys := make([]any, 0, len(items))
	for _, it := range items {
		v, _ := it.Get(col)
		if v == nil {
			continue
		}
		k := model.PKString(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

func attach(items []*model.Entity, rel *model.Relation, children []*model.Entity) {
	childCol, parentCol := rel.FK, rel.PK
	if rel.Type == model.BelongsTo {
		childCol, parentCol = rel.PK, rel.FK
	}
	grouped := map[string][]*model.Entity{}
	for _, c := range children {
		v, _ := c.Get(childCol)
		k := model.PKString(v)
		grouped[k] = append(grouped[k], c)
	}
	for _, it := range items {
		v, _ := it.Get(parentCol)
		var group []*model.Entity
		if v != nil {
			group = grouped[model.PKString(v)]
		}
		if rel.ToMany() {
			if group == nil {
				group = []*model.Entity{}
			}
			it.AttachLoaded(rel.Name, group)
			continue
		}
		var one *model.Entity
		if len(group) > 0 {
			one = group[0]
		}
		it.AttachLoaded(rel.Name, one)
	}
}

// LoadFor loads every relation ser reads when dumping items, following nested
// serializers down the tree.
func (s *Store) LoadFor(ctx context.Context, ser *serializer.Serializer, items []*model.Entity) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.LoadRelations(ctx, items, ser.Relations()); err != nil {
		return err
	}
	for _, f := range ser.Fields() {
		if f.LoadOnly || f.Nested == nil {
			continue
		}
		var children []*model.Entity
		for _, it := range items {
			if f.Kind == serializer.KindNestedList {
				children = append(children, it.RelatedMany(f.Name)...)
			} else if c := it.RelatedOne(f.Name); c != nil {
				children = append(children, c)
			}
		}
		if err := s.LoadFor(ctx, f.Nested, children); err != nil {
			return err
		}
	}
	return nil
}
