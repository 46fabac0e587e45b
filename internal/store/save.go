package store

import (
	"context"
	"fmt"
	"sort"

	"CrudAPI/internal/model"
)

// Save writes e and the relations assigned to it: belongs_to targets first,
// then e itself, then has_one/has_many children with their foreign key set to e.
// Members removed from a relation get their foreign key cleared.
func (s *Store) Save(ctx context.Context, e *model.Entity) error {
	m := e.Model

	for _, name := range relationNames(m) {
		rel := m.Relations[name]
		if rel.Type != model.BelongsTo || !e.IsDirty(name) {
			continue
		}
		target := e.RelatedOne(name)
		if target == nil {
			continue
		}
		if err := s.Save(ctx, target); err != nil {
			return err
		}
		// an explicitly assigned foreign key wins over the related object
		if e.IsDirty(rel.FK) {
			continue
		}
		key, _ := target.Get(rel.PK)
		if cur, _ := e.Get(rel.FK); cur == nil || model.PKString(cur) != model.PKString(key) {
			e.Set(rel.FK, key)
		}
	}

	// writing the row clears the dirty state, remember what to cascade
	type pending struct {
		rel      *model.Relation
		detached []*model.Entity
	}
	var children []pending
	for _, name := range relationNames(m) {
		rel := m.Relations[name]
		if rel.Type != model.BelongsTo && e.IsDirty(name) {
			children = append(children, pending{rel: rel, detached: e.Detached(name)})
		}
	}

	if err := s.writeRow(ctx, e); err != nil {
		return err
	}

	for _, p := range children {
		rel, name := p.rel, p.rel.Name
		for _, old := range p.detached {
			sqlStr, args, err := detachQuery(rel, old)
			if err != nil {
				return err
			}
			if _, err := s.exec(ctx, sqlStr, args); err != nil {
				return fmt.Errorf("detach %s.%s: %w", m.Name, name, err)
			}
		}
		parentKey, _ := e.Get(rel.PK)
		var members []*model.Entity
		if rel.ToMany() {
			members = e.RelatedMany(name)
		} else if c := e.RelatedOne(name); c != nil {
			members = []*model.Entity{c}
		}
		for _, c := range members {
			if cur, _ := c.Get(rel.FK); cur == nil || model.PKString(cur) != model.PKString(parentKey) {
				c.Set(rel.FK, parentKey)
			}
			if err := s.Save(ctx, c); err != nil {
				return err
			}
		}
	}

	e.MarkPersisted(nil)
	return nil
}

func (s *Store) writeRow(ctx context.Context, e *model.Entity) error {
	m := e.Model
	if !e.Persisted() {
		sqlStr, args, err := insertQuery(e)
		if err != nil {
			return err
		}
		logSQL(ctx, sqlStr, args)
		rows, err := s.q.Query(ctx, sqlStr, args...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", m.Name, err)
		}
		defer rows.Close()
		inserted, err := scanEntities(rows, m)
		if err != nil {
			return fmt.Errorf("insert %s: %w", m.Name, err)
		}
		if len(inserted) != 1 {
			return fmt.Errorf("insert %s: returned %d rows", m.Name, len(inserted))
		}
		e.MarkPersisted(inserted[0].Values())
		return nil
	}

	sqlStr, args, ok, err := updateQuery(e)
	if err != nil || !ok {
		return err
	}
	if _, err := s.exec(ctx, sqlStr, args); err != nil {
		return fmt.Errorf("update %s: %w", m.Name, err)
	}
	return nil
}

func relationNames(m *model.Model) []string {
	names := make([]string, 0, len(m.Relations))
	for name := range m.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
