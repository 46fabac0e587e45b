package store

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"CrudAPI/internal/model"
	"CrudAPI/internal/query"
)

const mainAlias = query.MainAlias

// SelectQuery selects every column of m from "table AS main": stored columns,
// computed expressions and association proxies as correlated subselects.
func SelectQuery(m *model.Model) sq.SelectBuilder {
	cols := make([]string, 0, len(m.Columns)+len(m.Proxies))
	for _, c := range m.Columns {
		if c.Computed() {
			cols = append(cols, fmt.Sprintf("(%s) AS %s", c.Expr, c.Name))
			continue
		}
		cols = append(cols, mainAlias+"."+c.Name)
	}
	for _, name := range proxyNames(m) {
		cols = append(cols, proxySubselect(m.Proxies[name]))
	}
	return sq.Select(cols...).From(m.Table + " AS " + mainAlias)
}

func proxySubselect(p *model.Proxy) string {
	rel := p.GetRelationRef()
	remote := rel.GetModelRef()
	alias := "p_" + p.Name
	var where string
	if rel.Type == model.BelongsTo {
		where = fmt.Sprintf("%s.%s = %s.%s", alias, rel.PK, mainAlias, rel.FK)
	} else {
		where = fmt.Sprintf("%s.%s = %s.%s", alias, rel.FK, mainAlias, rel.PK)
	}
	return fmt.Sprintf("(SELECT %s.%s FROM %s AS %s WHERE %s LIMIT 1) AS %s",
		alias, p.Attr, remote.Table, alias, where, p.Name)
}

func proxyNames(m *model.Model) []string {
	names := make([]string, 0, len(m.Proxies))
	for name := range m.Proxies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByKey restricts a select of m to one primary key.
func ByKey(sb sq.SelectBuilder, m *model.Model, pk any) sq.SelectBuilder {
	return sb.Where(sq.Eq{mainAlias + "." + m.PrimaryKey(): pk})
}

// relationQuery selects the rows of rel's target whose join column is in keys.
func relationQuery(rel *model.Relation, keys []any) sq.SelectBuilder {
	target := rel.GetModelRef()
	col := rel.FK
	if rel.Type == model.BelongsTo {
		col = rel.PK
	}
	sb := SelectQuery(target).Where(sq.Eq{mainAlias + "." + col: keys})

	order := rel.Order
	if order == "" {
		order = target.PrimaryKey()
	}
	for _, o := range query.ParseOrderBy(order) {
		term := mainAlias + "." + o.Field
		if o.Desc {
			term += " DESC"
		}
		sb = sb.OrderBy(term)
	}
	return sb
}

func insertQuery(e *model.Entity) (string, []any, error) {
	m := e.Model
	returning := " RETURNING " + strings.Join(storedNames(m), ", ")
	dirty := e.DirtyColumns()
	if len(dirty) == 0 {
		return "INSERT INTO " + m.Table + " DEFAULT VALUES" + returning, nil, nil
	}
	values := make([]any, len(dirty))
	for i, c := range dirty {
		values[i], _ = e.Get(c)
	}
	return sq.Insert(m.Table).
		Columns(dirty...).
		Values(values...).
		Suffix(strings.TrimSpace(returning)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// updateQuery returns ok=false when nothing but the key changed.
func updateQuery(e *model.Entity) (sql string, args []any, ok bool, err error) {
	m := e.Model
	set := map[string]any{}
	for _, c := range e.DirtyColumns() {
		if c == m.PrimaryKey() {
			continue
		}
		set[c], _ = e.Get(c)
	}
	if len(set) == 0 {
		return "", nil, false, nil
	}
	sql, args, err = sq.Update(m.Table).
		SetMap(set).
		Where(sq.Eq{m.PrimaryKey(): e.PrimaryKey()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	return sql, args, true, err
}

func detachQuery(rel *model.Relation, child *model.Entity) (string, []any, error) {
	target := rel.GetModelRef()
	return sq.Update(target.Table).
		Set(rel.FK, nil).
		Where(sq.Eq{target.PrimaryKey(): child.PrimaryKey()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func deleteQuery(m *model.Model, pk any) (string, []any, error) {
	return sq.Delete(m.Table).
		Where(sq.Eq{m.PrimaryKey(): pk}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func storedNames(m *model.Model) []string {
	cols := m.StoredColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
