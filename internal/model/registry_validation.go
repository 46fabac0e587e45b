package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidateModels checks linked models for declarations that would only fail at
// request time: missing columns, bad field overrides, nested cycles.
func ValidateModels(models map[string]*Model) error {
	var errs *multierror.Error
	collections := map[string]string{}

	for _, modelName := range sortedNames(models) {
		m := models[modelName]
		if strings.TrimSpace(m.Table) == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s: table is required", modelName))
		}
		if len(m.GetPrimaryKeys()) != 1 {
			errs = multierror.Append(errs, fmt.Errorf("%s: exactly one primary key is supported, got %v", modelName, m.PrimaryKeys))
		}
		if other, dup := collections[m.Collection]; dup {
			errs = multierror.Append(errs, fmt.Errorf("%s: collection '%s' already used by %s", modelName, m.Collection, other))
		}
		collections[m.Collection] = modelName

		for _, c := range m.Columns {
			if c.Type == "" {
				errs = multierror.Append(errs, fmt.Errorf("%s.%s: column type is required", modelName, c.Name))
			}
			if c.Type == TypeEnum && len(c.Values) == 0 {
				errs = multierror.Append(errs, fmt.Errorf("%s.%s: enum column needs values", modelName, c.Name))
			}
			if c.Primary && c.Computed() {
				errs = multierror.Append(errs, fmt.Errorf("%s.%s: primary key cannot be computed", modelName, c.Name))
			}
		}

		for _, relName := range sortedKeys(m.Relations) {
			if err := validateRelation(m, m.Relations[relName]); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for _, proxyName := range sortedKeys(m.Proxies) {
			if err := validateProxy(m, m.Proxies[proxyName]); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for _, propName := range sortedKeys(m.Properties) {
			p := m.Properties[propName]
			for _, col := range extractPlaceholders(p.Where) {
				if _, ok := m.Column(col); !ok {
					errs = multierror.Append(errs, fmt.Errorf("property '%s.%s' binds unknown column '{%s}'", modelName, propName, col))
				}
			}
			if m.GetRelation(propName) != nil {
				errs = multierror.Append(errs, fmt.Errorf("property '%s.%s' shadows a relation", modelName, propName))
			}
		}
		for _, f := range m.Fields {
			if err := validateFieldSpec(m, f); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	for _, modelName := range sortedNames(models) {
		if err := dfsNested(models[modelName], []string{modelName}); err != nil {
			return err
		}
	}
	return nil
}

func validateRelation(m *Model, rel *Relation) error {
	target := rel._ModelRef
	if target == nil {
		return fmt.Errorf("relation '%s.%s' is not linked", m.Name, rel.Name)
	}
	switch rel.Type {
	case BelongsTo:
		if _, ok := m.Column(rel.FK); !ok {
			return fmt.Errorf("relation '%s.%s': fk column '%s' not declared in %s", m.Name, rel.Name, rel.FK, m.Name)
		}
		if _, ok := target.Column(rel.PK); !ok {
			return fmt.Errorf("relation '%s.%s': pk column '%s' not declared in %s", m.Name, rel.Name, rel.PK, target.Name)
		}
	default:
		if _, ok := target.Column(rel.FK); !ok {
			return fmt.Errorf("relation '%s.%s': fk column '%s' not declared in %s", m.Name, rel.Name, rel.FK, target.Name)
		}
		if _, ok := m.Column(rel.PK); !ok {
			return fmt.Errorf("relation '%s.%s': pk column '%s' not declared in %s", m.Name, rel.Name, rel.PK, m.Name)
		}
	}
	if _, clash := m.Column(rel.Name); clash {
		return fmt.Errorf("relation '%s.%s' shadows a column", m.Name, rel.Name)
	}
	return nil
}

func validateProxy(m *Model, p *Proxy) error {
	rel := p._RelationRef
	if rel == nil {
		return fmt.Errorf("proxy '%s.%s' is not linked", m.Name, p.Name)
	}
	if rel.ToMany() {
		return fmt.Errorf("proxy '%s.%s' must go through a to-one relation, '%s' is %s", m.Name, p.Name, rel.Name, rel.Type)
	}
	if _, ok := p.RemoteColumn(); !ok {
		return fmt.Errorf("proxy '%s.%s': column '%s' not declared in %s", m.Name, p.Name, p.Attr, rel._ModelRef.Name)
	}
	if _, clash := m.Column(p.Name); clash || m.GetRelation(p.Name) != nil {
		return fmt.Errorf("proxy '%s.%s' shadows a column or relation", m.Name, p.Name)
	}
	return nil
}

func validateFieldSpec(m *Model, f *FieldSpec) error {
	where := fmt.Sprintf("field '%s.%s'", m.Name, f.Name)
	if f.DumpOnly && f.LoadOnly {
		return fmt.Errorf("%s: dump_only and load_only are mutually exclusive", where)
	}
	kinds := 0
	if f.Nested {
		kinds++
	}
	if len(f.Attributes) > 0 {
		kinds++
	}
	if f.PrimaryKeys {
		kinds++
	}
	if kinds > 1 {
		return fmt.Errorf("%s: only one of nested, attributes, primary_keys may be set", where)
	}

	rel := m.GetRelation(f.Name)
	if rel == nil {
		if kinds > 0 {
			return fmt.Errorf("%s: nested, attributes and primary_keys need a relation", where)
		}
		if _, ok := m.Column(f.Name); ok {
			return nil
		}
		if m.GetProxy(f.Name) != nil {
			if !f.DumpOnly {
				return fmt.Errorf("%s: proxies are read-only, declare dump_only", where)
			}
			return nil
		}
		return fmt.Errorf("%s: no column, relation or proxy with this name", where)
	}

	if kinds == 0 {
		return fmt.Errorf("%s: relation fields need one of nested, attributes, primary_keys", where)
	}
	if f.Coercer != "" {
		return fmt.Errorf("%s: coercers apply to columns only", where)
	}
	if len(f.Attributes) > 0 {
		if !f.DumpOnly {
			return fmt.Errorf("%s: attribute projections are read-only, declare dump_only", where)
		}
		for _, attr := range f.Attributes {
			if _, ok := rel._ModelRef.Column(attr); !ok {
				return fmt.Errorf("%s: attribute '%s' not declared in %s", where, attr, rel._ModelRef.Name)
			}
		}
	}
	if f.PrimaryKeys && !rel.ToMany() {
		return fmt.Errorf("%s: primary_keys needs a has_many relation", where)
	}
	return nil
}

// dfsNested walks nested field references; a model may not appear twice on a path,
// otherwise dumping would never terminate.
func dfsNested(m *Model, path []string) error {
	for _, f := range m.Fields {
		if !f.Nested {
			continue
		}
		rel := m.GetRelation(f.Name)
		if rel == nil || rel._ModelRef == nil {
			continue
		}
		next := rel._ModelRef
		for _, seen := range path {
			if seen == next.Name {
				return fmt.Errorf("nested field cycle: %s -> %s", strings.Join(path, " -> "), next.Name)
			}
		}
		if err := dfsNested(next, append(append([]string{}, path...), next.Name)); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](in map[string]V) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
