package model

import (
	"fmt"
	"sort"
	"unicode"

	"github.com/hashicorp/go-multierror"
)

// LinkModelRelations resolves references between models, fills FK/PK defaults
// and indexes columns. All broken declarations are reported together.
func LinkModelRelations(models map[string]*Model) error {
	var errs *multierror.Error

	for _, modelName := range sortedNames(models) {
		model := models[modelName]
		model.indexColumns()

		for _, pk := range model.GetPrimaryKeys() {
			col, ok := model.columnIndex[pk]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("%s: primary key column '%s' is not declared", modelName, pk))
				continue
			}
			col.Primary = true
		}

		for relName, rel := range model.Relations {
			targetModel, ok := models[rel.Model]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("invalid relation: model '%s' not found in '%s.%s'", rel.Model, modelName, relName))
				continue
			}
			rel._ModelRef = targetModel

			switch rel.Type {
			case BelongsTo:
				// FK lives in the current model and points at the related one
				if rel.FK == "" {
					rel.FK = relName + "_id"
				}
				if rel.PK == "" {
					rel.PK = targetModel.PrimaryKey()
				}
			case HasOne, HasMany:
				// FK lives in the related model and points at the current one
				if rel.FK == "" {
					rel.FK = toSnakeCase(modelName) + "_id"
				}
				if rel.PK == "" {
					rel.PK = model.PrimaryKey()
				}
			default:
				errs = multierror.Append(errs, fmt.Errorf("relation '%s.%s' must have valid Type (has_many, has_one, belongs_to), got '%s'", modelName, relName, rel.Type))
			}
		}
	}

	// proxies and properties need every relation linked first
	for _, modelName := range sortedNames(models) {
		model := models[modelName]
		for proxyName, p := range model.Proxies {
			rel := model.GetRelation(p.Relation)
			if rel == nil || rel._ModelRef == nil {
				errs = multierror.Append(errs, fmt.Errorf("proxy '%s.%s' refers to unknown relation '%s'", modelName, proxyName, p.Relation))
				continue
			}
			p._RelationRef = rel
		}
		for propName, p := range model.Properties {
			target, ok := models[p.Model]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("property '%s.%s' refers to unknown model '%s'", modelName, propName, p.Model))
				continue
			}
			p._ModelRef = target
		}
	}

	return errs.ErrorOrNil()
}

func sortedNames(models map[string]*Model) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
