package serializer

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"CrudAPI/internal/model"
)

// Set holds one serializer per model with nested references linked.
type Set struct {
	byModel map[string]*Serializer
}

// NewSet builds serializers for every model in two phases: first every
// instance, then the nested links between them. Errors are collected.
func NewSet(models map[string]*model.Model, rules Rules) (*Set, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	set := &Set{byModel: make(map[string]*Serializer, len(models))}
	var errs *multierror.Error
	for _, name := range names {
		s, err := New(models[name], rules)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		set.byModel[name] = s
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	for _, name := range names {
		for _, f := range set.byModel[name].fields {
			if f.Kind != KindNested && f.Kind != KindNestedList {
				continue
			}
			target := f.Relation.GetModelRef()
			if target == nil {
				errs = multierror.Append(errs, fmt.Errorf("%s.%s: relation is not linked", name, f.Name))
				continue
			}
			nested, ok := set.byModel[target.Name]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("%s.%s: no serializer for %s", name, f.Name, target.Name))
				continue
			}
			f.Nested = nested
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return set, nil
}

// For returns the serializer of a model.
func (s *Set) For(modelName string) (*Serializer, bool) {
	ser, ok := s.byModel[modelName]
	return ser, ok
}
