package model

import "fmt"

// Registry holds every linked and validated model. It is built once at startup
// and only read afterwards.
type Registry struct {
	Models       map[string]*Model
	byCollection map[string]*Model
}

// InitRegistry loads, links and validates the models of dir.
func InitRegistry(dir string) (*Registry, error) {
	models, err := LoadModelsFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load error: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("load error: no *.yml models in %s", dir)
	}
	return NewRegistry(models)
}

// NewRegistry links and validates already decoded models.
func NewRegistry(models map[string]*Model) (*Registry, error) {
	if err := LinkModelRelations(models); err != nil {
		return nil, fmt.Errorf("link error: %w", err)
	}
	if err := ValidateModels(models); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	r := &Registry{
		Models:       models,
		byCollection: make(map[string]*Model, len(models)),
	}
	for _, m := range models {
		r.byCollection[m.Collection] = m
	}
	return r, nil
}

// Get returns a model by logical name.
func (r *Registry) Get(name string) (*Model, bool) {
	m, ok := r.Models[name]
	return m, ok
}

// ByCollection returns a model by its URL collection name.
func (r *Registry) ByCollection(collection string) (*Model, bool) {
	m, ok := r.byCollection[collection]
	return m, ok
}

// Names returns model names in stable order.
func (r *Registry) Names() []string {
	return sortedNames(r.Models)
}
