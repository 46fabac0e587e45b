package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadModelsFromDir parses every *.yml file of dir into a model named after the file.
func LoadModelsFromDir(dir string) (map[string]*Model, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	models := make(map[string]*Model, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		m, err := ParseModel(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		models[name] = m
	}
	return models, nil
}

// ParseModel validates and decodes one YAML model declaration.
func ParseModel(name string, data []byte) (*Model, error) {
	// 1. structural validation on yaml.Node
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	// [0] is the document, its content is the root mapping
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty YAML")
	}
	if err := validateYAMLNode(root.Content[0], "model"); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	// 2. decode
	var m Model
	if err := root.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	m.Name = name
	if m.Collection == "" {
		m.Collection = toSnakeCase(name)
	}
	for relName, rel := range m.Relations {
		rel.Name = relName
	}
	for proxyName, p := range m.Proxies {
		p.Name = proxyName
	}
	for propName, p := range m.Properties {
		p.Name = propName
	}
	return &m, nil
}
