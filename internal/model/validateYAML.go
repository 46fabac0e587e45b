package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Allowed keys per mapping context.
var allowedModelKeys = map[string]bool{
	"table":        true,
	"collection":   true,
	"primary_keys": true,
	"columns":      true,
	"relations":    true,
	"proxies":      true,
	"properties":   true,
	"fields":       true,
}

var allowedColumnKeys = map[string]bool{
	"type":     true,
	"nullable": true,
	"values":   true,
	"expr":     true,
}

var allowedRelationKeys = map[string]bool{
	"type":  true,
	"model": true,
	"fk":    true,
	"pk":    true,
	"order": true,
}

var allowedProxyKeys = map[string]bool{
	"relation": true,
	"attr":     true,
}

var allowedPropertyKeys = map[string]bool{
	"model": true,
	"where": true,
}

var allowedFieldKeys = map[string]bool{
	"dump_only":    true,
	"load_only":    true,
	"coercer":      true,
	"nested":       true,
	"attributes":   true,
	"primary_keys": true,
}

var allowedColumnTypeValues = map[string]bool{
	TypeInt:      true,
	TypeBigInt:   true,
	TypeFloat:    true,
	TypeNumeric:  true,
	TypeString:   true,
	TypeText:     true,
	TypeBool:     true,
	TypeDateTime: true,
	TypeDate:     true,
	TypeTime:     true,
	TypeEnum:     true,
	TypeUUID:     true,
	TypeJSON:     true,
}

var allowedRelationTypeValues = map[string]bool{
	BelongsTo: true,
	HasOne:    true,
	HasMany:   true,
}

// child context of every named-entry map
var mapEntryContext = map[string]string{
	"columns-map":    "column",
	"relations-map":  "relation",
	"proxies-map":    "proxy",
	"properties-map": "property",
	"fields-map":     "field",
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "model"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		var allowedKeys map[string]bool
		switch context {
		case "model":
			allowedKeys = allowedModelKeys
		case "column":
			allowedKeys = allowedColumnKeys
		case "relation":
			allowedKeys = allowedRelationKeys
		case "proxy":
			allowedKeys = allowedProxyKeys
		case "property":
			allowedKeys = allowedPropertyKeys
		case "field":
			allowedKeys = allowedFieldKeys
		default:
			allowedKeys = nil // free form
		}

		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value

			if allowedKeys != nil && !allowedKeys[key] {
				return fmt.Errorf("unknown key '%s' in %s (line %d)", key, context, keyNode.Line)
			}

			if context == "column" && key == "type" && !allowedColumnTypeValues[valNode.Value] {
				return fmt.Errorf("unknown column type '%s' (line %d)", valNode.Value, valNode.Line)
			}
			if context == "relation" && key == "type" && !allowedRelationTypeValues[valNode.Value] {
				return fmt.Errorf("relation type must be has_many, has_one or belongs_to, got '%s' (line %d)", valNode.Value, valNode.Line)
			}

			nextContext := context
			if context == "model" {
				switch key {
				case "columns", "relations", "proxies", "properties", "fields":
					nextContext = key + "-map"
				default:
					nextContext = "scalar"
				}
			} else if entry, ok := mapEntryContext[context]; ok {
				nextContext = entry
			} else if allowedKeys != nil {
				nextContext = "scalar"
			}

			if err := validateYAMLNode(valNode, nextContext); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("only scalar lists are allowed in %s (line %d)", context, item.Line)
			}
		}

	case yaml.ScalarNode:
		if _, ok := mapEntryContext[context]; ok && node.Tag != "!!null" {
			return fmt.Errorf("%s must be a mapping (line %d)", context, node.Line)
		}
	}

	return nil
}
