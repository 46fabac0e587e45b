package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Column types understood by the loader.
const (
	TypeInt      = "int"
	TypeBigInt   = "bigint"
	TypeFloat    = "float"
	TypeNumeric  = "numeric"
	TypeString   = "string"
	TypeText     = "text"
	TypeBool     = "bool"
	TypeDateTime = "datetime"
	TypeDate     = "date"
	TypeTime     = "time"
	TypeEnum     = "enum"
	TypeUUID     = "uuid"
	TypeJSON     = "json"
)

// Relation types.
const (
	BelongsTo = "belongs_to"
	HasOne    = "has_one"
	HasMany   = "has_many"
)

// Model describes one declared model (one YAML file in the models directory).
type Model struct {
	Name        string               `yaml:"-"` // logical name of the model
	Table       string               `yaml:"table"`
	Collection  string               `yaml:"collection"`   // URL segment, defaults to snake_case(Name)
	PrimaryKeys []string             `yaml:"primary_keys"` // e.g. ["id"]
	Columns     Columns              `yaml:"columns"`
	Relations   map[string]*Relation `yaml:"relations"`
	Proxies     map[string]*Proxy    `yaml:"proxies"`
	Properties  map[string]*Property `yaml:"properties"`
	Fields      FieldSpecs           `yaml:"fields"`
	columnIndex map[string]*Column   `yaml:"-"`
}

// Column is a persisted (or computed) attribute of a model.
type Column struct {
	Name     string   `yaml:"-"`
	Type     string   `yaml:"type"`
	Nullable bool     `yaml:"nullable"`
	Values   []string `yaml:"values"` // enum members
	Expr     string   `yaml:"expr"`   // computed, read-only SQL expression over "main"
	Primary  bool     `yaml:"-"`
}

// Relation describes a relationship to another model.
type Relation struct {
	Name  string `yaml:"-"`
	Type  string `yaml:"type"`  // has_one, has_many, belongs_to
	Model string `yaml:"model"` // logical name of the related model
	FK    string `yaml:"fk"`    // belongs_to: column of this model; has_*: column of the related model
	PK    string `yaml:"pk"`    // belongs_to: key of the related model; has_*: key of this model
	Order string `yaml:"order"` // default ordering when the relation is loaded, e.g. "id" or "-name"

	// runtime only
	_ModelRef *Model `yaml:"-"`
}

// Proxy projects an attribute of a to-one related model onto this model.
type Proxy struct {
	Name     string `yaml:"-"`
	Relation string `yaml:"relation"`
	Attr     string `yaml:"attr"`

	_RelationRef *Relation `yaml:"-"`
}

// Property is a read-only derived collection: rows of Model matching Where,
// where {column} placeholders are bound from the parent entity.
type Property struct {
	Name  string `yaml:"-"`
	Model string `yaml:"model"`
	Where string `yaml:"where"`

	_ModelRef *Model `yaml:"-"`
}

// FieldSpec is a declared serializer field override.
type FieldSpec struct {
	Name        string   `yaml:"-"`
	DumpOnly    bool     `yaml:"dump_only"`
	LoadOnly    bool     `yaml:"load_only"`
	Coercer     string   `yaml:"coercer"`      // named coercer, "none" disables auto-detection
	Nested      bool     `yaml:"nested"`       // relation rendered with the related model's serializer
	Attributes  []string `yaml:"attributes"`   // relation rendered as a projection of these attributes
	PrimaryKeys bool     `yaml:"primary_keys"` // relation rendered as a list of primary keys
}

// Columns keeps declaration order of the YAML mapping.
type Columns []*Column

// UnmarshalYAML decodes a mapping of name -> column preserving order.
func (c *Columns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("columns must be a mapping (line %d)", node.Line)
	}
	out := make(Columns, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		col := &Column{}
		if err := node.Content[i+1].Decode(col); err != nil {
			return fmt.Errorf("column %q: %w", node.Content[i].Value, err)
		}
		col.Name = node.Content[i].Value
		out = append(out, col)
	}
	*c = out
	return nil
}

// FieldSpecs keeps declaration order of the YAML mapping.
type FieldSpecs []*FieldSpec

// UnmarshalYAML decodes a mapping of name -> field spec preserving order.
func (f *FieldSpecs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields must be a mapping (line %d)", node.Line)
	}
	out := make(FieldSpecs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		spec := &FieldSpec{}
		if err := node.Content[i+1].Decode(spec); err != nil {
			return fmt.Errorf("field %q: %w", node.Content[i].Value, err)
		}
		spec.Name = node.Content[i].Value
		out = append(out, spec)
	}
	*f = out
	return nil
}

// GetPrimaryKeys returns the primary key columns. Defaults to ["id"].
func (m *Model) GetPrimaryKeys() []string {
	if len(m.PrimaryKeys) > 0 {
		return m.PrimaryKeys
	}
	return []string{"id"}
}

// PrimaryKey returns the single primary key column used for routing and lookups.
func (m *Model) PrimaryKey() string {
	return m.GetPrimaryKeys()[0]
}

// Column returns the declared column with the given name.
func (m *Model) Column(name string) (*Column, bool) {
	if m == nil {
		return nil, false
	}
	if m.columnIndex == nil {
		for _, c := range m.Columns {
			if c.Name == name {
				return c, true
			}
		}
		return nil, false
	}
	c, ok := m.columnIndex[name]
	return c, ok
}

// StoredColumns returns columns backed by the table (computed ones excluded).
func (m *Model) StoredColumns() []*Column {
	out := make([]*Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Computed() {
			out = append(out, c)
		}
	}
	return out
}

func (m *Model) indexColumns() {
	m.columnIndex = make(map[string]*Column, len(m.Columns))
	for _, c := range m.Columns {
		m.columnIndex[c.Name] = c
	}
}

func (m *Model) GetRelation(name string) *Relation {
	if m == nil || m.Relations == nil {
		return nil
	}
	return m.Relations[name]
}

func (m *Model) GetProxy(name string) *Proxy {
	if m == nil || m.Proxies == nil {
		return nil
	}
	return m.Proxies[name]
}

func (m *Model) GetProperty(name string) *Property {
	if m == nil || m.Properties == nil {
		return nil
	}
	return m.Properties[name]
}

// GetFieldSpec returns the declared field override, if any.
func (m *Model) GetFieldSpec(name string) *FieldSpec {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Computed reports whether the column is a read-only SQL expression.
func (c *Column) Computed() bool {
	return c.Expr != ""
}

// IsString reports whether values of the column are text.
func (c *Column) IsString() bool {
	return c.Type == TypeString || c.Type == TypeText
}

// ToMany reports whether the relation holds a list.
func (r *Relation) ToMany() bool {
	return r.Type == HasMany
}

// GetModelRef returns the related model once relations are linked.
func (r *Relation) GetModelRef() *Model {
	return r._ModelRef
}

// SetModelRef is called by the linker after all models are loaded.
func (r *Relation) SetModelRef(model *Model) {
	r._ModelRef = model
}

func (p *Proxy) GetRelationRef() *Relation {
	return p._RelationRef
}

func (p *Proxy) SetRelationRef(rel *Relation) {
	p._RelationRef = rel
}

// RemoteColumn returns the projected column on the related model.
func (p *Proxy) RemoteColumn() (*Column, bool) {
	if p._RelationRef == nil {
		return nil, false
	}
	return p._RelationRef._ModelRef.Column(p.Attr)
}

func (p *Property) GetModelRef() *Model {
	return p._ModelRef
}

func (p *Property) SetModelRef(model *Model) {
	p._ModelRef = model
}
