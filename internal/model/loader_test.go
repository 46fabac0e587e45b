package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeModel(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadModelsFromDirKeepsDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "PersonContact", `
table: person_contacts
columns:
  zeta: {type: string}
  id: {type: bigint}
  alpha: {type: int, nullable: true}
fields:
  alpha: {load_only: true}
  zeta: {}
`)
	models, err := LoadModelsFromDir(dir)
	if err != nil {
		t.Fatalf("LoadModelsFromDir: %v", err)
	}
	m := models["PersonContact"]
	if m == nil {
		t.Fatalf("model not loaded, got %v", models)
	}
	if m.Collection != "person_contact" {
		t.Fatalf("collection = %q", m.Collection)
	}

	var cols []string
	for _, c := range m.Columns {
		cols = append(cols, c.Name)
	}
	if got := strings.Join(cols, ","); got != "zeta,id,alpha" {
		t.Fatalf("column order = %s", got)
	}
	if m.Fields[0].Name != "alpha" || !m.Fields[0].LoadOnly {
		t.Fatalf("unexpected first field %+v", m.Fields[0])
	}
}

func TestParseModelRejectsUnknownKeys(t *testing.T) {
	cases := map[string]string{
		"model key":     "table: t\npresets: {}\n",
		"column key":    "table: t\ncolumns:\n  id: {type: int, default: 1}\n",
		"column type":   "table: t\ncolumns:\n  id: {type: varchar}\n",
		"relation type": "table: t\nrelations:\n  x: {type: many_to_many, model: X}\n",
		"field key":     "table: t\nfields:\n  id: {alias: ident}\n",
		"scalar entry":  "table: t\ncolumns:\n  id: int\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseModel("T", []byte(body)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestInitRegistryEmptyDir(t *testing.T) {
	if _, err := InitRegistry(t.TempDir()); err == nil {
		t.Fatalf("expected an error for a directory without models")
	}
}
