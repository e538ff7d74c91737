// Package schema holds the introspected database structure and its
// serialized forms: the prompt text a table is described with, the
// embedding chunk stored per table, and the digested snapshot that the
// chat interface validates generated SQL against.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

type ForeignKey struct {
	Columns    []string `json:"columns"`
	RefTable   string   `json:"ref_table"`
	RefColumns []string `json:"ref_columns"`
}

type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	SampleRows  [][]string   `json:"sample_rows,omitempty"`
}

// TableDoc is a table plus the model-generated description attached
// during digestion.
type TableDoc struct {
	Table       Table  `json:"table"`
	Description string `json:"description"`
}

// Snapshot is the digested schema persisted between the digest and chat
// binaries. Tables are keyed by name.
type Snapshot struct {
	GeneratedAt     time.Time           `json:"generated_at"`
	Database        string              `json:"database"`
	IgnoredPatterns []string            `json:"ignored_patterns,omitempty"`
	Tables          map[string]TableDoc `json:"tables"`
}

// Render serializes a table into the text block used both as enrichment
// prompt context and as SQL-generation schema context.
func (t Table) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", t.Name)
	b.WriteString("Columns:\n")
	for _, col := range t.Columns {
		attrs := make([]string, 0, 3)
		if !col.Nullable {
			attrs = append(attrs, "NOT NULL")
		}
		if col.PrimaryKey {
			attrs = append(attrs, "PRIMARY KEY")
		}
		if col.Default != "" {
			attrs = append(attrs, "DEFAULT "+col.Default)
		}
		line := fmt.Sprintf("- %s (%s)", col.Name, col.DataType)
		if len(attrs) > 0 {
			line += " " + strings.Join(attrs, " ")
		}
		b.WriteString(line + "\n")
	}
	if len(t.ForeignKeys) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&b, "- %s -> %s(%s)\n",
				strings.Join(fk.Columns, ", "),
				fk.RefTable,
				strings.Join(fk.RefColumns, ", "))
		}
	}
	if len(t.SampleRows) > 0 {
		b.WriteString("\nSample rows:\n")
		for _, row := range t.SampleRows {
			fmt.Fprintf(&b, "- %s\n", strings.Join(row, " | "))
		}
	}
	return b.String()
}

// EmbedText is the chunk submitted to the embedding model: one chunk per
// table, identified by table name.
func (d TableDoc) EmbedText() string {
	return fmt.Sprintf("Table: %s\n%s", d.Table.Name, d.Description)
}

func (s Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownIdentifiers returns the lowercased table and column names for
// best-effort validation of generated SQL.
func (s Snapshot) KnownIdentifiers() map[string]struct{} {
	known := make(map[string]struct{}, len(s.Tables))
	for name, doc := range s.Tables {
		known[strings.ToLower(name)] = struct{}{}
		for _, col := range doc.Table.Columns {
			known[strings.ToLower(col.Name)] = struct{}{}
		}
	}
	return known
}

// Lookup resolves a table name case-insensitively.
func (s Snapshot) Lookup(name string) (TableDoc, bool) {
	if doc, ok := s.Tables[name]; ok {
		return doc, true
	}
	lower := strings.ToLower(name)
	for candidate, doc := range s.Tables {
		if strings.ToLower(candidate) == lower {
			return doc, true
		}
	}
	return TableDoc{}, false
}
