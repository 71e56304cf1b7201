// Package schema defines table schemas: columns, keys, foreign keys with
// referential actions, and check constraints.
//
// Schemas are declarative data. They round-trip through YAML and may be
// authored in CUE (the CLI loader re-encodes CUE values through YAML).
// Validation happens once, at definition time: a schema set that passes
// Validate can be installed in a store without further structural checks.
package schema

import (
	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// RefAction is a referential action fired when a referenced key row is
// deleted or its key updated.
type RefAction string

const (
	// Restrict blocks the triggering mutation while referencing rows exist.
	Restrict RefAction = "restrict"
	// Cascade propagates the mutation to referencing rows.
	Cascade RefAction = "cascade"
	// SetNull clears the referencing columns.
	SetNull RefAction = "set_null"
)

// Identity configures auto-increment assignment for an integer column.
// A null (or absent) value on insert receives the next counter value;
// truncate resets the counter to Seed.
type Identity struct {
	Seed int64 `yaml:"seed"`
	Step int64 `yaml:"step"`
}

// Column is one column definition.
type Column struct {
	Name     string     `yaml:"name"`
	Type     value.Kind `yaml:"type"`
	Nullable bool       `yaml:"nullable,omitempty"`
	// Default is an untyped scalar coerced to Type at insert time.
	// It applies when an inserted value is null.
	Default any `yaml:"default,omitempty"`
	// Identity makes the column auto-incrementing. Integer columns only.
	Identity *Identity `yaml:"identity,omitempty"`
}

// ForeignKey declares (local columns) → (referenced table, referenced
// columns). The referenced columns must be the target's primary key or
// one of its unique keys.
type ForeignKey struct {
	Name       string    `yaml:"name,omitempty"`
	Columns    []string  `yaml:"columns"`
	RefTable   string    `yaml:"ref_table"`
	RefColumns []string  `yaml:"ref_columns"`
	OnDelete   RefAction `yaml:"on_delete,omitempty"`
	OnUpdate   RefAction `yaml:"on_update,omitempty"`
}

// Check is a named boolean predicate over a single row. A row satisfies
// the check when the predicate is true or unknown (null).
type Check struct {
	Name string    `yaml:"name"`
	Expr expr.Spec `yaml:"expr"`
}

// Table is a complete table schema. The column list is ordered; row
// values align positionally with it.
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	PrimaryKey  []string     `yaml:"primary_key,omitempty"`
	UniqueKeys  [][]string   `yaml:"unique,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
	Checks      []Check      `yaml:"checks,omitempty"`
}

// Column returns the definition and position of a named column.
func (t *Table) Column(name string) (Column, int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

// ColumnIndexes resolves a list of column names to positions.
// Reports the first unknown name.
func (t *Table) ColumnIndexes(names []string) ([]int, string, bool) {
	idx := make([]int, len(names))
	for i, name := range names {
		_, pos, ok := t.Column(name)
		if !ok {
			return nil, name, false
		}
		idx[i] = pos
	}
	return idx, "", true
}

// KeyColumns reports whether cols exactly matches the primary key or one
// of the unique keys (order-sensitive; keys are declared ordered).
func (t *Table) KeyColumns(cols []string) bool {
	if sameColumns(t.PrimaryKey, cols) {
		return true
	}
	for _, uk := range t.UniqueKeys {
		if sameColumns(uk, cols) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// action normalizes an unset referential action to Restrict, the
// conservative default.
func (a RefAction) orRestrict() RefAction {
	if a == "" {
		return Restrict
	}
	return a
}

// DeleteAction returns the effective ON DELETE action.
func (fk *ForeignKey) DeleteAction() RefAction { return fk.OnDelete.orRestrict() }

// UpdateAction returns the effective ON UPDATE action.
func (fk *ForeignKey) UpdateAction() RefAction { return fk.OnUpdate.orRestrict() }

// Label names the FK in error messages: explicit name if set, else a
// derived "table(cols)→ref" form.
func (fk *ForeignKey) Label(table string) string {
	if fk.Name != "" {
		return fk.Name
	}
	label := table + "("
	for i, c := range fk.Columns {
		if i > 0 {
			label += ","
		}
		label += c
	}
	return label + ")->" + fk.RefTable
}
