package store

import (
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// rowEnv binds one table row for expression evaluation. Column names
// resolve bare ("amount") or qualified with the table name
// ("orders.amount").
type rowEnv struct {
	t   *table
	row []value.Value
}

// Lookup implements expr.Env.
func (e rowEnv) Lookup(name string) (value.Value, error) {
	qualified := e.t.schema.Name + "."
	if strings.HasPrefix(name, qualified) {
		name = name[len(qualified):]
	}
	_, pos, ok := e.t.schema.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q in table %s", name, e.t.schema.Name)
	}
	return e.row[pos], nil
}

// prepareRow coerces a row against the table schema, applying defaults
// and identity assignment to null slots. identityDraft carries counter
// state across a batch so counters only commit when the whole mutation
// does.
func (t *table) prepareRow(row []value.Value, identityDraft map[string]int64) ([]value.Value, error) {
	if len(row) != len(t.schema.Columns) {
		return nil, typeErrorf(t.schema.Name, "", "row has %d values, table has %d columns",
			len(row), len(t.schema.Columns))
	}
	out := make([]value.Value, len(row))
	for i, col := range t.schema.Columns {
		v := row[i]
		if v == nil {
			v = value.Null{}
		}
		coerced, err := value.Coerce(v, col.Type)
		if err != nil {
			return nil, typeErrorf(t.schema.Name, col.Name, "%v", err)
		}
		if coerced.Kind() == value.KindNull {
			if col.Default != nil {
				coerced, err = value.CoerceAny(col.Default, col.Type)
				if err != nil {
					return nil, typeErrorf(t.schema.Name, col.Name, "default: %v", err)
				}
			} else if col.Identity != nil {
				next := identityDraft[col.Name]
				coerced = value.Int(next)
				identityDraft[col.Name] = next + col.Identity.Step
			}
		}
		out[i] = coerced
	}
	return out, nil
}

// checkDomain enforces not-null and check constraints for one row.
// Defaults and identity values must already be applied.
func (t *table) checkDomain(row []value.Value) error {
	for i, col := range t.schema.Columns {
		if !col.Nullable && row[i].Kind() == value.KindNull {
			// Primary key columns also land here; entity integrity
			// additionally rejects nulls via checkEntity.
			return violationf(t.schema.Name, "", "column %s must not be null", col.Name)
		}
	}
	env := rowEnv{t: t, row: row}
	for _, check := range t.checks {
		ok, err := expr.Satisfied(check.expr, env)
		if err != nil {
			return violationf(t.schema.Name, check.name, "check evaluation: %v", err)
		}
		if !ok {
			return violationf(t.schema.Name, check.name, "check constraint failed")
		}
	}
	return nil
}

// checkEntity enforces primary key and unique key invariants over a
// complete candidate row set.
//
// Primary key: no duplicate projections, no null in any component.
// Unique keys: no duplicate non-null projections; at most one row may
// carry a null in the key projection.
func (t *table) checkEntity(rows [][]value.Value) error {
	if len(t.schema.PrimaryKey) > 0 {
		idx, _, _ := t.schema.ColumnIndexes(t.schema.PrimaryKey)
		label := "pk(" + strings.Join(t.schema.PrimaryKey, ",") + ")"
		seen := make(map[string]bool, len(rows))
		for _, row := range rows {
			proj := project(row, idx)
			if containsNull(proj) {
				return violationf(t.schema.Name, label, "primary key component is null")
			}
			key := value.RowKey(proj)
			if seen[key] {
				return violationf(t.schema.Name, label, "duplicate primary key %s", renderTuple(proj))
			}
			seen[key] = true
		}
	}

	for _, uk := range t.schema.UniqueKeys {
		idx, _, _ := t.schema.ColumnIndexes(uk)
		label := "unique(" + strings.Join(uk, ",") + ")"
		seen := make(map[string]bool, len(rows))
		nullRows := 0
		for _, row := range rows {
			proj := project(row, idx)
			if containsNull(proj) {
				nullRows++
				if nullRows > 1 {
					return violationf(t.schema.Name, label, "more than one row with null in unique key")
				}
				continue
			}
			key := value.RowKey(proj)
			if seen[key] {
				return violationf(t.schema.Name, label, "duplicate unique key %s", renderTuple(proj))
			}
			seen[key] = true
		}
	}
	return nil
}

// checkForeign verifies that every non-null foreign key tuple in rows
// exists in the referenced table's key projection. The working set
// supplies candidate row states for tables mutated in the same
// operation (self-references and cascades).
func (t *table) checkForeign(rows [][]value.Value, w *workingSet) error {
	for i := range t.schema.ForeignKeys {
		fk := &t.schema.ForeignKeys[i]
		localIdx, _, _ := t.schema.ColumnIndexes(fk.Columns)

		parent, ok := w.table(fk.RefTable)
		if !ok {
			return unknownTable(fk.RefTable)
		}
		refIdx, _, _ := parent.schema.ColumnIndexes(fk.RefColumns)

		parentKeys := make(map[string]bool)
		for _, prow := range w.rowsOf(fk.RefTable) {
			proj := project(prow, refIdx)
			if !containsNull(proj) {
				parentKeys[value.RowKey(proj)] = true
			}
		}

		for _, row := range rows {
			proj := project(row, localIdx)
			if containsNull(proj) {
				continue // null components opt out of the reference
			}
			if !parentKeys[value.RowKey(proj)] {
				return violationf(t.schema.Name, fk.Label(t.schema.Name),
					"foreign key %s not present in %s", renderTuple(proj), fk.RefTable)
			}
		}
	}
	return nil
}

func project(row []value.Value, idx []int) []value.Value {
	out := make([]value.Value, len(idx))
	for i, pos := range idx {
		out[i] = row[pos]
	}
	return out
}

func containsNull(vals []value.Value) bool {
	for _, v := range vals {
		if v.Kind() == value.KindNull {
			return true
		}
	}
	return false
}

func renderTuple(vals []value.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// workingSet overlays in-flight candidate row states on top of the live
// store, so validation inside one mutation sees the state the mutation
// would commit. Callers hold the store write lock.
type workingSet struct {
	s    *Store
	rows map[string][][]value.Value
}

func newWorkingSet(s *Store) *workingSet {
	return &workingSet{s: s, rows: map[string][][]value.Value{}}
}

func (w *workingSet) table(name string) (*table, bool) {
	t, ok := w.s.tables[name]
	return t, ok
}

func (w *workingSet) rowsOf(name string) [][]value.Value {
	if rows, ok := w.rows[name]; ok {
		return rows
	}
	if t, ok := w.s.tables[name]; ok {
		return t.rows
	}
	return nil
}

func (w *workingSet) set(name string, rows [][]value.Value) {
	w.rows[name] = rows
}
