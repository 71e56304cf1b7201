package store

import (
	"fmt"
	"sort"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// InsertRows validates and appends rows. Null slots receive column
// defaults or identity values. On any failure no row is inserted and
// identity counters are untouched. Returns the number of rows inserted.
func (s *Store) InsertRows(name string, rows [][]value.Value) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return 0, unknownTable(name)
	}

	identityDraft := make(map[string]int64, len(t.identity))
	for k, v := range t.identity {
		identityDraft[k] = v
	}

	prepared := make([][]value.Value, 0, len(rows))
	for _, row := range rows {
		p, err := t.prepareRow(row, identityDraft)
		if err != nil {
			return 0, err
		}
		if err := t.checkDomain(p); err != nil {
			return 0, err
		}
		prepared = append(prepared, p)
	}

	newRows := make([][]value.Value, 0, len(t.rows)+len(prepared))
	newRows = append(newRows, t.rows...)
	newRows = append(newRows, prepared...)

	if err := t.checkEntity(newRows); err != nil {
		return 0, err
	}
	w := newWorkingSet(s)
	w.set(name, newRows)
	if err := t.checkForeign(prepared, w); err != nil {
		return 0, err
	}

	t.rows = newRows
	t.identity = identityDraft
	s.record("insert", name, len(prepared))
	return len(prepared), nil
}

// InsertAny coerces raw scalar rows (as decoded from YAML or CUE) against
// the table schema and inserts them. Convenience for loaders and tests.
func (s *Store) InsertAny(name string, rows [][]any) (int, error) {
	sc, ok := s.Schema(name)
	if !ok {
		return 0, unknownTable(name)
	}
	typed := make([][]value.Value, len(rows))
	for i, raw := range rows {
		if len(raw) != len(sc.Columns) {
			return 0, typeErrorf(name, "", "row %d has %d values, table has %d columns",
				i, len(raw), len(sc.Columns))
		}
		row := make([]value.Value, len(raw))
		for j, cell := range raw {
			v, err := value.CoerceAny(cell, sc.Columns[j].Type)
			if err != nil {
				return 0, typeErrorf(name, sc.Columns[j].Name, "row %d: %v", i, err)
			}
			row[j] = v
		}
		typed[i] = row
	}
	return s.InsertRows(name, typed)
}

// UpdateRows applies changes to every row matching the predicate. Key
// column changes fire the referenced foreign keys' ON UPDATE actions
// transitively; the whole update commits atomically or not at all.
// Returns the number of rows matched in the target table.
func (s *Store) UpdateRows(name string, pred expr.Expr, changes map[string]value.Value) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return 0, unknownTable(name)
	}

	// Resolve and coerce changes once, in schema column order so error
	// reporting is deterministic.
	type change struct {
		pos int
		val value.Value
	}
	resolved := make([]change, 0, len(changes))
	for _, col := range t.schema.Columns {
		raw, ok := changes[col.Name]
		if !ok {
			continue
		}
		if raw == nil {
			raw = value.Null{}
		}
		coerced, err := value.Coerce(raw, col.Type)
		if err != nil {
			return 0, typeErrorf(name, col.Name, "%v", err)
		}
		_, pos, _ := t.schema.Column(col.Name)
		resolved = append(resolved, change{pos: pos, val: coerced})
	}
	if len(resolved) != len(changes) {
		for colName := range changes {
			if _, _, ok := t.schema.Column(colName); !ok {
				return 0, typeErrorf(name, colName, "unknown column")
			}
		}
	}

	plan := newMutationPlan()
	keyChanges := map[string][]keyChange{}
	matched := 0
	for pos, row := range t.rows {
		hit, err := expr.Holds(pred, rowEnv{t: t, row: row})
		if err != nil {
			return 0, fmt.Errorf("update predicate: %w", err)
		}
		if !hit {
			continue
		}
		matched++
		replacement := cloneRow(row)
		for _, ch := range resolved {
			replacement[ch.pos] = ch.val
		}
		plan.setUpdate(name, pos, replacement)
		collectKeyChanges(t, row, replacement, keyChanges)
	}
	if matched == 0 {
		return 0, nil
	}

	if len(keyChanges) > 0 {
		if err := s.propagateKeyUpdates(plan, name, keyChanges); err != nil {
			return 0, err
		}
	}

	if err := s.applyPlan(plan, "update", name); err != nil {
		return 0, err
	}
	return matched, nil
}

// UpdateAny is UpdateRows with raw scalar change values.
func (s *Store) UpdateAny(name string, pred expr.Expr, changes map[string]any) (int, error) {
	sc, ok := s.Schema(name)
	if !ok {
		return 0, unknownTable(name)
	}
	typed := make(map[string]value.Value, len(changes))
	for colName, raw := range changes {
		col, _, found := sc.Column(colName)
		if !found {
			return 0, typeErrorf(name, colName, "unknown column")
		}
		v, err := value.CoerceAny(raw, col.Type)
		if err != nil {
			return 0, typeErrorf(name, colName, "%v", err)
		}
		typed[colName] = v
	}
	return s.UpdateRows(name, pred, typed)
}

// DeleteRows removes every row matching the predicate, firing ON DELETE
// actions transitively. Returns the number of rows deleted from the
// target table (cascade effects are journaled but not counted here).
func (s *Store) DeleteRows(name string, pred expr.Expr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return 0, unknownTable(name)
	}

	plan := newMutationPlan()
	matched := 0
	for pos, row := range t.rows {
		hit, err := expr.Holds(pred, rowEnv{t: t, row: row})
		if err != nil {
			return 0, fmt.Errorf("delete predicate: %w", err)
		}
		if hit {
			plan.markDeleted(name, pos)
			matched++
		}
	}
	if matched == 0 {
		return 0, nil
	}

	if err := s.expandDeletes(plan); err != nil {
		return 0, err
	}
	if err := s.applyPlan(plan, "delete", name); err != nil {
		return 0, err
	}
	return matched, nil
}

// Truncate atomically removes all rows and resets identity counters to
// their schema-defined seeds. Referential actions fire as for a delete
// of every row: a RESTRICT reference from a surviving row blocks the
// truncate with ReferentialBlock.
func (s *Store) Truncate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return unknownTable(name)
	}

	plan := newMutationPlan()
	for pos := range t.rows {
		plan.markDeleted(name, pos)
	}
	if err := s.expandDeletes(plan); err != nil {
		return err
	}
	if err := s.applyPlan(plan, "truncate", name); err != nil {
		return err
	}

	for _, c := range t.schema.Columns {
		if c.Identity != nil {
			t.identity[c.Name] = c.Identity.Seed
		}
	}
	return nil
}

// applyPlan validates a completed mutation plan and commits it. Callers
// hold the write lock.
func (s *Store) applyPlan(plan *mutationPlan, op, trigger string) error {
	// Deterministic table visit order.
	affected := map[string]bool{}
	for name := range plan.deletes {
		affected[name] = true
	}
	for name := range plan.updates {
		affected[name] = true
	}
	names := make([]string, 0, len(affected))
	for name := range affected {
		names = append(names, name)
	}
	sort.Strings(names)

	// Build candidate row sets.
	w := newWorkingSet(s)
	for _, name := range names {
		t := s.tables[name]
		newRows := make([][]value.Value, 0, len(t.rows))
		for pos, row := range t.rows {
			if plan.isDeleted(name, pos) {
				continue
			}
			newRows = append(newRows, plan.currentRow(name, pos, row))
		}
		w.set(name, newRows)
	}

	// Validate replacement rows: domain and checks per row, entity over
	// the whole candidate set, foreign keys against the working set.
	// Pure deletions need no entity re-check; removing rows cannot
	// introduce duplicates.
	for _, name := range names {
		t := s.tables[name]
		updated := plan.updates[name]
		if len(updated) == 0 {
			continue
		}
		rows := make([][]value.Value, 0, len(updated))
		for pos, row := range updated {
			if plan.isDeleted(name, pos) {
				continue
			}
			rows = append(rows, row)
		}
		for _, row := range rows {
			if err := t.checkDomain(row); err != nil {
				return err
			}
		}
		if err := t.checkEntity(w.rowsOf(name)); err != nil {
			return err
		}
		if err := t.checkForeign(rows, w); err != nil {
			return err
		}
	}

	// Commit: swap row slices.
	total := plan.affected()
	for _, name := range names {
		s.tables[name].rows = w.rowsOf(name)
	}
	s.record(op, trigger, total)
	return nil
}
