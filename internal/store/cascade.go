package store

import (
	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/value"
)

// mutationPlan accumulates the full effect of one triggering mutation:
// row deletions and row replacements per table, across every table its
// referential actions reach. The plan is computed completely, validated,
// and only then applied - either the whole cascade commits or none of it
// does.
type mutationPlan struct {
	deletes map[string]map[int]bool          // table → deleted row positions
	updates map[string]map[int][]value.Value // table → position → replacement
}

func newMutationPlan() *mutationPlan {
	return &mutationPlan{
		deletes: map[string]map[int]bool{},
		updates: map[string]map[int][]value.Value{},
	}
}

func (p *mutationPlan) markDeleted(tableName string, pos int) {
	if p.deletes[tableName] == nil {
		p.deletes[tableName] = map[int]bool{}
	}
	p.deletes[tableName][pos] = true
}

func (p *mutationPlan) isDeleted(tableName string, pos int) bool {
	return p.deletes[tableName][pos]
}

// currentRow returns the in-plan version of a row: a pending replacement
// if one exists, else the live row.
func (p *mutationPlan) currentRow(tableName string, pos int, live []value.Value) []value.Value {
	if upd, ok := p.updates[tableName][pos]; ok {
		return upd
	}
	return live
}

func (p *mutationPlan) setUpdate(tableName string, pos int, row []value.Value) {
	if p.updates[tableName] == nil {
		p.updates[tableName] = map[int][]value.Value{}
	}
	p.updates[tableName][pos] = row
}

// affected counts every row the plan touches.
func (p *mutationPlan) affected() int {
	n := 0
	for _, set := range p.deletes {
		n += len(set)
	}
	for tableName, set := range p.updates {
		for pos := range set {
			if !p.isDeleted(tableName, pos) {
				n++
			}
		}
	}
	return n
}

// expandDeletes closes the plan over ON DELETE CASCADE edges, then
// resolves RESTRICT and SET_NULL actions against the surviving rows.
// Cascade-graph acyclicity (checked at schema definition) guarantees the
// closure terminates.
func (s *Store) expandDeletes(plan *mutationPlan) error {
	// Phase 1: transitive closure over CASCADE edges. Work queue of
	// tables whose deletion set grew.
	queue := make([]string, 0, len(plan.deletes))
	for name := range plan.deletes {
		queue = append(queue, name)
	}

	for len(queue) > 0 {
		parentName := queue[0]
		queue = queue[1:]
		parent := s.tables[parentName]

		for _, childName := range s.order {
			child := s.tables[childName]
			for i := range child.schema.ForeignKeys {
				fk := &child.schema.ForeignKeys[i]
				if fk.RefTable != parentName || fk.DeleteAction() != schema.Cascade {
					continue
				}
				deletedKeys := s.deletedKeySet(plan, parent, fk.RefColumns)
				localIdx, _, _ := child.schema.ColumnIndexes(fk.Columns)

				grew := false
				for pos, row := range child.rows {
					if plan.isDeleted(childName, pos) {
						continue
					}
					proj := project(plan.currentRow(childName, pos, row), localIdx)
					if containsNull(proj) {
						continue
					}
					if deletedKeys[value.RowKey(proj)] {
						plan.markDeleted(childName, pos)
						grew = true
					}
				}
				if grew {
					queue = append(queue, childName)
				}
			}
		}
	}

	// Phase 2: RESTRICT blocks on any surviving reference; SET_NULL
	// clears the referencing columns of surviving rows.
	for parentName := range plan.deletes {
		parent := s.tables[parentName]
		for _, childName := range s.order {
			child := s.tables[childName]
			for i := range child.schema.ForeignKeys {
				fk := &child.schema.ForeignKeys[i]
				if fk.RefTable != parentName || fk.DeleteAction() == schema.Cascade {
					continue
				}
				deletedKeys := s.deletedKeySet(plan, parent, fk.RefColumns)
				localIdx, _, _ := child.schema.ColumnIndexes(fk.Columns)

				for pos, row := range child.rows {
					if plan.isDeleted(childName, pos) {
						continue
					}
					current := plan.currentRow(childName, pos, row)
					proj := project(current, localIdx)
					if containsNull(proj) || !deletedKeys[value.RowKey(proj)] {
						continue
					}
					switch fk.DeleteAction() {
					case schema.Restrict:
						return referentialBlockf(parentName, fk.Label(childName),
							"row is referenced by %s", childName)
					case schema.SetNull:
						replacement := cloneRow(current)
						for _, li := range localIdx {
							replacement[li] = value.Null{}
						}
						plan.setUpdate(childName, pos, replacement)
					}
				}
			}
		}
	}
	return nil
}

// keyChange records a referenced key tuple rewritten by an update.
type keyChange struct {
	oldKey string
	newVal []value.Value // new tuple, aligned to the FK's referenced columns
}

// propagateKeyUpdates resolves ON UPDATE actions for referenced key
// tuples changed in parentName. CASCADE rewrites referencing columns and
// recurses in case the rewritten columns are themselves referenced.
func (s *Store) propagateKeyUpdates(plan *mutationPlan, parentName string, changes map[string][]keyChange) error {
	for _, childName := range s.order {
		child := s.tables[childName]
		for i := range child.schema.ForeignKeys {
			fk := &child.schema.ForeignKeys[i]
			if fk.RefTable != parentName {
				continue
			}
			fkChanges := changes[refColumnsKey(fk.RefColumns)]
			if len(fkChanges) == 0 {
				continue
			}
			changed := make(map[string][]value.Value, len(fkChanges))
			for _, kc := range fkChanges {
				changed[kc.oldKey] = kc.newVal
			}
			localIdx, _, _ := child.schema.ColumnIndexes(fk.Columns)

			childChanges := map[string][]keyChange{}
			for pos, row := range child.rows {
				if plan.isDeleted(childName, pos) {
					continue
				}
				current := plan.currentRow(childName, pos, row)
				proj := project(current, localIdx)
				if containsNull(proj) {
					continue
				}
				newVal, hit := changed[value.RowKey(proj)]
				if !hit {
					continue
				}
				switch fk.UpdateAction() {
				case schema.Restrict:
					return referentialBlockf(parentName, fk.Label(childName),
						"key is referenced by %s", childName)
				case schema.SetNull:
					replacement := cloneRow(current)
					for _, li := range localIdx {
						replacement[li] = value.Null{}
					}
					plan.setUpdate(childName, pos, replacement)
				case schema.Cascade:
					replacement := cloneRow(current)
					for j, li := range localIdx {
						replacement[li] = newVal[j]
					}
					plan.setUpdate(childName, pos, replacement)
					// The rewritten columns may themselves be a key
					// other tables reference.
					collectKeyChanges(child, current, replacement, childChanges)
				}
			}
			if len(childChanges) > 0 {
				if err := s.propagateKeyUpdates(plan, childName, childChanges); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// collectKeyChanges records, per referenced key column set of t, the old
// key and new tuple whenever an update rewrites any component.
func collectKeyChanges(t *table, oldRow, newRow []value.Value, out map[string][]keyChange) {
	keySets := [][]string{}
	if len(t.schema.PrimaryKey) > 0 {
		keySets = append(keySets, t.schema.PrimaryKey)
	}
	keySets = append(keySets, t.schema.UniqueKeys...)

	for _, cols := range keySets {
		idx, _, _ := t.schema.ColumnIndexes(cols)
		oldProj := project(oldRow, idx)
		newProj := project(newRow, idx)
		if value.RowKey(oldProj) == value.RowKey(newProj) {
			continue
		}
		if containsNull(oldProj) {
			continue // a null key tuple was never referencable
		}
		k := refColumnsKey(cols)
		out[k] = append(out[k], keyChange{oldKey: value.RowKey(oldProj), newVal: newProj})
	}
}

// deletedKeySet projects the planned-deleted rows of parent onto the
// given key columns.
func (s *Store) deletedKeySet(plan *mutationPlan, parent *table, refCols []string) map[string]bool {
	refIdx, _, _ := parent.schema.ColumnIndexes(refCols)
	keys := map[string]bool{}
	for pos := range plan.deletes[parent.schema.Name] {
		proj := project(parent.rows[pos], refIdx)
		if !containsNull(proj) {
			keys[value.RowKey(proj)] = true
		}
	}
	return keys
}

func refColumnsKey(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}

func cloneRow(row []value.Value) []value.Value {
	out := make([]value.Value, len(row))
	copy(out, row)
	return out
}
