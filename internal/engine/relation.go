// Package engine evaluates declarative query descriptions against a
// tuple store.
//
// The engines compose over one intermediate shape, Relation: an ordered
// column list plus a row multiset. Each stage (scan, join, filter,
// window, pivot, set operation, projection, ordering) consumes and
// produces Relations, so the executor is a thin composition layer.
//
// Evaluation is deterministic: stages preserve input row order, hash
// joins probe in scan order, and window ties break by original row
// position. Running the same query against the same store twice yields
// byte-identical results.
package engine

import (
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// Column describes one relation column. Qualifier is the source alias
// for scanned columns and empty for computed ones.
type Column struct {
	Qualifier string
	Name      string
	Type      value.Kind
}

// Label renders the column for display and resolution.
func (c Column) Label() string {
	if c.Qualifier == "" {
		return c.Name
	}
	return c.Qualifier + "." + c.Name
}

// Relation is the engine's working shape: fixed-arity rows under an
// ordered column list. Rows are never mutated in place; stages build
// fresh rows.
type Relation struct {
	Cols []Column
	Rows [][]value.Value
}

// resolver maps column references to positions. Qualified names
// ("o.customer_id") resolve exactly; bare names resolve when unambiguous
// across the relation.
type resolver struct {
	byLabel map[string]int
	byName  map[string]int // -1 marks an ambiguous bare name
}

func newResolver(cols []Column) *resolver {
	r := &resolver{
		byLabel: make(map[string]int, len(cols)),
		byName:  make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		r.byLabel[c.Label()] = i
		if prev, seen := r.byName[c.Name]; seen && prev != i {
			r.byName[c.Name] = -1
		} else {
			r.byName[c.Name] = i
		}
	}
	return r
}

// index resolves a column reference to a position.
func (r *resolver) index(name string) (int, error) {
	if pos, ok := r.byLabel[name]; ok {
		return pos, nil
	}
	if strings.Contains(name, ".") {
		return 0, invalidQueryf("unknown column %q", name)
	}
	pos, ok := r.byName[name]
	if !ok {
		return 0, invalidQueryf("unknown column %q", name)
	}
	if pos == -1 {
		return 0, invalidQueryf("ambiguous column %q: qualify it with a source alias", name)
	}
	return pos, nil
}

// indexes resolves a list of references.
func (r *resolver) indexes(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		pos, err := r.index(name)
		if err != nil {
			return nil, err
		}
		out[i] = pos
	}
	return out, nil
}

// rowEnv adapts a relation row to expr.Env.
type rowEnv struct {
	res *resolver
	row []value.Value
}

// Lookup implements expr.Env.
func (e rowEnv) Lookup(name string) (value.Value, error) {
	pos, err := e.res.index(name)
	if err != nil {
		return nil, err
	}
	return e.row[pos], nil
}

// Filter keeps the rows for which the predicate definitely holds.
func Filter(rel *Relation, pred expr.Expr) (*Relation, error) {
	if pred == nil {
		return rel, nil
	}
	res := newResolver(rel.Cols)
	out := &Relation{Cols: rel.Cols}
	for _, row := range rel.Rows {
		hit, err := expr.Holds(pred, rowEnv{res: res, row: row})
		if err != nil {
			return nil, wrapInvalid(err)
		}
		if hit {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// combineRow concatenates two rows into a fresh slice. Always copies;
// appending to a shared backing array would let one combined row clobber
// another.
func combineRow(left, right []value.Value) []value.Value {
	out := make([]value.Value, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

func nullRow(n int) []value.Value {
	out := make([]value.Value, n)
	for i := range out {
		out[i] = value.Null{}
	}
	return out
}
