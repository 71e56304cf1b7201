package engine

import (
	"errors"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/store"
	"github.com/roach88/relq/internal/value"
)

// Executor evaluates query descriptions against a store. Execution is
// read-only and snapshot-consistent: each source is scanned once under
// the store's read lock, and every later stage works on those copies.
type Executor struct {
	store *store.Store
}

// NewExecutor returns an executor bound to st.
func NewExecutor(st *store.Store) *Executor {
	return &Executor{store: st}
}

// Execute runs the query and returns the resulting relation. A broken
// description fails fast with InvalidQuery before any stage runs.
//
// Stages apply in a fixed order: source scans, joins, filter, window,
// pivot or unpivot, set operations, projection, ordering.
func (e *Executor) Execute(q *query.Query) (*Relation, error) {
	if errs := q.Validate(); len(errs) > 0 {
		return nil, invalidQueryf("%v", errors.Join(errs...))
	}

	rel, err := e.evalBody(q)
	if err != nil {
		return nil, err
	}
	for _, op := range q.SetOps {
		kind, err := ParseSetOpKind(op.Kind)
		if err != nil {
			return nil, err
		}
		right, err := e.Execute(op.Right)
		if err != nil {
			return nil, err
		}
		if rel, err = SetOp(kind, rel, right); err != nil {
			return nil, err
		}
	}
	if rel, err = applySelect(q.Select, rel); err != nil {
		return nil, err
	}
	return Order(rel, orderKeys(q.OrderBy))
}

// evalBody runs the query's own stages up to and including the pivot;
// set operands are full queries and run through Execute.
func (e *Executor) evalBody(q *query.Query) (*Relation, error) {
	rels := make(map[string]*Relation, len(q.Sources))
	order := make([]string, 0, len(q.Sources))
	for _, src := range q.Sources {
		rel, err := e.scan(src)
		if err != nil {
			return nil, err
		}
		rels[src.Alias()] = rel
		order = append(order, src.Alias())
	}

	// group maps each alias to the relation currently holding it, so a
	// join can name any alias already merged into an earlier result.
	group := make(map[string]string, len(rels))
	for alias := range rels {
		group[alias] = alias
	}
	for _, j := range q.Joins {
		leftRel, ok := rels[group[j.Left]]
		if !ok {
			return nil, invalidQueryf("join references unknown alias %q", j.Left)
		}
		rightRel, ok := rels[group[j.Right]]
		if !ok {
			return nil, invalidQueryf("join references unknown alias %q", j.Right)
		}
		if group[j.Left] == group[j.Right] {
			return nil, invalidQueryf("aliases %q and %q are already joined", j.Left, j.Right)
		}
		kind, err := ParseJoinKind(j.Kind)
		if err != nil {
			return nil, wrapInvalid(err)
		}
		var on expr.Expr
		if j.On != nil {
			if on, err = j.On.Compile(); err != nil {
				return nil, wrapInvalid(err)
			}
		}
		joined, err := Join(leftRel, rightRel, on, kind)
		if err != nil {
			return nil, err
		}
		oldLeft, oldRight := group[j.Left], group[j.Right]
		delete(rels, oldRight)
		rels[oldLeft] = joined
		for alias, g := range group {
			if g == oldRight {
				group[alias] = oldLeft
			}
		}
	}
	if len(rels) > 1 {
		var loose []string
		home := group[order[0]]
		for _, alias := range order {
			if group[alias] != home {
				loose = append(loose, alias)
			}
		}
		return nil, invalidQueryf("sources %s are not joined into the query", strings.Join(loose, ", "))
	}
	rel := rels[group[order[0]]]

	if q.Filter != nil {
		pred, err := q.Filter.Compile()
		if err != nil {
			return nil, wrapInvalid(err)
		}
		if rel, err = Filter(rel, pred); err != nil {
			return nil, err
		}
	}

	if w := q.Window; w != nil {
		fn, err := ParseWindowFunc(w.Function)
		if err != nil {
			return nil, err
		}
		rel, err = ApplyWindow(rel, w.PartitionBy, orderKeys(w.OrderBy), fn, w.As, w.KeepFirst)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case q.Pivot != nil:
		p := q.Pivot
		agg, err := ParseAggFunc(p.Agg)
		if err != nil {
			return nil, err
		}
		spread := make([]value.Value, len(p.SpreadValues))
		for i, raw := range p.SpreadValues {
			v, err := value.FromAny(raw)
			if err != nil {
				return nil, invalidQueryf("spread_values[%d]: %v", i, err)
			}
			spread[i] = v
		}
		if rel, err = Pivot(rel, p.Group, p.Spread, p.Value, agg, spread); err != nil {
			return nil, err
		}
	case q.Unpivot != nil:
		u := q.Unpivot
		var err error
		if rel, err = Unpivot(rel, u.Keep, u.Columns, u.NameAs, u.ValueAs); err != nil {
			return nil, err
		}
	}
	return rel, nil
}

// scan snapshots one table into a relation, stamping every column with
// the source alias.
func (e *Executor) scan(src query.Source) (*Relation, error) {
	sc, rows, err := e.store.Snapshot(src.Table)
	if err != nil {
		return nil, wrapInvalid(err)
	}
	rel := &Relation{Cols: make([]Column, len(sc.Columns)), Rows: rows}
	for i, col := range sc.Columns {
		rel.Cols[i] = Column{Qualifier: src.Alias(), Name: col.Name, Type: col.Type}
	}
	return rel, nil
}

// applySelect applies the select list. An empty list passes the relation
// through; bare column references keep their type and (unqualified)
// name, computed expressions evaluate per row under their declared As.
func applySelect(items []query.Projection, rel *Relation) (*Relation, error) {
	if len(items) == 0 {
		return rel, nil
	}
	res := newResolver(rel.Cols)
	type plan struct {
		src int // column position, or -1 for a computed expression
		ex  expr.Expr
		col Column
	}
	plans := make([]plan, len(items))
	for i, item := range items {
		ex, err := item.Spec.Compile()
		if err != nil {
			return nil, wrapInvalid(err)
		}
		if ref, ok := ex.(expr.Column); ok {
			pos, err := res.index(ref.Name)
			if err != nil {
				return nil, err
			}
			name := item.As
			if name == "" {
				name = rel.Cols[pos].Name
			}
			plans[i] = plan{src: pos, col: Column{Name: name, Type: rel.Cols[pos].Type}}
			continue
		}
		plans[i] = plan{src: -1, ex: ex, col: Column{Name: item.As, Type: staticKind(ex)}}
	}

	out := &Relation{Cols: make([]Column, len(plans))}
	for i, p := range plans {
		out.Cols[i] = p.col
	}
	out.Rows = make([][]value.Value, len(rel.Rows))
	for r, row := range rel.Rows {
		dst := make([]value.Value, len(plans))
		for i, p := range plans {
			if p.src >= 0 {
				dst[i] = row[p.src]
				continue
			}
			v, err := expr.Eval(p.ex, rowEnv{res: res, row: row})
			if err != nil {
				return nil, wrapInvalid(err)
			}
			dst[i] = v
		}
		out.Rows[r] = dst
	}
	return out, nil
}

// staticKind infers a computed column's kind from the expression shape.
func staticKind(ex expr.Expr) value.Kind {
	switch n := ex.(type) {
	case expr.Literal:
		return n.Val.Kind()
	case expr.Compare, expr.And, expr.Or, expr.Not, expr.IsNull:
		return value.KindBool
	}
	return value.KindNull
}

func orderKeys(keys []query.OrderKey) []OrderKey {
	out := make([]OrderKey, len(keys))
	for i, k := range keys {
		out[i] = OrderKey{Column: k.Column, Desc: k.Desc}
	}
	return out
}
