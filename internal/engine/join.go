package engine

import (
	"fmt"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// JoinKind selects join semantics.
type JoinKind string

const (
	JoinInner      JoinKind = "inner"
	JoinLeftOuter  JoinKind = "left_outer"
	JoinRightOuter JoinKind = "right_outer"
	JoinFullOuter  JoinKind = "full_outer"
	JoinCross      JoinKind = "cross"
)

// ParseJoinKind validates a join kind token.
func ParseJoinKind(s string) (JoinKind, error) {
	switch JoinKind(s) {
	case JoinInner, JoinLeftOuter, JoinRightOuter, JoinFullOuter, JoinCross:
		return JoinKind(s), nil
	default:
		return "", fmt.Errorf("unknown join kind %q", s)
	}
}

// Join combines two relations. Output columns are left's followed by
// right's, qualifiers preserved, so self-joins stay distinguishable
// through their aliases.
//
// Semantics per kind:
//   - inner: row pairs for which the predicate holds.
//   - left_outer: every left row at least once; unmatched left rows pair
//     with an all-null right projection.
//   - right_outer: symmetric.
//   - full_outer: both; pairs matched on both sides appear exactly once.
//   - cross: predicate ignored, full Cartesian product.
//
// Duplicate join keys on either side produce the full cross product of
// the matching groups.
//
// When the predicate is an equality (or conjunction of equalities)
// between columns of opposite sides, a hash join runs in O(n+m); any
// other predicate falls back to a nested loop. Both paths emit rows in
// probe-side scan order with build-side matches in scan order, so
// results are deterministic.
func Join(left, right *Relation, on expr.Expr, kind JoinKind) (*Relation, error) {
	cols := make([]Column, 0, len(left.Cols)+len(right.Cols))
	cols = append(cols, left.Cols...)
	cols = append(cols, right.Cols...)
	out := &Relation{Cols: cols}

	if kind == JoinCross {
		for _, lrow := range left.Rows {
			for _, rrow := range right.Rows {
				out.Rows = append(out.Rows, combineRow(lrow, rrow))
			}
		}
		return out, nil
	}

	if on == nil {
		return nil, invalidQueryf("%s join requires a predicate (use cross for a product)", kind)
	}

	if leftIdx, rightIdx, ok := equiJoinKeys(left, right, on); ok {
		return hashJoin(out, left, right, leftIdx, rightIdx, kind)
	}
	return nestedLoopJoin(out, left, right, on, kind)
}

// equiJoinKeys maps an equi-join predicate onto column positions, one
// key set per side. Reports ok=false when the predicate is not a pure
// conjunction of cross-side column equalities.
func equiJoinKeys(left, right *Relation, on expr.Expr) (leftIdx, rightIdx []int, ok bool) {
	pairs, ok := expr.EquiPairs(on)
	if !ok {
		return nil, nil, false
	}
	lres := newResolver(left.Cols)
	rres := newResolver(right.Cols)
	for _, pair := range pairs {
		if li, err := lres.index(pair[0]); err == nil {
			if ri, err := rres.index(pair[1]); err == nil {
				leftIdx = append(leftIdx, li)
				rightIdx = append(rightIdx, ri)
				continue
			}
		}
		if li, err := lres.index(pair[1]); err == nil {
			if ri, err := rres.index(pair[0]); err == nil {
				leftIdx = append(leftIdx, li)
				rightIdx = append(rightIdx, ri)
				continue
			}
		}
		// A side references both relations or neither; not an equi-join
		// over this split.
		return nil, nil, false
	}
	return leftIdx, rightIdx, true
}

func hashJoin(out *Relation, left, right *Relation, leftIdx, rightIdx []int, kind JoinKind) (*Relation, error) {
	// Build on the right, probe the left. Null key components never
	// match (SQL equality semantics), so null-keyed rows skip the table.
	build := make(map[string][]int, len(right.Rows))
	for pos, rrow := range right.Rows {
		proj := project(rrow, rightIdx)
		if containsNull(proj) {
			continue
		}
		key := value.RowKey(proj)
		build[key] = append(build[key], pos)
	}

	rightMatched := make([]bool, len(right.Rows))
	rightWidth := len(right.Cols)
	leftWidth := len(left.Cols)

	for _, lrow := range left.Rows {
		proj := project(lrow, leftIdx)
		var hits []int
		if !containsNull(proj) {
			hits = build[value.RowKey(proj)]
		}
		if len(hits) == 0 {
			if kind == JoinLeftOuter || kind == JoinFullOuter {
				out.Rows = append(out.Rows, combineRow(lrow, nullRow(rightWidth)))
			}
			continue
		}
		for _, pos := range hits {
			rightMatched[pos] = true
			out.Rows = append(out.Rows, combineRow(lrow, right.Rows[pos]))
		}
	}

	if kind == JoinRightOuter || kind == JoinFullOuter {
		for pos, matched := range rightMatched {
			if !matched {
				out.Rows = append(out.Rows, combineRow(nullRow(leftWidth), right.Rows[pos]))
			}
		}
	}
	return out, nil
}

func nestedLoopJoin(out *Relation, left, right *Relation, on expr.Expr, kind JoinKind) (*Relation, error) {
	res := newResolver(out.Cols)
	rightMatched := make([]bool, len(right.Rows))
	rightWidth := len(right.Cols)
	leftWidth := len(left.Cols)

	for _, lrow := range left.Rows {
		leftHit := false
		for rpos, rrow := range right.Rows {
			combined := combineRow(lrow, rrow)
			hit, err := expr.Holds(on, rowEnv{res: res, row: combined})
			if err != nil {
				return nil, wrapInvalid(err)
			}
			if hit {
				leftHit = true
				rightMatched[rpos] = true
				out.Rows = append(out.Rows, combined)
			}
		}
		if !leftHit && (kind == JoinLeftOuter || kind == JoinFullOuter) {
			out.Rows = append(out.Rows, combineRow(lrow, nullRow(rightWidth)))
		}
	}

	if kind == JoinRightOuter || kind == JoinFullOuter {
		for rpos, matched := range rightMatched {
			if !matched {
				out.Rows = append(out.Rows, combineRow(nullRow(leftWidth), right.Rows[rpos]))
			}
		}
	}
	return out, nil
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
