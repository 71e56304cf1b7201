package engine

import (
	"github.com/roach88/relq/internal/value"
)

// SetOpKind names a set operation over two relations.
type SetOpKind string

const (
	SetUnion     SetOpKind = "union"
	SetUnionAll  SetOpKind = "union_all"
	SetIntersect SetOpKind = "intersect"
	SetExcept    SetOpKind = "except"
)

// ParseSetOpKind converts a textual kind into a SetOpKind.
func ParseSetOpKind(s string) (SetOpKind, error) {
	switch SetOpKind(s) {
	case SetUnion, SetUnionAll, SetIntersect, SetExcept:
		return SetOpKind(s), nil
	}
	return "", invalidQueryf("unknown set operation %q", s)
}

// SetOp combines two relations by position. Column names come from the
// left operand; operands are compatible when they have the same arity
// and each column pair shares a kind or is numeric on both sides.
func SetOp(kind SetOpKind, left, right *Relation) (*Relation, error) {
	if err := checkSetCompat(left, right); err != nil {
		return nil, err
	}
	out := &Relation{Cols: make([]Column, len(left.Cols))}
	copy(out.Cols, left.Cols)
	for i := range out.Cols {
		// A numeric merge widens to decimal when the sides disagree.
		if l, r := left.Cols[i].Type, right.Cols[i].Type; l != r {
			out.Cols[i].Type = value.KindDecimal
		}
	}

	switch kind {
	case SetUnionAll:
		out.Rows = make([][]value.Value, 0, len(left.Rows)+len(right.Rows))
		out.Rows = append(out.Rows, left.Rows...)
		out.Rows = append(out.Rows, right.Rows...)
	case SetUnion:
		seen := make(map[string]bool, len(left.Rows)+len(right.Rows))
		for _, rows := range [][][]value.Value{left.Rows, right.Rows} {
			for _, row := range rows {
				key := value.RowKey(row)
				if seen[key] {
					continue
				}
				seen[key] = true
				out.Rows = append(out.Rows, row)
			}
		}
	case SetIntersect:
		inRight := rowSet(right.Rows)
		emitted := make(map[string]bool)
		for _, row := range left.Rows {
			key := value.RowKey(row)
			if inRight[key] && !emitted[key] {
				emitted[key] = true
				out.Rows = append(out.Rows, row)
			}
		}
	case SetExcept:
		inRight := rowSet(right.Rows)
		emitted := make(map[string]bool)
		for _, row := range left.Rows {
			key := value.RowKey(row)
			if inRight[key] || emitted[key] {
				continue
			}
			emitted[key] = true
			out.Rows = append(out.Rows, row)
		}
	default:
		return nil, invalidQueryf("unknown set operation %q", kind)
	}
	if out.Rows == nil {
		out.Rows = [][]value.Value{}
	}
	return out, nil
}

func rowSet(rows [][]value.Value) map[string]bool {
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		set[value.RowKey(row)] = true
	}
	return set
}

func checkSetCompat(left, right *Relation) error {
	if len(left.Cols) != len(right.Cols) {
		return schemaMismatchf("operands have %d and %d columns", len(left.Cols), len(right.Cols))
	}
	for i := range left.Cols {
		l, r := left.Cols[i].Type, right.Cols[i].Type
		if l == r {
			continue
		}
		if numericKind(l) && numericKind(r) {
			continue
		}
		return schemaMismatchf("column %d: %s is not compatible with %s",
			i+1, l.String(), r.String())
	}
	return nil
}

func numericKind(k value.Kind) bool {
	return k == value.KindInt || k == value.KindDecimal
}
