package engine

import (
	"sort"

	"github.com/roach88/relq/internal/value"
)

// WindowFunc names a supported ranking function.
type WindowFunc string

const (
	WindowRowNumber WindowFunc = "row_number"
	WindowRank      WindowFunc = "rank"
	WindowDenseRank WindowFunc = "dense_rank"
)

// ParseWindowFunc validates a window function token.
func ParseWindowFunc(s string) (WindowFunc, error) {
	switch WindowFunc(s) {
	case WindowRowNumber, WindowRank, WindowDenseRank:
		return WindowFunc(s), nil
	}
	return "", invalidQueryf("unknown window function %q", s)
}

// OrderKey is one sort key: a column reference and a direction.
type OrderKey struct {
	Column string
	Desc   bool
}

// ApplyWindow appends an integer ranking column named as to the
// relation. Rows are partitioned by partitionBy (partitions form in
// first-appearance order), ranked within each partition by orderBy, and
// emitted in their original order with the rank attached.
//
// Ties on the order keys break by original row position, so the result
// is a pure function of the input relation. With keepFirst set, only
// rows whose rank is 1 survive, which deduplicates each partition down
// to its top row.
func ApplyWindow(rel *Relation, partitionBy []string, orderBy []OrderKey, fn WindowFunc, as string, keepFirst bool) (*Relation, error) {
	if as == "" {
		return nil, invalidQueryf("window function needs an output column name")
	}
	res := newResolver(rel.Cols)
	if _, err := res.index(as); err == nil {
		return nil, invalidQueryf("window column %q collides with an existing column", as)
	}
	partIdx, err := res.indexes(partitionBy)
	if err != nil {
		return nil, err
	}
	orderIdx := make([]int, len(orderBy))
	for i, key := range orderBy {
		pos, err := res.index(key.Column)
		if err != nil {
			return nil, err
		}
		orderIdx[i] = pos
	}

	// Partitions keyed by the canonical encoding of the partition
	// columns; nulls group together.
	partitions := make(map[string][]int)
	var partOrder []string
	for pos, row := range rel.Rows {
		key := value.RowKey(project(row, partIdx))
		if _, seen := partitions[key]; !seen {
			partOrder = append(partOrder, key)
		}
		partitions[key] = append(partitions[key], pos)
	}

	ranks := make([]int64, len(rel.Rows))
	for _, key := range partOrder {
		members := append([]int(nil), partitions[key]...)
		sort.SliceStable(members, func(i, j int) bool {
			return orderLess(rel.Rows[members[i]], rel.Rows[members[j]], orderIdx, orderBy)
		})
		var rank, dense int64
		var prev []value.Value
		for n, pos := range members {
			cur := project(rel.Rows[pos], orderIdx)
			newGroup := n == 0 || orderCompare(prev, cur, orderBy) != 0
			if newGroup {
				rank = int64(n + 1)
				dense++
				prev = cur
			}
			switch fn {
			case WindowRowNumber:
				ranks[pos] = int64(n + 1)
			case WindowRank:
				ranks[pos] = rank
			case WindowDenseRank:
				ranks[pos] = dense
			default:
				return nil, invalidQueryf("unknown window function %q", fn)
			}
		}
	}

	out := &Relation{Cols: make([]Column, 0, len(rel.Cols)+1)}
	out.Cols = append(out.Cols, rel.Cols...)
	out.Cols = append(out.Cols, Column{Name: as, Type: value.KindInt})
	for pos, row := range rel.Rows {
		if keepFirst && ranks[pos] != 1 {
			continue
		}
		out.Rows = append(out.Rows, combineRow(row, []value.Value{value.Int(ranks[pos])}))
	}
	if out.Rows == nil {
		out.Rows = [][]value.Value{}
	}
	return out, nil
}

// orderCompare compares two projected key tuples under the given
// directions. value.Compare is a total order, so mixed and null keys
// sort deterministically.
func orderCompare(a, b []value.Value, keys []OrderKey) int {
	for i := range a {
		c := value.Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if keys[i].Desc {
			return -c
		}
		return c
	}
	return 0
}

func orderLess(a, b []value.Value, idx []int, keys []OrderKey) bool {
	return orderCompare(project(a, idx), project(b, idx), keys) < 0
}
