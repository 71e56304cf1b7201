package engine

import (
	"sort"

	"github.com/roach88/relq/internal/value"
)

// Order sorts the relation by the given keys. The sort is stable, so
// rows tied on every key keep their prior relative order.
func Order(rel *Relation, keys []OrderKey) (*Relation, error) {
	if len(keys) == 0 {
		return rel, nil
	}
	res := newResolver(rel.Cols)
	idx := make([]int, len(keys))
	for i, key := range keys {
		pos, err := res.index(key.Column)
		if err != nil {
			return nil, err
		}
		idx[i] = pos
	}
	out := &Relation{Cols: rel.Cols, Rows: make([][]value.Value, len(rel.Rows))}
	copy(out.Rows, rel.Rows)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return orderLess(out.Rows[i], out.Rows[j], idx, keys)
	})
	return out, nil
}
