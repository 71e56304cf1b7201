package engine

import (
	"github.com/roach88/relq/internal/value"
)

// AggFunc names a pivot cell aggregator.
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggCount AggFunc = "count"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggAvg   AggFunc = "avg"
)

// ParseAggFunc validates an aggregator token.
func ParseAggFunc(s string) (AggFunc, error) {
	switch AggFunc(s) {
	case AggSum, AggCount, AggMin, AggMax, AggAvg:
		return AggFunc(s), nil
	}
	return "", invalidQueryf("unknown aggregate function %q", s)
}

// Pivot rotates the spread column's values into columns. The output has
// one row per distinct group-key tuple (in first-appearance order) and,
// after the group columns, one column per entry of spreadValues named by
// its textual form. Each cell aggregates the value column over the rows
// matching that group and spread value; a cell with no contributing rows
// is null.
//
// spreadValues is the caller's claimed domain. Rows whose spread value
// is absent from it contribute nothing, and a listed value that never
// occurs still yields a column, so the output shape depends only on the
// query, never on the data.
func Pivot(rel *Relation, group []string, spread, valueCol string, agg AggFunc, spreadValues []value.Value) (*Relation, error) {
	if len(spreadValues) == 0 {
		return nil, invalidQueryf("pivot needs at least one spread value")
	}
	res := newResolver(rel.Cols)
	groupIdx, err := res.indexes(group)
	if err != nil {
		return nil, err
	}
	spreadIdx, err := res.index(spread)
	if err != nil {
		return nil, err
	}
	valueIdx, err := res.index(valueCol)
	if err != nil {
		return nil, err
	}
	if _, err := ParseAggFunc(string(agg)); err != nil {
		return nil, err
	}

	spreadKind := rel.Cols[spreadIdx].Type
	colOfSpread := make(map[string]int, len(spreadValues))
	out := &Relation{Cols: make([]Column, 0, len(group)+len(spreadValues))}
	for _, i := range groupIdx {
		out.Cols = append(out.Cols, rel.Cols[i])
	}
	for n, sv := range spreadValues {
		coerced, err := value.Coerce(sv, spreadKind)
		if err != nil {
			return nil, invalidQueryf("spread value %v does not fit column %q: %v", sv, spread, err)
		}
		key := value.Key(coerced)
		if _, dup := colOfSpread[key]; dup {
			return nil, invalidQueryf("duplicate spread value %s", coerced.String())
		}
		colOfSpread[key] = len(group) + n
		out.Cols = append(out.Cols, Column{Name: coerced.String(), Type: cellKind(agg, rel.Cols[valueIdx].Type)})
	}

	// One accumulator grid cell per (group, spread) pair, groups in
	// first-appearance order.
	rowOfGroup := make(map[string]int)
	var cells [][]*accumulator
	for _, row := range rel.Rows {
		gkey := value.RowKey(project(row, groupIdx))
		gpos, seen := rowOfGroup[gkey]
		if !seen {
			gpos = len(out.Rows)
			rowOfGroup[gkey] = gpos
			out.Rows = append(out.Rows, combineRow(project(row, groupIdx), nullRow(len(spreadValues))))
			cells = append(cells, make([]*accumulator, len(spreadValues)))
		}
		cpos, known := colOfSpread[value.Key(row[spreadIdx])]
		if !known {
			continue
		}
		slot := cpos - len(group)
		if cells[gpos][slot] == nil {
			cells[gpos][slot] = &accumulator{fn: agg}
		}
		if err := cells[gpos][slot].add(row[valueIdx]); err != nil {
			return nil, err
		}
	}
	for gpos, accs := range cells {
		for slot, acc := range accs {
			if acc == nil {
				continue
			}
			out.Rows[gpos][len(group)+slot] = acc.result()
		}
	}
	if out.Rows == nil {
		out.Rows = [][]value.Value{}
	}
	return out, nil
}

// Unpivot is the inverse rotation: each input row becomes one output row
// per source column, carrying the kept columns plus (nameAs, valueAs) =
// (source column name, cell value). Null cells emit nothing, which is
// what makes unpivot after pivot recover the original rows.
func Unpivot(rel *Relation, keep, sources []string, nameAs, valueAs string) (*Relation, error) {
	if nameAs == "" || valueAs == "" {
		return nil, invalidQueryf("unpivot needs name and value output columns")
	}
	if len(sources) == 0 {
		return nil, invalidQueryf("unpivot needs at least one source column")
	}
	res := newResolver(rel.Cols)
	keepIdx, err := res.indexes(keep)
	if err != nil {
		return nil, err
	}
	srcIdx, err := res.indexes(sources)
	if err != nil {
		return nil, err
	}
	valKind := rel.Cols[srcIdx[0]].Type
	for _, i := range srcIdx[1:] {
		if k := rel.Cols[i].Type; k != valKind {
			if numericKind(k) && numericKind(valKind) {
				valKind = value.KindDecimal
				continue
			}
			return nil, schemaMismatchf("unpivot sources mix %s and %s", valKind.String(), k.String())
		}
	}

	out := &Relation{Cols: make([]Column, 0, len(keep)+2)}
	for _, i := range keepIdx {
		out.Cols = append(out.Cols, rel.Cols[i])
	}
	out.Cols = append(out.Cols,
		Column{Name: nameAs, Type: value.KindText},
		Column{Name: valueAs, Type: valKind},
	)
	for _, row := range rel.Rows {
		for n, i := range srcIdx {
			if _, isNull := row[i].(value.Null); isNull {
				continue
			}
			extra := []value.Value{value.Text(rel.Cols[srcIdx[n]].Name), row[i]}
			out.Rows = append(out.Rows, combineRow(project(row, keepIdx), extra))
		}
	}
	if out.Rows == nil {
		out.Rows = [][]value.Value{}
	}
	return out, nil
}

// cellKind reports the value kind an aggregator produces over a column
// of the given kind.
func cellKind(fn AggFunc, col value.Kind) value.Kind {
	switch fn {
	case AggCount:
		return value.KindInt
	case AggAvg:
		return value.KindDecimal
	default:
		return col
	}
}

// accumulator folds one pivot cell. Null inputs are ignored for every
// aggregator, matching how count distinguishes present from missing.
type accumulator struct {
	fn    AggFunc
	count int64
	sumI  int64
	sumD  value.Decimal
	dec   bool
	minV  value.Value
	maxV  value.Value
}

func (a *accumulator) add(v value.Value) error {
	if _, isNull := v.(value.Null); isNull {
		return nil
	}
	a.count++
	switch a.fn {
	case AggCount:
		return nil
	case AggMin:
		if a.minV == nil || value.Compare(v, a.minV) < 0 {
			a.minV = v
		}
		return nil
	case AggMax:
		if a.maxV == nil || value.Compare(v, a.maxV) > 0 {
			a.maxV = v
		}
		return nil
	}
	// sum and avg need numeric input.
	switch n := v.(type) {
	case value.Int:
		if a.dec {
			a.sumD = value.AddDecimal(a.sumD, value.DecimalFromInt(int64(n)))
		} else {
			a.sumI += int64(n)
		}
	case value.Decimal:
		if !a.dec {
			a.sumD = value.AddDecimal(value.DecimalFromInt(a.sumI), n)
			a.dec = true
		} else {
			a.sumD = value.AddDecimal(a.sumD, n)
		}
	default:
		return typeErrorf("%s needs a numeric column, got %s", a.fn, v.Kind().String())
	}
	return nil
}

func (a *accumulator) result() value.Value {
	switch a.fn {
	case AggCount:
		return value.Int(a.count)
	case AggMin:
		return a.minV
	case AggMax:
		return a.maxV
	case AggSum:
		if a.dec {
			return a.sumD
		}
		return value.Int(a.sumI)
	case AggAvg:
		sum := a.sumD
		if !a.dec {
			sum = value.DecimalFromInt(a.sumI)
		}
		avg, err := value.DivDecimal(sum, value.DecimalFromInt(a.count))
		if err != nil {
			return value.Null{}
		}
		return avg
	}
	return value.Null{}
}
