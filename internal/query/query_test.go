package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/expr"
)

const sampleQuery = `
from:
  - table: customers
    as: c
  - table: orders
    as: o
joins:
  - left: c
    right: o
    kind: left_outer
    on:
      compare:
        op: "="
        left: {column: c.id}
        right: {column: o.customer_id}
where:
  compare:
    op: ">"
    left: {column: o.total}
    right: {literal: 10}
select:
  - column: c.name
  - column: o.total
    as: amount
order_by:
  - column: amount
    desc: true
`

func TestParseQuery(t *testing.T) {
	q, err := Parse([]byte(sampleQuery))
	require.NoError(t, err)

	require.Len(t, q.Sources, 2)
	assert.Equal(t, "c", q.Sources[0].Alias())
	require.Len(t, q.Joins, 1)
	assert.Equal(t, "left_outer", q.Joins[0].Kind)
	require.NotNil(t, q.Filter)
	require.Len(t, q.Select, 2)
	assert.Equal(t, "amount", q.Select[1].As)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)

	assert.Empty(t, q.Validate())
}

func TestQueryRoundTripsThroughYAML(t *testing.T) {
	q, err := Parse([]byte(sampleQuery))
	require.NoError(t, err)

	data, err := q.Marshal()
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, q, again)
}

func TestAliasDefaultsToTableName(t *testing.T) {
	s := Source{Table: "orders"}
	assert.Equal(t, "orders", s.Alias())
	s.As = "o"
	assert.Equal(t, "o", s.Alias())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	q := &Query{
		Joins:   []Join{{Left: "a", Right: "b", Kind: "sideways"}},
		Window:  &Window{},
		Pivot:   &Pivot{},
		Unpivot: &Unpivot{},
		SetOps:  []SetOp{{Kind: "minus"}},
		OrderBy: []OrderKey{{}},
	}
	errs := q.Validate()
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}

	assert.Contains(t, msgs, "query needs at least one source")
	assert.Contains(t, msgs, `joins[0]: unknown kind "sideways"`)
	assert.Contains(t, msgs, "joins[0]: sideways join needs an on predicate")
	assert.Contains(t, msgs, "window: missing function")
	assert.Contains(t, msgs, "window: missing output column name")
	assert.Contains(t, msgs, "pivot and unpivot are mutually exclusive")
	assert.Contains(t, msgs, "pivot: spread, value and agg are required")
	assert.Contains(t, msgs, "pivot: spread_values must list at least one value")
	assert.Contains(t, msgs, "unpivot: columns must list at least one source column")
	assert.Contains(t, msgs, "unpivot: name_as and value_as are required")
	assert.Contains(t, msgs, `set_ops[0]: unknown kind "minus"`)
	assert.Contains(t, msgs, "set_ops[0]: missing right-hand query")
	assert.Contains(t, msgs, "order_by[0]: missing column")
}

func TestValidateRejectsDuplicateAliases(t *testing.T) {
	q := &Query{Sources: []Source{
		{Table: "customers", As: "c"},
		{Table: "orders", As: "c"},
	}}
	errs := q.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `duplicate alias "c"`)
}

func TestValidateComputedSelectNeedsName(t *testing.T) {
	q := &Query{
		Sources: []Source{{Table: "orders"}},
		Select: []Projection{{
			Spec: expr.Spec{IsNull: "customer_id"},
		}},
	}
	errs := q.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "computed expression needs an as name")
}

func TestValidateRecursesIntoSetOperands(t *testing.T) {
	q := &Query{
		Sources: []Source{{Table: "a"}},
		SetOps:  []SetOp{{Kind: "union", Right: &Query{}}},
	}
	errs := q.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "set_ops[0]: query needs at least one source", errs[0].Error())
}

func TestValidateBrokenPredicateSpec(t *testing.T) {
	q := &Query{
		Sources: []Source{{Table: "a"}},
		Filter:  &expr.Spec{}, // no variant set
	}
	errs := q.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "where:")
}
