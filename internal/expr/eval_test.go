package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/value"
)

func cmp(op CompareOp, left, right Expr) Expr {
	return Compare{Op: op, Left: left, Right: right}
}

func col(name string) Expr   { return Column{Name: name} }
func lit(v value.Value) Expr { return Literal{Val: v} }

func TestCompareOperators(t *testing.T) {
	env := MapEnv{"a": value.Int(5), "b": value.Int(7)}
	tests := []struct {
		op   CompareOp
		want bool
	}{
		{OpEq, false},
		{OpNe, true},
		{OpLt, true},
		{OpLe, true},
		{OpGt, false},
		{OpGe, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			v, err := Eval(cmp(tt.op, col("a"), col("b")), env)
			require.NoError(t, err)
			assert.Equal(t, value.Bool(tt.want), v)
		})
	}
}

func TestNullComparisonIsUnknown(t *testing.T) {
	env := MapEnv{"a": value.Null{}, "b": value.Int(7)}
	v, err := Eval(cmp(OpEq, col("a"), col("b")), env)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind())

	// Even null = null is unknown; IS NULL is the definite test.
	v, err = Eval(cmp(OpEq, col("a"), col("a")), env)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind())
}

func TestIncomparableKindsError(t *testing.T) {
	env := MapEnv{"a": value.Int(1), "b": value.Text("1")}
	_, err := Eval(cmp(OpEq, col("a"), col("b")), env)
	assert.Error(t, err)
}

func TestKleeneAnd(t *testing.T) {
	env := MapEnv{"n": value.Null{}}
	unknown := cmp(OpEq, col("n"), lit(value.Int(1)))

	// false AND unknown = false
	v, err := Eval(And{Exprs: []Expr{lit(value.Bool(false)), unknown}}, env)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), v)

	// true AND unknown = unknown
	v, err = Eval(And{Exprs: []Expr{lit(value.Bool(true)), unknown}}, env)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind())
}

func TestKleeneOr(t *testing.T) {
	env := MapEnv{"n": value.Null{}}
	unknown := cmp(OpEq, col("n"), lit(value.Int(1)))

	// true OR unknown = true
	v, err := Eval(Or{Exprs: []Expr{lit(value.Bool(true)), unknown}}, env)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)

	// false OR unknown = unknown
	v, err = Eval(Or{Exprs: []Expr{lit(value.Bool(false)), unknown}}, env)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind())
}

func TestNotOfUnknownIsUnknown(t *testing.T) {
	env := MapEnv{"n": value.Null{}}
	unknown := cmp(OpEq, col("n"), lit(value.Int(1)))
	v, err := Eval(Not{Expr: unknown}, env)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind())
}

func TestIsNullIsDefinite(t *testing.T) {
	env := MapEnv{"n": value.Null{}, "x": value.Int(3)}

	v, err := Eval(IsNull{Expr: col("n")}, env)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)

	v, err = Eval(IsNull{Expr: col("x"), Negate: true}, env)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)
}

func TestHoldsVsSatisfied(t *testing.T) {
	env := MapEnv{"n": value.Null{}}
	unknown := cmp(OpGt, col("n"), lit(value.Int(0)))

	// Filters drop unknown rows.
	holds, err := Holds(unknown, env)
	require.NoError(t, err)
	assert.False(t, holds)

	// Checks accept unknown.
	ok, err := Satisfied(unknown, env)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHoldsNilPredicate(t *testing.T) {
	holds, err := Holds(nil, MapEnv{})
	require.NoError(t, err)
	assert.True(t, holds)
}

func TestNonBooleanPredicateErrors(t *testing.T) {
	_, err := Holds(lit(value.Int(1)), MapEnv{})
	assert.Error(t, err)
}

func TestEquiPairs(t *testing.T) {
	on := And{Exprs: []Expr{
		cmp(OpEq, col("o.customer_id"), col("c.id")),
		cmp(OpEq, col("o.region"), col("c.region")),
	}}
	pairs, ok := EquiPairs(on)
	require.True(t, ok)
	require.Len(t, pairs, 2)
	assert.Equal(t, [2]string{"o.customer_id", "c.id"}, pairs[0])
	assert.Equal(t, [2]string{"o.region", "c.region"}, pairs[1])

	// A non-equality conjunct disqualifies the whole predicate.
	_, ok = EquiPairs(And{Exprs: []Expr{
		cmp(OpEq, col("a"), col("b")),
		cmp(OpLt, col("x"), col("y")),
	}})
	assert.False(t, ok)

	// Column-to-literal equality is not an equi-join key.
	_, ok = EquiPairs(cmp(OpEq, col("a"), lit(value.Int(1))))
	assert.False(t, ok)
}

func TestParseCompareOp(t *testing.T) {
	for _, s := range []string{"=", "==", "!=", "<>", "<", "<=", ">", ">="} {
		_, err := ParseCompareOp(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseCompareOp("~")
	assert.Error(t, err)
}
