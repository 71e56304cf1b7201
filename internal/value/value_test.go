package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null before everything", Null{}, Int(-100), -1},
		{"null equals null", Null{}, Null{}, 0},
		{"int ordering", Int(1), Int(2), -1},
		{"int equals", Int(7), Int(7), 0},
		{"int vs decimal numeric", Int(2), MustDecimal("2.5"), -1},
		{"decimal equals int", MustDecimal("3.0"), Int(3), 0},
		{"text ordering", Text("apple"), Text("banana"), -1},
		{"bool false before true", Bool(false), Bool(true), -1},
		{"bool equals", Bool(true), Bool(true), 0},
		{"cross kind by kind tag", Int(999), Text("a"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestKeyCanonicalAcrossNumericKinds(t *testing.T) {
	// An integer and the numerically equal decimal must collide in
	// hash joins and deduplication.
	assert.Equal(t, Key(Int(5)), Key(MustDecimal("5")))
	assert.Equal(t, Key(Int(5)), Key(MustDecimal("5.00")))
	assert.NotEqual(t, Key(Int(5)), Key(MustDecimal("5.01")))
	assert.NotEqual(t, Key(Int(5)), Key(Text("5")))
}

func TestKeyNormalizesText(t *testing.T) {
	// "é" composed vs decomposed.
	composed := Text("café")
	decomposed := Text("café")
	assert.Equal(t, Key(composed), Key(decomposed))
	assert.True(t, Equal(composed, decomposed))
}

func TestRowKeyDistinguishesArrangements(t *testing.T) {
	a := []Value{Text("x"), Text("y")}
	b := []Value{Text("xy"), Text("")}
	assert.NotEqual(t, RowKey(a), RowKey(b))
}

func TestCoerceWidensIntToDecimal(t *testing.T) {
	v, err := Coerce(Int(4), KindDecimal)
	require.NoError(t, err)
	assert.Equal(t, KindDecimal, v.Kind())
	assert.Equal(t, 0, Compare(v, MustDecimal("4")))
}

func TestCoerceNeverParsesText(t *testing.T) {
	_, err := Coerce(Text("42"), KindInt)
	assert.Error(t, err)
}

func TestCoerceNullPasses(t *testing.T) {
	v, err := Coerce(Null{}, KindText)
	require.NoError(t, err)
	assert.Equal(t, KindNull, v.Kind())
}

func TestFromAnyShapes(t *testing.T) {
	v, err := FromAny(nil)
	require.NoError(t, err)
	assert.Equal(t, KindNull, v.Kind())

	v, err = FromAny(42)
	require.NoError(t, err)
	assert.Equal(t, Int(42), v)

	v, err = FromAny(2.5)
	require.NoError(t, err)
	assert.Equal(t, KindDecimal, v.Kind())
	assert.Equal(t, "2.5", v.String())

	v, err = FromAny("hello")
	require.NoError(t, err)
	assert.Equal(t, Text("hello"), v)

	v, err = FromAny(true)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)
}

func TestDecimalArithmetic(t *testing.T) {
	sum := AddDecimal(MustDecimal("0.1"), MustDecimal("0.2"))
	assert.Equal(t, 0, Compare(sum, MustDecimal("0.3")))

	q, err := DivDecimal(MustDecimal("1"), MustDecimal("8"))
	require.NoError(t, err)
	assert.Equal(t, 0, Compare(q, MustDecimal("0.125")))

	_, err = DivDecimal(MustDecimal("1"), MustDecimal("0"))
	assert.Error(t, err)
}

func TestDivDecimalKeepsIdealExponent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"exact quotient keeps dividend scale", "15.00", "2", "7.50"},
		{"integer dividend stays short", "15", "2", "7.5"},
		{"no padding below the exact scale", "14.75", "2", "7.375"},
		{"whole result trims to dividend scale", "10.0", "2", "5.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := DivDecimal(MustDecimal(tt.a), MustDecimal(tt.b))
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.String())
		})
	}

	// Inexact quotients round at context precision instead.
	q, err := DivDecimal(MustDecimal("1"), MustDecimal("3"))
	require.NoError(t, err)
	assert.Equal(t, 0, Compare(q, MustDecimal("0.3333333333333333333333333333333333")))
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable(Null{}, Text("x")))
	assert.True(t, Comparable(Int(1), MustDecimal("1.5")))
	assert.True(t, Comparable(Text("a"), Text("b")))
	assert.False(t, Comparable(Int(1), Text("1")))
	assert.False(t, Comparable(Bool(true), Int(1)))
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"integer", "text", "decimal", "boolean"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.String())
	}
	_, err := ParseKind("float")
	assert.Error(t, err)
}
