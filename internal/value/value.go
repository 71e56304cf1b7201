// Package value defines the runtime value system for relq relations.
//
// Values are a sealed set of five types: Null, Int, Text, Decimal, and
// Bool. The marker method pattern prevents external implementations and
// enables exhaustive type switches in the engines.
//
// Determinism rules:
//   - Text is NFC-normalized before keying, so visually identical strings
//     hash and compare identically across runs.
//   - Decimal is arbitrary-precision (cockroachdb/apd); canonical keys
//     strip trailing zeros so 1.50 and 1.5 are the same value.
//   - Int and Decimal compare numerically against each other; an Int
//     column can join against a Decimal column without surprises.
//
// Null is an explicit marker distinguishable from every domain value.
// It is never equal to anything, including itself, under SQL-style
// predicate evaluation (see the expr package), but sorts first and keys
// stably so set operations and partitioning treat nulls as one group.
package value

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Value is a sealed interface over the five relq value types.
type Value interface {
	valueNode() // Marker method - seals interface to this package

	// Kind reports the runtime kind of the value.
	Kind() Kind

	// String renders the value for display. Null renders as "NULL".
	String() string
}

// Kind identifies a value or column type.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindText
	KindDecimal
	KindBool
)

// String returns the schema-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindText:
		return "text"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a schema type name into a Kind.
// Accepted names: integer, text, decimal, boolean.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "integer":
		return KindInt, nil
	case "text":
		return KindText, nil
	case "decimal":
		return KindDecimal, nil
	case "boolean":
		return KindBool, nil
	default:
		return KindNull, fmt.Errorf("unknown column type %q (want integer, text, decimal, or boolean)", name)
	}
}

// Null is the explicit null marker.
type Null struct{}

func (Null) valueNode()     {}
func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "NULL" }

// Int is a 64-bit integer value.
type Int int64

func (Int) valueNode()       {}
func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Text is a string value.
type Text string

func (Text) valueNode()       {}
func (Text) Kind() Kind       { return KindText }
func (t Text) String() string { return string(t) }

// Bool is a boolean value.
type Bool bool

func (Bool) valueNode() {}
func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Decimal is an arbitrary-precision decimal value.
//
// The zero Decimal is zero. Decimals are immutable once constructed;
// arithmetic allocates fresh values.
type Decimal struct {
	dec apd.Decimal
}

func (Decimal) valueNode() {}
func (Decimal) Kind() Kind { return KindDecimal }

// String renders the decimal in plain (non-exponential) notation.
func (d Decimal) String() string {
	return d.dec.Text('f')
}

// decimalCtx bounds precision for decimal arithmetic. 34 digits matches
// IEEE 754-2008 decimal128, comfortably more than any fixture needs.
var decimalCtx = apd.BaseContext.WithPrecision(34)

// NewDecimal parses a decimal from its text form.
func NewDecimal(s string) (Decimal, error) {
	var d Decimal
	if _, _, err := d.dec.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal parses a decimal and panics on failure. Test helper.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt converts an integer to a decimal.
func DecimalFromInt(i int64) Decimal {
	var d Decimal
	d.dec.SetInt64(i)
	return d
}

// DecimalFromFloat converts a binary float (e.g. a YAML scalar) to a
// decimal. The conversion goes through the shortest round-trippable
// text form so 0.1 stays 0.1 rather than its binary expansion.
func DecimalFromFloat(f float64) (Decimal, error) {
	return NewDecimal(strconv.FormatFloat(f, 'g', -1, 64))
}

// AddDecimal returns a + b.
func AddDecimal(a, b Decimal) Decimal {
	var out Decimal
	// Addition at this precision cannot fail for finite inputs.
	_, _ = decimalCtx.Add(&out.dec, &a.dec, &b.dec)
	return out
}

// DivDecimal returns a / b. Division by zero returns an error.
//
// Exact quotients keep the ideal exponent (dividend exponent minus
// divisor exponent), so 15.00 / 2 is 7.50, not a coefficient padded
// out to the full context precision.
func DivDecimal(a, b Decimal) (Decimal, error) {
	if b.dec.IsZero() {
		return Decimal{}, fmt.Errorf("decimal division by zero")
	}
	var out Decimal
	res, err := decimalCtx.Quo(&out.dec, &a.dec, &b.dec)
	if err != nil {
		return Decimal{}, err
	}
	if res&apd.Inexact == 0 {
		out.dec.Reduce(&out.dec)
		if ideal := a.dec.Exponent - b.dec.Exponent; out.dec.Exponent > ideal {
			var padded apd.Decimal
			if _, err := decimalCtx.Quantize(&padded, &out.dec, ideal); err == nil {
				out.dec.Set(&padded)
			}
		}
	}
	return out, nil
}

// asDecimal widens a numeric value for cross-type comparison and
// aggregation. Reports false for non-numeric values.
func asDecimal(v Value) (Decimal, bool) {
	switch n := v.(type) {
	case Int:
		return DecimalFromInt(int64(n)), true
	case Decimal:
		return n, true
	default:
		return Decimal{}, false
	}
}
