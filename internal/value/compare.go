package value

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Compare imposes a deterministic total order over all values:
//
//  1. Null sorts before everything.
//  2. Numeric values (Int, Decimal) compare numerically, including
//     against each other.
//  3. Bool sorts false before true.
//  4. Text compares by NFC-normalized byte order.
//  5. Remaining cross-kind pairs (e.g. Text vs Int) order by kind tag.
//
// The cross-kind fallback exists so sorting mixed inputs is stable and
// reproducible; predicate evaluation rejects such comparisons instead
// (see Comparable).
func Compare(a, b Value) int {
	_, aIsNull := a.(Null)
	_, bIsNull := b.(Null)
	if aIsNull && bIsNull {
		return 0
	}
	if aIsNull {
		return -1
	}
	if bIsNull {
		return 1
	}

	if ad, ok := asDecimal(a); ok {
		if bd, ok := asDecimal(b); ok {
			return ad.dec.Cmp(&bd.dec)
		}
	}

	if at, ok := a.(Text); ok {
		if bt, ok := b.(Text); ok {
			return strings.Compare(norm.NFC.String(string(at)), norm.NFC.String(string(bt)))
		}
	}

	if ab, ok := a.(Bool); ok {
		if bb, ok := b.(Bool); ok {
			if ab == bb {
				return 0
			}
			if bb {
				return -1
			}
			return 1
		}
	}

	// Cross-kind fallback: order by kind tag.
	switch {
	case a.Kind() < b.Kind():
		return -1
	case a.Kind() > b.Kind():
		return 1
	default:
		return 0
	}
}

// Comparable reports whether two values may appear on either side of a
// comparison predicate. Null is comparable to everything (the result is
// unknown, not an error). Int and Decimal are mutually comparable.
func Comparable(a, b Value) bool {
	if a.Kind() == KindNull || b.Kind() == KindNull {
		return true
	}
	if a.Kind() == b.Kind() {
		return true
	}
	_, an := asDecimal(a)
	_, bn := asDecimal(b)
	return an && bn
}

// Equal reports whether two values are the same under canonical keying.
// Unlike predicate equality, Equal(Null, Null) is true; set operations
// and partitioning need nulls to collapse into one group.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}

// Key returns the canonical encoding of a value, used for hash join
// probes, set-operation deduplication, and partition grouping.
//
// Numeric values share a keyspace: Int(2), Decimal("2"), and
// Decimal("2.0") all key identically.
func Key(v Value) string {
	switch val := v.(type) {
	case Null:
		return "_"
	case Int:
		return "n:" + strconv.FormatInt(int64(val), 10)
	case Decimal:
		return "n:" + canonicalDecimal(val)
	case Text:
		return "t:" + norm.NFC.String(string(val))
	case Bool:
		if val {
			return "b:1"
		}
		return "b:0"
	default:
		// Unreachable: Value is sealed.
		return "?:" + v.String()
	}
}

// RowKey concatenates the canonical keys of a row with an unambiguous
// separator. Two rows with identical values produce identical keys.
func RowKey(row []Value) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(Key(v))
	}
	return b.String()
}

// canonicalDecimal renders a decimal with trailing zeros stripped.
func canonicalDecimal(d Decimal) string {
	var reduced Decimal
	reduced.dec.Reduce(&d.dec)
	return reduced.dec.Text('f')
}
