package value

import (
	"fmt"
	"math"
)

// FromAny converts an untyped scalar (as produced by YAML or CUE
// decoding) into a Value, inferring the kind from the Go type.
// Floats become decimals; relq has no binary float type.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", v)
		}
		return Int(v), nil
	case float64:
		return DecimalFromFloat(v)
	case string:
		return Text(v), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", raw)
	}
}

// Coerce converts v to the requested kind, or reports an error when the
// value does not conform. Permitted conversions:
//
//   - Null passes through any kind (nullability is checked elsewhere).
//   - Int widens to Decimal losslessly.
//   - Everything else must already match the declared kind exactly.
//
// Text is deliberately never parsed into numbers here; silent string
// coercion hides fixture typos.
func Coerce(v Value, kind Kind) (Value, error) {
	if v.Kind() == KindNull || v.Kind() == kind {
		return v, nil
	}
	if kind == KindDecimal {
		if i, ok := v.(Int); ok {
			return DecimalFromInt(int64(i)), nil
		}
	}
	return nil, fmt.Errorf("value %s has type %s, want %s", v, v.Kind(), kind)
}

// CoerceAny combines FromAny and Coerce: it converts a raw scalar and
// checks it against the declared column kind.
func CoerceAny(raw any, kind Kind) (Value, error) {
	v, err := FromAny(raw)
	if err != nil {
		return nil, err
	}
	return Coerce(v, kind)
}

// ToAny converts a Value back into a plain Go scalar suitable for YAML
// or JSON encoding. Decimals encode as their canonical text to avoid
// binary float drift.
func ToAny(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Int:
		return int64(val)
	case Text:
		return string(val)
	case Bool:
		return bool(val)
	case Decimal:
		return canonicalDecimal(val)
	default:
		return v.String()
	}
}
