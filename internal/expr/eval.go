package expr

import (
	"fmt"

	"github.com/roach88/relq/internal/value"
)

// Env resolves column references during evaluation. Implementations
// report ok=false for unknown columns and may return an error for
// ambiguous bare names.
type Env interface {
	Lookup(name string) (value.Value, error)
}

// MapEnv is a simple map-backed environment for single-row evaluation
// (check constraints, fixtures, tests).
type MapEnv map[string]value.Value

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (value.Value, error) {
	v, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return v, nil
}

// Eval evaluates an expression under three-valued logic. Predicates
// yield Bool or Null (unknown); scalar nodes yield their value.
func Eval(e Expr, env Env) (value.Value, error) {
	switch node := e.(type) {
	case Literal:
		return node.Val, nil

	case Column:
		return env.Lookup(node.Name)

	case Compare:
		left, err := Eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := Eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		if left.Kind() == value.KindNull || right.Kind() == value.KindNull {
			return value.Null{}, nil
		}
		if !value.Comparable(left, right) {
			return nil, fmt.Errorf("cannot compare %s to %s", left.Kind(), right.Kind())
		}
		cmp := value.Compare(left, right)
		switch node.Op {
		case OpEq:
			return value.Bool(cmp == 0), nil
		case OpNe:
			return value.Bool(cmp != 0), nil
		case OpLt:
			return value.Bool(cmp < 0), nil
		case OpLe:
			return value.Bool(cmp <= 0), nil
		case OpGt:
			return value.Bool(cmp > 0), nil
		case OpGe:
			return value.Bool(cmp >= 0), nil
		default:
			return nil, fmt.Errorf("unknown comparison operator %q", node.Op)
		}

	case And:
		// Kleene conjunction: false dominates, then unknown.
		sawUnknown := false
		for _, sub := range node.Exprs {
			v, err := evalBool(sub, env)
			if err != nil {
				return nil, err
			}
			switch b := v.(type) {
			case value.Null:
				sawUnknown = true
			case value.Bool:
				if !b {
					return value.Bool(false), nil
				}
			}
		}
		if sawUnknown {
			return value.Null{}, nil
		}
		return value.Bool(true), nil

	case Or:
		// Kleene disjunction: true dominates, then unknown.
		sawUnknown := false
		for _, sub := range node.Exprs {
			v, err := evalBool(sub, env)
			if err != nil {
				return nil, err
			}
			switch b := v.(type) {
			case value.Null:
				sawUnknown = true
			case value.Bool:
				if b {
					return value.Bool(true), nil
				}
			}
		}
		if sawUnknown {
			return value.Null{}, nil
		}
		return value.Bool(false), nil

	case Not:
		v, err := evalBool(node.Expr, env)
		if err != nil {
			return nil, err
		}
		if b, ok := v.(value.Bool); ok {
			return value.Bool(!b), nil
		}
		return value.Null{}, nil

	case IsNull:
		v, err := Eval(node.Expr, env)
		if err != nil {
			return nil, err
		}
		isNull := v.Kind() == value.KindNull
		if node.Negate {
			return value.Bool(!isNull), nil
		}
		return value.Bool(isNull), nil

	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}

// evalBool evaluates a sub-predicate and rejects non-boolean results.
func evalBool(e Expr, env Env) (value.Value, error) {
	v, err := Eval(e, env)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case value.Bool, value.Null:
		return v, nil
	default:
		return nil, fmt.Errorf("predicate evaluated to %s, want boolean", v.Kind())
	}
}

// Holds reports whether the predicate is definitely true for the
// environment. Unknown (null) counts as not holding; this is the SQL
// filter rule.
func Holds(e Expr, env Env) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := evalBool(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(value.Bool)
	return ok && bool(b), nil
}

// Satisfied reports whether a check constraint passes: definitely true
// or unknown both count as satisfied, per the SQL check rule.
func Satisfied(e Expr, env Env) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := evalBool(e, env)
	if err != nil {
		return false, err
	}
	if b, ok := v.(value.Bool); ok {
		return bool(b), nil
	}
	return true, nil // unknown satisfies a check
}
