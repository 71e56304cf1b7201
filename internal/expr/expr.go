// Package expr provides the predicate and scalar expression tree shared
// by check constraints, row filters, and join conditions.
//
// Expr is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the
// evaluator and keeps the variant set closed, so a serialized expression
// can always be reconstructed.
//
// Evaluation follows SQL three-valued logic: a comparison with a null
// operand is unknown (evaluates to Null), and a filter keeps a row only
// when its predicate is definitely true. Holds wraps that rule.
package expr

import (
	"fmt"

	"github.com/roach88/relq/internal/value"
)

// Expr is a sealed interface over expression nodes.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Column references a column by name. The name may be qualified with a
// source alias ("o.customer_id") or bare ("customer_id"); a bare name
// must resolve unambiguously in its environment.
type Column struct {
	Name string
}

func (Column) exprNode() {}

// Literal wraps a constant value.
type Literal struct {
	Val value.Value
}

func (Literal) exprNode() {}

// CompareOp enumerates comparison operators.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// ParseCompareOp validates an operator token.
func ParseCompareOp(s string) (CompareOp, error) {
	switch CompareOp(s) {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return CompareOp(s), nil
	case "==":
		return OpEq, nil
	case "<>":
		return OpNe, nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
}

// Compare applies Op to the values of Left and Right.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Compare) exprNode() {}

// And is a conjunction. An empty conjunction is true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or is a disjunction. An empty disjunction is false.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Not negates a predicate. Not(unknown) stays unknown.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// IsNull tests a value for null. Negate turns it into IS NOT NULL.
// Unlike comparisons, IsNull always yields a definite boolean.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (IsNull) exprNode() {}

// Columns returns every column name referenced by the expression, in
// first-appearance order. Used for validation and equi-join detection.
func Columns(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	walkColumns(e, func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}

func walkColumns(e Expr, fn func(string)) {
	switch node := e.(type) {
	case Column:
		fn(node.Name)
	case Literal:
	case Compare:
		walkColumns(node.Left, fn)
		walkColumns(node.Right, fn)
	case And:
		for _, sub := range node.Exprs {
			walkColumns(sub, fn)
		}
	case Or:
		for _, sub := range node.Exprs {
			walkColumns(sub, fn)
		}
	case Not:
		walkColumns(node.Expr, fn)
	case IsNull:
		walkColumns(node.Expr, fn)
	}
}

// EquiPairs extracts the column equality pairs from a predicate that is
// a single equality or a conjunction of equalities between columns.
// Reports ok=false when the predicate has any other shape; callers fall
// back to nested-loop evaluation in that case.
func EquiPairs(e Expr) (pairs [][2]string, ok bool) {
	switch node := e.(type) {
	case Compare:
		if node.Op != OpEq {
			return nil, false
		}
		left, lok := node.Left.(Column)
		right, rok := node.Right.(Column)
		if !lok || !rok {
			return nil, false
		}
		return [][2]string{{left.Name, right.Name}}, true
	case And:
		if len(node.Exprs) == 0 {
			return nil, false
		}
		for _, sub := range node.Exprs {
			sp, sok := EquiPairs(sub)
			if !sok {
				return nil, false
			}
			pairs = append(pairs, sp...)
		}
		return pairs, true
	default:
		return nil, false
	}
}
