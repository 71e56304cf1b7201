package expr

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/value"
)

// Spec is the serializable form of an expression: a tagged variant
// struct with exactly one field set. Expressions travel through YAML
// (and CUE, via a YAML re-encode) as explicit structure, never as
// assembled text, which eliminates injection and parse-ambiguity
// concerns entirely.
//
// Example:
//
//	compare:
//	  op: "="
//	  left: {column: c.id}
//	  right: {column: o.customer_id}
type Spec struct {
	Column  string       `yaml:"column,omitempty"`
	Literal *Lit         `yaml:"literal,omitempty"`
	Compare *CompareSpec `yaml:"compare,omitempty"`
	And     []Spec       `yaml:"and,omitempty"`
	Or      []Spec       `yaml:"or,omitempty"`
	Not     *Spec        `yaml:"not,omitempty"`
	IsNull  string       `yaml:"is_null,omitempty"`
	NotNull string       `yaml:"not_null,omitempty"`
}

// CompareSpec is the serializable form of a comparison.
type CompareSpec struct {
	Op    string `yaml:"op"`
	Left  Spec   `yaml:"left"`
	Right Spec   `yaml:"right"`
}

// Lit boxes a scalar literal so zero values (0, false, "") survive YAML
// round-trips that would otherwise drop them under omitempty.
type Lit struct {
	V any
}

// MarshalYAML encodes the boxed scalar directly.
func (l Lit) MarshalYAML() (any, error) {
	return l.V, nil
}

// UnmarshalYAML decodes any scalar into the box.
func (l *Lit) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&l.V)
}

// LitOf boxes a literal for programmatic Spec construction.
func LitOf(v any) *Lit {
	return &Lit{V: v}
}

// Compile converts a Spec into an evaluable expression tree, verifying
// that exactly one variant field is set at every level.
func (s Spec) Compile() (Expr, error) {
	if err := s.checkOneVariant(); err != nil {
		return nil, err
	}
	switch {
	case s.Column != "":
		return Column{Name: s.Column}, nil

	case s.Literal != nil:
		v, err := value.FromAny(s.Literal.V)
		if err != nil {
			return nil, err
		}
		return Literal{Val: v}, nil

	case s.Compare != nil:
		op, err := ParseCompareOp(s.Compare.Op)
		if err != nil {
			return nil, err
		}
		left, err := s.Compare.Left.Compile()
		if err != nil {
			return nil, fmt.Errorf("compare left: %w", err)
		}
		right, err := s.Compare.Right.Compile()
		if err != nil {
			return nil, fmt.Errorf("compare right: %w", err)
		}
		return Compare{Op: op, Left: left, Right: right}, nil

	case len(s.And) > 0:
		sub, err := compileAll(s.And)
		if err != nil {
			return nil, err
		}
		return And{Exprs: sub}, nil

	case len(s.Or) > 0:
		sub, err := compileAll(s.Or)
		if err != nil {
			return nil, err
		}
		return Or{Exprs: sub}, nil

	case s.Not != nil:
		inner, err := s.Not.Compile()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil

	case s.IsNull != "":
		return IsNull{Expr: Column{Name: s.IsNull}}, nil

	case s.NotNull != "":
		return IsNull{Expr: Column{Name: s.NotNull}, Negate: true}, nil

	default:
		return nil, fmt.Errorf("empty expression: one of column, literal, compare, and, or, not, is_null, not_null required")
	}
}

func compileAll(specs []Spec) ([]Expr, error) {
	out := make([]Expr, 0, len(specs))
	for i, s := range specs {
		e, err := s.Compile()
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s Spec) checkOneVariant() error {
	set := 0
	if s.Column != "" {
		set++
	}
	if s.Literal != nil {
		set++
	}
	if s.Compare != nil {
		set++
	}
	if len(s.And) > 0 {
		set++
	}
	if len(s.Or) > 0 {
		set++
	}
	if s.Not != nil {
		set++
	}
	if s.IsNull != "" {
		set++
	}
	if s.NotNull != "" {
		set++
	}
	if set > 1 {
		return fmt.Errorf("expression sets %d variants, want exactly one", set)
	}
	return nil
}

// SpecOf converts an expression tree back into its serializable form.
// Compile(SpecOf(e)) reproduces e; used by round-trip tests and by the
// CLI when echoing validated queries.
func SpecOf(e Expr) Spec {
	switch node := e.(type) {
	case Column:
		return Spec{Column: node.Name}
	case Literal:
		return Spec{Literal: &Lit{V: value.ToAny(node.Val)}}
	case Compare:
		return Spec{Compare: &CompareSpec{
			Op:    string(node.Op),
			Left:  SpecOf(node.Left),
			Right: SpecOf(node.Right),
		}}
	case And:
		subs := make([]Spec, len(node.Exprs))
		for i, sub := range node.Exprs {
			subs[i] = SpecOf(sub)
		}
		return Spec{And: subs}
	case Or:
		subs := make([]Spec, len(node.Exprs))
		for i, sub := range node.Exprs {
			subs[i] = SpecOf(sub)
		}
		return Spec{Or: subs}
	case Not:
		inner := SpecOf(node.Expr)
		return Spec{Not: &inner}
	case IsNull:
		if col, ok := node.Expr.(Column); ok {
			if node.Negate {
				return Spec{NotNull: col.Name}
			}
			return Spec{IsNull: col.Name}
		}
		return Spec{}
	default:
		return Spec{}
	}
}
