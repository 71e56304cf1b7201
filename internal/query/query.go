// Package query defines the declarative, serializable query description
// the executor evaluates. A Query is plain data: it round-trips through
// YAML unchanged, carries no handles into any store, and the same value
// can be executed against different stores.
package query

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/expr"
)

// Source names one scanned table. As is the alias the rest of the query
// refers to it by; when empty the table name doubles as the alias.
// Scanning the same table twice under different aliases is how
// self-joins are written.
type Source struct {
	Table string `yaml:"table"`
	As    string `yaml:"as,omitempty"`
}

// Alias is the name other clauses use for this source.
func (s Source) Alias() string {
	if s.As != "" {
		return s.As
	}
	return s.Table
}

// Join combines two previously introduced aliases (or the results of
// earlier joins containing them).
type Join struct {
	Left  string     `yaml:"left"`
	Right string     `yaml:"right"`
	Kind  string     `yaml:"kind"`
	On    *expr.Spec `yaml:"on,omitempty"`
}

// OrderKey is one sort key.
type OrderKey struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc,omitempty"`
}

// Window describes a ranking computation appended as a new column.
// KeepFirst keeps only rank-1 rows, turning the window into a
// deduplication step.
type Window struct {
	PartitionBy []string   `yaml:"partition_by,omitempty"`
	OrderBy     []OrderKey `yaml:"order_by,omitempty"`
	Function    string     `yaml:"function"`
	As          string     `yaml:"as"`
	KeepFirst   bool       `yaml:"keep_first,omitempty"`
}

// Pivot rotates rows into columns. SpreadValues is the static list of
// spread-column values that become output columns; it fixes the output
// shape independently of the data.
type Pivot struct {
	Group        []string `yaml:"group"`
	Spread       string   `yaml:"spread"`
	Value        string   `yaml:"value"`
	Agg          string   `yaml:"agg"`
	SpreadValues []any    `yaml:"spread_values"`
}

// Unpivot rotates columns back into rows.
type Unpivot struct {
	Keep    []string `yaml:"keep,omitempty"`
	Columns []string `yaml:"columns"`
	NameAs  string   `yaml:"name_as"`
	ValueAs string   `yaml:"value_as"`
}

// SetOp combines this query's result with another query's.
type SetOp struct {
	Kind  string `yaml:"kind"`
	Right *Query `yaml:"query"`
}

// Projection is one output column: an expression plus an optional name.
// Without As, a bare column reference keeps its name; any other
// expression needs an explicit As.
type Projection struct {
	expr.Spec `yaml:",inline"`
	As        string `yaml:"as,omitempty"`
}

// Query is a complete declarative query. Stages apply in a fixed order:
// sources, filter, joins, window, pivot or unpivot, set operations,
// projection, ordering.
type Query struct {
	Sources []Source     `yaml:"from"`
	Joins   []Join       `yaml:"joins,omitempty"`
	Filter  *expr.Spec   `yaml:"where,omitempty"`
	Window  *Window      `yaml:"window,omitempty"`
	Pivot   *Pivot       `yaml:"pivot,omitempty"`
	Unpivot *Unpivot     `yaml:"unpivot,omitempty"`
	SetOps  []SetOp      `yaml:"set_ops,omitempty"`
	Select  []Projection `yaml:"select,omitempty"`
	OrderBy []OrderKey   `yaml:"order_by,omitempty"`
}

// Parse decodes a YAML query description.
func Parse(data []byte) (*Query, error) {
	var q Query
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return &q, nil
}

// Marshal encodes the query back to YAML.
func (q *Query) Marshal() ([]byte, error) {
	return yaml.Marshal(q)
}

// Validate checks the query's structure without touching any store.
// It collects every problem it can find rather than stopping at the
// first, so a caller can report them all at once. Resolution against an
// actual schema (table existence, column types) happens at execution.
func (q *Query) Validate() []error {
	var errs []error
	if len(q.Sources) == 0 {
		errs = append(errs, fmt.Errorf("query needs at least one source"))
	}
	seen := make(map[string]bool, len(q.Sources))
	for i, src := range q.Sources {
		if src.Table == "" {
			errs = append(errs, fmt.Errorf("from[%d]: missing table name", i))
			continue
		}
		alias := src.Alias()
		if seen[alias] {
			errs = append(errs, fmt.Errorf("from[%d]: duplicate alias %q", i, alias))
		}
		seen[alias] = true
	}
	for i, j := range q.Joins {
		if j.Left == "" || j.Right == "" {
			errs = append(errs, fmt.Errorf("joins[%d]: needs left and right aliases", i))
		}
		if j.Kind == "" {
			errs = append(errs, fmt.Errorf("joins[%d]: missing kind", i))
		} else if !validJoinKind(j.Kind) {
			errs = append(errs, fmt.Errorf("joins[%d]: unknown kind %q", i, j.Kind))
		}
		if j.On == nil && j.Kind != "cross" {
			errs = append(errs, fmt.Errorf("joins[%d]: %s join needs an on predicate", i, j.Kind))
		}
		if j.On != nil {
			if _, err := j.On.Compile(); err != nil {
				errs = append(errs, fmt.Errorf("joins[%d]: %w", i, err))
			}
		}
	}
	if q.Filter != nil {
		if _, err := q.Filter.Compile(); err != nil {
			errs = append(errs, fmt.Errorf("where: %w", err))
		}
	}
	if q.Window != nil {
		w := q.Window
		if w.Function == "" {
			errs = append(errs, fmt.Errorf("window: missing function"))
		}
		if w.As == "" {
			errs = append(errs, fmt.Errorf("window: missing output column name"))
		}
	}
	if q.Pivot != nil && q.Unpivot != nil {
		errs = append(errs, fmt.Errorf("pivot and unpivot are mutually exclusive"))
	}
	if p := q.Pivot; p != nil {
		if p.Spread == "" || p.Value == "" || p.Agg == "" {
			errs = append(errs, fmt.Errorf("pivot: spread, value and agg are required"))
		}
		if len(p.SpreadValues) == 0 {
			errs = append(errs, fmt.Errorf("pivot: spread_values must list at least one value"))
		}
	}
	if u := q.Unpivot; u != nil {
		if len(u.Columns) == 0 {
			errs = append(errs, fmt.Errorf("unpivot: columns must list at least one source column"))
		}
		if u.NameAs == "" || u.ValueAs == "" {
			errs = append(errs, fmt.Errorf("unpivot: name_as and value_as are required"))
		}
	}
	for i, op := range q.SetOps {
		if !validSetOpKind(op.Kind) {
			errs = append(errs, fmt.Errorf("set_ops[%d]: unknown kind %q", i, op.Kind))
		}
		if op.Right == nil {
			errs = append(errs, fmt.Errorf("set_ops[%d]: missing right-hand query", i))
			continue
		}
		for _, err := range op.Right.Validate() {
			errs = append(errs, fmt.Errorf("set_ops[%d]: %w", i, err))
		}
	}
	for i, p := range q.Select {
		compiled, err := p.Spec.Compile()
		if err != nil {
			errs = append(errs, fmt.Errorf("select[%d]: %w", i, err))
			continue
		}
		if _, bare := compiled.(expr.Column); !bare && p.As == "" {
			errs = append(errs, fmt.Errorf("select[%d]: computed expression needs an as name", i))
		}
	}
	for i, key := range q.OrderBy {
		if key.Column == "" {
			errs = append(errs, fmt.Errorf("order_by[%d]: missing column", i))
		}
	}
	return errs
}

func validJoinKind(s string) bool {
	switch s {
	case "inner", "left_outer", "right_outer", "full_outer", "cross":
		return true
	}
	return false
}

func validSetOpKind(s string) bool {
	switch s {
	case "union", "union_all", "intersect", "except":
		return true
	}
	return false
}
