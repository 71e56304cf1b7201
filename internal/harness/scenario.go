// Package harness runs declarative scenarios: YAML files that define
// tables, seed rows, a sequence of mutations, and a query with an
// expected result. Scenarios double as documentation and as golden
// tests; the same scenario always produces a byte-identical rendering.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/schema"
)

// Scenario is one declarative test case.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed
	// by it.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Tables are created in order before anything runs.
	Tables []schema.Table `yaml:"tables"`

	// Rows seeds each table (keyed by table name) after creation.
	// Values use the same shapes as insert steps.
	Rows map[string][][]any `yaml:"rows,omitempty"`

	// Steps are mutations applied in order. A step expecting an error
	// must fail with exactly that code.
	Steps []Step `yaml:"steps,omitempty"`

	// Query, when present, runs after the steps; Expect describes its
	// outcome.
	Query  *query.Query `yaml:"query,omitempty"`
	Expect *Expect      `yaml:"expect,omitempty"`

	// TokenPrefix seeds the deterministic mutation token generator.
	// Empty means "test-token".
	TokenPrefix string `yaml:"token_prefix,omitempty"`
}

// Step is one mutation.
type Step struct {
	// Op is insert, update, delete, or truncate.
	Op    string `yaml:"op"`
	Table string `yaml:"table"`

	// Rows holds the tuples for insert.
	Rows [][]any `yaml:"rows,omitempty"`

	// Set holds column assignments for update.
	Set map[string]any `yaml:"set,omitempty"`

	// Where selects rows for update and delete. Nil matches all rows.
	Where *expr.Spec `yaml:"where,omitempty"`

	// ExpectError, when set, is the error code this step must fail
	// with (e.g. "REFERENTIAL_BLOCK"). The step failing with another
	// code, or succeeding, fails the scenario.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expect describes the query outcome.
type Expect struct {
	// Columns are the expected output column labels, in order.
	Columns []string `yaml:"columns,omitempty"`

	// Rows are the expected tuples, in the same value shapes as seed
	// rows. YAML null means SQL null.
	Rows [][]any `yaml:"rows"`

	// Unordered compares rows as a multiset instead of a sequence.
	Unordered bool `yaml:"unordered,omitempty"`

	// Error, when set, is the code the query must fail with; Columns
	// and Rows are then ignored.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario file. Unknown YAML fields
// are rejected, which catches typos like "step:" for "steps:".
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(sc.Tables) == 0 {
		return fmt.Errorf("tables list is required and must be non-empty")
	}
	known := make(map[string]bool, len(sc.Tables))
	for _, tbl := range sc.Tables {
		known[tbl.Name] = true
	}
	for name := range sc.Rows {
		if !known[name] {
			return fmt.Errorf("rows: unknown table %q", name)
		}
	}
	for i, step := range sc.Steps {
		switch step.Op {
		case "insert":
			if len(step.Rows) == 0 {
				return fmt.Errorf("steps[%d]: insert needs rows", i)
			}
		case "update":
			if len(step.Set) == 0 {
				return fmt.Errorf("steps[%d]: update needs set", i)
			}
		case "delete", "truncate":
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Table == "" {
			return fmt.Errorf("steps[%d]: table is required", i)
		}
	}
	if sc.Query != nil {
		if sc.Expect == nil {
			return fmt.Errorf("query needs an expect clause")
		}
		if sc.Expect.Error == "" && sc.Expect.Rows == nil {
			return fmt.Errorf("expect needs rows or an error code")
		}
	}
	if sc.Query == nil && sc.Expect != nil {
		return fmt.Errorf("expect without a query")
	}
	return nil
}
