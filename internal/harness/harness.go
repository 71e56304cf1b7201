package harness

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relq/internal/engine"
	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/store"
	"github.com/roach88/relq/internal/testutil"
	"github.com/roach88/relq/internal/value"
)

// Result captures a scenario run: a step-by-step log, the final query
// output (already rendered), and any expectation failures. The log and
// table render deterministically, so Results feed golden comparisons
// directly.
type Result struct {
	Scenario string
	Log      []string
	Columns  []string
	Rows     [][]string
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

func (r *Result) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Run executes a scenario against a fresh store. Every run starts
// empty and uses a fixed token generator, so the journal and result
// are pure functions of the scenario.
//
// Run returns an error only for harness-level problems (a table that
// cannot be created, malformed seed rows). Expectation mismatches land
// in Result.Failures instead.
func Run(sc *Scenario) (*Result, error) {
	st := store.New(store.WithTokenGenerator(testutil.NewFixedTokenGenerator(sc.TokenPrefix)))
	result := &Result{Scenario: sc.Name}

	for _, tbl := range sc.Tables {
		if err := st.CreateTable(tbl); err != nil {
			return nil, fmt.Errorf("create table %s: %w", tbl.Name, err)
		}
		result.logf("create %s", tbl.Name)
		if rows := sc.Rows[tbl.Name]; len(rows) > 0 {
			n, err := st.InsertAny(tbl.Name, rows)
			if err != nil {
				return nil, fmt.Errorf("seed %s: %w", tbl.Name, err)
			}
			result.logf("seed %s rows=%d", tbl.Name, n)
		}
	}

	for i, step := range sc.Steps {
		if err := runStep(st, i, step, result); err != nil {
			return nil, err
		}
	}

	if sc.Query != nil {
		runQuery(st, sc, result)
	}
	return result, nil
}

func runStep(st *store.Store, i int, step Step, result *Result) error {
	var where expr.Expr
	if step.Where != nil {
		var err error
		if where, err = step.Where.Compile(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	var n int
	var err error
	switch step.Op {
	case "insert":
		n, err = st.InsertAny(step.Table, step.Rows)
	case "update":
		n, err = st.UpdateAny(step.Table, where, step.Set)
	case "delete":
		n, err = st.DeleteRows(step.Table, where)
	case "truncate":
		err = st.Truncate(step.Table)
	}

	switch {
	case err != nil && step.ExpectError == "":
		result.failf("steps[%d] %s %s: unexpected error %v", i, step.Op, step.Table, err)
		result.logf("step %02d %s %s err=%s", i+1, step.Op, step.Table, errCode(err))
	case err != nil:
		code := errCode(err)
		if code != step.ExpectError {
			result.failf("steps[%d] %s %s: got %s, want %s", i, step.Op, step.Table, code, step.ExpectError)
		}
		result.logf("step %02d %s %s err=%s", i+1, step.Op, step.Table, code)
	case step.ExpectError != "":
		result.failf("steps[%d] %s %s: succeeded, want %s", i, step.Op, step.Table, step.ExpectError)
		result.logf("step %02d %s %s rows=%d", i+1, step.Op, step.Table, n)
	default:
		result.logf("step %02d %s %s rows=%d", i+1, step.Op, step.Table, n)
	}
	return nil
}

func runQuery(st *store.Store, sc *Scenario, result *Result) {
	rel, err := engine.NewExecutor(st).Execute(sc.Query)
	if err != nil {
		code := errCode(err)
		result.logf("query err=%s", code)
		if sc.Expect.Error == "" {
			result.failf("query: unexpected error %v", err)
		} else if code != sc.Expect.Error {
			result.failf("query: got %s, want %s", code, sc.Expect.Error)
		}
		return
	}
	if sc.Expect.Error != "" {
		result.failf("query: succeeded, want %s", sc.Expect.Error)
		return
	}

	result.Columns = make([]string, len(rel.Cols))
	for i, col := range rel.Cols {
		result.Columns[i] = col.Label()
	}
	result.Rows = renderRows(rel.Rows)
	result.logf("query rows=%d", len(rel.Rows))

	checkExpectation(sc.Expect, result)
}

func checkExpectation(exp *Expect, result *Result) {
	if len(exp.Columns) > 0 && !equalStrings(exp.Columns, result.Columns) {
		result.failf("columns: got [%s], want [%s]",
			strings.Join(result.Columns, ", "), strings.Join(exp.Columns, ", "))
	}

	want, err := renderAnyRows(exp.Rows)
	if err != nil {
		result.failf("expect rows: %v", err)
		return
	}
	got := result.Rows
	if exp.Unordered {
		got = sortedRows(got)
		want = sortedRows(want)
	}
	if len(got) != len(want) {
		result.failf("row count: got %d, want %d", len(got), len(want))
		return
	}
	for i := range got {
		if !equalStrings(got[i], want[i]) {
			result.failf("row %d: got [%s], want [%s]",
				i, strings.Join(got[i], ", "), strings.Join(want[i], ", "))
		}
	}
}

// errCode extracts the structured code from store and engine errors.
func errCode(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	var ee *engine.Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return "UNSTRUCTURED"
}

// renderRows converts value rows into their canonical display strings.
func renderRows(rows [][]value.Value) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = v.String()
		}
	}
	return out
}

func renderAnyRows(rows [][]any) ([][]string, error) {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, raw := range row {
			v, err := value.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			out[i][j] = v.String()
		}
	}
	return out, nil
}

func sortedRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i], "\x1f") < strings.Join(out[j], "\x1f")
	})
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
