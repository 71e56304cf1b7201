package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render produces the deterministic text form of a result: the step
// log, the query output as an aligned table, and any failures. Golden
// files store exactly this rendering.
func (r *Result) Render() string {
	var b strings.Builder
	b.WriteString("scenario: " + r.Scenario + "\n")
	for _, line := range r.Log {
		b.WriteString(line + "\n")
	}
	if r.Columns != nil {
		b.WriteString("result:\n")
		widths := columnWidths(r.Columns, r.Rows)
		writeRow(&b, r.Columns, widths)
		for _, row := range r.Rows {
			writeRow(&b, row, widths)
		}
	}
	if len(r.Failures) > 0 {
		b.WriteString("failures:\n")
		for _, f := range r.Failures {
			b.WriteString("  " + f + "\n")
		}
	}
	return b.String()
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString(" ")
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(cell)
		if pad := widths[i] - len(cell); pad > 0 && i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	b.WriteString("\n")
}

// RunGolden executes the scenario and compares its rendering against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// A failing expectation shows up in the rendering (and usually as a
// golden diff), but RunGolden also fails the test directly so broken
// scenarios cannot hide behind an updated golden file.
func RunGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		t.Fatalf("run scenario %s: %v", sc.Name, err)
	}
	if !result.Passed() {
		for _, f := range result.Failures {
			t.Errorf("scenario %s: %s", sc.Name, f)
		}
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, []byte(result.Render()))
}
