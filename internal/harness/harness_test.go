package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		sc, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(sc.Name, func(t *testing.T) {
			RunGolden(t, sc)
		})
	}
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: a step key misspelled as "step"
tables:
  - name: t
    columns:
      - {name: id, type: integer}
step: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestParseScenarioRequiresNameAndTables(t *testing.T) {
	_, err := ParseScenario([]byte("description: d\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	_, err = ParseScenario([]byte("name: n\ndescription: d\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables list is required")
}

func TestParseScenarioRejectsRowsForUnknownTable(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
tables:
  - name: t
    columns:
      - {name: id, type: integer}
rows:
  ghost:
    - [1]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "ghost"`)
}

func TestParseScenarioQueryNeedsExpect(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
tables:
  - name: t
    columns:
      - {name: id, type: integer}
query:
  from:
    - table: t
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query needs an expect clause")
}

func TestRunReportsStepMismatch(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong_code
description: expects the wrong error code from a valid insert
tables:
  - name: t
    columns:
      - {name: id, type: integer}
    primary_key: [id]
steps:
  - op: insert
    table: t
    rows:
      - [1]
    expect_error: CONSTRAINT_VIOLATION
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "succeeded, want CONSTRAINT_VIOLATION")
}

func TestRunComparesUnorderedRows(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: unordered
description: row order in the expectation does not matter
tables:
  - name: t
    columns:
      - {name: id, type: integer}
rows:
  t:
    - [2]
    - [1]
query:
  from:
    - table: t
expect:
  unordered: true
  rows:
    - [1]
    - [2]
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "%v", result.Failures)
}

func TestRunReportsRowMismatch(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: mismatch
description: the expected rows do not match the store contents
tables:
  - name: t
    columns:
      - {name: id, type: integer}
rows:
  t:
    - [1]
query:
  from:
    - table: t
expect:
  rows:
    - [2]
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "row 0: got [1], want [2]")
}

func TestRenderIncludesFailures(t *testing.T) {
	r := &Result{Scenario: "demo", Log: []string{"create t"}}
	r.failf("boom")
	rendered := r.Render()
	assert.Contains(t, rendered, "scenario: demo\n")
	assert.Contains(t, rendered, "failures:\n  boom\n")
}
