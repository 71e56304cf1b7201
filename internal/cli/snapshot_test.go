package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopRowsYAML = `customers:
  - [1, Ada]
  - [2, Grace]
orders:
  - [10, 1, 19.99]
`

// createSnapshot builds a seeded snapshot in a temp dir and returns its
// path plus the command's text output.
func createSnapshot(t *testing.T) (string, string) {
	t.Helper()
	schemaPath := writeTemp(t, "schema.yaml", shopSchemaYAML)
	rowsPath := writeTemp(t, "rows.yaml", shopRowsYAML)
	dbPath := filepath.Join(t.TempDir(), "shop.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := newSnapshotCreateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--rows", rowsPath, schemaPath})

	require.NoError(t, cmd.Execute())
	return dbPath, buf.String()
}

func TestSnapshotCreate(t *testing.T) {
	dbPath, out := createSnapshot(t)
	assert.Contains(t, out, fmt.Sprintf("Saved 2 table(s), 3 row(s) to %s", dbPath))
}

func TestSnapshotCreateJSON(t *testing.T) {
	schemaPath := writeTemp(t, "schema.yaml", shopSchemaYAML)
	dbPath := filepath.Join(t.TempDir(), "shop.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := newSnapshotCreateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, schemaPath})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Snapshot string `json:"snapshot"`
			Tables   int    `json:"tables"`
			Rows     int    `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, dbPath, resp.Data.Snapshot)
	assert.Equal(t, 2, resp.Data.Tables)
	assert.Equal(t, 0, resp.Data.Rows)
}

func TestSnapshotCreateRequiresDBFlag(t *testing.T) {
	schemaPath := writeTemp(t, "schema.yaml", shopSchemaYAML)

	cmd := newSnapshotCreateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{schemaPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestSnapshotCreateRejectsUnknownSeedTable(t *testing.T) {
	schemaPath := writeTemp(t, "schema.yaml", shopSchemaYAML)
	rowsPath := writeTemp(t, "rows.yaml", "products:\n  - [1]\n")
	dbPath := filepath.Join(t.TempDir(), "shop.db")

	buf := &bytes.Buffer{}
	cmd := newSnapshotCreateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--rows", rowsPath, schemaPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "unknown table")
}

func TestSnapshotCreateSeedViolation(t *testing.T) {
	schemaPath := writeTemp(t, "schema.yaml", shopSchemaYAML)
	rowsPath := writeTemp(t, "rows.yaml", `customers:
  - [1, Ada]
  - [1, Grace]
`)
	dbPath := filepath.Join(t.TempDir(), "shop.db")

	buf := &bytes.Buffer{}
	cmd := newSnapshotCreateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--rows", rowsPath, schemaPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "seed table customers")
}

func TestSnapshotInfo(t *testing.T) {
	dbPath, _ := createSnapshot(t)

	buf := &bytes.Buffer{}
	cmd := newSnapshotInfoCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "customers: 2 column(s), 2 row(s)")
	assert.Contains(t, buf.String(), "orders: 3 column(s), 1 row(s)")
}

func TestSnapshotInfoJSON(t *testing.T) {
	dbPath, _ := createSnapshot(t)

	buf := &bytes.Buffer{}
	cmd := newSnapshotInfoCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   []tableInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
}

func TestSnapshotInfoMissingDB(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSnapshotInfoCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "missing.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}
