package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/snapshot"
	"github.com/roach88/relq/internal/store"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Database string
	RowsFile string
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create and inspect SQLite snapshots",
	}
	cmd.AddCommand(newSnapshotCreateCommand(rootOpts))
	cmd.AddCommand(newSnapshotInfoCommand(rootOpts))
	return cmd
}

func newSnapshotCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <schema-path>",
		Short: "Build a store from a schema and save it",
		Long: `Create a store from table definitions, optionally seed it with rows,
and persist it to a SQLite snapshot file.

Seed rows come from a YAML file mapping table names to tuples:

  customers:
    - [1, "Ada"]
    - [2, "Grace"]

Example:
  relq snapshot create --db shop.db --rows seed.yaml ./schema.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the snapshot file (required)")
	cmd.Flags().StringVar(&opts.RowsFile, "rows", "", "path to a YAML seed-rows file")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSnapshotCreate(opts *SnapshotOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tables, err := LoadTables(schemaPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return err
	}

	var rows map[string][][]any
	if opts.RowsFile != "" {
		if rows, err = LoadRows(opts.RowsFile); err != nil {
			_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
			return err
		}
	}

	st := store.New()
	total := 0
	for _, tbl := range tables {
		if err := st.CreateTable(tbl); err != nil {
			wrapped := WrapExitError(ExitFailure, fmt.Sprintf("create table %s", tbl.Name), err)
			_ = formatter.Error(ErrCodeSchema, wrapped.Error(), nil)
			return wrapped
		}
		formatter.VerboseLog("created table %s", tbl.Name)
		if seed := rows[tbl.Name]; len(seed) > 0 {
			n, err := st.InsertAny(tbl.Name, seed)
			if err != nil {
				wrapped := WrapExitError(ExitFailure, fmt.Sprintf("seed table %s", tbl.Name), err)
				_ = formatter.Error(ErrCodeSchema, wrapped.Error(), nil)
				return wrapped
			}
			total += n
			formatter.VerboseLog("seeded %s with %d row(s)", tbl.Name, n)
		}
	}
	for name := range rows {
		if _, ok := st.Schema(name); !ok {
			wrapped := NewExitError(ExitCommandError, fmt.Sprintf("rows file references unknown table %q", name))
			_ = formatter.Error(ErrCodeLoadFailed, wrapped.Error(), nil)
			return wrapped
		}
	}

	if err := snapshot.Save(st, opts.Database); err != nil {
		wrapped := WrapExitError(ExitCommandError, "write snapshot", err)
		_ = formatter.Error(ErrCodeSnapshot, wrapped.Error(), nil)
		return wrapped
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"snapshot": opts.Database,
			"tables":   len(tables),
			"rows":     total,
		})
	}
	return formatter.Success(fmt.Sprintf("Saved %d table(s), %d row(s) to %s", len(tables), total, opts.Database))
}

func newSnapshotInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "info",
		Short:         "Summarize a snapshot's tables and row counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotInfo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the snapshot file (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type tableInfo struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
}

func runSnapshotInfo(opts *SnapshotOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := snapshot.Load(opts.Database)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "load snapshot", err)
		_ = formatter.Error(ErrCodeSnapshot, wrapped.Error(), nil)
		return wrapped
	}

	var infos []tableInfo
	for _, tbl := range st.Tables() {
		n, err := st.RowCount(tbl.Name)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, "count rows", err)
			_ = formatter.Error(ErrCodeSnapshot, wrapped.Error(), nil)
			return wrapped
		}
		infos = append(infos, tableInfo{Name: tbl.Name, Columns: len(tbl.Columns), Rows: n})
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%s: %d column(s), %d row(s)\n", info.Name, info.Columns, info.Rows)
	}
	return nil
}
