package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/engine"
	"github.com/roach88/relq/internal/snapshot"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query-file>",
		Short: "Run a query against a snapshot",
		Long: `Load a SQLite snapshot and evaluate a declarative query against it.

The query file is YAML, e.g.:

  from:
    - {table: orders, as: o}
    - {table: customers, as: c}
  joins:
    - {left: o, right: c, kind: left_outer,
       on: {compare: {op: "=", left: {column: o.customer_id}, right: {column: c.id}}}}
  order_by:
    - {column: o.id}

Example:
  relq query --db shop.db ./queries/orders.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the snapshot file (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *QueryOptions, queryPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := LoadQuery(queryPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return err
	}

	st, err := snapshot.Load(opts.Database)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "load snapshot", err)
		_ = formatter.Error(ErrCodeSnapshot, wrapped.Error(), nil)
		return wrapped
	}
	formatter.VerboseLog("snapshot %s loaded, %d table(s)", opts.Database, len(st.Tables()))

	rel, err := engine.NewExecutor(st).Execute(q)
	if err != nil {
		wrapped := WrapExitError(ExitFailure, "query failed", err)
		_ = formatter.Error(ErrCodeQuery, wrapped.Error(), nil)
		return wrapped
	}

	return formatter.writeRelation(rel)
}
