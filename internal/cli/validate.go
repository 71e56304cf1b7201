package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/schema"
)

// ValidationResult holds schema validation output.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Tables int      `json:"tables"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-path>",
		Short: "Validate table definitions",
		Long: `Validate table definitions without creating a store.

Checks identifiers, column types, defaults, key declarations, foreign
key targets, check expressions, and rejects cascade cycles. All problems
are reported at once.

The schema path may be a YAML file or a CUE file/directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tables, err := LoadTables(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return err
	}
	formatter.VerboseLog("loaded %d table definition(s) from %s", len(tables), path)

	result := ValidationResult{Valid: true, Tables: len(tables)}
	for _, err := range schema.Validate(tables) {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if !result.Valid {
		if formatter.Format == "json" {
			_ = formatter.Success(result)
		} else {
			_ = formatter.Error(ErrCodeSchema, "schema is invalid", nil)
			for _, msg := range result.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", msg)
			}
		}
		return NewExitError(ExitFailure, "schema validation failed")
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success("Schema is valid.")
}
