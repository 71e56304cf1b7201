package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/harness"
)

// TestResult summarizes one scenario run.
type TestResult struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// TestSummary aggregates a whole test run.
type TestSummary struct {
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestResult `json:"results"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario-path>",
		Short: "Run scenario files",
		Long: `Run declarative scenarios: YAML files defining tables, seed rows,
mutations with expected error codes, and a query with an expected
result. Each scenario runs against a fresh store.

The path may be a single .yaml file or a directory, which runs every
.yaml/.yml file in it (sorted, non-recursive).

Exit codes: 0 all passed, 1 scenario failures, 2 command error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTest(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := collectScenarioFiles(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}
	if len(files) == 0 {
		wrapped := NewExitError(ExitCommandError, fmt.Sprintf("no scenario files under %s", path))
		_ = formatter.Error(ErrCodeNotFound, wrapped.Error(), nil)
		return wrapped
	}

	summary := TestSummary{}
	for _, file := range files {
		sc, err := harness.LoadScenario(file)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, fmt.Sprintf("load %s", file), err)
			_ = formatter.Error(ErrCodeLoadFailed, wrapped.Error(), nil)
			return wrapped
		}
		formatter.VerboseLog("running %s (%s)", sc.Name, file)

		result, err := harness.Run(sc)
		if err != nil {
			wrapped := WrapExitError(ExitCommandError, fmt.Sprintf("run %s", sc.Name), err)
			_ = formatter.Error(ErrCodeScenario, wrapped.Error(), nil)
			return wrapped
		}

		tr := TestResult{Scenario: sc.Name, Passed: result.Passed(), Failures: result.Failures}
		summary.Total++
		if tr.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, tr)

		if formatter.Format != "json" {
			status := "PASS"
			if !tr.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(formatter.Writer, "%s  %s\n", status, sc.Name)
			for _, f := range tr.Failures {
				fmt.Fprintf(formatter.Writer, "      %s\n", f)
			}
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\n%d scenario(s): %d passed, %d failed\n",
			summary.Total, summary.Passed, summary.Failed)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// collectScenarioFiles expands a path into scenario files. Directories
// list their YAML files in sorted order; nested directories are left
// alone so fixture data can live alongside scenarios.
func collectScenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "access scenario path", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read scenario directory", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
