package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/relq/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // validation or scenario failure
	ExitCommandError = 2 // command error (bad paths, unreadable files)
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeNotFound    = "E002" // path not found
	ErrCodeLoadFailed  = "E003" // schema/query/scenario load failed
	ErrCodeSchema      = "E004" // schema validation failed
	ErrCodeSnapshot    = "E005" // snapshot read/write failed
	ErrCodeQuery       = "E006" // query execution failed
	ErrCodeScenario    = "E007" // scenario execution failed
	ErrCodeWriteFailed = "E008" // file write error
)

// ExitError is an error carrying a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Plain errors map to
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON envelope for command output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries structured error details in JSON responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. Logs go
// to ErrWriter so JSON output on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// relationPayload is the JSON shape for query results.
type relationPayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func relationToPayload(rel *engine.Relation) relationPayload {
	p := relationPayload{
		Columns: make([]string, len(rel.Cols)),
		Rows:    make([][]string, len(rel.Rows)),
	}
	for i, col := range rel.Cols {
		p.Columns[i] = col.Label()
	}
	for i, row := range rel.Rows {
		p.Rows[i] = make([]string, len(row))
		for j, v := range row {
			p.Rows[i][j] = v.String()
		}
	}
	return p
}

// writeRelation renders a relation as an aligned text table or a JSON
// payload, per the configured format.
func (f *OutputFormatter) writeRelation(rel *engine.Relation) error {
	p := relationToPayload(rel)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: p})
	}

	widths := make([]int, len(p.Columns))
	for i, name := range p.Columns {
		widths[i] = len(name)
	}
	for _, row := range p.Rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	writeLine := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		fmt.Fprintln(f.Writer, strings.TrimRight(strings.Join(parts, " | "), " "))
	}
	writeLine(p.Columns)
	rule := make([]string, len(p.Columns))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	writeLine(rule)
	for _, row := range p.Rows {
		writeLine(row)
	}
	fmt.Fprintf(f.Writer, "(%d rows)\n", len(p.Rows))
	return nil
}
