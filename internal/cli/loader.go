package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/schema"
)

// schemaDoc is the YAML shape of a schema definition file.
type schemaDoc struct {
	Tables []schema.Table `yaml:"tables"`
}

// LoadTables reads table definitions from a path. A .cue file or a
// directory of CUE files loads through the CUE evaluator (constraints
// and defaults resolved); anything else parses as YAML. Both forms
// declare a top-level "tables" list.
func LoadTables(path string) ([]schema.Table, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("schema path not found: %s", path))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "access schema path", err)
	}
	if info.IsDir() || filepath.Ext(path) == ".cue" {
		return loadTablesCUE(path, info.IsDir())
	}
	return loadTablesYAML(path)
}

func loadTablesYAML(path string) ([]schema.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read schema file", err)
	}
	var doc schemaDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, WrapExitError(ExitCommandError, "parse schema file", err)
	}
	if len(doc.Tables) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no tables declared in %s", path))
	}
	return doc.Tables, nil
}

// loadTablesCUE evaluates CUE sources and decodes the "tables" field.
// CUE values decode to plain Go data first and reparse through YAML so
// the schema types keep a single set of field tags.
func loadTablesCUE(path string, isDir bool) ([]schema.Table, error) {
	ctx := cuecontext.New()

	var instances []*build.Instance
	if isDir {
		instances = load.Instances([]string{"."}, &load.Config{Dir: path})
	} else {
		instances = load.Instances([]string{path}, nil)
	}
	if len(instances) == 0 {
		return nil, NewExitError(ExitCommandError, "no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, WrapExitError(ExitCommandError, "load CUE files", inst.Err)
	}
	val := ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return nil, WrapExitError(ExitCommandError, "build CUE value", err)
	}

	tablesVal := val.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, NewExitError(ExitCommandError, "CUE schema declares no \"tables\" field")
	}
	var raw any
	if err := tablesVal.Decode(&raw); err != nil {
		return nil, WrapExitError(ExitCommandError, "decode CUE tables", err)
	}
	encoded, err := yaml.Marshal(raw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "re-encode CUE tables", err)
	}
	var tables []schema.Table
	if err := yaml.Unmarshal(encoded, &tables); err != nil {
		return nil, WrapExitError(ExitCommandError, "decode tables", err)
	}
	if len(tables) == 0 {
		return nil, NewExitError(ExitCommandError, "CUE schema declares an empty tables list")
	}
	return tables, nil
}

// LoadRows reads a seed-rows file: a YAML map from table name to a list
// of tuples.
func LoadRows(path string) (map[string][][]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read rows file", err)
	}
	var rows map[string][][]any
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, WrapExitError(ExitCommandError, "parse rows file", err)
	}
	return rows, nil
}

// LoadQuery reads a query description file.
func LoadQuery(path string) (*query.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read query file", err)
	}
	q, err := query.Parse(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parse query file", err)
	}
	return q, nil
}
