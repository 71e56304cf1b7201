// Package snapshot persists a store to a SQLite file and restores it.
//
// The layout is one SQLite table per stored table plus a catalog table,
// relq_catalog, holding each table's schema (as YAML) and identity
// counters. Loading re-validates the schema set and replays every row
// through the normal insert path, so a snapshot edited by hand still
// cannot smuggle in a constraint violation.
package snapshot

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/store"
	"github.com/roach88/relq/internal/value"
)

const catalogTable = "relq_catalog"

const catalogSchema = `
CREATE TABLE IF NOT EXISTS relq_catalog (
	position      INTEGER PRIMARY KEY,
	table_name    TEXT NOT NULL UNIQUE,
	schema_yaml   TEXT NOT NULL,
	identity_yaml TEXT NOT NULL
)`

var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Save writes the store's full contents to a SQLite file, replacing any
// previous snapshot at that path. Tables persist in creation order so a
// later Load can recreate them before their dependents.
func Save(st *store.Store, path string) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if err := clearSnapshot(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(catalogSchema); err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}

	for pos, sc := range st.Tables() {
		if err := saveTable(tx, st, sc, pos); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file into a fresh store. Options (for example a
// fixed token generator) pass through to store.New.
func Load(path string, opts ...store.Option) (*store.Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT table_name, schema_yaml, identity_yaml FROM relq_catalog ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	defer rows.Close()

	type entry struct {
		schema   schema.Table
		identity map[string]int64
	}
	var entries []entry
	for rows.Next() {
		var name, schemaYAML, identityYAML string
		if err := rows.Scan(&name, &schemaYAML, &identityYAML); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		var e entry
		if err := yaml.Unmarshal([]byte(schemaYAML), &e.schema); err != nil {
			return nil, fmt.Errorf("table %s: decode schema: %w", name, err)
		}
		if e.schema.Name != name {
			return nil, fmt.Errorf("catalog names table %q but its schema says %q", name, e.schema.Name)
		}
		if err := yaml.Unmarshal([]byte(identityYAML), &e.identity); err != nil {
			return nil, fmt.Errorf("table %s: decode identity counters: %w", name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	st := store.New(opts...)
	for _, e := range entries {
		if err := st.CreateTable(e.schema); err != nil {
			return nil, fmt.Errorf("recreate table %s: %w", e.schema.Name, err)
		}
	}
	// Rows load after every table exists so foreign keys can point
	// forward in creation order.
	for _, e := range entries {
		if err := loadRows(db, st, e.schema); err != nil {
			return nil, err
		}
		if len(e.identity) > 0 {
			if err := st.RestoreIdentity(e.schema.Name, e.identity); err != nil {
				return nil, fmt.Errorf("restore identity for %s: %w", e.schema.Name, err)
			}
		}
	}
	return st, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect snapshot: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return db, nil
}

// clearSnapshot drops every table recorded in an existing catalog, then
// the catalog itself.
func clearSnapshot(tx *sql.Tx) error {
	var exists int
	err := tx.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, catalogTable).Scan(&exists)
	if err != nil {
		return fmt.Errorf("inspect snapshot: %w", err)
	}
	if exists == 0 {
		return nil
	}
	rows, err := tx.Query(`SELECT table_name FROM relq_catalog`)
	if err != nil {
		return fmt.Errorf("read old catalog: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan old catalog: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read old catalog: %w", err)
	}
	for _, name := range names {
		if !validIdentifier.MatchString(name) {
			return fmt.Errorf("old catalog holds invalid table name %q", name)
		}
		if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, name)); err != nil {
			return fmt.Errorf("drop old table %s: %w", name, err)
		}
	}
	if _, err := tx.Exec(`DROP TABLE relq_catalog`); err != nil {
		return fmt.Errorf("drop old catalog: %w", err)
	}
	return nil
}

func saveTable(tx *sql.Tx, st *store.Store, sc schema.Table, pos int) error {
	if !validIdentifier.MatchString(sc.Name) {
		return fmt.Errorf("table name %q is not storable", sc.Name)
	}
	schemaYAML, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("table %s: encode schema: %w", sc.Name, err)
	}
	identity, err := st.IdentityState(sc.Name)
	if err != nil {
		return fmt.Errorf("table %s: identity state: %w", sc.Name, err)
	}
	identityYAML, err := yaml.Marshal(identity)
	if err != nil {
		return fmt.Errorf("table %s: encode identity counters: %w", sc.Name, err)
	}
	_, err = tx.Exec(`INSERT INTO relq_catalog (position, table_name, schema_yaml, identity_yaml) VALUES (?, ?, ?, ?)`,
		pos, sc.Name, string(schemaYAML), string(identityYAML))
	if err != nil {
		return fmt.Errorf("table %s: write catalog: %w", sc.Name, err)
	}

	colDefs := make([]string, len(sc.Columns))
	colNames := make([]string, len(sc.Columns))
	holes := make([]string, len(sc.Columns))
	for i, col := range sc.Columns {
		if !validIdentifier.MatchString(col.Name) {
			return fmt.Errorf("table %s: column name %q is not storable", sc.Name, col.Name)
		}
		colDefs[i] = fmt.Sprintf("%q %s", col.Name, sqliteType(col.Type))
		colNames[i] = fmt.Sprintf("%q", col.Name)
		holes[i] = "?"
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", sc.Name, strings.Join(colDefs, ", "))
	if _, err := tx.Exec(createStmt); err != nil {
		return fmt.Errorf("table %s: create: %w", sc.Name, err)
	}

	insertStmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		sc.Name, strings.Join(colNames, ", "), strings.Join(holes, ", "))
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		return fmt.Errorf("table %s: prepare insert: %w", sc.Name, err)
	}
	defer stmt.Close()

	_, rows, err := st.Snapshot(sc.Name)
	if err != nil {
		return fmt.Errorf("table %s: scan: %w", sc.Name, err)
	}
	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = toSQL(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("table %s: write row: %w", sc.Name, err)
		}
	}
	return nil
}

func loadRows(db *sql.DB, st *store.Store, sc schema.Table) error {
	colNames := make([]string, len(sc.Columns))
	for i, col := range sc.Columns {
		colNames[i] = fmt.Sprintf("%q", col.Name)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q", strings.Join(colNames, ", "), sc.Name)
	rows, err := db.Query(stmt)
	if err != nil {
		return fmt.Errorf("table %s: read rows: %w", sc.Name, err)
	}
	defer rows.Close()

	var batch [][]value.Value
	raw := make([]any, len(sc.Columns))
	ptrs := make([]any, len(sc.Columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("table %s: scan row: %w", sc.Name, err)
		}
		row := make([]value.Value, len(sc.Columns))
		for i, col := range sc.Columns {
			v, err := fromSQL(raw[i], col.Type)
			if err != nil {
				return fmt.Errorf("table %s, column %s: %w", sc.Name, col.Name, err)
			}
			row[i] = v
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table %s: read rows: %w", sc.Name, err)
	}
	if len(batch) == 0 {
		return nil
	}
	if _, err := st.InsertRows(sc.Name, batch); err != nil {
		return fmt.Errorf("table %s: replay rows: %w", sc.Name, err)
	}
	return nil
}

// sqliteType maps a column kind to its storage affinity. Decimals store
// as canonical text so no precision is lost through SQLite's float
// affinity.
func sqliteType(k value.Kind) string {
	switch k {
	case value.KindInt, value.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func toSQL(v value.Value) any {
	switch n := v.(type) {
	case value.Null:
		return nil
	case value.Int:
		return int64(n)
	case value.Text:
		return string(n)
	case value.Bool:
		if n {
			return int64(1)
		}
		return int64(0)
	case value.Decimal:
		return n.String()
	}
	return nil
}

func fromSQL(raw any, kind value.Kind) (value.Value, error) {
	if raw == nil {
		return value.Null{}, nil
	}
	switch kind {
	case value.KindInt:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}
		return value.Int(n), nil
	case value.KindBool:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("expected 0/1, got %T", raw)
		}
		return value.Bool(n != 0), nil
	case value.KindText:
		s, ok := sqlText(raw)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", raw)
		}
		return value.Text(s), nil
	case value.KindDecimal:
		s, ok := sqlText(raw)
		if !ok {
			return nil, fmt.Errorf("expected decimal text, got %T", raw)
		}
		d, err := value.NewDecimal(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unstorable column kind %s", kind)
}

// sqlText accepts both string and []byte, which the sqlite3 driver uses
// interchangeably for TEXT.
func sqlText(raw any) (string, bool) {
	switch s := raw.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
