// Package store implements the relq tuple store: named in-memory tables
// with schema-enforced mutation.
//
// Concurrency model: one RWMutex guards the whole store. Scans take the
// read lock just long enough to capture the current row slice; mutations
// hold the write lock for validation plus apply, including every table a
// cascade touches. Row slices are copy-on-write - a mutation builds
// replacement slices, validates everything, then swaps pointers - so a
// scanner captured before a mutation keeps iterating the pre-mutation
// snapshot and never observes a partial write.
//
// Every committed mutation is stamped with a monotonic logical sequence
// number and a generated token, and appended to an in-memory journal.
// The journal is an audit trail for the CLI and tests, not a durability
// mechanism; see the snapshot package for persistence.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/value"
)

// TokenGenerator produces mutation tokens for the journal.
// Implemented by UUIDv7Generator (production) and the testutil fixed
// generator (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 mutation tokens.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Store holds named tables and their rows.
type Store struct {
	mu      sync.RWMutex
	tables  map[string]*table
	order   []string // creation order, for deterministic listings
	clock   Clock
	tokens  TokenGenerator
	journal []JournalEntry
}

// table bundles a schema with its rows and bookkeeping. The rows slice
// is replaced, never mutated in place.
type table struct {
	schema   schema.Table
	rows     [][]value.Value
	identity map[string]int64 // identity column → next value
	checks   []compiledCheck
}

type compiledCheck struct {
	name string
	expr expr.Expr
}

// Option configures a Store.
type Option func(*Store)

// WithTokenGenerator overrides the journal token source. Tests use a
// fixed generator for byte-identical journals across runs.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(s *Store) {
		s.tokens = gen
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*table),
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTable installs a table. The schema is validated against the
// tables already present (foreign keys may reference existing tables or
// the new table itself); it is fixed at creation and never altered.
func (s *Store) CreateTable(sc schema.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[sc.Name]; exists {
		return violationf(sc.Name, "", "table already exists")
	}

	all := make([]schema.Table, 0, len(s.tables)+1)
	for _, name := range s.order {
		all = append(all, s.tables[name].schema)
	}
	all = append(all, sc)
	if errs := schema.Validate(all); len(errs) > 0 {
		return errs[0]
	}

	t := &table{schema: sc, identity: map[string]int64{}}
	for _, c := range sc.Columns {
		if c.Identity != nil {
			t.identity[c.Name] = c.Identity.Seed
		}
	}
	for _, check := range sc.Checks {
		compiled, err := check.Expr.Compile()
		if err != nil {
			return err // unreachable after Validate; kept for safety
		}
		t.checks = append(t.checks, compiledCheck{name: check.Name, expr: compiled})
	}

	s.tables[sc.Name] = t
	s.order = append(s.order, sc.Name)
	s.record("create_table", sc.Name, 0)
	return nil
}

// DropTable removes a table wholesale. Blocked while another table holds
// a foreign key referencing it.
func (s *Store) DropTable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return unknownTable(name)
	}
	for _, other := range s.order {
		if other == name {
			continue
		}
		for i := range s.tables[other].schema.ForeignKeys {
			fk := &s.tables[other].schema.ForeignKeys[i]
			if fk.RefTable == name {
				return referentialBlockf(name, fk.Label(other),
					"table is referenced by %s", other)
			}
		}
	}

	delete(s.tables, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.record("drop_table", name, 0)
	return nil
}

// Schema returns the schema of a named table.
func (s *Store) Schema(name string) (schema.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return schema.Table{}, false
	}
	return t.schema, true
}

// Tables lists all schemas in creation order.
func (s *Store) Tables() []schema.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Table, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tables[name].schema)
	}
	return out
}

// Scanner iterates a consistent snapshot of a table's rows. Multiple
// scanners may run concurrently with each other and with mutations; a
// scanner always sees the state its Scan call captured. Callers must not
// modify returned rows.
type Scanner struct {
	cols []schema.Column
	rows [][]value.Value
	pos  int
}

// Next advances to the next row.
func (sc *Scanner) Next() bool {
	if sc.pos >= len(sc.rows) {
		return false
	}
	sc.pos++
	return true
}

// Row returns the current row. Valid after Next reports true.
func (sc *Scanner) Row() []value.Value {
	return sc.rows[sc.pos-1]
}

// Columns returns the table's column definitions.
func (sc *Scanner) Columns() []schema.Column {
	return sc.cols
}

// Len returns the number of rows in the captured snapshot.
func (sc *Scanner) Len() int {
	return len(sc.rows)
}

// Scan returns a snapshot iterator over a table.
func (s *Store) Scan(name string) (*Scanner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, unknownTable(name)
	}
	return &Scanner{cols: t.schema.Columns, rows: t.rows}, nil
}

// Snapshot returns a table's schema and current rows. The rows slice is
// the live copy-on-write slice; callers must not modify it.
func (s *Store) Snapshot(name string) (schema.Table, [][]value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return schema.Table{}, nil, unknownTable(name)
	}
	return t.schema, t.rows, nil
}

// RowCount returns the number of rows currently in a table.
func (s *Store) RowCount(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, unknownTable(name)
	}
	return len(t.rows), nil
}

// IdentityState reports the next-value counters for a table's identity
// columns. Used by snapshots to persist and restore counters.
func (s *Store) IdentityState(name string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, unknownTable(name)
	}
	out := make(map[string]int64, len(t.identity))
	for k, v := range t.identity {
		out[k] = v
	}
	return out, nil
}

// RestoreIdentity overwrites identity counters, typically after loading
// a snapshot. Unknown columns are ignored.
func (s *Store) RestoreIdentity(name string, counters map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return unknownTable(name)
	}
	for col, next := range counters {
		if _, exists := t.identity[col]; exists {
			t.identity[col] = next
		}
	}
	return nil
}
