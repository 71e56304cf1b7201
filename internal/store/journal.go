package store

import "sync/atomic"

// Clock is a monotonic logical clock for journal ordering. All journal
// entries are stamped from it; wall-clock time never orders mutations.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// JournalEntry records one committed mutation. Rows counts every row the
// mutation touched across all tables, including cascade effects.
type JournalEntry struct {
	Seq   int64  `json:"seq" yaml:"seq"`
	Token string `json:"token" yaml:"token"`
	Op    string `json:"op" yaml:"op"`
	Table string `json:"table" yaml:"table"`
	Rows  int    `json:"rows" yaml:"rows"`
}

// Journal returns a copy of the mutation journal in commit order.
func (s *Store) Journal() []JournalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JournalEntry, len(s.journal))
	copy(out, s.journal)
	return out
}

// record appends a journal entry. Callers hold the write lock.
func (s *Store) record(op, tableName string, rows int) {
	s.journal = append(s.journal, JournalEntry{
		Seq:   s.clock.Next(),
		Token: s.tokens.Generate(),
		Op:    op,
		Table: tableName,
		Rows:  rows,
	})
}
