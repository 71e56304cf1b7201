// Package testutil holds deterministic stand-ins for the store's
// sources of nondeterminism, so tests and golden snapshots reproduce
// byte-identically across runs.
package testutil

import "fmt"

// FixedTokenGenerator issues mutation tokens from a fixed prefix plus a
// counter instead of UUIDv7s. The same sequence of mutations always
// yields the same journal.
//
// Not safe for concurrent use; test scenarios mutate sequentially.
type FixedTokenGenerator struct {
	prefix string
	n      int
}

// NewFixedTokenGenerator creates a generator with the given prefix.
// An empty prefix defaults to "test-token".
func NewFixedTokenGenerator(prefix string) *FixedTokenGenerator {
	if prefix == "" {
		prefix = "test-token"
	}
	return &FixedTokenGenerator{prefix: prefix}
}

// Generate returns the next token, e.g. "test-token-0001".
// Implements store.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
