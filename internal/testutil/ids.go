// Package testutil provides deterministic helpers for tests and conformance
// scenarios.
package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs generates query ids 00000000-0000-0000-0000-000000000001,
// ...-000000000002 and so on.
//
// The same scenario run with a fresh SequentialIDs produces byte-identical
// snapshots.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequentialIDs creates a generator whose first id ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Next returns the next id. Its signature matches uuid.NewV7.
func (g *SequentialIDs) Next() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return SequenceID(g.seq), nil
}

// Current returns how many ids have been generated.
func (g *SequentialIDs) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. After Reset, Next returns id 1 again.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// SequenceID returns the id SequentialIDs generates for seq.
func SequenceID(seq uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], seq)
	return id
}

// FixedID returns a generator that always yields id. An empty id yields
// the nil UUID.
func FixedID(id string) func() (uuid.UUID, error) {
	if id == "" {
		return func() (uuid.UUID, error) { return uuid.Nil, nil }
	}
	return func() (uuid.UUID, error) { return uuid.Parse(id) }
}
