package engine

import (
	"sync"

	"github.com/google/uuid"
)

// DrainIDGenerator names each call to ExecuteActivations that has work to
// do. Journals and traces group evaluations by drain ID.
type DrainIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 drain IDs.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined drain IDs for testing.
//
// Tests provide a known sequence of IDs so journaled output and golden
// traces are byte-stable.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedGenerator("drain-1", "drain-2")
//	gen.Generate() // "drain-1"
//	gen.Generate() // "drain-2"
//	gen.Generate() // panic: all drain IDs exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, which means the test drained more
// often than it planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all drain IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
