package testutil

import (
	"fmt"

	"github.com/roach88/pachinko/internal/engine"
)

// DrainIDs returns a generator yielding "drain-1" through "drain-n".
//
// The same scenario run with the same generator produces byte-identical
// traces, which golden comparison depends on.
func DrainIDs(n int) *engine.FixedGenerator {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("drain-%d", i+1)
	}
	return engine.NewFixedGenerator(ids...)
}
