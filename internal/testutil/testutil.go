// Package testutil provides deterministic ID and clock sources for
// tests. Production code uses UUIDv7 ids and wall-clock timestamps;
// tests pin both so resolved records and notification traces compare
// byte-for-byte against golden files.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// SequenceIDs generates predictable ids of the form "prefix:000001".
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu  sync.Mutex
	seq int
}

// NewSequenceIDs creates a generator starting at 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// Generate implements model.IDGenerator.
func (g *SequenceIDs) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s:%06d", prefix, g.seq)
}

// FrozenClock returns a clock function that starts at a fixed instant
// and advances by one second per call. Monotonic but fully
// deterministic, so updated_at ordering stays meaningful in tests.
func FrozenClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2022, 4, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
