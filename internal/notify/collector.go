package notify

import (
	"context"
	"sync"
)

// Collector records published events in order. Test implementation of
// Notifier; also useful for in-process subscribers.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Publish implements Notifier.
func (c *Collector) Publish(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of the events published so far, in publish
// order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset discards recorded events.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
