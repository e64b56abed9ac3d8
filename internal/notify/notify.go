// Package notify defines the change-notification boundary of the
// versioned store.
//
// The store queues one Event per mutation inside its transaction and
// publishes the queue only after the transaction durably commits.
// Publishing earlier would let subscribers observe state that could
// still roll back. Delivery is at-least-once; subscribers (live-update
// UIs, CLIs) must tolerate duplicates.
package notify

import (
	"context"
	"encoding/json"
)

// Event describes one committed mutation of a versioned record or
// lifecycle row.
type Event struct {
	// RecordKind is "entity", "node", "edge", "change_set" or
	// "edit_session".
	RecordKind string `json:"recordKind"`

	// Kind is the domain tag of the record, or the lifecycle status for
	// change set / edit session events.
	Kind string `json:"kind"`

	ObjectID string `json:"objectId"`

	// TierKind/TierID identify the tier the mutation landed at.
	TierKind string `json:"tierKind"`
	TierID   string `json:"tierId,omitempty"`

	// Payload is the new canonical document, or empty when Deleted.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Deleted marks a deletion (tombstone written or row promoted away).
	Deleted bool `json:"deleted,omitempty"`
}

// Notifier publishes committed mutations to external subscribers.
//
// The store calls Publish once per committed mutation, never before
// commit. Implementations must be safe for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards all events. Used when no subscriber transport is
// configured.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, Event) error { return nil }
