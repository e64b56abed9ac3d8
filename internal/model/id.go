package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for the record and lifecycle kinds. Prefixed IDs make
// logs and foreign keys self-describing.
const (
	PrefixEntity      = "entity"
	PrefixNode        = "node"
	PrefixEdge        = "edge"
	PrefixChangeSet   = "changeSet"
	PrefixEditSession = "editSession"
)

// NewID generates a prefixed, time-sortable identifier.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort
// by creation time. Format: "entity:018f4c2e-...".
//
// Panics if UUID generation fails (should never happen in practice).
func NewID(prefix string) string {
	return prefix + ":" + uuid.Must(uuid.NewV7()).String()
}

// IDPrefix returns the prefix portion of a prefixed ID, or "" if the
// ID carries none.
func IDPrefix(id string) string {
	prefix, _, ok := strings.Cut(id, ":")
	if !ok {
		return ""
	}
	return prefix
}

// ValidateID checks that an ID carries the expected prefix.
func ValidateID(id, wantPrefix string) error {
	if got := IDPrefix(id); got != wantPrefix {
		return fmt.Errorf("id %q: expected prefix %q, got %q", id, wantPrefix, got)
	}
	return nil
}

// IDGenerator produces identifiers for new records and lifecycles.
// Implemented by PrefixedUUIDv7 (production) and test sequence
// generators.
type IDGenerator interface {
	Generate(prefix string) string
}

// PrefixedUUIDv7 is the production IDGenerator.
//
// Thread-safety: stateless and safe for concurrent use.
type PrefixedUUIDv7 struct{}

// Generate returns NewID(prefix).
func (PrefixedUUIDv7) Generate(prefix string) string {
	return NewID(prefix)
}
