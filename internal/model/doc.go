// Package model defines the core types of the stratum versioned graph:
// tiers, scopes, versioned records (entities, nodes, edges), change sets,
// edit sessions, and the error taxonomy shared by every layer above.
//
// # Tier model
//
// Every versioned record row lives at exactly one tier:
//
//   - Head: the canonical, merged baseline.
//   - ChangeSet: a named, reviewable set of proposed edits (a branch).
//   - EditSession: a single-writer scratch layer under one change set
//     (a working copy).
//
// A logical object is identified by its object_id across all tiers; at
// most one row exists per (object_id, tier, tier id). Resolution walks
// EditSession -> ChangeSet -> Head and returns the first row found.
//
// # Critical Patterns
//
// CP-1: Explicit scope
//   - Workspace, change set and edit session identifiers are threaded
//     through every call as a Scope value, never ambient process state.
//
// CP-2: One record abstraction
//   - Entities, nodes and edges share the Record type so tier
//     resolution and promotion are written exactly once.
//
// CP-3: Canonical payloads
//   - Payloads are serialized as RFC 8785 canonical JSON (NFC
//     normalized, UTF-16 key order, no floats, no nulls) so that
//     byte comparison answers "did this draft change anything".
package model
