// Package store provides the SQLite-backed versioned record store: the
// single mutation surface for entities, nodes and edges across the
// head / change set / edit session tiers, plus the change set and edit
// session lifecycles themselves.
//
// # Critical Patterns
//
// CP-1: One row per (object_id, tier, tier_id)
//   - Enforced by the records table primary key. Head rows use the
//     empty tier_id.
//
// CP-2: Deterministic resolution
//   - Resolve walks edit session -> change set -> head in one query
//     with an explicit tier-rank ORDER BY; the first row wins. A
//     tombstone at the winning tier resolves to NOT_FOUND.
//
// CP-3: Copy-on-write drafts
//   - The first write to an object inside an edit session clones the
//     best-visible ancestor (change set row, else head row) as the
//     draft's initial state. Two open sessions never observe each
//     other's drafts.
//
// CP-4: All-or-nothing promotion
//   - Save promotes a session's drafts to the change set tier and Apply
//     promotes a change set's rows to head, each inside a single
//     transaction. No read can observe a half-promoted tier.
//
// CP-5: Publish after commit
//   - Change notifications are queued during the transaction and handed
//     to the Notifier only after Commit returns. Subscribers never see
//     state that could still roll back.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - single-connection pool: one writer, no SQLITE_BUSY surprises
//
// Payloads are stored as RFC 8785 canonical JSON produced by
// model.MarshalCanonical, so byte equality answers content equality.
package store
