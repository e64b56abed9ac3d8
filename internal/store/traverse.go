package store

import (
	"context"
	"slices"
	"strings"

	"github.com/basetier/stratum/internal/model"
)

// Successors returns the edges of edgeKind whose tail vertex matches
// objectID, resolved under the same tier context used for entity
// resolution: a draft-only edge is visible only when traversing with
// that edit session's or change set's scope.
//
// Best-effort assembly: if resolving a successor's head vertex fails
// with NOT_FOUND (deleted in this context, or never promoted into it),
// the edge is dropped from the result rather than aborting the call.
// Every other failure aborts. This is deliberately weaker than the
// strict-error contract of Resolve; read-heavy aggregate views prefer
// a partial graph over no graph.
//
// Traversal does not recurse: callers walk successive hops explicitly,
// bounding cost themselves. Nothing here assumes the edge kind forms a
// DAG.
func (s *Store) Successors(ctx context.Context, scope model.Scope, edgeKind, objectID string) ([]model.Edge, error) {
	if err := scope.Validate(); err != nil {
		return nil, model.NewPersistence("successors", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT object_id
		FROM records
		WHERE record_kind = 'edge' AND kind = ? AND tail_object_id = ?
		  AND (tier = 'head'
		       OR (tier = 'change_set' AND tier_id = ?)
		       OR (tier = 'edit_session' AND tier_id = ?))
		ORDER BY object_id ASC
	`, edgeKind, objectID, scope.ChangeSetID, scope.EditSessionID)
	if err != nil {
		return nil, model.NewPersistence("successors", err)
	}
	defer rows.Close()

	var edgeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, model.NewPersistence("successors", err)
		}
		edgeIDs = append(edgeIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistence("successors", err)
	}

	var out []model.Edge
	for _, edgeID := range edgeIDs {
		rec, err := resolveVisible(ctx, s.db, scope, model.RecordEdge, edgeID)
		if err != nil {
			if model.IsNotFound(err) {
				// The edge itself is tombstoned at the winning tier.
				continue
			}
			return nil, err
		}

		edge, err := model.EdgeFromRecord(rec)
		if err != nil {
			return nil, model.NewSerialization(edgeID, err)
		}

		// The candidate scan matches any visible row, but the winning
		// row may have been retargeted or re-kinded by a draft. Only the
		// winning row's vertices count.
		if edge.Tail.ObjectID != objectID || edge.Kind != edgeKind {
			continue
		}

		// An edge that survives resolution may still point at a
		// successor that does not: deleted in the active session, or
		// never promoted into this tier context. Drop it.
		_, err = resolveVisible(ctx, s.db, scope, model.RecordKindForID(edge.Head.ObjectID), edge.Head.ObjectID)
		if err != nil {
			if model.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		out = append(out, edge)
	}

	slices.SortFunc(out, func(a, b model.Edge) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
