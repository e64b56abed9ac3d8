package store

import (
	"context"
	"slices"
	"strings"

	"github.com/basetier/stratum/internal/model"
)

// Resolve returns the record visible for an object under the given
// scope: the edit session draft if the scope names a session holding
// one, else the change set row, else head (CP-2).
//
// Fails with NOT_FOUND if no row exists at any applicable tier, or if
// the winning row is a tombstone.
//
// Pure read: runs outside any transaction and is never blocked by
// in-flight writes.
func (s *Store) Resolve(ctx context.Context, scope model.Scope, recordKind model.RecordKind, objectID string) (model.Record, error) {
	if err := scope.Validate(); err != nil {
		return model.Record{}, model.NewPersistence("resolve", err)
	}
	return resolveVisible(ctx, s.db, scope, recordKind, objectID)
}

// resolveVisible is Resolve against an arbitrary querier, shared by
// reads (db) and transactional writers (txn).
func resolveVisible(ctx context.Context, q querier, scope model.Scope, recordKind model.RecordKind, objectID string) (model.Record, error) {
	rr, ok, err := resolveRecordRow(ctx, q, scope, recordKind, objectID)
	if err != nil {
		return model.Record{}, err
	}
	if !ok || rr.rec.Deleted {
		return model.Record{}, model.NewNotFound(objectID, scopeTierLabel(scope))
	}
	return rr.rec, nil
}

// ResolveEntity resolves an object and converts it to the Entity view.
func (s *Store) ResolveEntity(ctx context.Context, scope model.Scope, objectID string) (model.Entity, error) {
	rec, err := s.Resolve(ctx, scope, model.RecordEntity, objectID)
	if err != nil {
		return model.Entity{}, err
	}
	return model.EntityFromRecord(rec), nil
}

// ResolveEdge resolves an object and converts it to the Edge view.
func (s *Store) ResolveEdge(ctx context.Context, scope model.Scope, objectID string) (model.Edge, error) {
	rec, err := s.Resolve(ctx, scope, model.RecordEdge, objectID)
	if err != nil {
		return model.Edge{}, err
	}
	edge, err := model.EdgeFromRecord(rec)
	if err != nil {
		return model.Edge{}, model.NewSerialization(objectID, err)
	}
	return edge, nil
}

// List returns every record of a kind visible under the scope, each
// member independently resolved via the fallback rule. Objects whose
// winning row is a tombstone are omitted.
//
// Order is deterministic: by resolved name, then object id.
func (s *Store) List(ctx context.Context, scope model.Scope, recordKind model.RecordKind, kind string) ([]model.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, model.NewPersistence("list", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT object_id
		FROM records
		WHERE record_kind = ? AND kind = ?
		  AND (tier = 'head'
		       OR (tier = 'change_set' AND tier_id = ?)
		       OR (tier = 'edit_session' AND tier_id = ?))
		ORDER BY object_id ASC
	`, string(recordKind), kind, scope.ChangeSetID, scope.EditSessionID)
	if err != nil {
		return nil, model.NewPersistence("list", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, model.NewPersistence("list", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistence("list", err)
	}

	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := resolveVisible(ctx, s.db, scope, recordKind, id)
		if err != nil {
			if model.IsNotFound(err) {
				// Tombstoned at the winning tier.
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}

	slices.SortFunc(out, func(a, b model.Record) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ObjectID, b.ObjectID)
	})
	return out, nil
}

// ListEntities is List for entities, converted to the Entity view.
func (s *Store) ListEntities(ctx context.Context, scope model.Scope, kind string) ([]model.Entity, error) {
	recs, err := s.List(ctx, scope, model.RecordEntity, kind)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, len(recs))
	for i, rec := range recs {
		out[i] = model.EntityFromRecord(rec)
	}
	return out, nil
}

// scopeTierLabel renders the deepest tier a scope can see, for error
// messages.
func scopeTierLabel(scope model.Scope) string {
	switch {
	case scope.EditSessionID != "":
		return model.InEditSession(scope.EditSessionID).String()
	case scope.ChangeSetID != "":
		return model.InChangeSet(scope.ChangeSetID).String()
	default:
		return model.Head().String()
	}
}
