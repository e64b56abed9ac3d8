package store

import (
	"context"
	"fmt"

	"github.com/basetier/stratum/internal/model"
)

// CreateEntity creates a new entity draft at the scope's edit session
// tier. The scope must name an Open edit session; the payload must
// satisfy the registry schema for the kind.
func (s *Store) CreateEntity(ctx context.Context, scope model.Scope, kind, name string, payload model.Payload) (model.Entity, error) {
	rec, err := s.createRecord(ctx, scope, model.Record{
		RecordKind: model.RecordEntity,
		Kind:       kind,
		Name:       name,
		Payload:    payload,
	})
	if err != nil {
		return model.Entity{}, err
	}
	return model.EntityFromRecord(rec), nil
}

// CreateNode creates a new node draft (a canvas placement) at the
// scope's edit session tier.
func (s *Store) CreateNode(ctx context.Context, scope model.Scope, kind, name string, payload model.Payload) (model.Node, error) {
	rec, err := s.createRecord(ctx, scope, model.Record{
		RecordKind: model.RecordNode,
		Kind:       kind,
		Name:       name,
		Payload:    payload,
	})
	if err != nil {
		return model.Node{}, err
	}
	return model.NodeFromRecord(rec), nil
}

// CreateEdge creates a new edge draft connecting tail -> head at the
// scope's edit session tier. The edge kind must be declared in the
// registry; the kind's acyclicity (if any) is not enforced here.
func (s *Store) CreateEdge(ctx context.Context, scope model.Scope, kind string, tail, head model.Vertex, payload model.Payload) (model.Edge, error) {
	if payload == nil {
		payload = model.Payload{}
	}
	rec, err := s.createRecord(ctx, scope, model.Record{
		RecordKind: model.RecordEdge,
		Kind:       kind,
		Name:       fmt.Sprintf("%s -> %s", tail.ObjectID, head.ObjectID),
		Payload:    payload,
		Tail:       &tail,
		Head:       &head,
	})
	if err != nil {
		return model.Edge{}, err
	}
	edge, err := model.EdgeFromRecord(rec)
	if err != nil {
		return model.Edge{}, model.NewSerialization(rec.ObjectID, err)
	}
	return edge, nil
}

// createRecord assigns an object id, validates the draft, and stores it
// at the scope's edit session tier inside one transaction.
func (s *Store) createRecord(ctx context.Context, scope model.Scope, rec model.Record) (model.Record, error) {
	if err := scope.Validate(); err != nil {
		return model.Record{}, model.NewPersistence("create record", err)
	}
	if scope.EditSessionID == "" {
		return model.Record{}, &model.StoreError{
			Code:    model.ErrCodeInvalidState,
			Message: "writes require an open edit session in scope",
		}
	}

	rec.ObjectID = s.ids.Generate(model.IDPrefixFor(rec.RecordKind))
	rec.Tier = model.InEditSession(scope.EditSessionID)
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	payload, err := s.validateRecord(rec)
	if err != nil {
		return model.Record{}, err
	}

	err = s.withTx(ctx, "create record", func(tx *txn) error {
		if _, err := requireOpenSession(ctx, tx, scope); err != nil {
			return err
		}
		if err := upsertRecord(ctx, tx, rec, payload); err != nil {
			return err
		}
		tx.queueRecord(rec, payload)
		return nil
	})
	if err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

// UpdateRecord applies a mutation to an object inside the scope's edit
// session, copy-on-write (CP-3): if the session holds no draft yet, the
// current best-visible ancestor (change set row, else head row) is
// cloned as the draft's initial state first.
//
// The mutation may change Kind, Name, Payload and (for edges) vertices;
// object id and record kind are fixed. The mutated draft is validated
// before it is stored.
func (s *Store) UpdateRecord(ctx context.Context, scope model.Scope, recordKind model.RecordKind, objectID string, mutate func(*model.Record) error) (model.Record, error) {
	if err := scope.Validate(); err != nil {
		return model.Record{}, model.NewPersistence("update record", err)
	}
	if scope.EditSessionID == "" {
		return model.Record{}, &model.StoreError{
			Code:     model.ErrCodeInvalidState,
			Message:  "writes require an open edit session in scope",
			ObjectID: objectID,
		}
	}

	var out model.Record
	err := s.withTx(ctx, "update record", func(tx *txn) error {
		if _, err := requireOpenSession(ctx, tx, scope); err != nil {
			return err
		}

		draft, err := s.draftForWrite(ctx, tx, scope, recordKind, objectID)
		if err != nil {
			return err
		}

		if err := mutate(&draft); err != nil {
			return err
		}

		// The mutation must not move the draft to another object.
		draft.ObjectID = objectID
		draft.RecordKind = recordKind
		draft.Tier = model.InEditSession(scope.EditSessionID)
		draft.Deleted = false
		draft.UpdatedAt = s.now()

		payload, err := s.validateRecord(draft)
		if err != nil {
			return err
		}
		if err := upsertRecord(ctx, tx, draft, payload); err != nil {
			return err
		}
		tx.queueRecord(draft, payload)
		out = draft
		return nil
	})
	if err != nil {
		return model.Record{}, err
	}
	return out, nil
}

// DeleteRecord writes a tombstone draft for the object at the scope's
// edit session tier. The deletion is promoted like any other draft:
// save moves it to the change set tier, apply removes the head row.
func (s *Store) DeleteRecord(ctx context.Context, scope model.Scope, recordKind model.RecordKind, objectID string) error {
	if err := scope.Validate(); err != nil {
		return model.NewPersistence("delete record", err)
	}
	if scope.EditSessionID == "" {
		return &model.StoreError{
			Code:     model.ErrCodeInvalidState,
			Message:  "writes require an open edit session in scope",
			ObjectID: objectID,
		}
	}

	return s.withTx(ctx, "delete record", func(tx *txn) error {
		if _, err := requireOpenSession(ctx, tx, scope); err != nil {
			return err
		}

		draft, err := s.draftForWrite(ctx, tx, scope, recordKind, objectID)
		if err != nil {
			return err
		}

		draft.Deleted = true
		draft.UpdatedAt = s.now()

		payload, err := draft.Payload.MarshalCanonicalJSON()
		if err != nil {
			return model.NewSerialization(objectID, err)
		}
		if err := upsertRecord(ctx, tx, draft, payload); err != nil {
			return err
		}
		tx.queueRecord(draft, payload)
		return nil
	})
}

// draftForWrite returns the session's existing draft for the object,
// or clones the best-visible ancestor as a new draft seed (CP-3).
func (s *Store) draftForWrite(ctx context.Context, tx *txn, scope model.Scope, recordKind model.RecordKind, objectID string) (model.Record, error) {
	sessionTier := model.InEditSession(scope.EditSessionID)

	existing, ok, err := getRecordAt(ctx, tx, recordKind, objectID, sessionTier)
	if err != nil {
		return model.Record{}, err
	}
	if ok {
		if existing.rec.Deleted {
			return model.Record{}, model.NewNotFound(objectID, sessionTier.String())
		}
		return existing.rec, nil
	}

	// No draft yet: resolve the ancestor against the change set / head
	// chain only, never another session's drafts.
	ancestorScope := scope
	ancestorScope.EditSessionID = ""
	ancestor, err := resolveVisible(ctx, tx, ancestorScope, recordKind, objectID)
	if err != nil {
		return model.Record{}, err
	}

	draft := ancestor.Clone()
	draft.Tier = sessionTier
	return draft, nil
}

// validateRecord checks structural invariants and the payload schema,
// and returns the canonical payload bytes to store.
func (s *Store) validateRecord(rec model.Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, model.NewSerialization(rec.ObjectID, err)
	}

	payload, err := rec.Payload.MarshalCanonicalJSON()
	if err != nil {
		return nil, model.NewSerialization(rec.ObjectID, err)
	}
	if err := s.registry.ValidatePayload(rec.RecordKind, rec.Kind, payload); err != nil {
		return nil, model.NewSerialization(rec.ObjectID, err)
	}
	return payload, nil
}
