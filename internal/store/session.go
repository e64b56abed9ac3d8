package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/basetier/stratum/internal/model"
	"github.com/basetier/stratum/internal/notify"
)

const editSessionColumns = `id, change_set_id, workspace_id, status, created_at, updated_at`

// NewEditSession creates an Open edit session under a change set. The
// change set must itself be Open.
func (s *Store) NewEditSession(ctx context.Context, changeSetID, workspaceID string) (model.EditSession, error) {
	now := s.now()
	session := model.EditSession{
		ID:          s.ids.Generate(model.PrefixEditSession),
		ChangeSetID: changeSetID,
		WorkspaceID: workspaceID,
		Status:      model.EditSessionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withTx(ctx, "new edit session", func(tx *txn) error {
		cs, err := getChangeSet(ctx, tx, changeSetID)
		if err != nil {
			return err
		}
		if !cs.Editable() {
			return model.NewInvalidState(changeSetID, string(cs.Status), string(model.ChangeSetOpen))
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO edit_sessions (id, change_set_id, workspace_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			session.ID, session.ChangeSetID, session.WorkspaceID,
			string(session.Status),
			formatTimestamp(session.CreatedAt), formatTimestamp(session.UpdatedAt),
		)
		if err != nil {
			return model.NewPersistence("insert edit session", err)
		}

		tx.queue(notify.Event{
			RecordKind: "edit_session",
			Kind:       string(session.Status),
			ObjectID:   session.ID,
			TierKind:   string(model.TierChangeSet),
			TierID:     changeSetID,
		})
		return nil
	})
	if err != nil {
		return model.EditSession{}, err
	}
	return session, nil
}

// GetEditSession fetches an edit session by id.
func (s *Store) GetEditSession(ctx context.Context, sessionID string) (model.EditSession, error) {
	return getEditSession(ctx, s.db, sessionID)
}

// SaveSession promotes every draft owned by the session to the change
// set tier (create-or-replace), deletes the session's draft rows, and
// marks the session Saved. One transaction (CP-4).
//
// Content-wise the operation is idempotent: saving a session whose
// drafts already match the change set tier leaves that tier unchanged.
// Status-wise it is terminal: a second call fails with INVALID_STATE,
// and a call that loses a concurrent transition race fails with
// CONFLICT.
func (s *Store) SaveSession(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "store.SaveSession")
	defer span.End()

	err := s.withTx(ctx, "save session", func(tx *txn) error {
		session, err := getEditSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !session.Editable() {
			return model.NewInvalidState(sessionID, string(session.Status), string(model.EditSessionOpen))
		}

		cs, err := getChangeSet(ctx, tx, session.ChangeSetID)
		if err != nil {
			return err
		}
		if !cs.Editable() {
			return model.NewInvalidState(cs.ID, string(cs.Status), string(model.ChangeSetOpen))
		}

		sessionTier := model.InEditSession(sessionID)
		branchTier := model.InChangeSet(session.ChangeSetID)

		drafts, err := scanTierRows(ctx, tx, sessionTier)
		if err != nil {
			return err
		}
		for _, draft := range drafts {
			promoted := draft.rec
			promoted.Tier = branchTier
			promoted.UpdatedAt = s.now()
			if err := upsertRecord(ctx, tx, promoted, draft.raw); err != nil {
				return err
			}
			tx.queueRecord(promoted, draft.raw)
		}

		if err := deleteTierRows(ctx, tx, sessionTier); err != nil {
			return err
		}

		if err := transitionSession(ctx, tx, sessionID, model.EditSessionSaved, s.now()); err != nil {
			return err
		}

		tx.queue(notify.Event{
			RecordKind: "edit_session",
			Kind:       string(model.EditSessionSaved),
			ObjectID:   sessionID,
			TierKind:   string(model.TierChangeSet),
			TierID:     session.ChangeSetID,
		})
		return nil
	})
	if err == nil {
		sessionsSaved.Add(ctx, 1)
	}
	return err
}

// CancelSession deletes every draft owned by the session and marks it
// Canceled. The change set tier is left byte-for-byte unchanged.
func (s *Store) CancelSession(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "store.CancelSession")
	defer span.End()

	return s.withTx(ctx, "cancel session", func(tx *txn) error {
		session, err := getEditSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !session.Editable() {
			return model.NewInvalidState(sessionID, string(session.Status), string(model.EditSessionOpen))
		}

		if err := deleteTierRows(ctx, tx, model.InEditSession(sessionID)); err != nil {
			return err
		}

		if err := transitionSession(ctx, tx, sessionID, model.EditSessionCanceled, s.now()); err != nil {
			return err
		}

		tx.queue(notify.Event{
			RecordKind: "edit_session",
			Kind:       string(model.EditSessionCanceled),
			ObjectID:   sessionID,
			TierKind:   string(model.TierChangeSet),
			TierID:     session.ChangeSetID,
		})
		return nil
	})
}

// transitionSession performs the guarded terminal status update. The
// WHERE status clause makes lost races visible: zero affected rows
// after an Open read means another transition won (CONFLICT).
func transitionSession(ctx context.Context, q querier, sessionID string, to model.EditSessionStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE edit_sessions SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTimestamp(at), sessionID, string(model.EditSessionOpen))
	if err != nil {
		return model.NewPersistence("transition edit session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewPersistence("transition edit session", err)
	}
	if n == 0 {
		return model.NewConflict(sessionID, "save/cancel")
	}
	return nil
}

// getEditSession fetches an edit session through an arbitrary querier.
func getEditSession(ctx context.Context, q querier, sessionID string) (model.EditSession, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+editSessionColumns+` FROM edit_sessions WHERE id = ?
	`, sessionID)

	var (
		session            model.EditSession
		status             string
		createdAt, updated string
	)
	err := row.Scan(&session.ID, &session.ChangeSetID, &session.WorkspaceID, &status, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return model.EditSession{}, &model.StoreError{
			Code:     model.ErrCodeNotFound,
			Message:  "edit session does not exist",
			ObjectID: sessionID,
		}
	}
	if err != nil {
		return model.EditSession{}, model.NewPersistence("get edit session", err)
	}

	session.Status = model.EditSessionStatus(status)
	if session.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return model.EditSession{}, model.NewSerialization(sessionID, err)
	}
	if session.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.EditSession{}, model.NewSerialization(sessionID, err)
	}
	return session, nil
}

// requireOpenSession asserts that the scope's edit session exists, is
// Open, and belongs to the scope's change set. Every draft write calls
// this inside its transaction.
func requireOpenSession(ctx context.Context, q querier, scope model.Scope) (model.EditSession, error) {
	session, err := getEditSession(ctx, q, scope.EditSessionID)
	if err != nil {
		return model.EditSession{}, err
	}
	if !session.Editable() {
		return model.EditSession{}, model.NewInvalidState(session.ID, string(session.Status), string(model.EditSessionOpen))
	}
	if session.ChangeSetID != scope.ChangeSetID {
		return model.EditSession{}, &model.StoreError{
			Code:     model.ErrCodeInvalidState,
			Message:  "edit session does not belong to the scope's change set",
			ObjectID: session.ID,
		}
	}
	return session, nil
}
