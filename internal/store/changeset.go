package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/basetier/stratum/internal/model"
	"github.com/basetier/stratum/internal/notify"
)

const changeSetColumns = `id, name, workspace_id, status, created_at, updated_at`

// NewChangeSet creates an Open change set in a workspace. If name is
// empty a name is derived from the generated id.
func (s *Store) NewChangeSet(ctx context.Context, workspaceID, name string) (model.ChangeSet, error) {
	id := s.ids.Generate(model.PrefixChangeSet)
	if name == "" {
		name = id
	}

	now := s.now()
	cs := model.ChangeSet{
		ID:          id,
		Name:        name,
		WorkspaceID: workspaceID,
		Status:      model.ChangeSetOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withTx(ctx, "new change set", func(tx *txn) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO change_sets (id, name, workspace_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			cs.ID, cs.Name, cs.WorkspaceID, string(cs.Status),
			formatTimestamp(cs.CreatedAt), formatTimestamp(cs.UpdatedAt),
		)
		if err != nil {
			return model.NewPersistence("insert change set", err)
		}

		tx.queue(notify.Event{
			RecordKind: "change_set",
			Kind:       string(cs.Status),
			ObjectID:   cs.ID,
			TierKind:   string(model.TierChangeSet),
			TierID:     cs.ID,
		})
		return nil
	})
	if err != nil {
		return model.ChangeSet{}, err
	}
	return cs, nil
}

// GetChangeSet fetches a change set by id.
func (s *Store) GetChangeSet(ctx context.Context, changeSetID string) (model.ChangeSet, error) {
	return getChangeSet(ctx, s.db, changeSetID)
}

// ListChangeSets returns a workspace's change sets, optionally filtered
// by status, ordered by creation time (ids are time-sortable).
func (s *Store) ListChangeSets(ctx context.Context, workspaceID string, status model.ChangeSetStatus) ([]model.ChangeSet, error) {
	query := `SELECT ` + changeSetColumns + ` FROM change_sets WHERE workspace_id = ?`
	args := []any{workspaceID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewPersistence("list change sets", err)
	}
	defer rows.Close()

	var out []model.ChangeSet
	for rows.Next() {
		cs, err := scanChangeSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistence("list change sets", err)
	}
	return out, nil
}

// CountChangeSets summarizes a workspace's change sets for list views.
func (s *Store) CountChangeSets(ctx context.Context, workspaceID string) (model.ChangeSetCounts, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status != 'open' THEN 1 ELSE 0 END), 0)
		FROM change_sets WHERE workspace_id = ?
	`, workspaceID)

	var counts model.ChangeSetCounts
	if err := row.Scan(&counts.Open, &counts.Closed); err != nil {
		return model.ChangeSetCounts{}, model.NewPersistence("count change sets", err)
	}
	return counts, nil
}

// ApplyChangeSet promotes every row at the change set's tier to head
// and marks the change set Applied, as one atomic transaction (CP-4):
//
//  1. enumerate the change set's tier rows
//  2. write each as the new head row (tombstones remove the head row)
//  3. delete the change set's tier rows
//  4. terminate every edit session still Open under the change set
//  5. set status Applied
//
// Fails with INVALID_STATE unless the change set is Open; a lost
// concurrent transition race fails with CONFLICT. Partial promotion is
// impossible: either every step commits or none does.
func (s *Store) ApplyChangeSet(ctx context.Context, changeSetID string) error {
	ctx, span := tracer.Start(ctx, "store.ApplyChangeSet")
	defer span.End()
	start := time.Now()

	err := s.withTx(ctx, "apply change set", func(tx *txn) error {
		cs, err := getChangeSet(ctx, tx, changeSetID)
		if err != nil {
			return err
		}
		if !cs.Editable() {
			return model.NewInvalidState(changeSetID, string(cs.Status), string(model.ChangeSetOpen))
		}

		branchTier := model.InChangeSet(changeSetID)
		rows, err := scanTierRows(ctx, tx, branchTier)
		if err != nil {
			return err
		}

		for _, row := range rows {
			if row.rec.Deleted {
				if err := deleteRecordRow(ctx, tx, row.rec.ObjectID, model.Head()); err != nil {
					return err
				}
				gone := row.rec
				gone.Tier = model.Head()
				tx.queueRecord(gone, nil)
				continue
			}

			promoted := row.rec
			promoted.Tier = model.Head()
			promoted.UpdatedAt = s.now()
			if err := upsertRecord(ctx, tx, promoted, row.raw); err != nil {
				return err
			}
			tx.queueRecord(promoted, row.raw)
		}

		if err := deleteTierRows(ctx, tx, branchTier); err != nil {
			return err
		}

		if err := terminateOpenSessions(ctx, tx, changeSetID, s.now()); err != nil {
			return err
		}

		if err := transitionChangeSet(ctx, tx, changeSetID, model.ChangeSetApplied, s.now()); err != nil {
			return err
		}

		tx.queue(notify.Event{
			RecordKind: "change_set",
			Kind:       string(model.ChangeSetApplied),
			ObjectID:   changeSetID,
			TierKind:   string(model.TierHead),
		})
		return nil
	})
	if err == nil {
		changeSetsApplied.Add(ctx, 1)
		recordApplyDuration(ctx, time.Since(start))
	}
	return err
}

// AbandonChangeSet discards every row at the change set's tier, cancels
// its open edit sessions, and marks the change set Abandoned. Head is
// untouched.
func (s *Store) AbandonChangeSet(ctx context.Context, changeSetID string) error {
	ctx, span := tracer.Start(ctx, "store.AbandonChangeSet")
	defer span.End()

	return s.withTx(ctx, "abandon change set", func(tx *txn) error {
		cs, err := getChangeSet(ctx, tx, changeSetID)
		if err != nil {
			return err
		}
		if !cs.Editable() {
			return model.NewInvalidState(changeSetID, string(cs.Status), string(model.ChangeSetOpen))
		}

		if err := deleteTierRows(ctx, tx, model.InChangeSet(changeSetID)); err != nil {
			return err
		}

		if err := terminateOpenSessions(ctx, tx, changeSetID, s.now()); err != nil {
			return err
		}

		if err := transitionChangeSet(ctx, tx, changeSetID, model.ChangeSetAbandoned, s.now()); err != nil {
			return err
		}

		tx.queue(notify.Event{
			RecordKind: "change_set",
			Kind:       string(model.ChangeSetAbandoned),
			ObjectID:   changeSetID,
			TierKind:   string(model.TierChangeSet),
			TierID:     changeSetID,
		})
		return nil
	})
}

// terminateOpenSessions cancels every Open session under a change set
// and removes their draft rows. Unsaved drafts are discarded, matching
// the cancel contract.
func terminateOpenSessions(ctx context.Context, tx *txn, changeSetID string, at time.Time) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM edit_sessions WHERE change_set_id = ? AND status = ? ORDER BY id ASC
	`, changeSetID, string(model.EditSessionOpen))
	if err != nil {
		return model.NewPersistence("list open sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return model.NewPersistence("list open sessions", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return model.NewPersistence("list open sessions", err)
	}

	for _, id := range ids {
		if err := deleteTierRows(ctx, tx, model.InEditSession(id)); err != nil {
			return err
		}
		if err := transitionSession(ctx, tx, id, model.EditSessionCanceled, at); err != nil {
			return err
		}
		tx.queue(notify.Event{
			RecordKind: "edit_session",
			Kind:       string(model.EditSessionCanceled),
			ObjectID:   id,
			TierKind:   string(model.TierChangeSet),
			TierID:     changeSetID,
		})
	}
	return nil
}

// transitionChangeSet performs the guarded terminal status update; zero
// affected rows after an Open read means a concurrent transition won.
func transitionChangeSet(ctx context.Context, q querier, changeSetID string, to model.ChangeSetStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE change_sets SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTimestamp(at), changeSetID, string(model.ChangeSetOpen))
	if err != nil {
		return model.NewPersistence("transition change set", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewPersistence("transition change set", err)
	}
	if n == 0 {
		return model.NewConflict(changeSetID, "apply/abandon")
	}
	return nil
}

// getChangeSet fetches a change set through an arbitrary querier.
func getChangeSet(ctx context.Context, q querier, changeSetID string) (model.ChangeSet, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+changeSetColumns+` FROM change_sets WHERE id = ?
	`, changeSetID)
	cs, err := scanChangeSet(row)
	if err == sql.ErrNoRows {
		return model.ChangeSet{}, &model.StoreError{
			Code:     model.ErrCodeNotFound,
			Message:  "change set does not exist",
			ObjectID: changeSetID,
		}
	}
	return cs, err
}

func scanChangeSet(row rowScanner) (model.ChangeSet, error) {
	var (
		cs                 model.ChangeSet
		status             string
		createdAt, updated string
	)
	err := row.Scan(&cs.ID, &cs.Name, &cs.WorkspaceID, &status, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return model.ChangeSet{}, err
	}
	if err != nil {
		return model.ChangeSet{}, model.NewPersistence("scan change set", err)
	}

	cs.Status = model.ChangeSetStatus(status)
	if cs.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return model.ChangeSet{}, model.NewSerialization(cs.ID, fmt.Errorf("created_at: %w", err))
	}
	if cs.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.ChangeSet{}, model.NewSerialization(cs.ID, fmt.Errorf("updated_at: %w", err))
	}
	return cs, nil
}
