package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/basetier/stratum/internal/model"
)

// recordColumns is the canonical column list for records queries. Every
// query selecting records MUST use it so scanRecord stays in sync.
const recordColumns = `object_id, record_kind, kind, name, tier, tier_id, payload,
	tail_object_id, tail_kind, head_object_id, head_kind, deleted, created_at, updated_at`

// querier abstracts *sql.DB and *txn so read helpers run either inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// recordRow pairs a decoded record with the raw stored payload, so
// promotion can move bytes between tiers without a decode/re-encode
// round trip.
type recordRow struct {
	rec model.Record
	raw []byte
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord decodes one records row. Payload decode failures are
// SERIALIZATION errors: the stored document no longer matches the code
// reading it.
func scanRecord(row rowScanner) (recordRow, error) {
	var (
		r                  model.Record
		tierKind, tierID   string
		payload            string
		tailID, tailKind   sql.NullString
		headID, headKind   sql.NullString
		deleted            int
		createdAt, updated string
	)

	err := row.Scan(
		&r.ObjectID, (*string)(&r.RecordKind), &r.Kind, &r.Name,
		&tierKind, &tierID, &payload,
		&tailID, &tailKind, &headID, &headKind,
		&deleted, &createdAt, &updated,
	)
	if err != nil {
		return recordRow{}, err
	}

	r.Tier = model.Tier{Kind: model.TierKind(tierKind), ID: tierID}
	r.Deleted = deleted != 0

	if tailID.Valid {
		r.Tail = &model.Vertex{ObjectID: tailID.String, Kind: tailKind.String}
	}
	if headID.Valid {
		r.Head = &model.Vertex{ObjectID: headID.String, Kind: headKind.String}
	}

	if r.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return recordRow{}, model.NewSerialization(r.ObjectID, fmt.Errorf("created_at: %w", err))
	}
	if r.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return recordRow{}, model.NewSerialization(r.ObjectID, fmt.Errorf("updated_at: %w", err))
	}

	if r.Payload, err = model.DecodePayload([]byte(payload)); err != nil {
		return recordRow{}, model.NewSerialization(r.ObjectID, err)
	}

	return recordRow{rec: r, raw: []byte(payload)}, nil
}

// upsertRecord writes a record row create-or-replace at its tier
// (CP-1). The payload must already be canonical JSON. created_at is
// preserved on replace.
func upsertRecord(ctx context.Context, q querier, rec model.Record, payload []byte) error {
	var tailID, tailKind, headID, headKind sql.NullString
	if rec.Tail != nil {
		tailID = sql.NullString{String: rec.Tail.ObjectID, Valid: true}
		tailKind = sql.NullString{String: rec.Tail.Kind, Valid: true}
	}
	if rec.Head != nil {
		headID = sql.NullString{String: rec.Head.ObjectID, Valid: true}
		headKind = sql.NullString{String: rec.Head.Kind, Valid: true}
	}

	deleted := 0
	if rec.Deleted {
		deleted = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO records
		(object_id, record_kind, kind, name, tier, tier_id, payload,
		 tail_object_id, tail_kind, head_object_id, head_kind, deleted,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object_id, tier, tier_id) DO UPDATE SET
			record_kind = excluded.record_kind,
			kind = excluded.kind,
			name = excluded.name,
			payload = excluded.payload,
			tail_object_id = excluded.tail_object_id,
			tail_kind = excluded.tail_kind,
			head_object_id = excluded.head_object_id,
			head_kind = excluded.head_kind,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`,
		rec.ObjectID, string(rec.RecordKind), rec.Kind, rec.Name,
		string(rec.Tier.Kind), rec.Tier.ID, string(payload),
		tailID, tailKind, headID, headKind, deleted,
		formatTimestamp(rec.CreatedAt), formatTimestamp(rec.UpdatedAt),
	)
	if err != nil {
		return model.NewPersistence("upsert record", err)
	}
	return nil
}

// getRecordAt fetches the row for an object at exactly one tier.
func getRecordAt(ctx context.Context, q querier, recordKind model.RecordKind, objectID string, tier model.Tier) (recordRow, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE object_id = ? AND record_kind = ? AND tier = ? AND tier_id = ?
	`, objectID, string(recordKind), string(tier.Kind), tier.ID)

	rr, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return recordRow{}, false, nil
	}
	if err != nil {
		return recordRow{}, false, codeScanError("get record", err)
	}
	return rr, true, nil
}

// resolveRecordRow returns the winning row for a scope: edit session
// draft if one exists, else the change set row, else head (CP-2).
// Tombstones win like any other row; callers decide whether a deleted
// winner is NOT_FOUND (reads) or meaningful (promotion).
func resolveRecordRow(ctx context.Context, q querier, scope model.Scope, recordKind model.RecordKind, objectID string) (recordRow, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE object_id = ? AND record_kind = ?
		  AND (tier = 'head'
		       OR (tier = 'change_set' AND tier_id = ?)
		       OR (tier = 'edit_session' AND tier_id = ?))
		ORDER BY CASE tier
			WHEN 'edit_session' THEN 0
			WHEN 'change_set' THEN 1
			ELSE 2 END
		LIMIT 1
	`, objectID, string(recordKind), scope.ChangeSetID, scope.EditSessionID)

	rr, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return recordRow{}, false, nil
	}
	if err != nil {
		return recordRow{}, false, codeScanError("resolve record", err)
	}
	return rr, true, nil
}

// codeScanError keeps scan failures inside the store error taxonomy:
// decode failures already carry SERIALIZATION, everything else is an
// underlying database failure.
func codeScanError(op string, err error) error {
	var se *model.StoreError
	if errors.As(err, &se) {
		return err
	}
	return model.NewPersistence(op, err)
}

// scanTierRows returns every row at a tier, ordered by object_id for
// deterministic promotion and notification order.
func scanTierRows(ctx context.Context, q querier, tier model.Tier) ([]recordRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE tier = ? AND tier_id = ?
		ORDER BY object_id ASC
	`, string(tier.Kind), tier.ID)
	if err != nil {
		return nil, model.NewPersistence("scan tier", err)
	}
	defer rows.Close()

	var out []recordRow
	for rows.Next() {
		rr, err := scanRecord(rows)
		if err != nil {
			return nil, codeScanError("scan tier", err)
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistence("scan tier", err)
	}
	return out, nil
}

// deleteTierRows removes every row at a tier.
func deleteTierRows(ctx context.Context, q querier, tier model.Tier) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM records WHERE tier = ? AND tier_id = ?`,
		string(tier.Kind), tier.ID,
	)
	if err != nil {
		return model.NewPersistence("delete tier rows", err)
	}
	return nil
}

// deleteRecordRow removes one row at one tier.
func deleteRecordRow(ctx context.Context, q querier, objectID string, tier model.Tier) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM records WHERE object_id = ? AND tier = ? AND tier_id = ?`,
		objectID, string(tier.Kind), tier.ID,
	)
	if err != nil {
		return model.NewPersistence("delete record row", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
