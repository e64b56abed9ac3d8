package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/basetier/stratum/internal/model"
	"github.com/basetier/stratum/internal/notify"
	"github.com/basetier/stratum/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Baseline: change_sets, edit_sessions, records
const currentSchemaVersion = 1

// Store is the versioned record store and lifecycle engine. It is the
// sole mutation surface: every tier transition (apply, save, cancel,
// copy-on-write draft) runs inside a single transaction here.
//
// Thread-safety: safe for concurrent use. Writers are serialized by the
// single-connection pool; reads run outside transactions and are never
// blocked by in-flight writes (WAL mode).
type Store struct {
	db       *sql.DB
	registry *schema.Registry
	notifier notify.Notifier
	ids      model.IDGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithNotifier routes committed-mutation events to the given notifier.
// Default: notify.Nop.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithIDGenerator overrides ID generation. Tests use a deterministic
// sequence generator; production uses prefixed UUIDv7.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock overrides the audit-timestamp source. Tests pin it for
// golden comparisons.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens a SQLite database at the given path, applies
// the required pragmas and migrations, and loads the schema registry.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single-connection pool
	// avoids SQLITE_BUSY and serializes tier transitions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	registry, err := schema.Load()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load schema registry: %w", err)
	}

	s := &Store{
		db:       db,
		registry: registry,
		notifier: notify.Nop{},
		ids:      model.PrefixedUUIDv7{},
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Registry exposes the graph-kind registry loaded at Open.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No incremental migrations yet; the baseline is v1.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a single transaction and flushes the events fn
// queued only after the transaction durably commits (CP-5).
//
// If the notifier fails after commit the mutation stands; the failure
// is logged and delivery relies on the at-least-once contract of the
// transport.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *txn) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistence(op+": begin tx", err)
	}

	t := &txn{Tx: dbtx}
	if err := fn(t); err != nil {
		dbtx.Rollback()
		return err
	}

	if err := dbtx.Commit(); err != nil {
		return model.NewPersistence(op+": commit", err)
	}

	for _, ev := range t.events {
		if err := s.notifier.Publish(ctx, ev); err != nil {
			s.logger.Warn("change notification failed after commit",
				"op", op,
				"object_id", ev.ObjectID,
				"error", err,
			)
		}
	}
	return nil
}

// txn wraps a database transaction plus the notifications queued during
// it. Events become observable only after commit.
type txn struct {
	*sql.Tx
	events []notify.Event
}

// queue records an event for post-commit publication.
func (t *txn) queue(ev notify.Event) {
	t.events = append(t.events, ev)
}

// queueRecord queues the event for a committed record mutation.
func (t *txn) queueRecord(rec model.Record, payload []byte) {
	ev := notify.Event{
		RecordKind: string(rec.RecordKind),
		Kind:       rec.Kind,
		ObjectID:   rec.ObjectID,
		TierKind:   string(rec.Tier.Kind),
		TierID:     rec.Tier.ID,
		Deleted:    rec.Deleted,
	}
	if !rec.Deleted {
		ev.Payload = payload
	}
	t.queue(ev)
}
