package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/basetier/stratum/internal/model"
	"github.com/basetier/stratum/internal/notify"
	"github.com/basetier/stratum/internal/testutil"
)

// createTestStore creates a deterministic on-disk store for testing:
// sequential ids, a frozen clock, and a Collector capturing every
// post-commit notification.
func createTestStore(t *testing.T) (*Store, *notify.Collector) {
	t.Helper()
	collector := notify.NewCollector()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithNotifier(collector),
		WithIDGenerator(testutil.NewSequenceIDs()),
		WithClock(testutil.FrozenClock()),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, collector
}

// openWorkbench creates a store plus one open change set and one open
// edit session, returning the session-scoped Scope most tests write
// under.
func openWorkbench(t *testing.T) (*Store, *notify.Collector, model.Scope) {
	t.Helper()
	s, collector := createTestStore(t)
	ctx := context.Background()

	cs, err := s.NewChangeSet(ctx, "acme", "feature")
	if err != nil {
		t.Fatalf("NewChangeSet() failed: %v", err)
	}
	session, err := s.NewEditSession(ctx, cs.ID, "acme")
	if err != nil {
		t.Fatalf("NewEditSession() failed: %v", err)
	}

	scope := model.HeadScope("acme").WithChangeSet(cs.ID).WithEditSession(session.ID)
	return s, collector, scope
}

// createHeadEntity lands an entity on head by running a full draft ->
// save -> apply cycle through a throwaway change set.
func createHeadEntity(t *testing.T, s *Store, kind, name string, payload model.Payload) model.Entity {
	t.Helper()
	ctx := context.Background()

	cs, err := s.NewChangeSet(ctx, "acme", "seed "+name)
	if err != nil {
		t.Fatalf("NewChangeSet() failed: %v", err)
	}
	session, err := s.NewEditSession(ctx, cs.ID, "acme")
	if err != nil {
		t.Fatalf("NewEditSession() failed: %v", err)
	}
	scope := model.HeadScope("acme").WithChangeSet(cs.ID).WithEditSession(session.ID)

	entity, err := s.CreateEntity(ctx, scope, kind, name, payload)
	if err != nil {
		t.Fatalf("CreateEntity() failed: %v", err)
	}
	if err := s.SaveSession(ctx, session.ID); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}
	if err := s.ApplyChangeSet(ctx, cs.ID); err != nil {
		t.Fatalf("ApplyChangeSet() failed: %v", err)
	}
	return entity
}

// mustCreateEntity creates an entity draft or fails the test.
func mustCreateEntity(t *testing.T, s *Store, scope model.Scope, kind, name string, payload model.Payload) model.Entity {
	t.Helper()
	entity, err := s.CreateEntity(context.Background(), scope, kind, name, payload)
	if err != nil {
		t.Fatalf("CreateEntity() failed: %v", err)
	}
	return entity
}
