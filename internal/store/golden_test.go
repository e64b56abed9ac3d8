package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/basetier/stratum/internal/model"
)

// TestNotificationTrace_FullLifecycle drives one complete lifecycle
// (draft, save, second-session edit and delete, apply) and compares the
// post-commit notification stream against a golden file. Ids and
// timestamps are pinned, so the trace is byte-stable.
//
// To regenerate the golden file:
//
//	go test ./internal/store -run TestNotificationTrace -update
func TestNotificationTrace_FullLifecycle(t *testing.T) {
	s, collector := createTestStore(t)
	ctx := context.Background()

	cs, err := s.NewChangeSet(ctx, "acme", "launch checkout")
	if err != nil {
		t.Fatalf("NewChangeSet() failed: %v", err)
	}

	first, err := s.NewEditSession(ctx, cs.ID, "acme")
	if err != nil {
		t.Fatalf("NewEditSession() failed: %v", err)
	}
	scope := model.HeadScope("acme").WithChangeSet(cs.ID).WithEditSession(first.ID)

	app, err := s.CreateEntity(ctx, scope, "application", "checkout",
		model.Payload{"owner": "payments"})
	if err != nil {
		t.Fatalf("CreateEntity(app) failed: %v", err)
	}
	svc, err := s.CreateEntity(ctx, scope, "service", "checkout-api",
		model.Payload{"port": int64(8080), "replicas": int64(2)})
	if err != nil {
		t.Fatalf("CreateEntity(svc) failed: %v", err)
	}
	_, err = s.CreateEdge(ctx, scope, "includes",
		model.Vertex{ObjectID: app.ID, Kind: app.Kind},
		model.Vertex{ObjectID: svc.ID, Kind: svc.Kind},
		nil)
	if err != nil {
		t.Fatalf("CreateEdge() failed: %v", err)
	}
	if err := s.SaveSession(ctx, first.ID); err != nil {
		t.Fatalf("SaveSession(first) failed: %v", err)
	}

	// A second session scales the service and drops the application.
	second, err := s.NewEditSession(ctx, cs.ID, "acme")
	if err != nil {
		t.Fatalf("NewEditSession(second) failed: %v", err)
	}
	scope = model.HeadScope("acme").WithChangeSet(cs.ID).WithEditSession(second.ID)

	_, err = s.UpdateRecord(ctx, scope, model.RecordEntity, svc.ID, func(r *model.Record) error {
		r.Payload["replicas"] = int64(3)
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateRecord() failed: %v", err)
	}
	if err := s.DeleteRecord(ctx, scope, model.RecordEntity, app.ID); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	if err := s.SaveSession(ctx, second.ID); err != nil {
		t.Fatalf("SaveSession(second) failed: %v", err)
	}

	if err := s.ApplyChangeSet(ctx, cs.ID); err != nil {
		t.Fatalf("ApplyChangeSet() failed: %v", err)
	}

	// Head reflects the merged outcome.
	if _, err := s.Resolve(ctx, model.HeadScope("acme"), model.RecordEntity, app.ID); !model.IsNotFound(err) {
		t.Errorf("Resolve(app) on head = %v, want NOT_FOUND", err)
	}
	rec, err := s.Resolve(ctx, model.HeadScope("acme"), model.RecordEntity, svc.ID)
	if err != nil {
		t.Fatalf("Resolve(svc) on head failed: %v", err)
	}
	if rec.Payload["replicas"] != int64(3) {
		t.Errorf("head replicas = %v, want 3", rec.Payload["replicas"])
	}

	// One JSON line per event, in publish order.
	var buf bytes.Buffer
	for _, ev := range collector.Events() {
		line, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	g := goldie.New(t)
	g.Assert(t, "notification_trace", buf.Bytes())
}
