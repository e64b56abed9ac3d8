package store

import (
	"context"
	"testing"

	"github.com/basetier/stratum/internal/model"
)

func TestCreateEntity_DraftLandsAtSessionTier(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	entity := mustCreateEntity(t, s, scope, "service", "api", model.Payload{"port": int64(8080)})

	rec, err := s.Resolve(ctx, scope, model.RecordEntity, entity.ID)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if rec.Tier != model.InEditSession(scope.EditSessionID) {
		t.Errorf("draft tier = %s, want edit_session(%s)", rec.Tier, scope.EditSessionID)
	}
}

func TestCreateEntity_RequiresSession(t *testing.T) {
	s, _, scope := openWorkbench(t)

	branchScope := model.HeadScope("acme").WithChangeSet(scope.ChangeSetID)
	_, err := s.CreateEntity(context.Background(), branchScope, "service", "api", model.Payload{})
	if !model.IsInvalidState(err) {
		t.Errorf("CreateEntity() without session = %v, want INVALID_STATE", err)
	}
}

func TestCreateEntity_RejectsUnknownKind(t *testing.T) {
	s, _, scope := openWorkbench(t)

	_, err := s.CreateEntity(context.Background(), scope, "spaceship", "x", model.Payload{})
	if !model.IsSerialization(err) {
		t.Errorf("CreateEntity() with unknown kind = %v, want SERIALIZATION", err)
	}
}

func TestCreateEntity_RejectsInvalidPayload(t *testing.T) {
	s, _, scope := openWorkbench(t)

	_, err := s.CreateEntity(context.Background(), scope, "service", "api",
		model.Payload{"port": int64(99999)})
	if !model.IsSerialization(err) {
		t.Errorf("CreateEntity() with bad payload = %v, want SERIALIZATION", err)
	}
}

func TestCreateEntity_ClosedSessionRejected(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	if err := s.CancelSession(ctx, scope.EditSessionID); err != nil {
		t.Fatalf("CancelSession() failed: %v", err)
	}

	_, err := s.CreateEntity(ctx, scope, "service", "api", model.Payload{})
	if !model.IsInvalidState(err) {
		t.Errorf("CreateEntity() in canceled session = %v, want INVALID_STATE", err)
	}
}

func TestUpdateRecord_CopyOnWriteFromHead(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "api", model.Payload{
		"port": int64(8080),
		"spec": map[string]any{"replicas": int64(1)},
	})

	updated, err := s.UpdateRecord(ctx, scope, model.RecordEntity, head.ID, func(r *model.Record) error {
		r.Payload["port"] = int64(9090)
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateRecord() failed: %v", err)
	}

	// Untouched attributes carried over from the ancestor.
	spec, ok := updated.Payload["spec"].(map[string]any)
	if !ok || spec["replicas"] != int64(1) {
		t.Errorf("draft lost ancestor content: %v", updated.Payload)
	}

	// The head row is untouched, including the nested map the draft
	// cloned.
	headRec, err := s.Resolve(ctx, model.HeadScope("acme"), model.RecordEntity, head.ID)
	if err != nil {
		t.Fatalf("Resolve(head) failed: %v", err)
	}
	if headRec.Payload["port"] != int64(8080) {
		t.Errorf("head port = %v, want 8080", headRec.Payload["port"])
	}
}

func TestUpdateRecord_SecondWriteHitsExistingDraft(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "api", model.Payload{})

	for _, name := range []string{"api-v2", "api-v3"} {
		want := name
		_, err := s.UpdateRecord(ctx, scope, model.RecordEntity, head.ID, func(r *model.Record) error {
			r.Name = want
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateRecord(%s) failed: %v", name, err)
		}
	}

	rec, err := s.Resolve(ctx, scope, model.RecordEntity, head.ID)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if rec.Name != "api-v3" {
		t.Errorf("draft name = %q, want api-v3", rec.Name)
	}

	// Still exactly one draft row: the second write replaced the first.
	var count int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM records WHERE object_id = ? AND tier = 'edit_session'`,
		head.ID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("draft rows = %d, want 1", count)
	}
}

func TestUpdateRecord_MissingObject(t *testing.T) {
	s, _, scope := openWorkbench(t)

	_, err := s.UpdateRecord(context.Background(), scope, model.RecordEntity, "entity:missing",
		func(r *model.Record) error { return nil })
	if !model.IsNotFound(err) {
		t.Errorf("UpdateRecord() = %v, want NOT_FOUND", err)
	}
}

func TestUpdateRecord_PinsIdentity(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "api", model.Payload{})

	updated, err := s.UpdateRecord(ctx, scope, model.RecordEntity, head.ID, func(r *model.Record) error {
		r.ObjectID = "entity:hijacked"
		r.Tier = model.Head()
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateRecord() failed: %v", err)
	}
	if updated.ObjectID != head.ID {
		t.Errorf("ObjectID = %s, want %s", updated.ObjectID, head.ID)
	}
	if updated.Tier.Kind != model.TierEditSession {
		t.Errorf("Tier = %s, want edit_session", updated.Tier)
	}
}

func TestUpdateRecord_RevalidatesMutation(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "api", model.Payload{"port": int64(80)})

	_, err := s.UpdateRecord(ctx, scope, model.RecordEntity, head.ID, func(r *model.Record) error {
		r.Payload["port"] = "eighty"
		return nil
	})
	if !model.IsSerialization(err) {
		t.Errorf("UpdateRecord() with bad mutation = %v, want SERIALIZATION", err)
	}

	// The rejected draft must not have been stored.
	rec, err := s.Resolve(ctx, scope, model.RecordEntity, head.ID)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if rec.Tier.Kind != model.TierHead {
		t.Errorf("tier after rejected write = %s, want head", rec.Tier)
	}
}

func TestDeleteRecord_TombstonePromotes(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "legacy", model.Payload{})

	if err := s.DeleteRecord(ctx, scope, model.RecordEntity, head.ID); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	if err := s.SaveSession(ctx, scope.EditSessionID); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}

	// The tombstone now lives at the change set tier; the branch scope
	// does not see the object, head still does.
	branchScope := model.HeadScope("acme").WithChangeSet(scope.ChangeSetID)
	if _, err := s.Resolve(ctx, branchScope, model.RecordEntity, head.ID); !model.IsNotFound(err) {
		t.Errorf("Resolve(branch) = %v, want NOT_FOUND", err)
	}
	if _, err := s.Resolve(ctx, model.HeadScope("acme"), model.RecordEntity, head.ID); err != nil {
		t.Errorf("Resolve(head) = %v, want nil", err)
	}

	if err := s.ApplyChangeSet(ctx, scope.ChangeSetID); err != nil {
		t.Fatalf("ApplyChangeSet() failed: %v", err)
	}

	// Applied: the head row is gone.
	if _, err := s.Resolve(ctx, model.HeadScope("acme"), model.RecordEntity, head.ID); !model.IsNotFound(err) {
		t.Errorf("Resolve(head) after apply = %v, want NOT_FOUND", err)
	}
}

func TestDeleteRecord_ThenUpdateIsNotFound(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	head := createHeadEntity(t, s, "service", "api", model.Payload{})

	if err := s.DeleteRecord(ctx, scope, model.RecordEntity, head.ID); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}

	_, err := s.UpdateRecord(ctx, scope, model.RecordEntity, head.ID,
		func(r *model.Record) error { return nil })
	if !model.IsNotFound(err) {
		t.Errorf("UpdateRecord() after delete = %v, want NOT_FOUND", err)
	}
}

func TestCreateNode_PlacementPayload(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	entity := mustCreateEntity(t, s, scope, "service", "api", model.Payload{})

	node, err := s.CreateNode(ctx, scope, "placement", "api placement", model.Payload{
		"objectId": entity.ID,
		"x":        int64(120),
		"y":        int64(80),
	})
	if err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}

	rec, err := s.Resolve(ctx, scope, model.RecordNode, node.ID)
	if err != nil {
		t.Fatalf("Resolve(node) failed: %v", err)
	}
	if rec.Payload["x"] != int64(120) {
		t.Errorf("node x = %v, want 120", rec.Payload["x"])
	}

	// Placement without coordinates is rejected by the registry.
	_, err = s.CreateNode(ctx, scope, "placement", "bad", model.Payload{"objectId": entity.ID})
	if !model.IsSerialization(err) {
		t.Errorf("CreateNode() without coordinates = %v, want SERIALIZATION", err)
	}
}

func TestCreateEdge_RequiresDeclaredKind(t *testing.T) {
	s, _, scope := openWorkbench(t)
	ctx := context.Background()

	a := mustCreateEntity(t, s, scope, "system", "prod", model.Payload{})
	b := mustCreateEntity(t, s, scope, "application", "storefront", model.Payload{})

	_, err := s.CreateEdge(ctx, scope, "teleports",
		model.Vertex{ObjectID: a.ID, Kind: a.Kind},
		model.Vertex{ObjectID: b.ID, Kind: b.Kind},
		nil)
	if !model.IsSerialization(err) {
		t.Errorf("CreateEdge() with undeclared kind = %v, want SERIALIZATION", err)
	}

	edge, err := s.CreateEdge(ctx, scope, "includes",
		model.Vertex{ObjectID: a.ID, Kind: a.Kind},
		model.Vertex{ObjectID: b.ID, Kind: b.Kind},
		nil)
	if err != nil {
		t.Fatalf("CreateEdge() failed: %v", err)
	}
	if edge.Tail.ObjectID != a.ID || edge.Head.ObjectID != b.ID {
		t.Errorf("edge vertices = %s -> %s, want %s -> %s",
			edge.Tail.ObjectID, edge.Head.ObjectID, a.ID, b.ID)
	}
}
