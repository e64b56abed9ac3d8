package model

import (
	"fmt"
	"time"
)

// RecordKind discriminates the three versioned record families (CP-2).
type RecordKind string

const (
	// RecordEntity is a logical infrastructure object (application,
	// system, service, ...).
	RecordEntity RecordKind = "entity"

	// RecordNode is a canvas placement referencing an entity.
	RecordNode RecordKind = "node"

	// RecordEdge is a typed connection between two vertices.
	RecordEdge RecordKind = "edge"
)

// IDPrefixFor returns the object-id prefix used for a record kind.
func IDPrefixFor(rk RecordKind) string {
	switch rk {
	case RecordNode:
		return PrefixNode
	case RecordEdge:
		return PrefixEdge
	default:
		return PrefixEntity
	}
}

// RecordKindForID maps a self-describing object id to its record
// family. Unprefixed ids default to entities.
func RecordKindForID(id string) RecordKind {
	switch IDPrefix(id) {
	case PrefixNode:
		return RecordNode
	case PrefixEdge:
		return RecordEdge
	default:
		return RecordEntity
	}
}

// Vertex references one end of an edge: the stable object id of the
// referenced record plus its declared kind.
type Vertex struct {
	ObjectID string `json:"objectId"`
	Kind     string `json:"kind"`
}

// Record is the unified versioned row (CP-2). A logical object is the
// set of records sharing an ObjectID across tiers; resolution picks the
// winning row for a scope.
//
// Tail and Head are populated only for RecordEdge rows. Deleted marks a
// tombstone: a draft or branch row recording that the object was
// removed at that tier, shadowing any lower-priority row.
type Record struct {
	ObjectID   string
	RecordKind RecordKind

	// Kind is the domain tag: an entity kind ("application", "service"),
	// node kind, or edge kind ("includes"). Opaque to tier resolution;
	// validated against the schema registry at the store boundary.
	Kind string

	// Name is the human label; also used for deterministic list ordering.
	Name string

	Tier    Tier
	Payload Payload

	Tail *Vertex
	Head *Vertex

	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy suitable as a copy-on-write draft seed.
func (r Record) Clone() Record {
	out := r
	out.Payload = r.Payload.Clone()
	if r.Tail != nil {
		tail := *r.Tail
		out.Tail = &tail
	}
	if r.Head != nil {
		head := *r.Head
		out.Head = &head
	}
	return out
}

// Validate checks the structural invariants that hold for every record
// regardless of kind.
func (r Record) Validate() error {
	if r.ObjectID == "" {
		return fmt.Errorf("record: object id is required")
	}
	if r.Kind == "" {
		return fmt.Errorf("record %s: kind is required", r.ObjectID)
	}
	if r.RecordKind == RecordEdge {
		if r.Tail == nil || r.Head == nil {
			return fmt.Errorf("edge %s: tail and head vertices are required", r.ObjectID)
		}
		if r.Tail.ObjectID == "" || r.Head.ObjectID == "" {
			return fmt.Errorf("edge %s: vertex object ids are required", r.ObjectID)
		}
	}
	return nil
}

// Entity is the typed view of a RecordEntity row.
type Entity struct {
	ID        string
	Kind      string
	Name      string
	Tier      Tier
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityFromRecord converts a resolved record into an Entity.
func EntityFromRecord(r Record) Entity {
	return Entity{
		ID:        r.ObjectID,
		Kind:      r.Kind,
		Name:      r.Name,
		Tier:      r.Tier,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Record converts the entity back into the generic row form.
func (e Entity) Record() Record {
	return Record{
		ObjectID:   e.ID,
		RecordKind: RecordEntity,
		Kind:       e.Kind,
		Name:       e.Name,
		Tier:       e.Tier,
		Payload:    e.Payload,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// Node is the typed view of a RecordNode row: a canvas placement that
// references an entity by object id.
type Node struct {
	ID        string
	Kind      string
	Name      string
	Tier      Tier
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NodeFromRecord converts a resolved record into a Node.
func NodeFromRecord(r Record) Node {
	return Node{
		ID:        r.ObjectID,
		Kind:      r.Kind,
		Name:      r.Name,
		Tier:      r.Tier,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Record converts the node back into the generic row form.
func (n Node) Record() Record {
	return Record{
		ObjectID:   n.ID,
		RecordKind: RecordNode,
		Kind:       n.Kind,
		Name:       n.Name,
		Tier:       n.Tier,
		Payload:    n.Payload,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

// Edge is the typed view of a RecordEdge row. Tail is the predecessor
// vertex; Head is the successor vertex.
type Edge struct {
	ID        string
	Kind      string
	Name      string
	Tier      Tier
	Tail      Vertex
	Head      Vertex
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EdgeFromRecord converts a resolved record into an Edge.
func EdgeFromRecord(r Record) (Edge, error) {
	if r.Tail == nil || r.Head == nil {
		return Edge{}, fmt.Errorf("edge %s: missing vertices", r.ObjectID)
	}
	return Edge{
		ID:        r.ObjectID,
		Kind:      r.Kind,
		Name:      r.Name,
		Tier:      r.Tier,
		Tail:      *r.Tail,
		Head:      *r.Head,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// Record converts the edge back into the generic row form.
func (e Edge) Record() Record {
	tail := e.Tail
	head := e.Head
	return Record{
		ObjectID:   e.ID,
		RecordKind: RecordEdge,
		Kind:       e.Kind,
		Name:       e.Name,
		Tier:       e.Tier,
		Tail:       &tail,
		Head:       &head,
		Payload:    e.Payload,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
