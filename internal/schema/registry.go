// Package schema is the graph-kind registry: it declares which entity,
// node and edge kinds exist and validates record payloads against the
// CUE schema embedded at build time.
//
// The versioned store calls ValidatePayload at its write boundary so a
// row never reaches disk unless its payload decodes against the
// declared kind. Tier resolution itself treats kinds as opaque tags.
package schema

import (
	_ "embed"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/basetier/stratum/internal/model"
)

//go:embed registry.cue
var registryCUE []byte

// EdgeKindSpec carries structural metadata for a declared edge kind.
type EdgeKindSpec struct {
	// Acyclic declares whether external tooling should treat the kind
	// as forming a DAG. Advisory only; the store never enforces it.
	Acyclic bool `json:"acyclic"`
}

// Registry holds the compiled schemas and edge-kind declarations.
//
// Thread-safety: a Registry is immutable after Load and safe for
// concurrent use. cue.Context compilation of payloads is serialized
// internally by the CUE runtime.
type Registry struct {
	ctx       *cue.Context
	schemas   cue.Value
	edgeKinds map[string]EdgeKindSpec
}

// Load compiles the embedded registry. Fails only if the embedded CUE
// is malformed, which is a build defect rather than a runtime
// condition.
func Load() (*Registry, error) {
	ctx := cuecontext.New()

	schemas := ctx.CompileBytes(registryCUE, cue.Filename("registry.cue"))
	if err := schemas.Err(); err != nil {
		return nil, fmt.Errorf("compile registry: %w", err)
	}

	kindsVal := schemas.LookupPath(cue.ParsePath("edgeKind"))
	if !kindsVal.Exists() {
		return nil, fmt.Errorf("registry: edgeKind declarations missing")
	}

	edgeKinds := make(map[string]EdgeKindSpec)
	if err := kindsVal.Decode(&edgeKinds); err != nil {
		return nil, fmt.Errorf("decode edge kinds: %w", err)
	}

	return &Registry{
		ctx:       ctx,
		schemas:   schemas,
		edgeKinds: edgeKinds,
	}, nil
}

// ValidatePayload checks a payload document against the schema declared
// for (recordKind, kind). An unknown kind or a payload that does not
// unify with its schema is an error; callers surface it as a
// SERIALIZATION failure.
func (r *Registry) ValidatePayload(recordKind model.RecordKind, kind string, payload []byte) error {
	schema, err := r.kindSchema(recordKind, kind)
	if err != nil {
		return err
	}

	expr, err := cuejson.Extract("payload.json", payload)
	if err != nil {
		return fmt.Errorf("parse payload for %s kind %q: %w", recordKind, kind, err)
	}

	doc := r.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("build payload for %s kind %q: %w", recordKind, kind, err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("payload does not satisfy %s kind %q: %w", recordKind, kind, err)
	}
	return nil
}

// kindSchema looks up the schema value for a record kind + domain kind
// pair.
func (r *Registry) kindSchema(recordKind model.RecordKind, kind string) (cue.Value, error) {
	root := r.schemas.LookupPath(cue.ParsePath(string(recordKind)))
	if !root.Exists() {
		return cue.Value{}, fmt.Errorf("registry: no schemas declared for record kind %q", recordKind)
	}

	schema := root.LookupPath(cue.MakePath(cue.Str(kind)))
	if !schema.Exists() {
		return cue.Value{}, fmt.Errorf("registry: unknown %s kind %q", recordKind, kind)
	}
	return schema, nil
}

// EdgeKind returns the metadata for a declared edge kind.
func (r *Registry) EdgeKind(kind string) (EdgeKindSpec, bool) {
	spec, ok := r.edgeKinds[kind]
	return spec, ok
}

// EdgeKinds returns the declared edge kinds in sorted order.
func (r *Registry) EdgeKinds() []string {
	kinds := make([]string, 0, len(r.edgeKinds))
	for k := range r.edgeKinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Kinds returns the declared kinds for a record kind in sorted order.
func (r *Registry) Kinds(recordKind model.RecordKind) []string {
	root := r.schemas.LookupPath(cue.ParsePath(string(recordKind)))
	if !root.Exists() {
		return nil
	}

	var kinds []string
	iter, err := root.Fields()
	if err != nil {
		return nil
	}
	for iter.Next() {
		kinds = append(kinds, iter.Selector().Unquoted())
	}
	slices.Sort(kinds)
	return kinds
}
