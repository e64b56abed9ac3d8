package model

import "fmt"

// TierKind discriminates which layer of the versioning stack a record
// row belongs to.
type TierKind string

const (
	// TierHead is the canonical merged baseline.
	TierHead TierKind = "head"

	// TierChangeSet holds rows proposed by a change set but not yet
	// applied to head.
	TierChangeSet TierKind = "change_set"

	// TierEditSession holds uncommitted drafts owned by a single edit
	// session.
	TierEditSession TierKind = "edit_session"
)

// Tier identifies the layer a record row lives at. Head carries no ID;
// change set and edit session tiers carry the owning lifecycle's ID.
type Tier struct {
	Kind TierKind
	ID   string
}

// Head returns the head tier.
func Head() Tier {
	return Tier{Kind: TierHead}
}

// InChangeSet returns the tier for rows owned by the given change set.
func InChangeSet(changeSetID string) Tier {
	return Tier{Kind: TierChangeSet, ID: changeSetID}
}

// InEditSession returns the tier for drafts owned by the given edit
// session.
func InEditSession(editSessionID string) Tier {
	return Tier{Kind: TierEditSession, ID: editSessionID}
}

// String renders the tier for logs and error messages.
func (t Tier) String() string {
	if t.Kind == TierHead {
		return string(TierHead)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.ID)
}

// Rank orders tiers by resolution priority: edit session drafts shadow
// change set rows, which shadow head. Lower rank wins.
func (t Tier) Rank() int {
	switch t.Kind {
	case TierEditSession:
		return 0
	case TierChangeSet:
		return 1
	default:
		return 2
	}
}

// Scope carries the identifiers that determine which tiers are visible
// to a call (CP-1). The zero ChangeSetID/EditSessionID mean "head only".
//
// A scope never grants access to another change set's or session's
// rows: resolution consults at most the one edit session, the one
// change set, and head.
type Scope struct {
	WorkspaceID   string
	ChangeSetID   string
	EditSessionID string
}

// HeadScope returns a scope that sees only the head tier of the given
// workspace.
func HeadScope(workspaceID string) Scope {
	return Scope{WorkspaceID: workspaceID}
}

// WithChangeSet returns a copy of the scope focused on the given change
// set, with no edit session.
func (s Scope) WithChangeSet(changeSetID string) Scope {
	s.ChangeSetID = changeSetID
	s.EditSessionID = ""
	return s
}

// WithEditSession returns a copy of the scope focused on the given edit
// session.
func (s Scope) WithEditSession(editSessionID string) Scope {
	s.EditSessionID = editSessionID
	return s
}

// Validate rejects scopes that name an edit session without its change
// set; a session is always nested under a branch.
func (s Scope) Validate() error {
	if s.WorkspaceID == "" {
		return fmt.Errorf("scope: workspace id is required")
	}
	if s.EditSessionID != "" && s.ChangeSetID == "" {
		return fmt.Errorf("scope: edit session %s given without its change set", s.EditSessionID)
	}
	return nil
}
