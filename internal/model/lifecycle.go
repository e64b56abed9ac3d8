package model

import "time"

// ChangeSetStatus is the lifecycle status of a change set.
//
// Transitions: Open -> Applied (terminal), Open -> Abandoned (terminal).
type ChangeSetStatus string

const (
	ChangeSetOpen      ChangeSetStatus = "open"
	ChangeSetApplied   ChangeSetStatus = "applied"
	ChangeSetAbandoned ChangeSetStatus = "abandoned"
)

// ChangeSet is a named, reviewable set of proposed edits; analogous to
// a branch. It owns zero or more edit sessions and, while Open, a set
// of ChangeSet-tier record rows.
type ChangeSet struct {
	ID          string
	Name        string
	WorkspaceID string
	Status      ChangeSetStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Editable reports whether lifecycle transitions are still legal.
func (c ChangeSet) Editable() bool {
	return c.Status == ChangeSetOpen
}

// EditSessionStatus is the lifecycle status of an edit session.
//
// Transitions: Open -> Saved (terminal), Open -> Canceled (terminal).
type EditSessionStatus string

const (
	EditSessionOpen     EditSessionStatus = "open"
	EditSessionSaved    EditSessionStatus = "saved"
	EditSessionCanceled EditSessionStatus = "canceled"
)

// EditSession is a single-writer scratch layer under one change set;
// analogous to a working copy. Session lifetime is entirely
// caller-driven: there is no expiry or timeout.
type EditSession struct {
	ID          string
	ChangeSetID string
	WorkspaceID string
	Status      EditSessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Editable reports whether drafts may still be written to the session.
func (s EditSession) Editable() bool {
	return s.Status == EditSessionOpen
}

// ChangeSetCounts summarizes a workspace's change sets for list views.
type ChangeSetCounts struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
}
