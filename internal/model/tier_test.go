package model

import "testing"

func TestTier_Rank(t *testing.T) {
	if Head().Rank() <= InChangeSet("cs").Rank() {
		t.Error("head must rank below change set")
	}
	if InChangeSet("cs").Rank() <= InEditSession("es").Rank() {
		t.Error("change set must rank below edit session")
	}
}

func TestTier_String(t *testing.T) {
	if got := Head().String(); got != "head" {
		t.Errorf("Head().String() = %q", got)
	}
	if got := InChangeSet("changeSet:1").String(); got != "change_set(changeSet:1)" {
		t.Errorf("InChangeSet().String() = %q", got)
	}
}

func TestScope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{"head only", HeadScope("acme"), false},
		{"change set", HeadScope("acme").WithChangeSet("changeSet:1"), false},
		{"full", HeadScope("acme").WithChangeSet("changeSet:1").WithEditSession("editSession:2"), false},
		{"missing workspace", Scope{}, true},
		{"session without change set", Scope{WorkspaceID: "acme", EditSessionID: "editSession:2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScope_WithChangeSetClearsSession(t *testing.T) {
	scope := HeadScope("acme").WithChangeSet("changeSet:1").WithEditSession("editSession:2")
	narrowed := scope.WithChangeSet("changeSet:3")
	if narrowed.EditSessionID != "" {
		t.Error("WithChangeSet() must drop the edit session of the old branch")
	}
}
