package domain

import "testing"

func TestProblemStatusIsValid(t *testing.T) {
	valid := []ProblemStatus{ProblemStatusPending, ProblemStatusInProgress, ProblemStatusPendingApproval, ProblemStatusDone}
	for _, status := range valid {
		if !status.IsValid() {
			t.Errorf("%s reported invalid", status)
		}
	}
	if ProblemStatus("CLOSED").IsValid() {
		t.Error("unknown status reported valid")
	}
}

func TestAssigneeMatches(t *testing.T) {
	id := "u2"
	name := "Alex"
	sameNameOtherID := &User{ID: "u3", Name: "Alex"}
	assignee := &User{ID: "u2", Name: "Alex"}

	withID := &Problem{AssigneeID: &id, AssigneeName: &name}
	if !withID.AssigneeMatches(assignee) {
		t.Error("id match failed")
	}
	// once an id is stored the name no longer decides
	if withID.AssigneeMatches(sameNameOtherID) {
		t.Error("name must not match when an id is stored")
	}

	legacy := &Problem{AssigneeName: &name}
	if !legacy.AssigneeMatches(sameNameOtherID) {
		t.Error("legacy record must match by name")
	}

	unassigned := &Problem{}
	if unassigned.AssigneeMatches(assignee) {
		t.Error("unassigned problem matched a user")
	}
	if unassigned.IsAssigned() {
		t.Error("unassigned problem reported assigned")
	}
	if !legacy.IsAssigned() {
		t.Error("name-only record must count as assigned")
	}
}

func TestRoleIsStaff(t *testing.T) {
	if !RoleAdmin.IsStaff() || !RoleTeamLeader.IsStaff() {
		t.Error("admin and team leader are staff")
	}
	if RoleUser.IsStaff() {
		t.Error("plain user is not staff")
	}
}
