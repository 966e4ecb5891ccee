package domain

import "time"

// ProblemStatus enumerates lifecycle states for problems.
type ProblemStatus string

const (
	ProblemStatusPending         ProblemStatus = "PENDING"
	ProblemStatusInProgress      ProblemStatus = "IN_PROGRESS"
	ProblemStatusPendingApproval ProblemStatus = "PENDING_APPROVAL"
	ProblemStatusDone            ProblemStatus = "DONE"
)

// IsValid reports whether the status is one of the four lifecycle states.
func (s ProblemStatus) IsValid() bool {
	switch s {
	case ProblemStatusPending, ProblemStatusInProgress, ProblemStatusPendingApproval, ProblemStatusDone:
		return true
	}
	return false
}

// ProblemPriority enumerates urgency.
type ProblemPriority string

const (
	ProblemPriorityLow    ProblemPriority = "LOW"
	ProblemPriorityMedium ProblemPriority = "MEDIUM"
	ProblemPriorityHigh   ProblemPriority = "HIGH"
)

// AssignmentType records how the current assignee was chosen.
type AssignmentType string

const (
	AssignmentNotAssigned         AssignmentType = "NOT_ASSIGNED"
	AssignmentFirstFaceDepartment AssignmentType = "FIRST_FACE_DEPARTMENT"
	AssignmentFirstFaceGlobal     AssignmentType = "FIRST_FACE_GLOBAL"
	AssignmentPreAssigned         AssignmentType = "PRE_ASSIGNED"
)

// Problem is the aggregate for filed issue tickets.
//
// AssigneeID is the stored source of truth for assignment; AssigneeName is a
// denormalized display name. Legacy records imported from the old system may
// carry only a name, which the access policy tolerates.
type Problem struct {
	ID             string
	ExternalKey    string
	Department     string
	Service        string
	Priority       ProblemPriority
	Statement      string
	Client         *string
	Images         []string
	CreatedByID    string
	CreatedByName  string
	AssigneeID     *string
	AssigneeName   *string
	AssignmentType AssignmentType
	Status         ProblemStatus

	SubmittedForApprovalBy *string
	SubmittedForApprovalAt *time.Time
	ApprovedBy             *string
	ApprovedAt             *time.Time
	RejectionReason        *string
	RejectedBy             *string
	RejectedAt             *time.Time
	ResolvedAt             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAssigned reports whether the problem has a resolvable assignee.
func (p *Problem) IsAssigned() bool {
	return p != nil && ((p.AssigneeID != nil && *p.AssigneeID != "") ||
		(p.AssigneeName != nil && *p.AssigneeName != ""))
}

// AssigneeMatches reports whether the given user is the resolved assignee,
// matching by id and falling back to name equality for legacy records.
func (p *Problem) AssigneeMatches(u *User) bool {
	if p == nil || u == nil {
		return false
	}
	if p.AssigneeID != nil && *p.AssigneeID != "" {
		return *p.AssigneeID == u.ID
	}
	if p.AssigneeName != nil && *p.AssigneeName != "" {
		return *p.AssigneeName == u.Name
	}
	return false
}
