package domain

import "time"

// ActionType captures what changed in an audit log entry.
type ActionType string

const (
	ActionCreated     ActionType = "CREATED"
	ActionAssigned    ActionType = "ASSIGNED"
	ActionStatus      ActionType = "STATUS_CHANGE"
	ActionSubmitted   ActionType = "SUBMITTED_FOR_APPROVAL"
	ActionApproved    ActionType = "APPROVED"
	ActionRejected    ActionType = "REJECTED"
	ActionTransferred ActionType = "TRANSFERRED"
	ActionCommented   ActionType = "COMMENTED"
	ActionDeleted     ActionType = "DELETED"
)

// ActionRecord is an immutable audit trail entry for a problem.
type ActionRecord struct {
	ID        string
	ProblemID string
	ActorID   *string
	ActorName string
	Type      ActionType
	Detail    string
	CreatedAt time.Time
}

// SystemFirstFace and SystemPreAssignment label automatic assignments in the
// audit trail and assignment history.
const (
	SystemFirstFace     = "System (First Face)"
	SystemPreAssignment = "System (Pre-assignment)"
)
