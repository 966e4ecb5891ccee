package events

import (
	"time"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventProblemCreated       EventType = "problem_created"
	EventProblemAssigned      EventType = "problem_assigned"
	EventStatusChanged        EventType = "problem_status_changed"
	EventSubmittedForApproval EventType = "problem_submitted_for_approval"
	EventCompleted            EventType = "problem_completed"
	EventRejected             EventType = "problem_rejected"
	EventTransferred          EventType = "problem_transferred"
	EventCommentAdded         EventType = "problem_comment_added"
)

// Actor encapsulates actor metadata for an event. System actors (automatic
// first-face or pre-assignment) carry a label and no user id.
type Actor struct {
	UserID *string      `json:"user_id,omitempty"`
	Name   string       `json:"name"`
	Role   *domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ProblemID string      `json:"problem_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ProblemCreatedPayload payload.
type ProblemCreatedPayload struct {
	ExternalKey string                 `json:"external_key"`
	Department  string                 `json:"department"`
	Service     string                 `json:"service"`
	Priority    domain.ProblemPriority `json:"priority"`
	CreatedBy   string                 `json:"created_by"`
}

// ProblemAssignedPayload payload.
type ProblemAssignedPayload struct {
	AssigneeID     string                `json:"assignee_id"`
	AssigneeName   string                `json:"assignee_name"`
	AssignmentType domain.AssignmentType `json:"assignment_type"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus  domain.ProblemStatus `json:"old_status"`
	NewStatus  domain.ProblemStatus `json:"new_status"`
	AssigneeID *string              `json:"assignee_id,omitempty"`
}

// SubmittedForApprovalPayload payload.
type SubmittedForApprovalPayload struct {
	SubmittedBy string `json:"submitted_by"`
}

// CompletedPayload payload. SubmittedByID is nil when a staff actor completed
// the problem directly without an approval round.
type CompletedPayload struct {
	CompletedBy   string  `json:"completed_by"`
	SubmittedByID *string `json:"submitted_by_id,omitempty"`
}

// RejectedPayload payload.
type RejectedPayload struct {
	RejectedBy    string  `json:"rejected_by"`
	Reason        string  `json:"reason,omitempty"`
	SubmittedByID *string `json:"submitted_by_id,omitempty"`
}

// TransferredPayload payload.
type TransferredPayload struct {
	FromID   *string `json:"from_id,omitempty"`
	FromName string  `json:"from_name"`
	ToID     string  `json:"to_id"`
	ToName   string  `json:"to_name"`
	Reason   string  `json:"reason"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   string             `json:"comment_id"`
	CommentType domain.CommentType `json:"comment_type"`
	AuthorID    string             `json:"author_id"`
	CreatorID   string             `json:"creator_id"`
	AssigneeID  *string            `json:"assignee_id,omitempty"`
	TextPreview string             `json:"text_preview"`
}
