package dto

import (
	"time"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// CreateProblemRequest payload for POST /problems.
type CreateProblemRequest struct {
	Department string                 `json:"department"`
	Service    string                 `json:"service"`
	Priority   domain.ProblemPriority `json:"priority"`
	Statement  string                 `json:"statement"`
	Client     *string                `json:"client,omitempty"`
	Images     []string               `json:"images,omitempty"`
}

// SetStatusRequest payload for POST /problems/:id/status.
type SetStatusRequest struct {
	Status  domain.ProblemStatus `json:"status"`
	Comment string               `json:"comment,omitempty"`
}

// RejectRequest payload for POST /problems/:id/reject.
type RejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TransferRequest payload for POST /problems/:id/transfer.
type TransferRequest struct {
	TargetUserID string `json:"target_user_id"`
	Reason       string `json:"reason,omitempty"`
}

// AssignRequest payload for POST /problems/:id/assign.
type AssignRequest struct {
	TargetUserID string `json:"target_user_id"`
}

// CreateCommentRequest payload for POST /problems/:id/comments.
type CreateCommentRequest struct {
	Type domain.CommentType `json:"type,omitempty"`
	Text string             `json:"text"`
}

// ProblemSummary is the listing representation.
type ProblemSummary struct {
	ID             string                 `json:"id"`
	ExternalKey    string                 `json:"external_key"`
	Department     string                 `json:"department"`
	Service        string                 `json:"service"`
	Priority       domain.ProblemPriority `json:"priority"`
	Status         domain.ProblemStatus   `json:"status"`
	AssignmentType domain.AssignmentType  `json:"assignment_type"`
	CreatedByName  string                 `json:"created_by_name"`
	AssigneeID     *string                `json:"assignee_id,omitempty"`
	AssigneeName   *string                `json:"assignee_name,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ProblemDetailResponse is the single-problem representation.
type ProblemDetailResponse struct {
	ProblemSummary
	Statement              string                    `json:"statement"`
	Client                 *string                   `json:"client,omitempty"`
	Images                 []string                  `json:"images,omitempty"`
	SubmittedForApprovalBy *string                   `json:"submitted_for_approval_by,omitempty"`
	SubmittedForApprovalAt *time.Time                `json:"submitted_for_approval_at,omitempty"`
	ApprovedBy             *string                   `json:"approved_by,omitempty"`
	ApprovedAt             *time.Time                `json:"approved_at,omitempty"`
	RejectionReason        *string                   `json:"rejection_reason,omitempty"`
	RejectedBy             *string                   `json:"rejected_by,omitempty"`
	RejectedAt             *time.Time                `json:"rejected_at,omitempty"`
	ResolvedAt             *time.Time                `json:"resolved_at,omitempty"`
	Comments               []CommentResponse         `json:"comments"`
	Transfers              []TransferResponse        `json:"transfers"`
	Actions                []ActionResponse          `json:"actions"`
	Assignments            []AssignmentEntryResponse `json:"assignments"`
}

// CommentResponse representation.
type CommentResponse struct {
	ID         string             `json:"id"`
	AuthorID   string             `json:"author_id"`
	AuthorName string             `json:"author_name"`
	AuthorRole domain.Role        `json:"author_role"`
	Type       domain.CommentType `json:"type"`
	Text       string             `json:"text"`
	CreatedAt  time.Time          `json:"created_at"`
}

// TransferResponse representation.
type TransferResponse struct {
	ID        string    `json:"id"`
	FromID    *string   `json:"from_id,omitempty"`
	FromName  string    `json:"from_name"`
	ToID      string    `json:"to_id"`
	ToName    string    `json:"to_name"`
	ByID      string    `json:"by_id"`
	ByName    string    `json:"by_name"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionResponse representation.
type ActionResponse struct {
	ID        string            `json:"id"`
	ActorID   *string           `json:"actor_id,omitempty"`
	ActorName string            `json:"actor_name"`
	Type      domain.ActionType `json:"type"`
	Detail    string            `json:"detail"`
	CreatedAt time.Time         `json:"created_at"`
}

// AssignmentEntryResponse representation.
type AssignmentEntryResponse struct {
	ID           string    `json:"id"`
	AssigneeID   string    `json:"assignee_id"`
	AssigneeName string    `json:"assignee_name"`
	AssignedBy   string    `json:"assigned_by"`
	CreatedAt    time.Time `json:"created_at"`
}
