package dto

import (
	"time"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// NotificationResponse representation.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	ProblemID *string                 `json:"problem_id,omitempty"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// UnreadCountResponse representation.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// SetRuleRequest payload for first-face / pre-assignment upserts.
type SetRuleRequest struct {
	Department string `json:"department"`
	UserID     string `json:"user_id"`
}

// FirstFaceRuleResponse representation.
type FirstFaceRuleResponse struct {
	ID         string                `json:"id"`
	Department string                `json:"department"`
	UserID     string                `json:"user_id"`
	UserName   string                `json:"user_name"`
	Scope      domain.FirstFaceScope `json:"scope"`
	AssignedBy string                `json:"assigned_by"`
	AssignedAt time.Time             `json:"assigned_at"`
}

// PreAssignmentRuleResponse representation.
type PreAssignmentRuleResponse struct {
	ID         string    `json:"id"`
	Department string    `json:"department"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}
