package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationNewProblem        NotificationType = "NEW_PROBLEM"
	NotificationAssignment        NotificationType = "ASSIGNMENT"
	NotificationStatusChange      NotificationType = "STATUS_CHANGE"
	NotificationTransfer          NotificationType = "TRANSFER"
	NotificationCompletion        NotificationType = "COMPLETION"
	NotificationApprovalRequested NotificationType = "APPROVAL_REQUESTED"
	NotificationRejection         NotificationType = "REJECTION"
	NotificationSolutionComment   NotificationType = "SOLUTION_COMMENT"
	NotificationDiscussionComment NotificationType = "DISCUSSION_COMMENT"
)

// Notification is a persisted per-recipient record. Fan-out events create one
// row per recipient; read state and deletion never affect other recipients.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	ProblemID   *string
	Read        bool
	CreatedAt   time.Time
}
