package domain

import "time"

// TransferRecord is an immutable reassignment history entry.
//
// FromName is "Unassigned" when the problem had no assignee at transfer time.
type TransferRecord struct {
	ID        string
	ProblemID string
	FromID    *string
	FromName  string
	ToID      string
	ToName    string
	ByID      string
	ByName    string
	Reason    string
	CreatedAt time.Time
}

// DefaultTransferReason is recorded when the actor supplies no reason.
const DefaultTransferReason = "No reason provided"
