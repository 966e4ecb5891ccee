package domain

import "time"

// FirstFaceScope distinguishes department-specific from global records.
type FirstFaceScope string

const (
	FirstFaceScopeSpecific FirstFaceScope = "SPECIFIC"
	FirstFaceScopeAll      FirstFaceScope = "ALL"
)

// FirstFaceDepartmentAll is the wildcard department value matching every
// department after more specific rules are exhausted.
const FirstFaceDepartmentAll = "all"

// FirstFaceRule designates the auto-assignee for a department, or for every
// department when Department == FirstFaceDepartmentAll. At most one rule exists
// per department value; writes replace any previous rule for the same key.
type FirstFaceRule struct {
	ID         string
	Department string
	UserID     string
	UserName   string
	Scope      FirstFaceScope
	AssignedBy string
	AssignedAt time.Time
}

// PreAssignmentRule maps a department to its admin-configured default
// assignee. Takes precedence over first-face rules.
type PreAssignmentRule struct {
	ID         string
	Department string
	UserID     string
	UserName   string
	AssignedBy string
	AssignedAt time.Time
}

// AssignmentEntry is an append-only record of who got a problem and from whom.
type AssignmentEntry struct {
	ID           string
	ProblemID    string
	AssigneeID   string
	AssigneeName string
	AssignedBy   string
	CreatedAt    time.Time
}
