package domain

import "time"

// Role enumerates access levels in the user directory.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTeamLeader Role = "TEAM_LEADER"
	RoleUser       Role = "USER"
)

// IsStaff reports whether the role may triage and approve problems.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeamLeader
}

// UserStatus represents lifecycle states for a directory entry.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User is the domain model for everyone who files or works problems.
type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the user may receive assignments.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
