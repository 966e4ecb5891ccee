// Package policy holds the role-and-ownership predicates consulted before
// every mutating problem action. The predicates are pure and total: a nil
// actor or problem yields false, never a panic.
package policy

import "github.com/spec-kit/problem-desk/internal/domain"

// CanChangeStatus reports whether the actor may move the problem between
// lifecycle states. Admins and team leaders always may; everyone else only
// when they are the resolved assignee. The creator gets no special right.
func CanChangeStatus(actor *domain.User, problem *domain.Problem) bool {
	if actor == nil || problem == nil {
		return false
	}
	if actor.Role.IsStaff() {
		return true
	}
	return problem.AssigneeMatches(actor)
}

// CanApprove reports whether the actor may approve or reject a problem
// awaiting sign-off.
func CanApprove(actor *domain.User) bool {
	return actor != nil && actor.Role.IsStaff()
}

// CanTransferProblem reports whether the actor may reassign the problem.
// Plain users never may, including the creator of the problem.
func CanTransferProblem(actor *domain.User, problem *domain.Problem) bool {
	if actor == nil || problem == nil {
		return false
	}
	return actor.Role.IsStaff()
}

// CanDelete reports whether the actor may remove the problem.
func CanDelete(actor *domain.User, problem *domain.Problem) bool {
	if actor == nil || problem == nil {
		return false
	}
	if actor.Role == domain.RoleAdmin {
		return true
	}
	return actor.Name == problem.CreatedByName
}
