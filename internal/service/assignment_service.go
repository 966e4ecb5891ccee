package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/events"
	"github.com/spec-kit/problem-desk/internal/policy"
	"github.com/spec-kit/problem-desk/internal/repository"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

// AssignmentService handles initial assignment resolution, manual assignment,
// transfers, and first-face / pre-assignment rule administration.
type AssignmentService struct {
	store      repository.Store
	dispatcher events.Dispatcher
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{store: deps.Store, dispatcher: deps.Dispatcher}
}

// Resolution is the outcome of initial assignment for a new problem.
type Resolution struct {
	Assignee   *domain.User
	Status     domain.ProblemStatus
	Type       domain.AssignmentType
	AssignedBy string
}

// ResolveInitialAssignment picks the initial assignee for a department with
// strict precedence: pre-assignment rule, then the department's first-face,
// then the global first-face, else unassigned. Rules pointing at missing or
// inactive users fall through to the next step.
func ResolveInitialAssignment(ctx context.Context, s repository.Store, department string) (Resolution, error) {
	if rule, err := s.Rules().GetPreAssignment(ctx, department); err == nil {
		if user, ok, err := activeUser(ctx, s, rule.UserID); err != nil {
			return Resolution{}, err
		} else if ok {
			return Resolution{
				Assignee:   user,
				Status:     domain.ProblemStatusInProgress,
				Type:       domain.AssignmentPreAssigned,
				AssignedBy: domain.SystemPreAssignment,
			}, nil
		}
	} else if !errors.Is(err, repository.ErrNoRule) {
		return Resolution{}, err
	}

	if rule, err := s.Rules().GetFirstFace(ctx, department); err == nil {
		if user, ok, err := activeUser(ctx, s, rule.UserID); err != nil {
			return Resolution{}, err
		} else if ok {
			return Resolution{
				Assignee:   user,
				Status:     domain.ProblemStatusInProgress,
				Type:       domain.AssignmentFirstFaceDepartment,
				AssignedBy: domain.SystemFirstFace,
			}, nil
		}
	} else if !errors.Is(err, repository.ErrNoRule) {
		return Resolution{}, err
	}

	if rule, err := s.Rules().GetFirstFace(ctx, domain.FirstFaceDepartmentAll); err == nil {
		if user, ok, err := activeUser(ctx, s, rule.UserID); err != nil {
			return Resolution{}, err
		} else if ok {
			return Resolution{
				Assignee:   user,
				Status:     domain.ProblemStatusInProgress,
				Type:       domain.AssignmentFirstFaceGlobal,
				AssignedBy: domain.SystemFirstFace,
			}, nil
		}
	} else if !errors.Is(err, repository.ErrNoRule) {
		return Resolution{}, err
	}

	return Resolution{
		Status: domain.ProblemStatusPending,
		Type:   domain.AssignmentNotAssigned,
	}, nil
}

func activeUser(ctx context.Context, s repository.Store, userID string) (*domain.User, bool, error) {
	user, err := s.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !user.IsActive() {
		return nil, false, nil
	}
	return user, true, nil
}

// Transfer reassigns an in-flight problem to another user, recording history
// and resetting the problem to pending: in-progress work is forfeited and the
// problem re-queued for the new assignee.
func (s *AssignmentService) Transfer(ctx context.Context, actor *domain.User, problemID, targetUserID, reason string) (*domain.Problem, error) {
	return s.reassign(ctx, actor, problemID, targetUserID, reason, true)
}

// Assign hands a problem to a user without the transfer semantics: the same
// guards apply but a pending problem stays pending and no transfer history is
// recorded.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, problemID, targetUserID string) (*domain.Problem, error) {
	return s.reassign(ctx, actor, problemID, targetUserID, "", false)
}

func (s *AssignmentService) reassign(ctx context.Context, actor *domain.User, problemID, targetUserID, reason string, transfer bool) (*domain.Problem, error) {
	var updated *domain.Problem
	var payload events.TransferredPayload
	var target *domain.User
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		problem, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if !policy.CanTransferProblem(actor, problem) {
			return apperrors.NewForbidden("you are not authorized to reassign problems")
		}
		if problem.Status == domain.ProblemStatusDone {
			return apperrors.NewConflict("problem already completed", nil)
		}
		target, err = tx.Users().GetByID(ctx, targetUserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("user", map[string]any{"user_id": targetUserID})
			}
			return err
		}
		if target.ID == problem.CreatedByID {
			return apperrors.NewConflict("cannot transfer a problem to its creator", nil)
		}
		if !target.IsActive() {
			return apperrors.NewConflict("transfer target is inactive", map[string]any{"user_id": target.ID})
		}

		fromID := problem.AssigneeID
		fromName := "Unassigned"
		if problem.AssigneeName != nil && *problem.AssigneeName != "" {
			fromName = *problem.AssigneeName
		}

		problem.AssigneeID = &target.ID
		problem.AssigneeName = &target.Name
		if transfer {
			problem.Status = domain.ProblemStatusPending
		}
		if err := tx.Problems().Update(ctx, problem); err != nil {
			return err
		}

		if transfer {
			trimmed := strings.TrimSpace(reason)
			if trimmed == "" {
				trimmed = domain.DefaultTransferReason
			}
			if err := tx.Transfers().Create(ctx, &domain.TransferRecord{
				ProblemID: problem.ID,
				FromID:    fromID,
				FromName:  fromName,
				ToID:      target.ID,
				ToName:    target.Name,
				ByID:      actor.ID,
				ByName:    actor.Name,
				Reason:    trimmed,
			}); err != nil {
				return err
			}
			payload = events.TransferredPayload{
				FromID:   fromID,
				FromName: fromName,
				ToID:     target.ID,
				ToName:   target.Name,
				Reason:   trimmed,
			}
		}

		if err := tx.Rules().AppendAssignmentEntry(ctx, &domain.AssignmentEntry{
			ProblemID:    problem.ID,
			AssigneeID:   target.ID,
			AssigneeName: target.Name,
			AssignedBy:   actor.Name,
		}); err != nil {
			return err
		}

		actionType := domain.ActionAssigned
		detail := "assigned to " + target.Name
		if transfer {
			actionType = domain.ActionTransferred
			detail = "transferred from " + fromName + " to " + target.Name
		}
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      actionType,
			Detail:    detail,
		}); err != nil {
			return err
		}
		updated = problem
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if transfer {
		s.publish(ctx, events.Event{
			Type:      events.EventTransferred,
			ProblemID: updated.ID,
			Actor:     userEventActor(actor),
			Payload:   payload,
		})
	} else {
		s.publish(ctx, events.Event{
			Type:      events.EventProblemAssigned,
			ProblemID: updated.ID,
			Actor:     userEventActor(actor),
			Payload: events.ProblemAssignedPayload{
				AssigneeID:     target.ID,
				AssigneeName:   target.Name,
				AssignmentType: updated.AssignmentType,
			},
		})
	}
	return updated, nil
}

// SetFirstFace designates the auto-assignee for a department, or for every
// department when department is the "all" wildcard. Replaces any prior rule
// for the same department.
func (s *AssignmentService) SetFirstFace(ctx context.Context, actor *domain.User, department, userID string) (*domain.FirstFaceRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, apperrors.NewValidationError("department required", nil)
	}
	user, err := s.lookupActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	scope := domain.FirstFaceScopeSpecific
	if department == domain.FirstFaceDepartmentAll {
		scope = domain.FirstFaceScopeAll
	}
	rule := &domain.FirstFaceRule{
		Department: department,
		UserID:     user.ID,
		UserName:   user.Name,
		Scope:      scope,
		AssignedBy: actor.Name,
	}
	if err := s.store.Rules().UpsertFirstFace(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// RemoveFirstFace deletes the rule for a department.
func (s *AssignmentService) RemoveFirstFace(ctx context.Context, actor *domain.User, department string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.Rules().DeleteFirstFace(ctx, department); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("first-face rule", map[string]any{"department": department})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ListFirstFace returns all first-face rules.
func (s *AssignmentService) ListFirstFace(ctx context.Context, actor *domain.User) ([]domain.FirstFaceRule, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	rules, err := s.store.Rules().ListFirstFace(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// SetPreAssignment designates the default assignee for a department,
// replacing any prior rule. Pre-assignments outrank first-face rules.
func (s *AssignmentService) SetPreAssignment(ctx context.Context, actor *domain.User, department, userID string) (*domain.PreAssignmentRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, apperrors.NewValidationError("department required", nil)
	}
	user, err := s.lookupActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rule := &domain.PreAssignmentRule{
		Department: department,
		UserID:     user.ID,
		UserName:   user.Name,
		AssignedBy: actor.Name,
	}
	if err := s.store.Rules().UpsertPreAssignment(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// RemovePreAssignment deletes the rule for a department.
func (s *AssignmentService) RemovePreAssignment(ctx context.Context, actor *domain.User, department string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.Rules().DeletePreAssignment(ctx, department); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("pre-assignment rule", map[string]any{"department": department})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ListPreAssignments returns all pre-assignment rules.
func (s *AssignmentService) ListPreAssignments(ctx context.Context, actor *domain.User) ([]domain.PreAssignmentRule, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	rules, err := s.store.Rules().ListPreAssignments(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

func (s *AssignmentService) lookupActiveUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive() {
		return nil, apperrors.NewConflict("user is inactive", map[string]any{"user_id": userID})
	}
	return user, nil
}

func requireAdmin(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
