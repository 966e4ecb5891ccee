package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/events"
	"github.com/spec-kit/problem-desk/internal/policy"
	"github.com/spec-kit/problem-desk/internal/repository"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

// ProblemService is the lifecycle engine: it owns problem creation, the status
// state machine with its approval gating, comments, and deletion. Every
// mutation runs inside one store transaction; events publish only after
// commit, so a failing notification can never corrupt a problem record.
type ProblemService struct {
	store      repository.Store
	dispatcher events.Dispatcher
}

// ProblemDependencies bundles collaborators for the service.
type ProblemDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
}

// NewProblemService constructs the service.
func NewProblemService(deps ProblemDependencies) *ProblemService {
	return &ProblemService{store: deps.Store, dispatcher: deps.Dispatcher}
}

// ProblemCreateInput describes problem creation payload.
type ProblemCreateInput struct {
	Department string
	Service    string
	Priority   domain.ProblemPriority
	Statement  string
	Client     *string
	Images     []string
}

// ProblemListInput describes listing filters for the caller's role scope.
type ProblemListInput struct {
	Department  *string
	AssigneeID  *string
	CreatedByID *string
	Statuses    []domain.ProblemStatus
	Priorities  []domain.ProblemPriority
	SearchTerm  *string
	Limit       int
	Offset      int
}

// ProblemDetail bundles a problem with its full histories.
type ProblemDetail struct {
	Problem           *domain.Problem
	Comments          []domain.Comment
	Transfers         []domain.TransferRecord
	Actions           []domain.ActionRecord
	AssignmentEntries []domain.AssignmentEntry
}

// CreateProblem files a new problem, resolves its initial assignment and
// emits creation/assignment events.
func (s *ProblemService) CreateProblem(ctx context.Context, actor *domain.User, input ProblemCreateInput) (*domain.Problem, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	input.Statement = strings.TrimSpace(input.Statement)
	if input.Department == "" || input.Service == "" || input.Statement == "" {
		return nil, apperrors.NewValidationError("department, service and statement are required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.ProblemPriorityMedium
	}
	switch input.Priority {
	case domain.ProblemPriorityLow, domain.ProblemPriorityMedium, domain.ProblemPriorityHigh:
	default:
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	problem := &domain.Problem{
		ExternalKey:    generateProblemKey(),
		Department:     input.Department,
		Service:        input.Service,
		Priority:       input.Priority,
		Statement:      input.Statement,
		Client:         input.Client,
		Images:         input.Images,
		CreatedByID:    actor.ID,
		CreatedByName:  actor.Name,
		Status:         domain.ProblemStatusPending,
		AssignmentType: domain.AssignmentNotAssigned,
	}

	var resolution Resolution
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		res, err := ResolveInitialAssignment(ctx, tx, input.Department)
		if err != nil {
			return err
		}
		resolution = res
		if res.Assignee != nil {
			problem.AssigneeID = &res.Assignee.ID
			problem.AssigneeName = &res.Assignee.Name
			problem.Status = res.Status
			problem.AssignmentType = res.Type
		}
		if err := tx.Problems().Create(ctx, problem); err != nil {
			return err
		}
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionCreated,
			Detail:    "problem filed in " + problem.Department,
		}); err != nil {
			return err
		}
		if res.Assignee != nil {
			if err := tx.Rules().AppendAssignmentEntry(ctx, &domain.AssignmentEntry{
				ProblemID:    problem.ID,
				AssigneeID:   res.Assignee.ID,
				AssigneeName: res.Assignee.Name,
				AssignedBy:   res.AssignedBy,
			}); err != nil {
				return err
			}
			if err := tx.Actions().Create(ctx, &domain.ActionRecord{
				ProblemID: problem.ID,
				ActorName: res.AssignedBy,
				Type:      domain.ActionAssigned,
				Detail:    "auto-assigned to " + res.Assignee.Name,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventProblemCreated,
		ProblemID: problem.ID,
		Actor:     userEventActor(actor),
		Payload: events.ProblemCreatedPayload{
			ExternalKey: problem.ExternalKey,
			Department:  problem.Department,
			Service:     problem.Service,
			Priority:    problem.Priority,
			CreatedBy:   problem.CreatedByName,
		},
	})
	if resolution.Assignee != nil {
		s.publish(ctx, events.Event{
			Type:      events.EventProblemAssigned,
			ProblemID: problem.ID,
			Actor:     events.Actor{Name: resolution.AssignedBy},
			Payload: events.ProblemAssignedPayload{
				AssigneeID:     resolution.Assignee.ID,
				AssigneeName:   resolution.Assignee.Name,
				AssignmentType: resolution.Type,
			},
		})
	}
	return problem, nil
}

// GetProblem fetches one problem with its histories, enforcing visibility.
func (s *ProblemService) GetProblem(ctx context.Context, actor *domain.User, problemID string) (*ProblemDetail, error) {
	problem, err := s.loadProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if !canViewProblem(actor, problem) {
		return nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.store.Comments().ListByProblem(ctx, problem.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	transfers, err := s.store.Transfers().ListByProblem(ctx, problem.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	actions, err := s.store.Actions().ListByProblem(ctx, problem.ID, 100, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entries, err := s.store.Rules().ListAssignmentEntries(ctx, problem.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ProblemDetail{
		Problem:           problem,
		Comments:          comments,
		Transfers:         transfers,
		Actions:           actions,
		AssignmentEntries: entries,
	}, nil
}

// ListProblems returns problems scoped to the actor: staff see everything,
// plain users only what they created or are assigned.
func (s *ProblemService) ListProblems(ctx context.Context, actor *domain.User, input ProblemListInput) ([]domain.Problem, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	filter := repository.ProblemFilter{
		Department:  input.Department,
		AssigneeID:  input.AssigneeID,
		CreatedByID: input.CreatedByID,
		Statuses:    input.Statuses,
		Priorities:  input.Priorities,
		SearchTerm:  input.SearchTerm,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}
	if !actor.Role.IsStaff() {
		filter.VisibleToID = &actor.ID
		filter.VisibleToName = &actor.Name
	}
	problems, err := s.store.Problems().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return problems, nil
}

// SetStatus moves a problem between lifecycle states. Requests for DONE or
// PENDING_APPROVAL are completion attempts: they require a non-empty solution
// comment and land on DONE only when the actor holds approval rights,
// otherwise on PENDING_APPROVAL.
func (s *ProblemService) SetStatus(ctx context.Context, actor *domain.User, problemID string, requested domain.ProblemStatus, comment string) (*domain.Problem, error) {
	if !requested.IsValid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": requested})
	}

	var updated *domain.Problem
	var emit []events.Event
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		problem, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if problem.Status == domain.ProblemStatusDone {
			return apperrors.NewConflict("problem already completed", nil)
		}
		if !policy.CanChangeStatus(actor, problem) {
			return apperrors.NewForbidden("you are not authorized to change this problem's status")
		}

		switch requested {
		case domain.ProblemStatusDone, domain.ProblemStatusPendingApproval:
			evts, err := s.completeInTx(ctx, tx, actor, problem, comment)
			if err != nil {
				return err
			}
			emit = evts
		default:
			if requested != domain.ProblemStatusPending && !problem.IsAssigned() {
				return apperrors.NewConflict("unassigned problems stay pending", nil)
			}
			old := problem.Status
			problem.Status = requested
			if err := tx.Problems().Update(ctx, problem); err != nil {
				return err
			}
			if err := tx.Actions().Create(ctx, &domain.ActionRecord{
				ProblemID: problem.ID,
				ActorID:   &actor.ID,
				ActorName: actor.Name,
				Type:      domain.ActionStatus,
				Detail:    string(old) + " -> " + string(problem.Status),
			}); err != nil {
				return err
			}
			emit = append(emit, events.Event{
				Type:      events.EventStatusChanged,
				ProblemID: problem.ID,
				Actor:     userEventActor(actor),
				Payload: events.StatusChangedPayload{
					OldStatus:  old,
					NewStatus:  problem.Status,
					AssigneeID: problem.AssigneeID,
				},
			})
		}
		updated = problem
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, event := range emit {
		s.publish(ctx, event)
	}
	return updated, nil
}

// completeInTx handles a completion request. The solution comment is a hard
// precondition: without it nothing mutates.
func (s *ProblemService) completeInTx(ctx context.Context, tx repository.Store, actor *domain.User, problem *domain.Problem, comment string) ([]events.Event, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.NewValidationError("a solution comment is required to complete a problem", nil)
	}
	if !problem.IsAssigned() {
		return nil, apperrors.NewConflict("unassigned problems stay pending", nil)
	}

	if err := tx.Comments().Create(ctx, &domain.Comment{
		ProblemID:  problem.ID,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		AuthorRole: actor.Role,
		Type:       domain.CommentTypeSolution,
		Text:       comment,
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	old := problem.Status
	var emit []events.Event
	if policy.CanApprove(actor) {
		problem.Status = domain.ProblemStatusDone
		problem.ResolvedAt = &now
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionStatus,
			Detail:    string(old) + " -> " + string(problem.Status),
		}); err != nil {
			return nil, err
		}
		emit = append(emit, events.Event{
			Type:      events.EventCompleted,
			ProblemID: problem.ID,
			Actor:     userEventActor(actor),
			Payload:   events.CompletedPayload{CompletedBy: actor.Name},
		})
	} else {
		problem.Status = domain.ProblemStatusPendingApproval
		problem.SubmittedForApprovalBy = &actor.ID
		problem.SubmittedForApprovalAt = &now
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionSubmitted,
			Detail:    "submitted for approval",
		}); err != nil {
			return nil, err
		}
		emit = append(emit, events.Event{
			Type:      events.EventSubmittedForApproval,
			ProblemID: problem.ID,
			Actor:     userEventActor(actor),
			Payload:   events.SubmittedForApprovalPayload{SubmittedBy: actor.Name},
		})
	}
	if err := tx.Problems().Update(ctx, problem); err != nil {
		return nil, err
	}
	return emit, nil
}

// Approve signs off a problem awaiting approval. The solution comment from
// submission suffices; no further comment is required.
func (s *ProblemService) Approve(ctx context.Context, actor *domain.User, problemID string) (*domain.Problem, error) {
	if !policy.CanApprove(actor) {
		return nil, apperrors.NewForbidden("only admins and team leaders may approve")
	}
	var updated *domain.Problem
	var submitterID *string
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		problem, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if problem.Status != domain.ProblemStatusPendingApproval {
			return apperrors.NewConflict("problem is not awaiting approval", map[string]any{"status": problem.Status})
		}
		now := time.Now()
		problem.Status = domain.ProblemStatusDone
		problem.ApprovedBy = &actor.ID
		problem.ApprovedAt = &now
		problem.ResolvedAt = &now
		submitterID = problem.SubmittedForApprovalBy
		if err := tx.Problems().Update(ctx, problem); err != nil {
			return err
		}
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionApproved,
			Detail:    "approved solution",
		}); err != nil {
			return err
		}
		updated = problem
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventCompleted,
		ProblemID: updated.ID,
		Actor:     userEventActor(actor),
		Payload: events.CompletedPayload{
			CompletedBy:   actor.Name,
			SubmittedByID: submitterID,
		},
	})
	return updated, nil
}

// Reject sends a problem awaiting approval back to in-progress.
func (s *ProblemService) Reject(ctx context.Context, actor *domain.User, problemID, reason string) (*domain.Problem, error) {
	if !policy.CanApprove(actor) {
		return nil, apperrors.NewForbidden("only admins and team leaders may reject")
	}
	var updated *domain.Problem
	var submitterID *string
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		problem, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if problem.Status != domain.ProblemStatusPendingApproval {
			return apperrors.NewConflict("problem is not awaiting approval", map[string]any{"status": problem.Status})
		}
		now := time.Now()
		submitterID = problem.SubmittedForApprovalBy
		problem.Status = domain.ProblemStatusInProgress
		problem.RejectedBy = &actor.ID
		problem.RejectedAt = &now
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			problem.RejectionReason = &trimmed
		} else {
			problem.RejectionReason = nil
		}
		problem.SubmittedForApprovalBy = nil
		problem.SubmittedForApprovalAt = nil
		if err := tx.Problems().Update(ctx, problem); err != nil {
			return err
		}
		detail := "rejected solution"
		if problem.RejectionReason != nil {
			detail += ": " + *problem.RejectionReason
		}
		if err := tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionRejected,
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
	rejectionReason := ""
	if updated.RejectionReason != nil {
		rejectionReason = *updated.RejectionReason
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRejected,
		ProblemID: updated.ID,
		Actor:     userEventActor(actor),
		Payload: events.RejectedPayload{
			RejectedBy:    actor.Name,
			Reason:        rejectionReason,
			SubmittedByID: submitterID,
		},
	})
	return updated, nil
}

// AddComment appends a discussion or solution comment to the thread.
func (s *ProblemService) AddComment(ctx context.Context, actor *domain.User, problemID string, commentType domain.CommentType, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("comment text required", nil)
	}
	if commentType != domain.CommentTypeGeneral && commentType != domain.CommentTypeSolution {
		return nil, apperrors.NewValidationError("unknown comment type", map[string]any{"type": commentType})
	}

	var comment *domain.Comment
	var problem *domain.Problem
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		loaded, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if !canViewProblem(actor, loaded) {
			return apperrors.NewForbidden("access denied")
		}
		problem = loaded
		comment = &domain.Comment{
			ProblemID:  problem.ID,
			AuthorID:   actor.ID,
			AuthorName: actor.Name,
			AuthorRole: actor.Role,
			Type:       commentType,
			Text:       text,
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return tx.Actions().Create(ctx, &domain.ActionRecord{
			ProblemID: problem.ID,
			ActorID:   &actor.ID,
			ActorName: actor.Name,
			Type:      domain.ActionCommented,
			Detail:    stringPreview(text, 120),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventCommentAdded,
		ProblemID: problem.ID,
		Actor:     userEventActor(actor),
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			CommentType: comment.Type,
			AuthorID:    actor.ID,
			CreatorID:   problem.CreatedByID,
			AssigneeID:  problem.AssigneeID,
			TextPreview: stringPreview(text, 120),
		},
	})
	return comment, nil
}

// DeleteProblem removes a problem with all its histories and notifications.
func (s *ProblemService) DeleteProblem(ctx context.Context, actor *domain.User, problemID string) error {
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		problem, err := loadProblemTx(ctx, tx, problemID)
		if err != nil {
			return err
		}
		if !policy.CanDelete(actor, problem) {
			return apperrors.NewForbidden("you are not authorized to delete this problem")
		}
		return tx.Problems().Delete(ctx, problem.ID)
	})
	return apperrors.MapError(err)
}

func (s *ProblemService) loadProblem(ctx context.Context, problemID string) (*domain.Problem, error) {
	problem, err := s.store.Problems().GetByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("problem", map[string]any{"problem_id": problemID})
		}
		return nil, apperrors.MapError(err)
	}
	return problem, nil
}

func loadProblemTx(ctx context.Context, tx repository.Store, problemID string) (*domain.Problem, error) {
	problem, err := tx.Problems().GetByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("problem", map[string]any{"problem_id": problemID})
		}
		return nil, err
	}
	return problem, nil
}

func canViewProblem(actor *domain.User, problem *domain.Problem) bool {
	if actor == nil || problem == nil {
		return false
	}
	if actor.Role.IsStaff() {
		return true
	}
	return problem.CreatedByID == actor.ID || problem.AssigneeMatches(actor)
}

func (s *ProblemService) publish(ctx context.Context, event events.Event) {
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

func userEventActor(u *domain.User) events.Actor {
	if u == nil {
		return events.Actor{Name: "unknown"}
	}
	role := u.Role
	return events.Actor{UserID: &u.ID, Name: u.Name, Role: &role}
}

func generateProblemKey() string {
	return "PRB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	suffix := ""
	if max > 3 {
		cut = max - 3
		suffix = "..."
	}
	// never cut inside a multibyte rune
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}
