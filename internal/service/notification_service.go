package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/events"
	"github.com/spec-kit/problem-desk/internal/repository"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

const unreadCountTTL = 10 * time.Minute

// UnreadCache is the slice of the Redis API the unread counter uses.
// *redis.Client satisfies it.
type UnreadCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NotificationService fans lifecycle events out to persisted per-recipient
// notification records and serves their consumption. Delivery is at least
// once: creation failures are logged loudly, never propagated to the
// triggering operation, and never partial across recipients.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cache      UnreadCache
}

// NewNotificationService creates the service. cache may be nil; unread counts
// then fall back to COUNT queries.
func NewNotificationService(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger, cache UnreadCache) *NotificationService {
	return &NotificationService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cache:      cache,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventProblemCreated, n.handleProblemCreated)
	n.dispatcher.Subscribe(events.EventProblemAssigned, n.handleProblemAssigned)
	n.dispatcher.Subscribe(events.EventStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventSubmittedForApproval, n.handleSubmittedForApproval)
	n.dispatcher.Subscribe(events.EventCompleted, n.handleCompleted)
	n.dispatcher.Subscribe(events.EventRejected, n.handleRejected)
	n.dispatcher.Subscribe(events.EventTransferred, n.handleTransferred)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
}

func (n *NotificationService) handleProblemCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ProblemCreatedPayload)
	if !ok {
		return nil
	}
	title := "New problem " + payload.ExternalKey
	message := fmt.Sprintf("%s filed a %s problem in %s", payload.CreatedBy, payload.Priority, payload.Department)
	n.notifyStaff(ctx, event, domain.NotificationNewProblem, title, message)
	return nil
}

func (n *NotificationService) handleProblemAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ProblemAssignedPayload)
	if !ok {
		return nil
	}
	n.deliver(ctx, &domain.Notification{
		RecipientID: payload.AssigneeID,
		Type:        domain.NotificationAssignment,
		Title:       "Problem assigned to you",
		Message:     fmt.Sprintf("%s assigned you a problem", event.Actor.Name),
		ProblemID:   &event.ProblemID,
	})
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return nil
	}
	// completion has its own event
	if payload.NewStatus == domain.ProblemStatusDone {
		return nil
	}
	if payload.AssigneeID == nil {
		return nil
	}
	n.deliver(ctx, &domain.Notification{
		RecipientID: *payload.AssigneeID,
		Type:        domain.NotificationStatusChange,
		Title:       "Problem status changed",
		Message:     fmt.Sprintf("%s moved a problem to %s", event.Actor.Name, payload.NewStatus),
		ProblemID:   &event.ProblemID,
	})
	return nil
}

func (n *NotificationService) handleSubmittedForApproval(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SubmittedForApprovalPayload)
	if !ok {
		return nil
	}
	title := "Approval requested"
	message := fmt.Sprintf("%s submitted a solution for approval", payload.SubmittedBy)
	n.notifyStaff(ctx, event, domain.NotificationApprovalRequested, title, message)
	return nil
}

func (n *NotificationService) handleCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CompletedPayload)
	if !ok {
		return nil
	}
	if payload.SubmittedByID != nil {
		n.deliver(ctx, &domain.Notification{
			RecipientID: *payload.SubmittedByID,
			Type:        domain.NotificationCompletion,
			Title:       "Solution approved",
			Message:     fmt.Sprintf("%s approved your solution", payload.CompletedBy),
			ProblemID:   &event.ProblemID,
		})
	}
	title := "Problem completed"
	message := fmt.Sprintf("%s completed a problem", payload.CompletedBy)
	n.notifyStaff(ctx, event, domain.NotificationCompletion, title, message, excludeIDs(payload.SubmittedByID))
	return nil
}

func (n *NotificationService) handleRejected(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RejectedPayload)
	if !ok {
		return nil
	}
	if payload.SubmittedByID == nil {
		return nil
	}
	message := fmt.Sprintf("%s rejected your solution", payload.RejectedBy)
	if payload.Reason != "" {
		message += ": " + payload.Reason
	}
	n.deliver(ctx, &domain.Notification{
		RecipientID: *payload.SubmittedByID,
		Type:        domain.NotificationRejection,
		Title:       "Solution rejected",
		Message:     message,
		ProblemID:   &event.ProblemID,
	})
	return nil
}

func (n *NotificationService) handleTransferred(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TransferredPayload)
	if !ok {
		return nil
	}
	n.deliver(ctx, &domain.Notification{
		RecipientID: payload.ToID,
		Type:        domain.NotificationAssignment,
		Title:       "Problem transferred to you",
		Message:     fmt.Sprintf("%s transferred a problem to you: %s", event.Actor.Name, payload.Reason),
		ProblemID:   &event.ProblemID,
	})
	title := "Problem transferred"
	message := fmt.Sprintf("%s transferred a problem from %s to %s", event.Actor.Name, payload.FromName, payload.ToName)
	n.notifyStaff(ctx, event, domain.NotificationTransfer, title, message, excludeIDs(&payload.ToID))
	return nil
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return nil
	}
	notifType := domain.NotificationDiscussionComment
	title := "New comment"
	if payload.CommentType == domain.CommentTypeSolution {
		notifType = domain.NotificationSolutionComment
		title = "New solution comment"
	}
	message := fmt.Sprintf("%s commented: %s", event.Actor.Name, payload.TextPreview)

	recipients := map[string]struct{}{}
	recipients[payload.CreatorID] = struct{}{}
	if payload.AssigneeID != nil {
		recipients[*payload.AssigneeID] = struct{}{}
	}
	delete(recipients, payload.AuthorID)
	for recipient := range recipients {
		n.deliver(ctx, &domain.Notification{
			RecipientID: recipient,
			Type:        notifType,
			Title:       title,
			Message:     message,
			ProblemID:   &event.ProblemID,
		})
	}
	return nil
}

// notifyStaff creates one record per active admin/team leader, excluding the
// event actor and any explicitly excluded ids.
func (n *NotificationService) notifyStaff(ctx context.Context, event events.Event, notifType domain.NotificationType, title, message string, exclude ...map[string]struct{}) {
	staff, err := n.store.Users().ListStaff(ctx)
	if err != nil {
		n.logger.Error("notification fan-out: listing staff failed",
			zap.String("event_id", event.ID),
			zap.String("problem_id", event.ProblemID),
			zap.Error(err))
		return
	}
	excluded := map[string]struct{}{}
	if event.Actor.UserID != nil {
		excluded[*event.Actor.UserID] = struct{}{}
	}
	for _, set := range exclude {
		for id := range set {
			excluded[id] = struct{}{}
		}
	}
	for _, member := range staff {
		if _, skip := excluded[member.ID]; skip {
			continue
		}
		n.deliver(ctx, &domain.Notification{
			RecipientID: member.ID,
			Type:        notifType,
			Title:       title,
			Message:     message,
			ProblemID:   &event.ProblemID,
		})
	}
}

// deliver persists a single notification record. Failures are logged, not
// returned: a lost notification must be visible in logs but must never fail
// the committed operation that triggered it.
func (n *NotificationService) deliver(ctx context.Context, notification *domain.Notification) {
	if err := n.store.Notifications().Create(ctx, notification); err != nil {
		n.logger.Error("notification delivery failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
		return
	}
	// Invalidate rather than increment: INCR on a key the TTL already
	// expired would seed the counter at 1 while the table holds more
	// unread rows. The next UnreadCount recomputes from the table.
	n.invalidateUnread(ctx, notification.RecipientID)
}

// ListForUser returns the recipient's notifications, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	items, err := n.store.Notifications().ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// UnreadCount returns the recipient's unread total, served from the Redis
// counter cache when available.
func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if n.cache != nil {
		if val, err := n.cache.Get(ctx, unreadKey(userID)).Result(); err == nil {
			if count, err := strconv.ParseInt(val, 10, 64); err == nil {
				return count, nil
			}
		}
	}
	count, err := n.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if n.cache != nil {
		if err := n.cache.Set(ctx, unreadKey(userID), count, unreadCountTTL).Err(); err != nil {
			n.logger.Warn("unread cache set failed", zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead flips one notification's read flag for its recipient.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := n.store.Notifications().MarkRead(ctx, userID, notificationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.MapError(err)
	}
	n.invalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead flips every unread notification for the recipient.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := n.store.Notifications().MarkAllRead(ctx, userID); err != nil {
		return apperrors.MapError(err)
	}
	n.invalidateUnread(ctx, userID)
	return nil
}

// ClearAll deletes the recipient's notifications; other recipients' copies of
// fan-out events are untouched.
func (n *NotificationService) ClearAll(ctx context.Context, userID string) error {
	if err := n.store.Notifications().ClearForUser(ctx, userID); err != nil {
		return apperrors.MapError(err)
	}
	n.invalidateUnread(ctx, userID)
	return nil
}

func (n *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Del(ctx, unreadKey(userID)).Err(); err != nil {
		n.logger.Warn("unread cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func unreadKey(userID string) string {
	return "notifications:unread:" + userID
}

func excludeIDs(ids ...*string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, id := range ids {
		if id != nil {
			set[*id] = struct{}{}
		}
	}
	return set
}
