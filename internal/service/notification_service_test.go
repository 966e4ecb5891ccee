package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/events"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

func newNotificationService(store *memStore, dispatcher *recordingDispatcher) *NotificationService {
	svc := NewNotificationService(store, dispatcher, zap.NewNop(), nil)
	svc.RegisterHandlers()
	return svc
}

func notificationsFor(store *memStore, userID string) []domain.Notification {
	var out []domain.Notification
	for _, n := range store.notifications {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}

func TestNewProblemNotifiesStaffNotTheActor(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	admin := store.addUser("Ada", domain.RoleAdmin, "IT", domain.UserStatusActive)
	leader := store.addUser("Lee", domain.RoleTeamLeader, "IT", domain.UserStatusActive)
	store.addUser("Dana", domain.RoleUser, "IT", domain.UserStatusActive)

	_ = dispatcher.Publish(context.Background(), events.Event{
		ID:        "ev-1",
		Type:      events.EventProblemCreated,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload: events.ProblemCreatedPayload{
			ExternalKey: "PRB-1",
			Department:  "IT",
			Priority:    domain.ProblemPriorityHigh,
			CreatedBy:   admin.Name,
		},
	})

	if got := notificationsFor(store, admin.ID); len(got) != 0 {
		t.Errorf("actor received %d notifications, want 0", len(got))
	}
	got := notificationsFor(store, leader.ID)
	if len(got) != 1 {
		t.Fatalf("leader received %d notifications, want 1", len(got))
	}
	if got[0].Type != domain.NotificationNewProblem {
		t.Errorf("type = %s, want NEW_PROBLEM", got[0].Type)
	}
	if len(store.notifications) != 1 {
		t.Errorf("total notifications = %d, want 1 (staff only)", len(store.notifications))
	}
}

func TestTransferNotifiesTargetOnceAndStaff(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	admin := store.addUser("Ada", domain.RoleAdmin, "IT", domain.UserStatusActive)
	leader := store.addUser("Lee", domain.RoleTeamLeader, "IT", domain.UserStatusActive)
	target := store.addUser("Yuri", domain.RoleTeamLeader, "IT", domain.UserStatusActive)

	_ = dispatcher.Publish(context.Background(), events.Event{
		ID:        "ev-2",
		Type:      events.EventTransferred,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload: events.TransferredPayload{
			FromName: "Alex",
			ToID:     target.ID,
			ToName:   target.Name,
			Reason:   "vacation cover",
		},
	})

	// the target is staff here but receives only the assignment record
	got := notificationsFor(store, target.ID)
	if len(got) != 1 {
		t.Fatalf("target received %d notifications, want 1", len(got))
	}
	if got[0].Type != domain.NotificationAssignment {
		t.Errorf("target notification type = %s, want ASSIGNMENT", got[0].Type)
	}

	staffSide := notificationsFor(store, leader.ID)
	if len(staffSide) != 1 || staffSide[0].Type != domain.NotificationTransfer {
		t.Fatalf("leader notifications = %v, want one TRANSFER", staffSide)
	}
	if got := notificationsFor(store, admin.ID); len(got) != 0 {
		t.Errorf("acting admin received %d notifications, want 0", len(got))
	}
}

func TestCommentNotifiesCreatorAndAssigneeButNotAuthor(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	creator := store.addUser("Dana", domain.RoleUser, "IT", domain.UserStatusActive)
	assignee := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)

	publish := func(authorID string, commentType domain.CommentType) {
		_ = dispatcher.Publish(context.Background(), events.Event{
			Type:      events.EventCommentAdded,
			ProblemID: "p-1",
			Actor:     events.Actor{UserID: &authorID, Name: "author"},
			Payload: events.CommentAddedPayload{
				CommentID:   "c-1",
				CommentType: commentType,
				AuthorID:    authorID,
				CreatorID:   creator.ID,
				AssigneeID:  &assignee.ID,
				TextPreview: "looking into it",
			},
		})
	}

	publish(assignee.ID, domain.CommentTypeGeneral)
	if got := notificationsFor(store, assignee.ID); len(got) != 0 {
		t.Errorf("author received %d notifications, want 0", len(got))
	}
	got := notificationsFor(store, creator.ID)
	if len(got) != 1 || got[0].Type != domain.NotificationDiscussionComment {
		t.Fatalf("creator notifications = %v, want one DISCUSSION_COMMENT", got)
	}

	publish(creator.ID, domain.CommentTypeSolution)
	got = notificationsFor(store, assignee.ID)
	if len(got) != 1 || got[0].Type != domain.NotificationSolutionComment {
		t.Fatalf("assignee notifications = %v, want one SOLUTION_COMMENT", got)
	}
}

func TestApprovalOutcomeNotifiesSubmitter(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	admin := store.addUser("Ada", domain.RoleAdmin, "IT", domain.UserStatusActive)
	leader := store.addUser("Lee", domain.RoleTeamLeader, "IT", domain.UserStatusActive)
	submitter := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventCompleted,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload:   events.CompletedPayload{CompletedBy: admin.Name, SubmittedByID: &submitter.ID},
	})

	got := notificationsFor(store, submitter.ID)
	if len(got) != 1 || got[0].Type != domain.NotificationCompletion {
		t.Fatalf("submitter notifications = %v, want one COMPLETION", got)
	}
	if got := notificationsFor(store, leader.ID); len(got) != 1 {
		t.Errorf("leader notifications = %d, want 1", len(got))
	}
	if got := notificationsFor(store, admin.ID); len(got) != 0 {
		t.Errorf("approver notifications = %d, want 0", len(got))
	}
}

func TestRejectionNotifiesOnlySubmitter(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	admin := store.addUser("Ada", domain.RoleAdmin, "IT", domain.UserStatusActive)
	store.addUser("Lee", domain.RoleTeamLeader, "IT", domain.UserStatusActive)
	submitter := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventRejected,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload:   events.RejectedPayload{RejectedBy: admin.Name, Reason: "needs a root cause", SubmittedByID: &submitter.ID},
	})

	if len(store.notifications) != 1 {
		t.Fatalf("total notifications = %d, want 1", len(store.notifications))
	}
	got := notificationsFor(store, submitter.ID)
	if len(got) != 1 || got[0].Type != domain.NotificationRejection {
		t.Fatalf("submitter notifications = %v, want one REJECTION", got)
	}
}

func TestStatusChangeToDoneEmitsNoDuplicate(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	newNotificationService(store, dispatcher)
	assignee := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)
	actorID := "u-actor"

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventStatusChanged,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &actorID, Name: "Ada"},
		Payload: events.StatusChangedPayload{
			OldStatus:  domain.ProblemStatusPendingApproval,
			NewStatus:  domain.ProblemStatusDone,
			AssigneeID: &assignee.ID,
		},
	})
	if len(store.notifications) != 0 {
		t.Errorf("done transition produced %d status notifications, want 0", len(store.notifications))
	}

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventStatusChanged,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &actorID, Name: "Ada"},
		Payload: events.StatusChangedPayload{
			OldStatus:  domain.ProblemStatusPending,
			NewStatus:  domain.ProblemStatusInProgress,
			AssigneeID: &assignee.ID,
		},
	})
	got := notificationsFor(store, assignee.ID)
	if len(got) != 1 || got[0].Type != domain.NotificationStatusChange {
		t.Fatalf("assignee notifications = %v, want one STATUS_CHANGE", got)
	}
}

func TestNotificationConsumption(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	svc := newNotificationService(store, dispatcher)
	alex := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)
	dana := store.addUser("Dana", domain.RoleUser, "IT", domain.UserStatusActive)

	for _, recipient := range []string{alex.ID, alex.ID, dana.ID} {
		if err := store.Notifications().Create(context.Background(), &domain.Notification{
			RecipientID: recipient,
			Type:        domain.NotificationAssignment,
			Title:       "t",
			Message:     "m",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	count, err := svc.UnreadCount(context.Background(), alex.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d, want 2", count)
	}

	list, err := svc.ListForUser(context.Background(), alex.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d, want 2", len(list))
	}

	// marking another user's notification must not succeed
	other, _ := svc.ListForUser(context.Background(), dana.ID, 10, 0)
	if err := svc.MarkRead(context.Background(), alex.ID, other[0].ID); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("cross-user mark read: err = %v, want NOT_FOUND", err)
	}

	if err := svc.MarkRead(context.Background(), alex.ID, list[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	count, _ = svc.UnreadCount(context.Background(), alex.ID)
	if count != 1 {
		t.Errorf("unread after mark = %d, want 1", count)
	}

	if err := svc.MarkAllRead(context.Background(), alex.ID); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	count, _ = svc.UnreadCount(context.Background(), alex.ID)
	if count != 0 {
		t.Errorf("unread after mark-all = %d, want 0", count)
	}

	if err := svc.ClearAll(context.Background(), alex.ID); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if got, _ := svc.ListForUser(context.Background(), alex.ID, 10, 0); len(got) != 0 {
		t.Errorf("list after clear = %d, want 0", len(got))
	}
	if got, _ := svc.ListForUser(context.Background(), dana.ID, 10, 0); len(got) != 1 {
		t.Errorf("other user's list = %d, clear must not touch it", len(got))
	}
}

// fakeUnreadCache is a map-backed stand-in for the Redis unread counter.
type fakeUnreadCache struct {
	values map[string]string
}

func newFakeUnreadCache() *fakeUnreadCache {
	return &fakeUnreadCache{values: map[string]string{}}
}

func (c *fakeUnreadCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if val, ok := c.values[key]; ok {
		return redis.NewStringResult(val, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *fakeUnreadCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeUnreadCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := c.values[key]; ok {
			delete(c.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestUnreadCountAfterCacheExpiry(t *testing.T) {
	store := newMemStore()
	dispatcher := newRecordingDispatcher()
	cache := newFakeUnreadCache()
	svc := NewNotificationService(store, dispatcher, zap.NewNop(), cache)
	svc.RegisterHandlers()
	admin := store.addUser("Ada", domain.RoleAdmin, "IT", domain.UserStatusActive)
	submitter := store.addUser("Alex", domain.RoleUser, "IT", domain.UserStatusActive)

	// three unread rows already in the table while the cache key is gone,
	// as after a TTL expiry.
	for i := 0; i < 3; i++ {
		store.notifications = append(store.notifications, domain.Notification{
			ID:          store.id("ntf"),
			RecipientID: submitter.ID,
			Type:        domain.NotificationNewProblem,
			Title:       "New problem",
		})
	}

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventRejected,
		ProblemID: "p-1",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload:   events.RejectedPayload{RejectedBy: admin.Name, Reason: "needs a root cause", SubmittedByID: &submitter.ID},
	})

	// delivery must not seed the counter; a stale seed would make the
	// next count report 1 instead of 4
	if val, ok := cache.values[unreadKey(submitter.ID)]; ok {
		t.Fatalf("delivery seeded unread cache with %q, want key absent", val)
	}

	count, err := svc.UnreadCount(context.Background(), submitter.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 4 {
		t.Fatalf("unread = %d, want 4", count)
	}
	if got := cache.values[unreadKey(submitter.ID)]; got != "4" {
		t.Errorf("cached unread = %q, want %q", got, "4")
	}

	// a later delivery drops the cached value so the next count recomputes
	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventRejected,
		ProblemID: "p-2",
		Actor:     events.Actor{UserID: &admin.ID, Name: admin.Name},
		Payload:   events.RejectedPayload{RejectedBy: admin.Name, Reason: "still broken", SubmittedByID: &submitter.ID},
	})
	if _, ok := cache.values[unreadKey(submitter.ID)]; ok {
		t.Error("delivery left a stale cached unread count")
	}
	if count, _ := svc.UnreadCount(context.Background(), submitter.ID); count != 5 {
		t.Errorf("unread after second delivery = %d, want 5", count)
	}
}
