package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/events"
	"github.com/spec-kit/problem-desk/internal/repository"
)

// memStore is an in-memory repository.Store used across the service tests.
// InTx runs the callback against the same store; tests that need rollback
// behavior assert on observed state instead.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[string]*domain.User
	byName  map[string]string
	byLogin map[string]string

	problems map[string]*domain.Problem

	comments  []domain.Comment
	transfers []domain.TransferRecord
	actions   []domain.ActionRecord
	entries   []domain.AssignmentEntry

	notifications []domain.Notification

	firstFace      map[string]*domain.FirstFaceRule
	preAssignments map[string]*domain.PreAssignmentRule

	failProblemUpdate bool
}

func newMemStore() *memStore {
	return &memStore{
		users:          map[string]*domain.User{},
		byName:         map[string]string{},
		byLogin:        map[string]string{},
		problems:       map[string]*domain.Problem{},
		firstFace:      map[string]*domain.FirstFaceRule{},
		preAssignments: map[string]*domain.PreAssignmentRule{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) addUser(name string, role domain.Role, department string, status domain.UserStatus) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &domain.User{
		ID:         m.id("u"),
		Name:       name,
		Username:   strings.ToLower(strings.ReplaceAll(name, " ", ".")),
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:       role,
		Department: department,
		Status:     status,
	}
	m.users[user.ID] = user
	m.byName[user.Name] = user.ID
	m.byLogin[user.Username] = user.ID
	return user
}

func (m *memStore) addProblem(p *domain.Problem) *domain.Problem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.id("p")
	}
	if p.ExternalKey == "" {
		p.ExternalKey = "PRB-" + p.ID
	}
	m.problems[p.ID] = p
	return p
}

func (m *memStore) Users() repository.UserRepository                 { return (*memUsers)(m) }
func (m *memStore) Problems() repository.ProblemRepository           { return (*memProblems)(m) }
func (m *memStore) Comments() repository.CommentRepository           { return (*memComments)(m) }
func (m *memStore) Transfers() repository.TransferRepository         { return (*memTransfers)(m) }
func (m *memStore) Actions() repository.ActionRepository             { return (*memActions)(m) }
func (m *memStore) Notifications() repository.NotificationRepository { return (*memNotifications)(m) }
func (m *memStore) Rules() repository.AssignmentRuleRepository       { return (*memRules)(m) }

func (m *memStore) InTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

type memUsers memStore

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = s.id("u")
	}
	s.users[user.ID] = user
	s.byName[user.Name] = user.ID
	s.byLogin[user.Username] = user.ID
	return nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (m *memUsers) GetByName(ctx context.Context, name string) (*domain.User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	id, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	id, ok := s.byLogin[username]
	s.mu.Unlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *memUsers) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, user := range s.users {
		if filter.Department != nil && user.Department != *filter.Department {
			continue
		}
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}

func (m *memUsers) ListStaff(_ context.Context) ([]domain.User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, user := range s.users {
		if user.Role.IsStaff() && user.Status == domain.UserStatusActive {
			out = append(out, *user)
		}
	}
	return out, nil
}

type memProblems memStore

func (m *memProblems) Create(_ context.Context, problem *domain.Problem) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if problem.ID == "" {
		problem.ID = s.id("p")
	}
	clone := *problem
	s.problems[problem.ID] = &clone
	return nil
}

func (m *memProblems) Update(_ context.Context, problem *domain.Problem) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProblemUpdate {
		return fmt.Errorf("forced update failure")
	}
	if _, ok := s.problems[problem.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *problem
	s.problems[problem.ID] = &clone
	return nil
}

func (m *memProblems) Delete(_ context.Context, id string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.problems[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.problems, id)
	return nil
}

func (m *memProblems) GetByID(_ context.Context, id string) (*domain.Problem, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	problem, ok := s.problems[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *problem
	return &clone, nil
}

func (m *memProblems) GetByExternalKey(_ context.Context, key string) (*domain.Problem, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, problem := range s.problems {
		if problem.ExternalKey == key {
			clone := *problem
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memProblems) ListWithFilter(_ context.Context, filter repository.ProblemFilter) ([]domain.Problem, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Problem
	for _, problem := range s.problems {
		if filter.Department != nil && problem.Department != *filter.Department {
			continue
		}
		if filter.AssigneeID != nil && (problem.AssigneeID == nil || *problem.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.CreatedByID != nil && problem.CreatedByID != *filter.CreatedByID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, problem.Status) {
			continue
		}
		if filter.VisibleToID != nil {
			visible := problem.CreatedByID == *filter.VisibleToID ||
				(problem.AssigneeID != nil && *problem.AssigneeID == *filter.VisibleToID) ||
				(filter.VisibleToName != nil && problem.AssigneeName != nil && *problem.AssigneeName == *filter.VisibleToName)
			if !visible {
				continue
			}
		}
		out = append(out, *problem)
	}
	return out, nil
}

func containsStatus(statuses []domain.ProblemStatus, status domain.ProblemStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type memComments memStore

func (m *memComments) Create(_ context.Context, comment *domain.Comment) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if comment.ID == "" {
		comment.ID = s.id("c")
	}
	s.comments = append(s.comments, *comment)
	return nil
}

func (m *memComments) ListByProblem(_ context.Context, problemID string) ([]domain.Comment, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Comment
	for _, comment := range s.comments {
		if comment.ProblemID == problemID {
			out = append(out, comment)
		}
	}
	return out, nil
}

type memTransfers memStore

func (m *memTransfers) Create(_ context.Context, record *domain.TransferRecord) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = s.id("t")
	}
	s.transfers = append(s.transfers, *record)
	return nil
}

func (m *memTransfers) ListByProblem(_ context.Context, problemID string) ([]domain.TransferRecord, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TransferRecord
	for _, record := range s.transfers {
		if record.ProblemID == problemID {
			out = append(out, record)
		}
	}
	return out, nil
}

type memActions memStore

func (m *memActions) Create(_ context.Context, record *domain.ActionRecord) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = s.id("a")
	}
	s.actions = append(s.actions, *record)
	return nil
}

func (m *memActions) ListByProblem(_ context.Context, problemID string, _, _ int) ([]domain.ActionRecord, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ActionRecord
	for _, record := range s.actions {
		if record.ProblemID == problemID {
			out = append(out, record)
		}
	}
	return out, nil
}

type memNotifications memStore

func (m *memNotifications) Create(_ context.Context, notification *domain.Notification) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = s.id("n")
	}
	s.notifications = append(s.notifications, *notification)
	return nil
}

func (m *memNotifications) ListForUser(_ context.Context, userID string, _, _ int) ([]domain.Notification, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, notification := range s.notifications {
		if notification.RecipientID == userID {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, notification := range s.notifications {
		if notification.RecipientID == userID && !notification.Read {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, notificationID string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == notificationID && s.notifications[i].RecipientID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].RecipientID == userID {
			s.notifications[i].Read = true
		}
	}
	return nil
}

func (m *memNotifications) ClearForUser(_ context.Context, userID string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	for _, notification := range s.notifications {
		if notification.RecipientID != userID {
			kept = append(kept, notification)
		}
	}
	s.notifications = kept
	return nil
}

type memRules memStore

func (m *memRules) UpsertFirstFace(_ context.Context, rule *domain.FirstFaceRule) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = s.id("ff")
	}
	clone := *rule
	s.firstFace[rule.Department] = &clone
	return nil
}

func (m *memRules) GetFirstFace(_ context.Context, department string) (*domain.FirstFaceRule, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.firstFace[department]
	if !ok {
		return nil, repository.ErrNoRule
	}
	clone := *rule
	return &clone, nil
}

func (m *memRules) ListFirstFace(_ context.Context) ([]domain.FirstFaceRule, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FirstFaceRule
	for _, rule := range s.firstFace {
		out = append(out, *rule)
	}
	return out, nil
}

func (m *memRules) DeleteFirstFace(_ context.Context, department string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.firstFace[department]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.firstFace, department)
	return nil
}

func (m *memRules) UpsertPreAssignment(_ context.Context, rule *domain.PreAssignmentRule) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = s.id("pa")
	}
	clone := *rule
	s.preAssignments[rule.Department] = &clone
	return nil
}

func (m *memRules) GetPreAssignment(_ context.Context, department string) (*domain.PreAssignmentRule, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.preAssignments[department]
	if !ok {
		return nil, repository.ErrNoRule
	}
	clone := *rule
	return &clone, nil
}

func (m *memRules) ListPreAssignments(_ context.Context) ([]domain.PreAssignmentRule, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PreAssignmentRule
	for _, rule := range s.preAssignments {
		out = append(out, *rule)
	}
	return out, nil
}

func (m *memRules) DeletePreAssignment(_ context.Context, department string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.preAssignments[department]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.preAssignments, department)
	return nil
}

func (m *memRules) AppendAssignmentEntry(_ context.Context, entry *domain.AssignmentEntry) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = s.id("ae")
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (m *memRules) ListAssignmentEntries(_ context.Context, problemID string) ([]domain.AssignmentEntry, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AssignmentEntry
	for _, entry := range s.entries {
		if entry.ProblemID == problemID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
	listeners map[events.EventType][]events.EventHandler
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{listeners: map[events.EventType][]events.EventHandler{}}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	handlers := append([]events.EventHandler{}, d.listeners[event.Type]...)
	d.mu.Unlock()
	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *recordingDispatcher) eventsOfType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.published {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
