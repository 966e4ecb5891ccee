package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/auth"
	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/repository"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

// DirectoryService is the user directory: admin-managed user records consumed
// by guard checks and assignee resolution. Users are never hard-deleted;
// deactivation keeps problem references displayable.
type DirectoryService struct {
	store      repository.Store
	bcryptCost int
}

// NewDirectoryService constructs the service.
func NewDirectoryService(store repository.Store, bcryptCost int) *DirectoryService {
	return &DirectoryService{store: store, bcryptCost: bcryptCost}
}

// UserCreateInput describes an admin user-creation payload.
type UserCreateInput struct {
	Name       string
	Username   string
	Email      string
	Password   string
	Role       domain.Role
	Department string
}

// UserUpdateInput describes an admin edit. Nil fields stay unchanged.
type UserUpdateInput struct {
	Name       *string
	Email      *string
	Role       *domain.Role
	Department *string
}

// CreateUser registers a directory entry. Admin only.
func (s *DirectoryService) CreateUser(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Username = strings.TrimSpace(input.Username)
	if input.Name == "" || input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, username, email and password are required", nil)
	}
	switch input.Role {
	case domain.RoleAdmin, domain.RoleTeamLeader, domain.RoleUser:
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Department:   input.Department,
		Status:       domain.UserStatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUser applies an admin edit to a directory entry.
func (s *DirectoryService) UpdateUser(ctx context.Context, actor *domain.User, userID string, input UserUpdateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil && *input.Email != "" {
		user.Email = *input.Email
	}
	if input.Role != nil {
		switch *input.Role {
		case domain.RoleAdmin, domain.RoleTeamLeader, domain.RoleUser:
			user.Role = *input.Role
		default:
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *input.Role})
		}
	}
	if input.Department != nil {
		user.Department = *input.Department
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ToggleStatus flips a user between active and inactive. Admin only.
func (s *DirectoryService) ToggleStatus(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == domain.UserStatusActive {
		user.Status = domain.UserStatusInactive
	} else {
		user.Status = domain.UserStatusActive
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetByID resolves a directory entry by id.
func (s *DirectoryService) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetByName resolves a directory entry by display name, for legacy problem
// records that carry only a name.
func (s *DirectoryService) GetByName(ctx context.Context, name string) (*domain.User, error) {
	user, err := s.store.Users().GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"name": name})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListActive returns active users, optionally narrowed by department or role.
func (s *DirectoryService) ListActive(ctx context.Context, department *string, role *domain.Role) ([]domain.User, error) {
	status := domain.UserStatusActive
	users, err := s.store.Users().List(ctx, repository.UserFilter{
		Department: department,
		Role:       role,
		Status:     &status,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListAll returns every directory entry. Staff only.
func (s *DirectoryService) ListAll(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	users, err := s.store.Users().List(ctx, repository.UserFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}
