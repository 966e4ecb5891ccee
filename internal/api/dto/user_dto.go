package dto

import (
	"time"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest payload for POST /users (admin).
type CreateUserRequest struct {
	Name       string      `json:"name"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
}

// UpdateUserRequest payload for PATCH /users/:id (admin).
type UpdateUserRequest struct {
	Name       *string      `json:"name,omitempty"`
	Email      *string      `json:"email,omitempty"`
	Role       *domain.Role `json:"role,omitempty"`
	Department *string      `json:"department,omitempty"`
}

// UserResponse representation.
type UserResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Role       domain.Role       `json:"role"`
	Department string            `json:"department"`
	Status     domain.UserStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}
