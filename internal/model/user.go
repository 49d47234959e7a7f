package model

import (
	"github.com/google/uuid"
)

// User roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User is the identity messages and notifications hang off. Deleting one
// triggers cascade cleanup.
type User struct {
	Base
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	Role         string `json:"role" db:"role"`
	Password     string `json:"-" db:"-"`
	PasswordHash string `json:"-" db:"password_hash"`
}

// Actor is the already-authenticated caller of a mutation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsStaff reports whether the actor may act on other users' content.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleModerator
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=user moderator admin"`
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=150"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Role     *string `json:"role" binding:"omitempty,oneof=user moderator admin"`
}
