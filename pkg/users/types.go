package users

import (
	"errors"
	"time"
)

const (
	MaxNameLength     = 100
	MaxEmailLength    = 255
	MinPasswordLength = 6
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrRoleScope          = errors.New("role is not assignable to this user")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is the identity record tying a principal to a role and an optional
// workspace. PasswordHash never leaves this package unless the caller reads it
// explicitly; use Sanitize before serializing.
type User struct {
	ID           int64     `json:"id"`
	WorkspaceID  *int64    `json:"workspace_id,omitempty"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role_name,omitempty"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsPlatform reports whether the user spans all workspaces
func (u *User) IsPlatform() bool {
	return u.WorkspaceID == nil
}

// PublicUser is a User without credentials
type PublicUser struct {
	ID           int64     `json:"id"`
	WorkspaceID  *int64    `json:"workspace_id,omitempty"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role_name,omitempty"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sanitize drops the password hash
func Sanitize(u *User) *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:           u.ID,
		WorkspaceID:  u.WorkspaceID,
		RoleID:       u.RoleID,
		RoleName:     u.RoleName,
		Name:         u.Name,
		Email:        u.Email,
		IsActive:     u.IsActive,
		IsSuperAdmin: u.IsSuperAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// CreateUserInput is the request to register a user. A nil WorkspaceID creates
// a platform user; IsActive defaults to true.
type CreateUserInput struct {
	WorkspaceID  *int64 `json:"workspace_id,omitempty"`
	RoleID       int64  `json:"role_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	IsActive     *bool  `json:"is_active,omitempty"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// UpdateUserInput holds the fields to change; nil fields are left untouched.
// The password is rehashed only when Password is set.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	RoleID   *int64  `json:"role_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Password *string `json:"password,omitempty"`
}
