package workspaces

import (
	"errors"
	"time"
)

// MaxNameLength is the longest accepted workspace name
const MaxNameLength = 150

// ErrWorkspaceNotFound is returned when no workspace matches the ID
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Workspace is a tenant. Every workspace-scoped row is owned by exactly one workspace.
type Workspace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateWorkspaceInput is the request to register a new tenant
type CreateWorkspaceInput struct {
	Name string `json:"name"`
}

// UpdateWorkspaceInput holds optional changes; nil fields are left untouched
type UpdateWorkspaceInput struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
