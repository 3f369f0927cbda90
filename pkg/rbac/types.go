package rbac

import (
	"errors"
	"time"
)

// MaxNameLength is the longest accepted role or module name
const MaxNameLength = 100

var (
	// ErrRoleNotFound is returned when no role matches the ID
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleInUse is returned when deleting a role that users still reference
	ErrRoleInUse = errors.New("role is assigned to users")
	// ErrModuleNotFound is returned when no module matches the ID or name
	ErrModuleNotFound = errors.New("module not found")
	// ErrModuleExists is returned when a module name is already taken
	ErrModuleExists = errors.New("module with this name already exists")
	// ErrPermissionNotFound is returned when a role has no grant row for a module
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrUnknownReference is returned when a write names a workspace, role or module that does not exist
	ErrUnknownReference = errors.New("referenced workspace, role or module does not exist")
)

// Action is one of the four permission verbs
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions lists every valid action
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// Valid reports whether a is a recognized action keyword
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// ParseAction converts a keyword to an Action
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, a.Valid()
}

// Role is a named role. Platform roles have no workspace and are shared by all tenants.
type Role struct {
	ID          int64     `json:"id"`
	WorkspaceID *int64    `json:"workspace_id,omitempty"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPlatform reports whether the role spans all tenants
func (r *Role) IsPlatform() bool {
	return r.WorkspaceID == nil
}

// Module is a named capability domain such as "leads" or "deals"
type Module struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Flags are the four independent grants of a role on a module
type Flags struct {
	CanView   bool `json:"can_view" yaml:"view"`
	CanCreate bool `json:"can_create" yaml:"create"`
	CanEdit   bool `json:"can_edit" yaml:"edit"`
	CanDelete bool `json:"can_delete" yaml:"delete"`
}

// Allows reports whether the flag for action is set. Unknown actions are never allowed.
func (f Flags) Allows(action Action) bool {
	switch action {
	case ActionView:
		return f.CanView
	case ActionCreate:
		return f.CanCreate
	case ActionEdit:
		return f.CanEdit
	case ActionDelete:
		return f.CanDelete
	}
	return false
}

// Permission is a role's grant row for one module
type Permission struct {
	ID         int64     `json:"id"`
	RoleID     int64     `json:"role_id"`
	ModuleID   int64     `json:"module_id"`
	ModuleName string    `json:"module_name,omitempty"`
	Flags      Flags     `json:"flags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reason explains a permission decision
type Reason string

const (
	ReasonGranted       Reason = "granted"
	ReasonUnknownRole   Reason = "unknown_role"
	ReasonUnknownModule Reason = "unknown_module"
	ReasonNoGrant       Reason = "no_grant"
	ReasonFlagFalse     Reason = "flag_false"
)

// Decision is the outcome of a permission check. Callers outside this package
// should only act on Granted; Reason is for logs, metrics and tests.
type Decision struct {
	Granted bool
	Reason  Reason
}

func granted() Decision            { return Decision{Granted: true, Reason: ReasonGranted} }
func denied(reason Reason) Decision { return Decision{Reason: reason} }
