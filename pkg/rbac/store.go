package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

// Store handles role and module persistence
type Store struct {
	db          *sql.DB
	permissions *PermissionStore
}

// NewStore creates a new role and module store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, permissions: NewPermissionStore(db)}
}

func validateName(field, name string) error {
	var v validation.Collector
	if v.Required(field, name) {
		v.MaxLength(field, name, MaxNameLength)
	}
	return v.Err()
}

// CreatePlatformRole creates a role shared by every workspace
func (s *Store) CreatePlatformRole(ctx context.Context, name string) (*Role, error) {
	return s.createRole(ctx, nil, name)
}

// CreateWorkspaceRole creates a role scoped to one workspace
func (s *Store) CreateWorkspaceRole(ctx context.Context, workspaceID int64, name string) (*Role, error) {
	if workspaceID <= 0 {
		return nil, validation.Errors{"Workspace is required"}
	}
	return s.createRole(ctx, &workspaceID, name)
}

func (s *Store) createRole(ctx context.Context, workspaceID *int64, name string) (*Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName("Role name", name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	role := &Role{
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO roles (workspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, nullableID(workspaceID), name, now, now).Scan(&role.ID)
	if storage.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("failed to create role: %w", ErrUnknownReference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM roles
		WHERE id = $1
	`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListPlatformRoles returns every platform role ordered by name
func (s *Store) ListPlatformRoles(ctx context.Context) ([]*Role, error) {
	query := `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM roles
		WHERE workspace_id IS NULL
		ORDER BY name
	`
	return s.listRoles(ctx, query)
}

// ListWorkspaceRoles returns the roles scoped to workspaceID ordered by name
func (s *Store) ListWorkspaceRoles(ctx context.Context, workspaceID int64) ([]*Role, error) {
	query := `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM roles
		WHERE workspace_id = $1
		ORDER BY name
	`
	return s.listRoles(ctx, query, workspaceID)
}

func (s *Store) listRoles(ctx context.Context, query string, args ...interface{}) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// UpdateRole renames a role
func (s *Store) UpdateRole(ctx context.Context, roleID int64, name string) (*Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName("Role name", name); err != nil {
		return nil, err
	}

	query := `UPDATE roles SET name = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, name, time.Now().UTC(), roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoleNotFound
	}

	return s.GetRole(ctx, roleID)
}

// DeleteRole deletes a role's grants and then the role itself in one transaction.
// It refuses while any user is still assigned the role.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var assigned int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&assigned)
		if err != nil {
			return fmt.Errorf("failed to count role assignments: %w", err)
		}
		if assigned > 0 {
			return ErrRoleInUse
		}

		if _, err := s.permissions.DeleteByRole(ctx, tx, roleID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
		if storage.IsForeignKeyViolation(err) {
			return ErrRoleInUse
		}
		if err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		ok, err := storage.RowsAffected(result)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRoleNotFound
		}
		return nil
	})
}

// CreateModule registers a module. Names are unique and compared case-sensitively.
func (s *Store) CreateModule(ctx context.Context, name string) (*Module, error) {
	name = strings.TrimSpace(name)
	if err := validateName("Module name", name); err != nil {
		return nil, err
	}

	if _, err := s.GetModuleByName(ctx, name); err == nil {
		return nil, ErrModuleExists
	} else if !errors.Is(err, ErrModuleNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	module := &Module{Name: name, CreatedAt: now, UpdatedAt: now}

	query := `
		INSERT INTO modules (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, name, now, now).Scan(&module.ID)
	if storage.IsUniqueViolation(err) {
		return nil, ErrModuleExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create module: %w", err)
	}

	return module, nil
}

// GetModule retrieves a module by ID
func (s *Store) GetModule(ctx context.Context, moduleID int64) (*Module, error) {
	query := `SELECT id, name, created_at, updated_at FROM modules WHERE id = $1`
	return s.getModule(ctx, query, moduleID)
}

// GetModuleByName retrieves a module by its exact name
func (s *Store) GetModuleByName(ctx context.Context, name string) (*Module, error) {
	query := `SELECT id, name, created_at, updated_at FROM modules WHERE name = $1`
	return s.getModule(ctx, query, name)
}

func (s *Store) getModule(ctx context.Context, query string, arg interface{}) (*Module, error) {
	var m Module
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return &m, nil
}

// ListModules returns every module ordered by name
func (s *Store) ListModules(ctx context.Context) ([]*Module, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM modules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []*Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate modules: %w", err)
	}
	return modules, nil
}

// UpdateModule renames a module
func (s *Store) UpdateModule(ctx context.Context, moduleID int64, name string) (*Module, error) {
	name = strings.TrimSpace(name)
	if err := validateName("Module name", name); err != nil {
		return nil, err
	}

	existing, err := s.GetModuleByName(ctx, name)
	if err == nil && existing.ID != moduleID {
		return nil, ErrModuleExists
	}
	if err != nil && !errors.Is(err, ErrModuleNotFound) {
		return nil, err
	}

	query := `UPDATE modules SET name = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, name, time.Now().UTC(), moduleID)
	if storage.IsUniqueViolation(err) {
		return nil, ErrModuleExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrModuleNotFound
	}

	return s.GetModule(ctx, moduleID)
}

// DeleteModule deletes a module. Grants referencing it are removed by the schema cascade.
func (s *Store) DeleteModule(ctx context.Context, moduleID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, moduleID)
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrModuleNotFound
	}
	return nil
}

// Permissions returns the permission matrix store sharing this store's database
func (s *Store) Permissions() *PermissionStore {
	return s.permissions
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	var workspaceID sql.NullInt64
	if err := row.Scan(&role.ID, &workspaceID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	if workspaceID.Valid {
		id := workspaceID.Int64
		role.WorkspaceID = &id
	}
	return &role, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
