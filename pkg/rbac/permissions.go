package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

// PermissionStore is the permission matrix: one row of four flags per (role, module)
type PermissionStore struct {
	db *sql.DB
}

// NewPermissionStore creates a new permission matrix store
func NewPermissionStore(db *sql.DB) *PermissionStore {
	return &PermissionStore{db: db}
}

// Upsert writes the flags for (roleID, moduleID), overwriting an existing row.
// Concurrent upserts of the same pair serialize on the pair's unique constraint;
// the last writer wins.
func (p *PermissionStore) Upsert(ctx context.Context, roleID, moduleID int64, flags Flags) (*Permission, error) {
	var v validation.Collector
	v.RequiredID("Role", roleID)
	v.RequiredID("Module", moduleID)
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	perm := &Permission{
		RoleID:    roleID,
		ModuleID:  moduleID,
		Flags:     flags,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO role_permissions (role_id, module_id, can_view, can_create, can_edit, can_delete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (role_id, module_id) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_create = EXCLUDED.can_create,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err := p.db.QueryRowContext(ctx, query,
		roleID,
		moduleID,
		storage.Flag(flags.CanView),
		storage.Flag(flags.CanCreate),
		storage.Flag(flags.CanEdit),
		storage.Flag(flags.CanDelete),
		now,
		now,
	).Scan(&perm.ID, &perm.CreatedAt)
	if storage.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("failed to upsert permission: %w", ErrUnknownReference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}

	return perm, nil
}

// FindByRole returns every grant of a role joined with module names, ordered by module name
func (p *PermissionStore) FindByRole(ctx context.Context, roleID int64) ([]*Permission, error) {
	query := `
		SELECT rp.id, rp.role_id, rp.module_id, m.name,
			rp.can_view, rp.can_create, rp.can_edit, rp.can_delete,
			rp.created_at, rp.updated_at
		FROM role_permissions rp
		JOIN modules m ON m.id = rp.module_id
		WHERE rp.role_id = $1
		ORDER BY m.name
	`

	rows, err := p.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find permissions: %w", err)
	}
	defer rows.Close()

	var perms []*Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}
	return perms, nil
}

// FindByRoleAndModule returns the grant row for one pair
func (p *PermissionStore) FindByRoleAndModule(ctx context.Context, roleID, moduleID int64) (*Permission, error) {
	query := `
		SELECT rp.id, rp.role_id, rp.module_id, m.name,
			rp.can_view, rp.can_create, rp.can_edit, rp.can_delete,
			rp.created_at, rp.updated_at
		FROM role_permissions rp
		JOIN modules m ON m.id = rp.module_id
		WHERE rp.role_id = $1 AND rp.module_id = $2
	`

	perm, err := scanPermission(p.db.QueryRowContext(ctx, query, roleID, moduleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find permission: %w", err)
	}
	return perm, nil
}

// DeleteByRole removes every grant of a role using q, which may be a transaction
func (p *PermissionStore) DeleteByRole(ctx context.Context, q storage.DBTX, roleID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete role permissions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Can reports whether roleID may perform action on the named module. Missing roles,
// modules and grant rows all yield false. Only malformed input is an error.
func (p *PermissionStore) Can(ctx context.Context, roleID int64, moduleName string, action Action) (bool, error) {
	if err := checkRequest(roleID, action); err != nil {
		return false, err
	}

	flags, found, err := p.lookup(ctx, roleID, moduleName)
	if err != nil || !found {
		return false, err
	}
	return flags.Allows(action), nil
}

// lookup fetches the flags for (roleID, moduleName) in one round trip
func (p *PermissionStore) lookup(ctx context.Context, roleID int64, moduleName string) (Flags, bool, error) {
	query := `
		SELECT rp.can_view, rp.can_create, rp.can_edit, rp.can_delete
		FROM role_permissions rp
		JOIN modules m ON m.id = rp.module_id
		WHERE rp.role_id = $1 AND m.name = $2
	`

	var view, create, edit, del storage.Flag
	err := p.db.QueryRowContext(ctx, query, roleID, moduleName).Scan(&view, &create, &edit, &del)
	if errors.Is(err, sql.ErrNoRows) {
		return Flags{}, false, nil
	}
	if err != nil {
		return Flags{}, false, fmt.Errorf("failed to look up permission: %w", err)
	}

	return Flags{
		CanView:   view.Bool(),
		CanCreate: create.Bool(),
		CanEdit:   edit.Bool(),
		CanDelete: del.Bool(),
	}, true, nil
}

func checkRequest(roleID int64, action Action) error {
	if roleID <= 0 {
		return validation.Malformed("role id is required")
	}
	if !action.Valid() {
		return validation.Malformed("unknown action %q", string(action))
	}
	return nil
}

func scanPermission(row rowScanner) (*Permission, error) {
	var perm Permission
	var view, create, edit, del storage.Flag
	err := row.Scan(
		&perm.ID,
		&perm.RoleID,
		&perm.ModuleID,
		&perm.ModuleName,
		&view,
		&create,
		&edit,
		&del,
		&perm.CreatedAt,
		&perm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	perm.Flags = Flags{
		CanView:   view.Bool(),
		CanCreate: create.Bool(),
		CanEdit:   edit.Bool(),
		CanDelete: del.Bool(),
	}
	return &perm, nil
}
