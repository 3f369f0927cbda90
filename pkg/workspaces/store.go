package workspaces

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

// Store persists workspaces
type Store struct {
	db *sql.DB
}

// NewStore creates a new workspace store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func validateName(v *validation.Collector, name string) {
	if v.Required("Workspace name", name) {
		v.MaxLength("Workspace name", name, MaxNameLength)
	}
}

// Create registers a new, active workspace
func (s *Store) Create(ctx context.Context, input CreateWorkspaceInput) (*Workspace, error) {
	name := strings.TrimSpace(input.Name)

	var v validation.Collector
	validateName(&v, name)
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ws := &Workspace{
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO workspaces (name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, query, ws.Name, storage.Flag(ws.IsActive), now, now).Scan(&ws.ID); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return ws, nil
}

// Get retrieves a workspace by ID
func (s *Store) Get(ctx context.Context, id int64) (*Workspace, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`

	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// List returns all workspaces, newest first
func (s *Store) List(ctx context.Context) ([]*Workspace, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM workspaces
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}
	return out, nil
}

// Update applies the non-nil fields of input
func (s *Store) Update(ctx context.Context, id int64, input UpdateWorkspaceInput) (*Workspace, error) {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		var v validation.Collector
		validateName(&v, name)
		if err := v.Err(); err != nil {
			return nil, err
		}
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, name)
		argPos++
	}
	if input.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, storage.Flag(*input.IsActive))
		argPos++
	}

	if len(setClauses) == 0 {
		return s.Get(ctx, id)
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE workspaces SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWorkspaceNotFound
	}

	return s.Get(ctx, id)
}

// SetActive activates or deactivates a workspace. Deactivation blocks logins and
// entitlement but keeps every row.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE workspaces SET is_active = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, storage.Flag(active), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set workspace active flag: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWorkspaceNotFound
	}
	return nil
}

// Delete removes a workspace. The schema cascades the delete to its roles, users,
// role permissions, subscriptions, payments and audit entries.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWorkspaceNotFound
	}
	return nil
}

// IsActive reports whether the workspace exists and is active. Unknown workspaces
// are reported as inactive.
func (s *Store) IsActive(ctx context.Context, id int64) (bool, error) {
	var active storage.Flag
	err := s.db.QueryRowContext(ctx, `SELECT is_active FROM workspaces WHERE id = $1`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check workspace status: %w", err)
	}
	return active.Bool(), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkspace(row rowScanner) (*Workspace, error) {
	var ws Workspace
	var active storage.Flag
	if err := row.Scan(&ws.ID, &ws.Name, &active, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return nil, err
	}
	ws.IsActive = active.Bool()
	return &ws, nil
}
