package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/validation"
)

const entryColumns = `id, workspace_id, user_id, entity_type, entity_id, action, before_state, after_state, created_at`

// Get retrieves an entry by ID within a workspace
func (r *Recorder) Get(ctx context.Context, workspaceID, id int64) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_logs WHERE id = $1 AND workspace_id = $2`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// ListForEntity returns the history of one entity, oldest first
func (r *Recorder) ListForEntity(ctx context.Context, workspaceID int64, entityType EntityType, entityID int64) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_logs
		WHERE workspace_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return collectEntries(rows)
}

// List searches a workspace's audit trail, newest first
func (r *Recorder) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	if filter.WorkspaceID <= 0 {
		return nil, validation.Malformed("workspace id is required")
	}

	query := `SELECT ` + entryColumns + ` FROM audit_logs WHERE workspace_id = $1`
	args := []interface{}{filter.WorkspaceID}
	argCount := 2

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}

	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", argCount)
		args = append(args, string(filter.EntityType))
		argCount++
	}

	if filter.EntityID != nil {
		query += fmt.Sprintf(" AND entity_id = $%d", argCount)
		args = append(args, *filter.EntityID)
		argCount++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, string(filter.Action))
		argCount++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, filter.Since.UTC())
		argCount++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argCount)
		args = append(args, filter.Until.UTC())
		argCount++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit entries: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e             Entry
		userID        sql.NullInt64
		entityType    string
		action        string
		before, after sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&e.WorkspaceID,
		&userID,
		&entityType,
		&e.EntityID,
		&action,
		&before,
		&after,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.EntityType = EntityType(entityType)
	e.Action = Action(action)
	if userID.Valid {
		e.UserID = &userID.Int64
	}
	if before.Valid {
		e.Before = json.RawMessage(before.String)
	}
	if after.Valid {
		e.After = json.RawMessage(after.String)
	}
	return &e, nil
}
