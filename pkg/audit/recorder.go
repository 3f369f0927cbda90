package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

// Recorder appends entries to the audit trail. It has no update or delete operation.
type Recorder struct {
	db      *sql.DB
	metrics *observability.Metrics
	now     func() time.Time
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithRecorderMetrics sets the collectors written entries are counted in
func WithRecorderMetrics(metrics *observability.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = metrics
	}
}

// NewRecorder creates a new audit recorder
func NewRecorder(db *sql.DB, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an entry outside of any caller transaction
func (r *Recorder) Record(ctx context.Context, entry Entry) (*Entry, error) {
	return r.RecordTx(ctx, r.db, entry)
}

// RecordTx appends an entry using q, typically the transaction that performs
// the mutation being documented.
func (r *Recorder) RecordTx(ctx context.Context, q storage.DBTX, entry Entry) (*Entry, error) {
	recorded, err := r.insert(ctx, q, entry)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordAuditEntry(string(recorded.EntityType), string(recorded.Action))
	return recorded, nil
}

// Mutate runs fn and the audit insert of the entry it returns in one
// transaction. Neither write survives if the other fails.
func (r *Recorder) Mutate(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) (Entry, error)) (*Entry, error) {
	var recorded *Entry
	err := storage.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		entry, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		recorded, err = r.insert(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.metrics.RecordAuditEntry(string(recorded.EntityType), string(recorded.Action))
	return recorded, nil
}

func validateEntry(entry Entry) error {
	var v validation.Collector
	v.RequiredID("Workspace", entry.WorkspaceID)
	v.RequiredID("Entity", entry.EntityID)
	v.Required("Entity type", string(entry.EntityType))
	v.Required("Action", string(entry.Action))
	v.Check(entry.Before == nil || json.Valid(entry.Before), "Before snapshot must be valid JSON")
	v.Check(entry.After == nil || json.Valid(entry.After), "After snapshot must be valid JSON")
	return v.Err()
}

func (r *Recorder) insert(ctx context.Context, q storage.DBTX, entry Entry) (*Entry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	entry.CreatedAt = r.now()
	query := `
		INSERT INTO audit_logs (workspace_id, user_id, entity_type, entity_id, action, before_state, after_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		entry.WorkspaceID,
		nullableID(entry.UserID),
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		snapshotValue(entry.Before),
		snapshotValue(entry.After),
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return &entry, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// snapshotValue binds a snapshot as text so PostgreSQL stores it in a JSON
// column unchanged.
func snapshotValue(raw json.RawMessage) sql.NullString {
	if raw == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
