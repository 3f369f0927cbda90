package audit

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrEntryNotFound = errors.New("audit entry not found")

// EntityType is the kind of business entity an entry documents
type EntityType string

const (
	EntityTypeLead     EntityType = "lead"
	EntityTypeContact  EntityType = "contact"
	EntityTypeDeal     EntityType = "deal"
	EntityTypeProperty EntityType = "property"
)

// Action is the mutation an entry documents
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Entry is one immutable audit log row. Before is absent for creations and
// After for deletions; both are opaque JSON stored and returned verbatim.
type Entry struct {
	ID          int64           `json:"id"`
	WorkspaceID int64           `json:"workspace_id"`
	UserID      *int64          `json:"user_id,omitempty"`
	EntityType  EntityType      `json:"entity_type"`
	EntityID    int64           `json:"entity_id"`
	Action      Action          `json:"action"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filter narrows a workspace's audit trail
type Filter struct {
	WorkspaceID int64
	UserID      *int64
	EntityType  EntityType
	EntityID    *int64
	Action      Action
	Since       *time.Time
	Until       *time.Time

	// Pagination
	Limit  int
	Offset int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ExportFormat represents the format for exporting audit entries
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// Snapshot serializes v for use as an entry's Before or After payload.
// A nil v yields a nil snapshot.
func Snapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
