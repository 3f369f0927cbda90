// Package audit keeps the append-only trail of entity mutations in a workspace.
//
// Each entry names the entity (lead, contact, deal or property), the action
// (created, updated or deleted) and optional before/after snapshots. Snapshots
// are opaque JSON: they are stored and returned byte for byte and never
// interpreted here.
//
// # Recording
//
// Pair the business write and its audit entry in one transaction with Mutate:
//
//	entry, err := recorder.Mutate(ctx, func(ctx context.Context, tx *sql.Tx) (audit.Entry, error) {
//		if _, err := tx.ExecContext(ctx, `UPDATE leads SET status = $1 WHERE id = $2`, 2, 42); err != nil {
//			return audit.Entry{}, err
//		}
//		return audit.Entry{
//			WorkspaceID: ws.ID,
//			UserID:      &user.ID,
//			EntityType:  audit.EntityTypeLead,
//			EntityID:    42,
//			Action:      audit.ActionUpdated,
//			Before:      json.RawMessage(`{"status":1}`),
//			After:       json.RawMessage(`{"status":2}`),
//		}, nil
//	})
//
// Callers that already own a transaction use RecordTx instead.
//
// # Querying
//
// ListForEntity returns one entity's history oldest first; List searches a
// workspace with optional user, entity, action and time filters. Export
// renders results as JSON, NDJSON or CSV.
//
// Entries cannot be updated or deleted.
package audit
