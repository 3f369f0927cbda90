// Package storage holds the relational plumbing shared by every registry in crmguard.
//
// # Overview
//
// All stores are thin repositories over database/sql. They accept a *sql.DB at
// construction and, where an operation must join a caller's transaction, a DBTX
// (the subset of methods shared by *sql.DB and *sql.Tx).
//
// # Transactions
//
// WithTx runs a function inside a transaction, committing when it returns nil and
// rolling back on error or panic:
//
//	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
//		if err := permissions.DeleteByRole(ctx, tx, roleID); err != nil {
//			return err
//		}
//		_, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
//		return err
//	})
//
// # Booleans
//
// Flag normalizes booleans stored as native booleans, integers (0/1) or text so the
// raw representation never leaks past the store boundary.
//
// # Constraint violations
//
// IsUniqueViolation and IsForeignKeyViolation classify driver errors from both
// lib/pq (PostgreSQL) and go-sqlite3 so stores can map them to domain errors.
//
// # Connections
//
// ConnectionManager opens and pings the PostgreSQL pool with the configured limits.
// The pool is owned by the caller; stores never close it.
package storage
