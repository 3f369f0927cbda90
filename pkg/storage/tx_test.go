package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM role_permissions").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = $1", 7)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := WithTx(ctx, db, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports rollback failure alongside the cause", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

		boom := errors.New("boom")
		err := WithTx(ctx, db, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "rollback failed: connection reset")
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = WithTx(ctx, db, func(tx *sql.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		called := false
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.False(t, called)
	})

	t.Run("commit error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := WithTx(ctx, db, func(tx *sql.Tx) error { return nil })
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})
}

func TestRowsAffected(t *testing.T) {
	ok, err := RowsAffected(sqlmock.NewResult(0, 1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = RowsAffected(sqlmock.NewResult(0, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = RowsAffected(sqlmock.NewErrorResult(errors.New("unsupported")))
	assert.Error(t, err)
}
