package workspaces

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmguard/pkg/storage/storagetest"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

func TestStore_Create(t *testing.T) {
	store := NewStore(storagetest.NewSQLiteDB(t))
	ctx := context.Background()

	t.Run("trims name and starts active", func(t *testing.T) {
		ws, err := store.Create(ctx, CreateWorkspaceInput{Name: "  Acme Realty  "})
		require.NoError(t, err)
		assert.NotZero(t, ws.ID)
		assert.Equal(t, "Acme Realty", ws.Name)
		assert.True(t, ws.IsActive)

		got, err := store.Get(ctx, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Realty", got.Name)
		assert.True(t, got.IsActive)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			input   string
			wantMsg string
		}{
			{name: "blank", input: "   ", wantMsg: "Workspace name is required"},
			{name: "too long", input: strings.Repeat("x", MaxNameLength+1), wantMsg: "Workspace name must be 150 characters or less"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := store.Create(ctx, CreateWorkspaceInput{Name: tt.input})
				require.Error(t, err)
				assert.True(t, errors.Is(err, validation.ErrInvalid))
				assert.Contains(t, err.Error(), tt.wantMsg)
			})
		}
	})
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore(storagetest.NewSQLiteDB(t))

	_, err := store.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestStore_List(t *testing.T) {
	store := NewStore(storagetest.NewSQLiteDB(t))
	ctx := context.Background()

	first, err := store.Create(ctx, CreateWorkspaceInput{Name: "First"})
	require.NoError(t, err)
	second, err := store.Create(ctx, CreateWorkspaceInput{Name: "Second"})
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestStore_Update(t *testing.T) {
	store := NewStore(storagetest.NewSQLiteDB(t))
	ctx := context.Background()

	ws, err := store.Create(ctx, CreateWorkspaceInput{Name: "Acme"})
	require.NoError(t, err)

	name := "Acme Holdings"
	inactive := false
	updated, err := store.Update(ctx, ws.ID, UpdateWorkspaceInput{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", updated.Name)
	assert.False(t, updated.IsActive)

	unchanged, err := store.Update(ctx, ws.ID, UpdateWorkspaceInput{})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", unchanged.Name)

	blank := " "
	_, err = store.Update(ctx, ws.ID, UpdateWorkspaceInput{Name: &blank})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = store.Update(ctx, 999, UpdateWorkspaceInput{Name: &name})
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestStore_SetActiveAndIsActive(t *testing.T) {
	store := NewStore(storagetest.NewSQLiteDB(t))
	ctx := context.Background()

	ws, err := store.Create(ctx, CreateWorkspaceInput{Name: "Acme"})
	require.NoError(t, err)

	active, err := store.IsActive(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, store.SetActive(ctx, ws.ID, false))
	active, err = store.IsActive(ctx, ws.ID)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = store.IsActive(ctx, 999)
	require.NoError(t, err)
	assert.False(t, active, "unknown workspaces are inactive")

	assert.ErrorIs(t, store.SetActive(ctx, 999, true), ErrWorkspaceNotFound)
}

func TestStore_DeleteCascades(t *testing.T) {
	db := storagetest.NewSQLiteDB(t)
	store := NewStore(db)
	ctx := context.Background()

	ws, err := store.Create(ctx, CreateWorkspaceInput{Name: "Acme"})
	require.NoError(t, err)
	other, err := store.Create(ctx, CreateWorkspaceInput{Name: "Other"})
	require.NoError(t, err)

	seed := []string{
		`INSERT INTO roles (id, workspace_id, name) VALUES (10, $1, 'Sales')`,
		`INSERT INTO roles (id, workspace_id, name) VALUES (11, NULL, 'Platform Admin')`,
		`INSERT INTO modules (id, name) VALUES (20, 'leads')`,
		`INSERT INTO role_permissions (role_id, module_id, can_view) VALUES (10, 20, 1)`,
		`INSERT INTO users (id, workspace_id, role_id, name, email, password) VALUES (30, $1, 10, 'Ann', 'ann@acme.test', 'x')`,
		`INSERT INTO audit_logs (workspace_id, user_id, entity_type, entity_id, action) VALUES ($1, 30, 'lead', 42, 'created')`,
	}
	for _, q := range seed {
		if strings.Contains(q, "$1") {
			_, err = db.Exec(q, ws.ID)
		} else {
			_, err = db.Exec(q)
		}
		require.NoError(t, err, q)
	}

	require.NoError(t, store.Delete(ctx, ws.ID))

	for table, want := range map[string]int{
		"roles":            1, // platform role survives
		"role_permissions": 0,
		"users":            0,
		"audit_logs":       0,
		"modules":          1,
	} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Equal(t, want, n, table)
	}

	_, err = store.Get(ctx, other.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, store.Delete(ctx, ws.ID), ErrWorkspaceNotFound)
}

func TestStore_StoreErrorsPropagate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()
	unavailable := errors.New("connection refused")

	mock.ExpectQuery("INSERT INTO workspaces").WillReturnError(unavailable)
	_, err = store.Create(ctx, CreateWorkspaceInput{Name: "Acme"})
	assert.ErrorIs(t, err, unavailable)

	mock.ExpectQuery("SELECT is_active FROM workspaces").WithArgs(int64(1)).WillReturnError(unavailable)
	_, err = store.IsActive(ctx, 1)
	assert.ErrorIs(t, err, unavailable)

	mock.ExpectExec("DELETE FROM workspaces").WithArgs(int64(1)).WillReturnError(unavailable)
	assert.ErrorIs(t, store.Delete(ctx, 1), unavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}
