package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/storage/storagetest"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

// fakeHasher is a reversible PasswordHasher that counts Hash calls
type fakeHasher struct {
	hashCalls int
}

func (h *fakeHasher) Hash(password string) (string, error) {
	h.hashCalls++
	return "hashed:" + password, nil
}

func (h *fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type userFixture struct {
	db            *sql.DB
	store         *Store
	hasher        *fakeHasher
	roles         *rbac.Store
	workspaceID   int64
	workspaceRole *rbac.Role
	platformRole  *rbac.Role
}

func newUserFixture(t *testing.T) userFixture {
	t.Helper()
	db := storagetest.NewSQLiteDB(t)
	ctx := context.Background()

	var wsID int64
	require.NoError(t, db.QueryRow(`INSERT INTO workspaces (name) VALUES ('Acme') RETURNING id`).Scan(&wsID))

	roles := rbac.NewStore(db)
	wsRole, err := roles.CreateWorkspaceRole(ctx, wsID, "Agent")
	require.NoError(t, err)
	platformRole, err := roles.CreatePlatformRole(ctx, "Support")
	require.NoError(t, err)

	hasher := &fakeHasher{}
	return userFixture{
		db:            db,
		store:         NewStore(db, roles, hasher),
		hasher:        hasher,
		roles:         roles,
		workspaceID:   wsID,
		workspaceRole: wsRole,
		platformRole:  platformRole,
	}
}

func (f userFixture) createAgent(t *testing.T, email string) *User {
	t.Helper()
	user, err := f.store.Create(context.Background(), CreateUserInput{
		WorkspaceID: &f.workspaceID,
		RoleID:      f.workspaceRole.ID,
		Name:        "Agent Smith",
		Email:       email,
		Password:    "secret1",
	})
	require.NoError(t, err)
	return user
}

func TestStore_Create(t *testing.T) {
	f := newUserFixture(t)

	user, err := f.store.Create(context.Background(), CreateUserInput{
		WorkspaceID: &f.workspaceID,
		RoleID:      f.workspaceRole.ID,
		Name:        "  Jo Agent ",
		Email:       " Jo@Acme.TEST ",
		Password:    "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Jo Agent", user.Name)
	assert.Equal(t, "jo@acme.test", user.Email)
	assert.Equal(t, "Agent", user.RoleName)
	assert.Equal(t, "hashed:secret1", user.PasswordHash)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperAdmin)
	require.NotNil(t, user.WorkspaceID)
	assert.Equal(t, f.workspaceID, *user.WorkspaceID)
}

func TestStore_Create_Validation(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.store.Create(context.Background(), CreateUserInput{
		Name:     strings.Repeat("x", MaxNameLength+1),
		Email:    "not-an-email",
		Password: "123",
	})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, validation.Errors{
		"Name must be 100 characters or less",
		"Email must be a valid email address",
		"Password must be at least 6 characters",
		"Role is required",
	}, verrs)
	assert.Zero(t, f.hasher.hashCalls)
}

func TestStore_Create_EmailTaken(t *testing.T) {
	f := newUserFixture(t)
	f.createAgent(t, "jo@acme.test")

	_, err := f.store.Create(context.Background(), CreateUserInput{
		WorkspaceID: &f.workspaceID,
		RoleID:      f.workspaceRole.ID,
		Name:        "Other Jo",
		Email:       "JO@acme.test",
		Password:    "secret2",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestStore_Create_RoleScope(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	var otherWS int64
	require.NoError(t, f.db.QueryRow(`INSERT INTO workspaces (name) VALUES ('Other') RETURNING id`).Scan(&otherWS))

	tests := []struct {
		name        string
		workspaceID *int64
		roleID      int64
		wantErr     error
	}{
		{name: "workspace role in own workspace", workspaceID: &f.workspaceID, roleID: f.workspaceRole.ID},
		{name: "platform role in a workspace", workspaceID: &otherWS, roleID: f.platformRole.ID},
		{name: "platform user with platform role", roleID: f.platformRole.ID},
		{name: "workspace role in another workspace", workspaceID: &otherWS, roleID: f.workspaceRole.ID, wantErr: ErrRoleScope},
		{name: "platform user with workspace role", roleID: f.workspaceRole.ID, wantErr: ErrRoleScope},
		{name: "unknown role", workspaceID: &f.workspaceID, roleID: 999, wantErr: rbac.ErrRoleNotFound},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.Create(ctx, CreateUserInput{
				WorkspaceID: tt.workspaceID,
				RoleID:      tt.roleID,
				Name:        "User",
				Email:       "user" + string(rune('a'+i)) + "@acme.test",
				Password:    "secret1",
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_GetByEmail(t *testing.T) {
	f := newUserFixture(t)
	created := f.createAgent(t, "jo@acme.test")

	got, err := f.store.GetByEmail(context.Background(), "JO@ACME.test")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.store.GetByEmail(context.Background(), "nobody@acme.test")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_ListByWorkspace(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.createAgent(t, "b@acme.test")
	_, err := f.store.Create(ctx, CreateUserInput{
		WorkspaceID: &f.workspaceID,
		RoleID:      f.platformRole.ID,
		Name:        "Alex Support",
		Email:       "a@acme.test",
		Password:    "secret1",
	})
	require.NoError(t, err)
	_, err = f.store.Create(ctx, CreateUserInput{RoleID: f.platformRole.ID, Name: "Ops", Email: "ops@crm.test", Password: "secret1"})
	require.NoError(t, err)

	list, err := f.store.ListByWorkspace(ctx, f.workspaceID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Agent Smith", list[0].Name)
	assert.Equal(t, "Agent", list[0].RoleName)
	assert.Equal(t, "Alex Support", list[1].Name)
	assert.Equal(t, "Support", list[1].RoleName)
}

func TestStore_Update(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.createAgent(t, "jo@acme.test")
	require.Equal(t, 1, f.hasher.hashCalls)

	name := "Jo Renamed"
	inactive := false
	updated, err := f.store.Update(ctx, user.ID, UpdateUserInput{Name: &name, IsActive: &inactive, RoleID: &f.platformRole.ID})
	require.NoError(t, err)
	assert.Equal(t, "Jo Renamed", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, f.platformRole.ID, updated.RoleID)
	assert.Equal(t, "hashed:secret1", updated.PasswordHash)
	assert.Equal(t, 1, f.hasher.hashCalls, "password must not be rehashed")

	password := "new-secret"
	updated, err = f.store.Update(ctx, user.ID, UpdateUserInput{Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "hashed:new-secret", updated.PasswordHash)
	assert.Equal(t, 2, f.hasher.hashCalls)

	short := "123"
	_, err = f.store.Update(ctx, user.ID, UpdateUserInput{Password: &short})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = f.store.Update(ctx, 999, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_Update_RoleScope(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	platformUser, err := f.store.Create(ctx, CreateUserInput{RoleID: f.platformRole.ID, Name: "Ops", Email: "ops@crm.test", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.store.Update(ctx, platformUser.ID, UpdateUserInput{RoleID: &f.workspaceRole.ID})
	assert.ErrorIs(t, err, ErrRoleScope)
}

func TestStore_Delete(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.createAgent(t, "jo@acme.test")

	require.NoError(t, f.store.Delete(ctx, user.ID))
	_, err := f.store.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, f.store.Delete(ctx, user.ID), ErrUserNotFound)
}

func TestStore_VerifyPassword(t *testing.T) {
	f := newUserFixture(t)
	user := f.createAgent(t, "jo@acme.test")

	ok, err := f.store.VerifyPassword(user, "secret1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.store.VerifyPassword(user, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Authenticate(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.createAgent(t, "jo@acme.test")

	got, err := f.store.Authenticate(ctx, "Jo@Acme.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.store.Authenticate(ctx, "jo@acme.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.store.Authenticate(ctx, "nobody@acme.test", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Deactivated workspace blocks login but keeps the user.
	_, err = f.db.Exec(`UPDATE workspaces SET is_active = 0 WHERE id = $1`, f.workspaceID)
	require.NoError(t, err)
	_, err = f.store.Authenticate(ctx, "jo@acme.test", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.store.Get(ctx, user.ID)
	require.NoError(t, err)

	// Platform users have no workspace to deactivate.
	_, err = f.store.Create(ctx, CreateUserInput{RoleID: f.platformRole.ID, Name: "Ops", Email: "ops@crm.test", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.store.Authenticate(ctx, "ops@crm.test", "secret1")
	require.NoError(t, err)
}

func TestStore_Authenticate_InactiveUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	inactive := false

	_, err := f.store.Create(ctx, CreateUserInput{
		WorkspaceID: &f.workspaceID,
		RoleID:      f.workspaceRole.ID,
		Name:        "Former Agent",
		Email:       "former@acme.test",
		Password:    "secret1",
		IsActive:    &inactive,
	})
	require.NoError(t, err)

	_, err = f.store.Authenticate(ctx, "former@acme.test", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSanitize(t *testing.T) {
	f := newUserFixture(t)
	user := f.createAgent(t, "jo@acme.test")

	public := Sanitize(user)
	assert.Equal(t, user.ID, public.ID)
	assert.Equal(t, user.Email, public.Email)

	data, err := json.Marshal(public)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hashed:")
	assert.NotContains(t, string(data), "password")

	assert.Nil(t, Sanitize(nil))
}
