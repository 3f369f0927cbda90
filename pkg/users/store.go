package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

var ErrUnknownWorkspace = errors.New("workspace does not exist")

// RoleLookup resolves roles for scope checks
type RoleLookup interface {
	GetRole(ctx context.Context, roleID int64) (*rbac.Role, error)
}

// Store manages identity records
type Store struct {
	db     *sql.DB
	roles  RoleLookup
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewStore creates a new user store. A nil hasher defaults to bcrypt at DefaultBcryptCost.
func NewStore(db *sql.DB, roles RoleLookup, hasher PasswordHasher) *Store {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	return &Store{db: db, roles: roles, hasher: hasher}
}

const userColumns = `
	u.id, u.workspace_id, u.role_id, r.name, u.name, u.email, u.password,
	u.is_active, u.is_super_admin, u.created_at, u.updated_at
`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(v *validation.Collector, password string) {
	if v.Required("Password", password) && len(password) < MinPasswordLength {
		v.Addf("Password must be at least %d characters", MinPasswordLength)
	}
}

// Create registers a user. Validation failures are reported together; a taken
// email is rejected before the insert is attempted.
func (s *Store) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	var v validation.Collector
	if v.Required("Name", input.Name) {
		v.MaxLength("Name", input.Name, MaxNameLength)
	}
	if v.Required("Email", input.Email) {
		v.Email("Email", input.Email)
		v.MaxLength("Email", input.Email, MaxEmailLength)
	}
	validatePassword(&v, input.Password)
	v.RequiredID("Role", input.RoleID)
	if err := v.Err(); err != nil {
		return nil, err
	}

	taken, err := s.emailTaken(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	if err := s.checkRoleScope(ctx, input.RoleID, input.WorkspaceID); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (workspace_id, role_id, name, email, password, is_active, is_super_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err = s.db.QueryRowContext(ctx, query,
		nullableID(input.WorkspaceID),
		input.RoleID,
		input.Name,
		input.Email,
		hash,
		storage.Flag(active),
		storage.Flag(input.IsSuperAdmin),
		now,
		now,
	).Scan(&id)
	switch {
	case storage.IsUniqueViolation(err):
		return nil, ErrEmailTaken
	case storage.IsForeignKeyViolation(err):
		return nil, fmt.Errorf("failed to create user: %w", ErrUnknownWorkspace)
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *Store) emailTaken(ctx context.Context, email string) (bool, error) {
	var taken storage.Flag
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken.Bool(), nil
}

// checkRoleScope enforces that a workspace role is only held by users of that
// workspace. Platform roles may be assigned to anyone.
func (s *Store) checkRoleScope(ctx context.Context, roleID int64, workspaceID *int64) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return fmt.Errorf("%w: %w", ErrRoleScope, err)
	}
	if err != nil {
		return err
	}

	if role.IsPlatform() {
		return nil
	}
	if workspaceID == nil || *workspaceID != *role.WorkspaceID {
		return fmt.Errorf("%w: role %d belongs to workspace %d", ErrRoleScope, role.ID, *role.WorkspaceID)
	}
	return nil
}

// Get retrieves a user by ID
func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`
	return s.getUser(ctx, query, id)
}

// GetByEmail retrieves a user by email, case-insensitively
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1
	`
	return s.getUser(ctx, query, normalizeEmail(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg interface{}) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListByWorkspace returns the users of a workspace with their role names
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID int64) ([]*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.workspace_id = $1
		ORDER BY u.name, u.id
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// Update applies the non-nil fields of input
func (s *Store) Update(ctx context.Context, id int64, input UpdateUserInput) (*User, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var v validation.Collector
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
		if v.Required("Name", name) {
			v.MaxLength("Name", name, MaxNameLength)
		}
	}
	if input.RoleID != nil {
		v.RequiredID("Role", *input.RoleID)
	}
	if input.Password != nil {
		validatePassword(&v, *input.Password)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if input.RoleID != nil && *input.RoleID != existing.RoleID {
		if err := s.checkRoleScope(ctx, *input.RoleID, existing.WorkspaceID); err != nil {
			return nil, err
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if input.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *input.Name)
		argPos++
	}
	if input.RoleID != nil {
		setClauses = append(setClauses, fmt.Sprintf("role_id = $%d", argPos))
		args = append(args, *input.RoleID)
		argPos++
	}
	if input.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, storage.Flag(*input.IsActive))
		argPos++
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("password = $%d", argPos))
		args = append(args, hash)
		argPos++
	}

	if len(setClauses) == 0 {
		return existing, nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if storage.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("failed to update user: %w", ErrRoleScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes a user. Their audit entries keep a NULL user reference.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// VerifyPassword reports whether password matches the user's hash. The
// comparison is delegated to the hasher.
func (s *Store) VerifyPassword(user *User, password string) (bool, error) {
	err := s.hasher.Compare(user.PasswordHash, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return true, nil
}

// Authenticate returns the active user matching the credentials. Unknown
// emails, wrong passwords, inactive users and users of deactivated workspaces
// all yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	query := `SELECT ` + userColumns + `, COALESCE(w.is_active, TRUE)
		FROM users u
		JOIN roles r ON r.id = u.role_id
		LEFT JOIN workspaces w ON w.id = u.workspace_id
		WHERE u.email = $1
	`

	var workspaceActive storage.Flag
	user, err := scanUser(s.db.QueryRowContext(ctx, query, normalizeEmail(email)), &workspaceActive)
	if errors.Is(err, sql.ErrNoRows) {
		// Spend the same hashing work as a real comparison.
		_ = s.hasher.Compare(s.dummy(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	ok, err := s.VerifyPassword(user, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive || !workspaceActive.Bool() {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("crmguard-dummy-password")
	})
	return s.dummyHash
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner, extra ...interface{}) (*User, error) {
	var (
		u            User
		workspaceID  sql.NullInt64
		isActive     storage.Flag
		isSuperAdmin storage.Flag
	)
	dest := []interface{}{
		&u.ID,
		&workspaceID,
		&u.RoleID,
		&u.RoleName,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&isActive,
		&isSuperAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if workspaceID.Valid {
		u.WorkspaceID = &workspaceID.Int64
	}
	u.IsActive = isActive.Bool()
	u.IsSuperAdmin = isSuperAdmin.Bool()
	return &u, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
