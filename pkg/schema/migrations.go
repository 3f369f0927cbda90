// Package schema holds the ordered PostgreSQL migrations for the crmguard tables.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/storage"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in version order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(150) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create roles and modules tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT REFERENCES workspaces(id) ON DELETE CASCADE,
					name VARCHAR(100) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_roles_workspace_id ON roles(workspace_id);

				CREATE TABLE IF NOT EXISTS modules (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					module_id BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
					can_view BOOLEAN NOT NULL DEFAULT FALSE,
					can_create BOOLEAN NOT NULL DEFAULT FALSE,
					can_edit BOOLEAN NOT NULL DEFAULT FALSE,
					can_delete BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(role_id, module_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_permissions_module_id ON role_permissions(module_id);
			`,
		},
		{
			Version:     4,
			Description: "Create users table",
			// role_id uses NO ACTION rather than RESTRICT so a workspace delete can
			// cascade through users and roles in one statement.
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT REFERENCES workspaces(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE NO ACTION,
					name VARCHAR(150) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_workspace_id ON users(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
			`,
		},
		{
			Version:     5,
			Description: "Create plans and subscriptions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					price_monthly_cents BIGINT NOT NULL CHECK (price_monthly_cents >= 0),
					price_yearly_cents BIGINT NOT NULL CHECK (price_yearly_cents >= 0),
					max_users INT NOT NULL CHECK (max_users > 0),
					max_properties INT NOT NULL CHECK (max_properties > 0),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					plan_id BIGINT NOT NULL REFERENCES plans(id),
					status VARCHAR(20) NOT NULL DEFAULT 'trial'
						CHECK (status IN ('trial', 'active', 'expired', 'cancelled')),
					billing_cycle VARCHAR(20) NOT NULL CHECK (billing_cycle IN ('monthly', 'yearly')),
					start_date TIMESTAMPTZ NOT NULL,
					end_date TIMESTAMPTZ NOT NULL,
					trial_ends_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_workspace_id ON subscriptions(workspace_id);
				CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_open_per_workspace
					ON subscriptions(workspace_id) WHERE status IN ('trial', 'active');
			`,
		},
		{
			Version:     6,
			Description: "Create payments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS payments (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					subscription_id BIGINT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
					amount_cents BIGINT NOT NULL CHECK (amount_cents >= 0),
					currency VARCHAR(3) NOT NULL,
					provider VARCHAR(50) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'success', 'failed')),
					transaction_id VARCHAR(255),
					paid_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_payments_workspace_id ON payments(workspace_id);
				CREATE INDEX IF NOT EXISTS idx_payments_subscription_id ON payments(subscription_id);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_logs table",
			// JSON rather than JSONB keeps snapshots byte-for-byte.
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					entity_type VARCHAR(20) NOT NULL
						CHECK (entity_type IN ('lead', 'contact', 'deal', 'property')),
					entity_id BIGINT NOT NULL,
					action VARCHAR(20) NOT NULL CHECK (action IN ('created', 'updated', 'deleted')),
					before_state JSON,
					after_state JSON,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(workspace_id, entity_type, entity_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);
			`,
		},
	}
}

// RunMigrations applies pending migrations, each in its own transaction, and
// returns the versions it applied.
func RunMigrations(ctx context.Context, db *sql.DB) ([]int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var ran []int
	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, migration.Version)
	}

	return ran, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migrations: %w", err)
	}
	return applied, nil
}

// Pending returns the versions that RunMigrations would apply
func Pending(ctx context.Context, db *sql.DB) ([]int, error) {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var pending []int
	for _, migration := range GetMigrations() {
		if !applied[migration.Version] {
			pending = append(pending, migration.Version)
		}
	}
	return pending, nil
}
