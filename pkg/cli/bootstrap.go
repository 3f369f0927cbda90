package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/users"
	"github.com/platinummonkey/crmguard/pkg/workspaces"
)

func newCreateWorkspaceCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "create-workspace",
		Description: "Create an active workspace",
		Flags:       flag.NewFlagSet("create-workspace", flag.ContinueOnError),
	}

	name := cmd.Flags.String("name", "", "Workspace name")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return env.withDB(func(db *sql.DB) error {
			ws, err := workspaces.NewStore(db).Create(ctx, workspaces.CreateWorkspaceInput{Name: *name})
			if err != nil {
				return err
			}
			env.Log.WithField("workspace_id", ws.ID).Info("created workspace")
			return env.printJSON(ws)
		})
	}

	return cmd
}

func newCreateUserCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "create-user",
		Description: "Create a user with a bcrypt-hashed password",
		Flags:       flag.NewFlagSet("create-user", flag.ContinueOnError),
	}

	workspaceID := cmd.Flags.Int64("workspace", 0, "Workspace ID (omit for a platform user)")
	roleID := cmd.Flags.Int64("role", 0, "Role ID")
	name := cmd.Flags.String("name", "", "Display name")
	email := cmd.Flags.String("email", "", "Login email")
	password := cmd.Flags.String("password", "", "Initial password")
	superAdmin := cmd.Flags.Bool("super-admin", false, "Grant platform super-admin")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		input := users.CreateUserInput{
			RoleID:       *roleID,
			Name:         *name,
			Email:        *email,
			Password:     *password,
			IsSuperAdmin: *superAdmin,
		}
		if *workspaceID > 0 {
			input.WorkspaceID = workspaceID
		}

		return env.withDB(func(db *sql.DB) error {
			store := users.NewStore(db, rbac.NewStore(db), users.NewBcryptHasher(env.BcryptCost))
			user, err := store.Create(ctx, input)
			if err != nil {
				return err
			}
			env.Log.WithField("user_id", user.ID).Info("created user")
			return env.printJSON(users.Sanitize(user))
		})
	}

	return cmd
}

func requirePositive(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}
