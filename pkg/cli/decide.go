package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/access"
	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/users"
	"github.com/platinummonkey/crmguard/pkg/workspaces"
)

func newCanCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "can",
		Description: "Resolve whether a role grants an action on a module",
		Flags:       flag.NewFlagSet("can", flag.ContinueOnError),
	}

	roleID := cmd.Flags.Int64("role", 0, "Role ID")
	module := cmd.Flags.String("module", "", "Module name")
	action := cmd.Flags.String("action", "", "Action (view, create, edit, delete)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := requirePositive("role", *roleID); err != nil {
			return err
		}
		act, ok := rbac.ParseAction(*action)
		if !ok {
			return fmt.Errorf("unknown action %q", *action)
		}

		return env.withDB(func(db *sql.DB) error {
			resolver := rbac.NewResolver(db,
				rbac.WithResolverLogger(env.Logger),
				rbac.WithResolverMetrics(env.Metrics),
			)
			d, err := resolver.Decide(ctx, *roleID, *module, act)
			if err != nil {
				return err
			}
			printOutcome(env, d.Granted, string(d.Reason))
			return nil
		})
	}

	return cmd
}

func newEntitledCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "entitled",
		Description: "Evaluate a workspace subscription",
		Flags:       flag.NewFlagSet("entitled", flag.ContinueOnError),
	}

	workspaceID := cmd.Flags.Int64("workspace", 0, "Workspace ID")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := requirePositive("workspace", *workspaceID); err != nil {
			return err
		}

		return env.withDB(func(db *sql.DB) error {
			e, err := newGuard(env, db).Decide(ctx, *workspaceID)
			if err != nil {
				return err
			}
			return env.printJSON(e)
		})
	}

	return cmd
}

func newAuthorizeCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "authorize",
		Description: "Run every access check for a user against a workspace",
		Flags:       flag.NewFlagSet("authorize", flag.ContinueOnError),
	}

	userID := cmd.Flags.Int64("user", 0, "User ID")
	workspaceID := cmd.Flags.Int64("workspace", 0, "Workspace ID")
	module := cmd.Flags.String("module", "", "Module name")
	action := cmd.Flags.String("action", "", "Action (view, create, edit, delete)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := requirePositive("user", *userID); err != nil {
			return err
		}
		act, ok := rbac.ParseAction(*action)
		if !ok {
			return fmt.Errorf("unknown action %q", *action)
		}

		return env.withDB(func(db *sql.DB) error {
			roles := rbac.NewStore(db)
			user, err := users.NewStore(db, roles, users.NewBcryptHasher(env.BcryptCost)).Get(ctx, *userID)
			if err != nil {
				return err
			}

			gate := access.NewGate(
				rbac.NewResolver(db, rbac.WithResolverLogger(env.Logger), rbac.WithResolverMetrics(env.Metrics)),
				newGuard(env, db),
				workspaces.NewStore(db),
				access.WithLogger(env.Logger),
				access.WithMetrics(env.Metrics),
			)
			d, err := gate.Authorize(ctx, access.Request{
				Principal:   access.PrincipalFromUser(user),
				WorkspaceID: *workspaceID,
				Module:      *module,
				Action:      act,
			})
			if err != nil {
				return err
			}
			printOutcome(env, d.Allowed, string(d.Reason))
			return nil
		})
	}

	return cmd
}

func newGuard(env *Env, db *sql.DB) *billing.Guard {
	return billing.NewGuard(billing.NewStore(db),
		billing.WithGuardLogger(env.Logger),
		billing.WithGuardMetrics(env.Metrics),
	)
}

func printOutcome(env *Env, allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	fmt.Fprintf(env.Out, "%s (%s)\n", outcome, reason)
}
