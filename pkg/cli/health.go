package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/rbac"
)

func newHealthCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "health",
		Description: "Check the database, schema version and seeded catalogue",
		Flags:       flag.NewFlagSet("health", flag.ContinueOnError),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return env.withDB(func(db *sql.DB) error {
			checker := observability.NewHealthChecker(db)
			checker.Register("schema", true, func(ctx context.Context) error {
				pending, err := env.Pending(ctx, db)
				if err != nil {
					return err
				}
				if len(pending) > 0 {
					return fmt.Errorf("%d pending migration(s): %v", len(pending), pending)
				}
				return nil
			})
			checker.Register("catalogue", false, func(ctx context.Context) error {
				modules, err := rbac.NewStore(db).ListModules(ctx)
				if err != nil {
					return err
				}
				if len(modules) == 0 {
					return errors.New("no modules seeded")
				}
				return nil
			})

			status := checker.Check(ctx)
			if err := env.printJSON(status); err != nil {
				return err
			}
			if status.Status == observability.StatusUnhealthy {
				return errors.New("unhealthy")
			}
			return nil
		})
	}

	return cmd
}
