package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
)

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending schema migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return env.withDB(func(db *sql.DB) error {
			applied, err := env.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}

			if len(applied) == 0 {
				fmt.Fprintln(env.Out, "Schema is up to date")
				return nil
			}
			env.Log.WithField("versions", applied).Info("applied migrations")
			fmt.Fprintf(env.Out, "Applied %d migration(s): %v\n", len(applied), applied)
			return nil
		})
	}

	return cmd
}
