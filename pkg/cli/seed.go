package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/seed"
)

func newSeedCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "seed",
		Description: "Apply a module, platform role and plan catalogue",
		Flags:       flag.NewFlagSet("seed", flag.ContinueOnError),
	}

	file := cmd.Flags.String("file", "", "Catalogue YAML file (defaults to CRM_SEED_FILE, then the built-in catalogue)")
	check := cmd.Flags.Bool("check", false, "Validate the catalogue without touching the database")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		catalogue, source, err := loadCatalogue(*file, env.SeedFile)
		if err != nil {
			return err
		}
		if *check {
			fmt.Fprintf(env.Out, "Catalogue %s is valid: %d modules, %d platform roles, %d plans\n",
				source, len(catalogue.Modules), len(catalogue.PlatformRoles), len(catalogue.Plans))
			return nil
		}

		return env.withDB(func(db *sql.DB) error {
			seeder := seed.NewSeeder(rbac.NewStore(db), billing.NewStore(db), env.Logger)
			result, err := seeder.Apply(ctx, catalogue)
			if err != nil {
				return fmt.Errorf("failed to apply catalogue %s: %w", source, err)
			}
			env.Log.WithField("source", source).Info("seed catalogue applied")
			return env.printJSON(result)
		})
	}

	return cmd
}

func loadCatalogue(file, fallback string) (*seed.Catalogue, string, error) {
	if file == "" {
		file = fallback
	}
	if file == "" {
		c, err := seed.Default()
		return c, "default", err
	}
	c, err := seed.Load(file)
	return c, file, err
}
