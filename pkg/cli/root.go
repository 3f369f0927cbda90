package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/schema"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env is what every subcommand runs against
type Env struct {
	// Open returns a database handle and the function that releases it
	Open func() (*sql.DB, func() error, error)
	// Migrate applies schema migrations; schema.RunMigrations when nil
	Migrate func(ctx context.Context, db *sql.DB) ([]int, error)
	// Pending lists unapplied migrations; schema.Pending when nil
	Pending func(ctx context.Context, db *sql.DB) ([]int, error)

	Out     io.Writer
	Log     *logrus.Logger
	Logger  *observability.Logger
	Metrics *observability.Metrics

	BcryptCost int
	SeedFile   string
}

func (e *Env) withDB(fn func(db *sql.DB) error) error {
	if e.Open == nil {
		return errors.New("no database configured")
	}
	db, release, err := e.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			e.Log.WithError(err).Warn("failed to close database")
		}
	}()
	return fn(db)
}

func (e *Env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	if env.Log == nil {
		env.Log = logrus.New()
		env.Log.SetOutput(io.Discard)
	}
	if env.Logger == nil {
		env.Logger = observability.NewNopLogger()
	}
	if env.Migrate == nil {
		env.Migrate = schema.RunMigrations
	}
	if env.Pending == nil {
		env.Pending = schema.Pending
	}

	root := &Command{
		Name:        "crmguard",
		Description: "crmguard - CRM access control and entitlement operator CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("crmguard", flag.ContinueOnError),
	}

	for _, cmd := range []*Command{
		newMigrateCommand(env),
		newHealthCommand(env),
		newSeedCommand(env),
		newCreateWorkspaceCommand(env),
		newCreateUserCommand(env),
		newCanCommand(env),
		newEntitledCommand(env),
		newAuthorizeCommand(env),
		newAuditCommand(env),
	} {
		cmd.Flags.SetOutput(env.Out)
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-18s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
