package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"time"

	"github.com/platinummonkey/crmguard/pkg/audit"
)

func newAuditCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "audit",
		Description: "Export a workspace audit trail",
		Flags:       flag.NewFlagSet("audit", flag.ContinueOnError),
	}

	workspaceID := cmd.Flags.Int64("workspace", 0, "Workspace ID")
	entity := cmd.Flags.String("entity", "", "Entity type (lead, contact, deal, property)")
	entityID := cmd.Flags.Int64("id", 0, "Entity ID")
	action := cmd.Flags.String("action", "", "Only entries with this action (created, updated, deleted)")
	since := cmd.Flags.Duration("since", 0, "Only entries newer than this duration")
	limit := cmd.Flags.Int("limit", audit.DefaultLimit, "Maximum entries to return")
	format := cmd.Flags.String("format", string(audit.ExportFormatJSON), "Output format (json, csv, ndjson)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := requirePositive("workspace", *workspaceID); err != nil {
			return err
		}

		filter := audit.Filter{
			WorkspaceID: *workspaceID,
			EntityType:  audit.EntityType(*entity),
			Action:      audit.Action(*action),
			Limit:       *limit,
		}
		if *entityID > 0 {
			filter.EntityID = entityID
		}
		if *since > 0 {
			from := time.Now().UTC().Add(-*since)
			filter.Since = &from
		}

		return env.withDB(func(db *sql.DB) error {
			entries, err := audit.NewRecorder(db).List(ctx, filter)
			if err != nil {
				return err
			}
			data, err := audit.Export(entries, audit.ExportFormat(*format))
			if err != nil {
				return fmt.Errorf("failed to export audit entries: %w", err)
			}
			_, err = env.Out.Write(data)
			return err
		})
	}

	return cmd
}
