package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/haatos/simple-release/internal/store"
	"github.com/haatos/simple-release/internal/types"
)

type historyCommand struct {
	cmd   *kingpin.CmdClause
	pkg   *string
	limit *int
}

func newHistoryCommand(app *kingpin.Application) *historyCommand {
	cmd := app.Command("history", "List recorded release attempts.")
	return &historyCommand{
		cmd:   cmd,
		pkg:   cmd.Flag("package", "Only show this package.").String(),
		limit: cmd.Flag("limit", "Maximum number of attempts.").Default("20").Int(),
	}
}

func (c *cli) history(ctx context.Context, hc *historyCommand) int {
	db, err := store.InitDatabase(c.settings, false)
	if err != nil {
		return c.usageError("history database: %v", err)
	}
	defer db.Close()
	if err := store.RunMigrations(db, c.settings.GooseDialect()); err != nil {
		return c.usageError("history database: %v", err)
	}

	attempts, err := store.NewAttemptSQLStore(db, db).ListAttempts(ctx, *hc.pkg, *hc.limit)
	if err != nil {
		return c.usageError("listing attempts: %v", err)
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPACKAGE\tVERSION\tSTATE\tDRY RUN\tFAILURE")
	for _, a := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			a.StartedOn.Local().Format(time.DateTime),
			a.Package,
			versionOrRef(a),
			a.State,
			a.DryRun,
			failureSummary(a),
		)
	}
	_ = w.Flush()
	return types.ExitOK
}

func versionOrRef(a *types.Attempt) string {
	if a.Version.IsZero() {
		return a.TriggerRef
	}
	return a.Version.String()
}

func failureSummary(a *types.Attempt) string {
	if a.State != types.StateFailed {
		return ""
	}
	return fmt.Sprintf("%s/%s: %s", a.FailedStage, a.FailureKind, a.FailureReason)
}
