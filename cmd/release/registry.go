package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/handler"
	"github.com/haatos/simple-release/internal/service"
	"github.com/haatos/simple-release/internal/settings"
	"github.com/haatos/simple-release/internal/store"
	"github.com/haatos/simple-release/internal/types"
)

type serveCommand struct {
	cmd     *kingpin.CmdClause
	addr    *string
	storage *string
	baseURL *string
	rps     *float64
}

type tokenCreateCommand struct {
	cmd         *kingpin.CmdClause
	description *string
}

type tokenRevokeCommand struct {
	cmd *kingpin.CmdClause
	id  *string
}

func newRegistryCommands(app *kingpin.Application, as *settings.AppSettings) (*serveCommand, *tokenCreateCommand, *kingpin.CmdClause, *tokenRevokeCommand) {
	registryCmd := app.Command("registry", "Run and manage the self-hosted registry.")

	serveCmd := registryCmd.Command("serve", "Serve the registry HTTP API.")
	serve := &serveCommand{
		cmd:     serveCmd,
		addr:    serveCmd.Flag("addr", "Listen address.").Default(as.RegistryPort).String(),
		storage: serveCmd.Flag("storage", "Directory for package archives.").Default(as.RegistryStorage).String(),
		baseURL: serveCmd.Flag("base-url", "Public URL used in receipts.").Default(as.RegistryBaseURL).String(),
		rps:     serveCmd.Flag("rps", "Requests per second allowed per client, 0 disables limiting.").Default("20").Float64(),
	}

	tokenCmd := registryCmd.Command("token", "Manage publish tokens.")
	createCmd := tokenCmd.Command("create", "Create a publish token and print it once.")
	create := &tokenCreateCommand{
		cmd:         createCmd,
		description: createCmd.Flag("description", "What the token is for.").String(),
	}
	list := tokenCmd.Command("list", "List publish tokens.")
	revokeCmd := tokenCmd.Command("revoke", "Revoke a publish token.")
	revoke := &tokenRevokeCommand{
		cmd: revokeCmd,
		id:  revokeCmd.Arg("id", "Token id.").Required().String(),
	}
	return serve, create, list, revoke
}

// openRegistryDB returns read and read-write handles to the registry
// database with migrations applied.
func (c *cli) openRegistryDB() (rdb, rwdb *sql.DB, err error) {
	rwdb, err = store.InitDatabase(c.settings, false)
	if err != nil {
		return nil, nil, err
	}
	if err := store.RunMigrations(rwdb, c.settings.GooseDialect()); err != nil {
		_ = rwdb.Close()
		return nil, nil, err
	}
	rdb, err = store.InitDatabase(c.settings, true)
	if err != nil {
		_ = rwdb.Close()
		return nil, nil, err
	}
	return rdb, rwdb, nil
}

func (c *cli) serve(ctx context.Context, sc *serveCommand) int {
	rdb, rwdb, err := c.openRegistryDB()
	if err != nil {
		return c.usageError("registry database: %v", err)
	}
	defer rdb.Close()
	defer rwdb.Close()

	if err := os.MkdirAll(*sc.storage, 0o755); err != nil {
		return c.usageError("registry storage: %v", err)
	}
	blobs := store.NewBlobStore(osfs.New(*sc.storage))

	scheduler, err := service.NewScheduler()
	if err != nil {
		return c.usageError("scheduler: %v", err)
	}
	defer func() { _ = scheduler.Shutdown() }()
	if _, err := service.SchedulePartialCleanup(scheduler, blobs, 24*time.Hour, c.logger); err != nil {
		return c.usageError("scheduler: %v", err)
	}
	scheduler.Start()

	tokenSvc := service.NewTokenService(store.NewTokenSQLStore(rdb, rwdb))
	packageSvc := service.NewPackageService(
		store.NewPackageSQLStore(rdb, rwdb),
		blobs,
		service.NewUUIDGen(),
		c.logger,
	)
	e := handler.NewServer(packageSvc, tokenSvc, c.logger, handler.ServerOptions{
		BaseURL:           *sc.baseURL,
		RequestsPerSecond: *sc.rps,
	})

	if err := internal.GracefulShutdown(ctx, e, *sc.addr, c.logger); err != nil {
		c.logger.Error().Err(err).Msg("registry stopped")
		return types.ExitPublishFailed
	}
	return types.ExitOK
}

func (c *cli) tokenService() (*service.TokenService, func(), error) {
	rdb, rwdb, err := c.openRegistryDB()
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		_ = rdb.Close()
		_ = rwdb.Close()
	}
	return service.NewTokenService(store.NewTokenSQLStore(rdb, rwdb)), closeAll, nil
}

func (c *cli) tokenCreate(ctx context.Context, tc *tokenCreateCommand) int {
	svc, closeAll, err := c.tokenService()
	if err != nil {
		return c.usageError("registry database: %v", err)
	}
	defer closeAll()

	value, t, err := svc.CreateToken(ctx, *tc.description)
	if err != nil {
		return c.usageError("creating token: %v", err)
	}
	c.logger.Info().Str("token_id", t.ID).Msg("token created")
	fmt.Fprintln(c.stdout, value)
	return types.ExitOK
}

func (c *cli) tokenList(ctx context.Context) int {
	svc, closeAll, err := c.tokenService()
	if err != nil {
		return c.usageError("registry database: %v", err)
	}
	defer closeAll()

	tokens, err := svc.ListTokens(ctx)
	if err != nil {
		return c.usageError("listing tokens: %v", err)
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDESCRIPTION\tCREATED\tLAST USED\tREVOKED")
	for _, t := range tokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Description, t.CreatedOn.Local().Format(time.DateTime), formatTime(t.LastUsedOn), formatTime(t.RevokedOn))
	}
	_ = w.Flush()
	return types.ExitOK
}

func (c *cli) tokenRevoke(ctx context.Context, tc *tokenRevokeCommand) int {
	svc, closeAll, err := c.tokenService()
	if err != nil {
		return c.usageError("registry database: %v", err)
	}
	defer closeAll()

	if err := svc.RevokeToken(ctx, *tc.id); err != nil {
		return c.usageError("revoking token %s: %v", *tc.id, err)
	}
	fmt.Fprintf(c.stdout, "revoked %s\n", *tc.id)
	return types.ExitOK
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
