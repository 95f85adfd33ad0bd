package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/logging"
	"github.com/haatos/simple-release/internal/settings"
	"github.com/haatos/simple-release/internal/types"
	"github.com/rs/zerolog"
)

var version = "dev"

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	settings *settings.AppSettings
	logger   zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
		fmt.Fprintf(stderr, "release: reading %s: %v\n", internal.DotEnvPath, err)
	}
	c := &cli{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		settings: settings.NewSettings(),
	}

	app := kingpin.New("release", "Build, gate and publish versioned packages to a registry.")
	app.Version(version)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	projectRoot := app.Flag("project-root", "The project directory.").Default(".").String()
	configPath := app.Flag("config", "Path to the release config, defaults to <project-root>/release.yaml.").String()
	logLevel := app.Flag("log-level", "Log level.").Default(c.settings.LogLevel).Enum("debug", "info", "warn", "error")

	publish := newPublishCommand(app)
	check := newCheckCommand(app)
	history := newHistoryCommand(app)
	serve, tokenCreate, tokenList, tokenRevoke := newRegistryCommands(app, c.settings)

	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "release: %v, try --help\n", err)
		return types.ExitUsage
	}
	c.logger = logging.Init(stderr, *logLevel, c.settings.LogFormat)

	switch command {
	case publish.cmd.FullCommand():
		return c.publish(ctx, publish, *projectRoot, *configPath)
	case check.cmd.FullCommand():
		return c.check(ctx, check, *projectRoot, *configPath)
	case history.cmd.FullCommand():
		return c.history(ctx, history)
	case serve.cmd.FullCommand():
		return c.serve(ctx, serve)
	case tokenCreate.cmd.FullCommand():
		return c.tokenCreate(ctx, tokenCreate)
	case tokenList.FullCommand():
		return c.tokenList(ctx)
	case tokenRevoke.cmd.FullCommand():
		return c.tokenRevoke(ctx, tokenRevoke)
	}
	return types.ExitUsage
}

// fail prints err and returns the exit code for it.
func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "release failed: %v\n", err)
	return types.ExitCodeFor(err)
}

func (c *cli) usageError(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "release: "+format+"\n", args...)
	return types.ExitUsage
}
