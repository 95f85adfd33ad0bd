package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/types"
)

type checkCommand struct {
	cmd   *kingpin.CmdClause
	names *[]string
}

func newCheckCommand(app *kingpin.Application) *checkCommand {
	cmd := app.Command("check", "Report whether package names are free in the registry.")
	return &checkCommand{
		cmd:   cmd,
		names: cmd.Arg("name", "Package names.").Required().Strings(),
	}
}

func (c *cli) check(ctx context.Context, cc *checkCommand, projectRoot, configPath string) int {
	config, err := internal.LoadConfiguration(projectRoot, configPath)
	if err != nil {
		return c.usageError("invalid configuration: %v", err)
	}
	reg, err := registry.New(config.Registry.URL, registry.Options{
		RequestsPerSecond: config.Registry.RequestsPerSecond,
		KnownHosts:        config.Registry.KnownHosts,
	})
	if err != nil {
		return c.usageError("registry: %v", err)
	}

	code := types.ExitOK
	for _, name := range *cc.names {
		lookupCtx, cancel := context.WithTimeout(ctx, config.Registry.LookupTimeout)
		availability, err := reg.Availability(lookupCtx, name)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("package", name).Msg("availability check failed")
			code = types.ExitPublishFailed
		}
		fmt.Fprintf(c.stdout, "%s: %s\n", name, availability)
	}
	return code
}
