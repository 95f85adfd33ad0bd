package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/metrics"
	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/service"
	"github.com/haatos/simple-release/internal/store"
	"github.com/haatos/simple-release/internal/types"
	"golang.org/x/term"
)

type publishCommand struct {
	cmd         *kingpin.CmdClause
	tag         *string
	token       *string
	tokenEnv    *string
	dryRun      *bool
	mode        *string
	packages    *[]string
	metricsFile *string
	history     *bool
}

func newPublishCommand(app *kingpin.Application) *publishCommand {
	cmd := app.Command("publish", "Resolve, build, gate and publish a release.")
	return &publishCommand{
		cmd:         cmd,
		tag:         cmd.Flag("tag", "Trigger reference, e.g. v1.2.3 or refs/tags/v1.2.3.").String(),
		token:       cmd.Flag("token", "Publish credential, or - to read it from stdin.").String(),
		tokenEnv:    cmd.Flag("token-env", "Environment variable holding the publish credential.").Default(internal.DefaultTokenEnv).String(),
		dryRun:      cmd.Flag("dry-run", "Stop after the publish gate.").Bool(),
		mode:        cmd.Flag("mode", "Build mode.").Default(string(types.ModeRelease)).Enum(string(types.ModeRelease), string(types.ModeDebug)),
		packages:    cmd.Flag("package", "Only release the named package. Repeatable.").Strings(),
		metricsFile: cmd.Flag("metrics-file", "Write Prometheus metrics to this file when done.").String(),
		history:     cmd.Flag("history", "Record attempts in the history database.").Default("true").Bool(),
	}
}

func (c *cli) publish(ctx context.Context, pc *publishCommand, projectRoot, configPath string) int {
	config, err := internal.LoadConfiguration(projectRoot, configPath)
	if err != nil {
		return c.usageError("invalid configuration: %v", err)
	}
	packages, err := selectPackages(config, *pc.packages)
	if err != nil {
		return c.usageError("%v", err)
	}
	mode, _ := types.ParseBuildMode(*pc.mode)

	credential, err := resolveCredential(*pc.token, *pc.tokenEnv, c.stdin, c.stderr)
	if err != nil {
		return c.usageError("reading token: %v", err)
	}

	resolver := service.NewVersionResolver(config.TagPrefix, config.StrictSemver)
	triggerRef, err := resolveTrigger(*pc.tag, resolver, projectRoot)
	if err != nil {
		return c.fail(types.NewInvalidVersionFormat("%v", err).WithStage(types.StageResolve))
	}

	m := metrics.New()
	reg, err := registry.New(config.Registry.URL, registry.Options{
		RequestsPerSecond: config.Registry.RequestsPerSecond,
		KnownHosts:        config.Registry.KnownHosts,
		Credential:        credential,
		Observer:          m,
	})
	if err != nil {
		return c.usageError("registry: %v", err)
	}

	opts := []service.OrchestratorOption{service.WithReleaseObserver(m)}
	if *pc.history {
		recorder, closeDB, err := c.openHistory()
		if err != nil {
			c.logger.Warn().Err(err).Msg("history disabled")
		} else {
			defer closeDB()
			opts = append(opts, service.WithRecorder(recorder))
		}
	}

	policy := service.NewRetryPolicy(config.Registry)
	jobs := make([]service.Job, 0, len(packages))
	for _, pkg := range packages {
		builder := service.NewBuildExecutor(pkg, c.logger)
		jobs = append(jobs, service.Job{
			Runner: service.NewRegistryOrchestrator(resolver, builder, reg, policy, c.logger, opts...),
			Request: service.Request{
				Package:     pkg.Name,
				TriggerRef:  triggerRef,
				ProjectRoot: absPath(projectRoot),
				Mode:        mode,
				Credential:  credential,
				DryRun:      *pc.dryRun,
			},
		})
	}

	results := service.RunAll(ctx, jobs, config.Concurrency)
	c.report(results)

	if *pc.metricsFile != "" {
		if err := m.WriteTextfile(*pc.metricsFile); err != nil {
			c.logger.Warn().Err(err).Str("path", *pc.metricsFile).Msg("could not write metrics")
		}
	}
	return types.ExitCodeFor(service.FirstError(results))
}

func (c *cli) report(results []service.Result) {
	for _, r := range results {
		if r.Err != nil {
			if re, ok := types.AsReleaseError(r.Err); ok && re.Log != "" {
				fmt.Fprintf(c.stderr, "--- build output (%s) ---\n%s\n", r.Package, strings.TrimRight(re.Log, "\n"))
			}
			if len(results) > 1 {
				fmt.Fprintf(c.stderr, "release failed [%s]: %v\n", r.Package, r.Err)
			} else {
				fmt.Fprintf(c.stderr, "release failed: %v\n", r.Err)
			}
			continue
		}
		a := r.Attempt
		switch {
		case a.DryRun:
			fmt.Fprintf(c.stdout, "%s %s ready to publish (dry run): %s\n", a.Package, a.Version, a.Artifact.Path)
		case a.Receipt != nil && a.Receipt.Recovered:
			fmt.Fprintf(c.stdout, "%s %s published to %s (confirmed after retry)\n", a.Package, a.Version, a.Receipt.Location)
		case a.Receipt != nil:
			fmt.Fprintf(c.stdout, "%s %s published to %s\n", a.Package, a.Version, a.Receipt.Location)
		}
	}
}

func selectPackages(config *internal.Configuration, names []string) ([]internal.PackageConfig, error) {
	if len(names) == 0 {
		return config.Packages, nil
	}
	selected := make([]internal.PackageConfig, 0, len(names))
	for _, name := range names {
		pkg, ok := config.Package(name)
		if !ok {
			return nil, fmt.Errorf("package %q is not configured", name)
		}
		selected = append(selected, *pkg)
	}
	return selected, nil
}

// resolveTrigger prefers the flag, then RELEASE_TAG, then GITHUB_REF, then
// the release tag at HEAD.
func resolveTrigger(tag string, resolver *service.VersionResolver, projectRoot string) (string, error) {
	if tag != "" {
		return tag, nil
	}
	for _, env := range []string{"RELEASE_TAG", "GITHUB_REF"} {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	ref, err := resolver.ResolveFromRepository(projectRoot)
	if err != nil {
		return "", fmt.Errorf("no --tag given and %w", err)
	}
	return ref, nil
}

// resolveCredential returns the flag value, stdin when the flag is "-", or
// the named environment variable. The terminal prompt is written to prompt.
// An empty credential is allowed here.
func resolveCredential(flagValue, envName string, stdin io.Reader, prompt io.Writer) (types.Credential, error) {
	switch flagValue {
	case "":
		return types.NewCredential(os.Getenv(envName)), nil
	case "-":
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(prompt, "token: ")
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return types.Credential{}, err
			}
			return types.NewCredential(strings.TrimSpace(string(b))), nil
		}
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return types.Credential{}, err
		}
		return types.NewCredential(strings.TrimSpace(line)), nil
	default:
		return types.NewCredential(flagValue), nil
	}
}

func (c *cli) openHistory() (service.AttemptRecorder, func(), error) {
	db, err := store.InitDatabase(c.settings, false)
	if err != nil {
		return nil, nil, err
	}
	if err := store.RunMigrations(db, c.settings.GooseDialect()); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store.NewAttemptSQLStore(db, db), func() { _ = db.Close() }, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
