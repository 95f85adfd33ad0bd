package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/logging"
	"github.com/haatos/simple-release/internal/types"
	"github.com/haatos/simple-release/internal/util"
	"github.com/rs/zerolog"
)

// Builder produces a release artifact for a version.
type Builder interface {
	Build(ctx context.Context, projectRoot string, mode types.BuildMode, version types.Version) (*types.Artifact, error)
}

// BuildExecutor runs a package's configured build command.
type BuildExecutor struct {
	pkg    internal.PackageConfig
	logger zerolog.Logger
}

func NewBuildExecutor(pkg internal.PackageConfig, logger zerolog.Logger) *BuildExecutor {
	return &BuildExecutor{
		pkg:    pkg,
		logger: logger.With().Str("package", pkg.Name).Str("stage", string(types.StageBuild)).Logger(),
	}
}

func (b *BuildExecutor) packageRoot(projectRoot string) string {
	if filepath.IsAbs(b.pkg.Root) {
		return b.pkg.Root
	}
	return filepath.Join(projectRoot, b.pkg.Root)
}

// ArtifactPath is where the build is expected to leave its output.
func (b *BuildExecutor) ArtifactPath(projectRoot string, version types.Version) string {
	p := b.pkg.Expand(b.pkg.Artifact, version.String())
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.packageRoot(projectRoot), p)
}

func (b *BuildExecutor) Build(
	ctx context.Context,
	projectRoot string,
	mode types.BuildMode,
	version types.Version,
) (*types.Artifact, error) {
	argv := b.pkg.Build.Command(string(mode))
	if len(argv) == 0 {
		return nil, &types.ReleaseError{
			Kind:     types.KindBuildFailed,
			Message:  fmt.Sprintf("no %s build command configured for %s", mode, b.pkg.Name),
			ExitCode: -1,
		}
	}
	expanded := make([]string, len(argv))
	for i, a := range argv {
		expanded[i] = b.pkg.Expand(a, version.String())
	}

	artifactPath := b.ArtifactPath(projectRoot, version)
	// a leftover from an earlier attempt must not be mistaken for this build's output
	if err := removeStale(artifactPath); err != nil {
		return nil, &types.ReleaseError{
			Kind:     types.KindBuildFailed,
			Message:  fmt.Sprintf("remove stale artifact: %v", err),
			ExitCode: -1,
			Err:      err,
		}
	}

	buildCtx, cancel := ctx, context.CancelFunc(func() {})
	if b.pkg.Build.Timeout > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, b.pkg.Build.Timeout)
	}
	defer cancel()

	out := &tailBuffer{limit: internal.MaxBuildLogBytes}
	lw := &logging.LineWriter{Logger: b.logger, Field: "output"}
	w := &syncWriter{w: io.MultiWriter(out, lw)}

	cmd := exec.CommandContext(buildCtx, expanded[0], expanded[1:]...)
	cmd.Dir = b.packageRoot(projectRoot)
	cmd.Env = b.environ(mode, version)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = time.Second

	b.logger.Info().
		Str("version", version.String()).
		Str("mode", string(mode)).
		Str("command", expanded[0]).
		Msg("running build")

	start := time.Now()
	err := cmd.Run()
	lw.Flush()
	log := out.String()

	if ctx.Err() != nil {
		return nil, types.NewCancelled(ctx.Err())
	}
	if err != nil {
		if errors.Is(buildCtx.Err(), context.DeadlineExceeded) {
			return nil, &types.ReleaseError{
				Kind:     types.KindBuildFailed,
				Message:  fmt.Sprintf("build timed out after %s", b.pkg.Build.Timeout),
				ExitCode: -1,
				Log:      log,
				Err:      err,
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, types.NewBuildFailed(exitErr.ExitCode(), log, err)
		}
		return nil, &types.ReleaseError{
			Kind:     types.KindBuildFailed,
			Message:  fmt.Sprintf("start build: %v", err),
			ExitCode: -1,
			Log:      log,
			Err:      err,
		}
	}

	artifact, err := b.collect(artifactPath)
	if err != nil {
		return nil, &types.ReleaseError{
			Kind:     types.KindBuildFailed,
			Message:  err.Error(),
			ExitCode: 0,
			Log:      log,
			Err:      err,
		}
	}

	b.logger.Info().
		Str("artifact", artifact.Path).
		Int64("size", artifact.Size).
		Str("checksum", artifact.Checksum).
		Dur("elapsed", time.Since(start)).
		Msg("build finished")
	return artifact, nil
}

func (b *BuildExecutor) environ(mode types.BuildMode, version types.Version) []string {
	env := os.Environ()
	for k, v := range b.pkg.Build.Env {
		env = append(env, k+"="+b.pkg.Expand(v, version.String()))
	}
	return append(env,
		"RELEASE_PACKAGE="+b.pkg.Name,
		"RELEASE_VERSION="+version.String(),
		"RELEASE_MODE="+string(mode),
	)
}

// collect locates the artifact, archiving it when the build left a directory.
func (b *BuildExecutor) collect(artifactPath string) (*types.Artifact, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("build succeeded but artifact %s was not produced", artifactPath)
		}
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	p := artifactPath
	if info.IsDir() {
		p, err = util.ArchiveDirectory(artifactPath, artifactPath+".zip")
		if err != nil {
			return nil, fmt.Errorf("archive artifact directory: %w", err)
		}
	}
	size, sum, err := util.FileChecksum(p)
	if err != nil {
		return nil, fmt.Errorf("checksum artifact: %w", err)
	}
	return &types.Artifact{Path: p, Size: size, Checksum: sum}, nil
}

func removeStale(artifactPath string) error {
	for _, p := range []string{artifactPath, artifactPath + ".zip"} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (tb *tailBuffer) Write(p []byte) (int, error) {
	tb.buf = append(tb.buf, p...)
	if over := len(tb.buf) - tb.limit; over > 0 {
		tb.buf = append(tb.buf[:0], tb.buf[over:]...)
	}
	return len(p), nil
}

func (tb *tailBuffer) String() string {
	return strings.ToValidUTF8(util.Tail(string(tb.buf), tb.limit), "")
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
