package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/haatos/simple-release/internal/handler"
	"github.com/haatos/simple-release/internal/service"
	"github.com/haatos/simple-release/internal/store"
	"github.com/haatos/simple-release/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buildOK = `mkdir -p dist && printf 'pkg-%s' "$RELEASE_VERSION" > dist/alpha-$RELEASE_VERSION.crate`

type testRegistry struct {
	url   string
	token string
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(db, "sqlite"))

	tokenSvc := service.NewTokenService(store.NewTokenSQLStore(db, db))
	packageSvc := service.NewPackageService(
		store.NewPackageSQLStore(db, db),
		store.NewBlobStore(memfs.New()),
		service.NewUUIDGen(),
		zerolog.Nop(),
	)
	token, _, err := tokenSvc.CreateToken(context.Background(), "e2e")
	require.NoError(t, err)

	srv := httptest.NewServer(handler.NewServer(packageSvc, tokenSvc, zerolog.Nop(), handler.ServerOptions{}))
	t.Cleanup(srv.Close)
	return &testRegistry{url: srv.URL, token: token}
}

func writeProject(t *testing.T, registryURL, script string) string {
	t.Helper()
	root := t.TempDir()
	config := fmt.Sprintf(`registry:
  url: %s
  attempts: 2
  initial_backoff: 10ms
  requests_per_second: 100
packages:
  - name: alpha
    artifact: dist/{name}-{version}.crate
    build:
      timeout: 30s
      release: ["sh", "-c", %q]
`, registryURL, script)
	require.NoError(t, os.WriteFile(filepath.Join(root, "release.yaml"), []byte(config), 0o644))
	return root
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	t.Setenv("RELEASE_TAG", "")
	t.Setenv("GITHUB_REF", "")
	t.Setenv("RELEASE_TOKEN", "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestPublishCommand(t *testing.T) {
	t.Run("success - valid tag is built and published", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token, "--no-history")

		// assert
		assert.Equal(t, types.ExitOK, res.code, res.stderr)
		assert.Contains(t, res.stdout, "alpha 1.2.3 published to")
		assert.NotContains(t, res.stdout, reg.token)
		assert.NotContains(t, res.stderr, reg.token)
	})
	t.Run("failure - tag without prefix never builds", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "1.2.3", "--token", reg.token, "--no-history")

		// assert
		assert.Equal(t, types.ExitInvalidTag, res.code)
		assert.Contains(t, res.stderr, "release failed")
		assert.NoDirExists(t, filepath.Join(root, "dist"))
	})
	t.Run("failure - published version is rejected by the gate", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)
		first := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token, "--no-history")
		require.Equal(t, types.ExitOK, first.code, first.stderr)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token, "--no-history")

		// assert
		assert.Equal(t, types.ExitPublishFailed, res.code)
		assert.Contains(t, res.stderr, "already")
		assert.NotContains(t, res.stderr, reg.token)
	})
	t.Run("failure - build error exits with build code and shows output", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, `echo compile error >&2; exit 7`)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token, "--no-history")

		// assert
		assert.Equal(t, types.ExitBuildFailed, res.code)
		assert.Contains(t, res.stderr, "compile error")
	})
	t.Run("success - dry run needs no token", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--dry-run", "--no-history")
		after := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token, "--no-history")

		// assert
		assert.Equal(t, types.ExitOK, res.code, res.stderr)
		assert.Contains(t, res.stdout, "dry run")
		assert.Equal(t, types.ExitOK, after.code, after.stderr)
	})
	t.Run("failure - missing token", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--no-history")

		// assert
		assert.Equal(t, types.ExitPublishFailed, res.code)
	})
	t.Run("failure - wrong token is not echoed", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)
		bad := "rel_doesnotexist_supersecretvalue"

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", bad, "--no-history")

		// assert
		assert.Equal(t, types.ExitPublishFailed, res.code)
		assert.NotContains(t, res.stdout, bad)
		assert.NotContains(t, res.stderr, bad)
	})
	t.Run("failure - invalid config is a usage error", func(t *testing.T) {
		// arrange
		root := writeProject(t, "ftp://example.com", buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--no-history")

		// assert
		assert.Equal(t, types.ExitUsage, res.code)
		assert.Contains(t, res.stderr, "unsupported scheme")
	})
	t.Run("failure - unknown package flag", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--package", "beta", "--no-history")

		// assert
		assert.Equal(t, types.ExitUsage, res.code)
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Run("success - attempts are recorded and listed", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)
		t.Setenv("RELEASE_DB_DRIVER", "sqlite")
		t.Setenv("RELEASE_DB_DSN", "file:"+filepath.Join(t.TempDir(), "history.sqlite"))
		published := runCLI(t, "--project-root", root, "publish", "--tag", "v1.2.3", "--token", reg.token)
		require.Equal(t, types.ExitOK, published.code, published.stderr)
		rejected := runCLI(t, "--project-root", root, "publish", "--tag", "1.2.4", "--token", reg.token)
		require.Equal(t, types.ExitInvalidTag, rejected.code)

		// act
		res := runCLI(t, "history", "--package", "alpha")

		// assert
		require.Equal(t, types.ExitOK, res.code, res.stderr)
		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "STATE")
		assert.Contains(t, res.stdout, string(types.StateDone))
		assert.Contains(t, res.stdout, string(types.StateFailed))
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("success - unpublished name is available", func(t *testing.T) {
		// arrange
		reg := newTestRegistry(t)
		root := writeProject(t, reg.url, buildOK)

		// act
		res := runCLI(t, "--project-root", root, "check", "alpha")

		// assert
		assert.Equal(t, types.ExitOK, res.code, res.stderr)
		assert.Equal(t, "alpha: Available\n", res.stdout)
	})
}

func TestRun(t *testing.T) {
	t.Run("failure - unknown command", func(t *testing.T) {
		// act
		res := runCLI(t, "bogus")

		// assert
		assert.Equal(t, types.ExitUsage, res.code)
	})
}

func TestResolveCredential(t *testing.T) {
	t.Run("success - piped stdin is read without a prompt", func(t *testing.T) {
		// arrange
		var prompt bytes.Buffer

		// act
		cred, err := resolveCredential("-", "RELEASE_TOKEN", strings.NewReader("s3cret\n"), &prompt)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "s3cret", cred.Reveal())
		assert.Empty(t, prompt.String())
	})
	t.Run("success - environment variable when flag is empty", func(t *testing.T) {
		// arrange
		t.Setenv("CUSTOM_TOKEN", "from-env")
		var prompt bytes.Buffer

		// act
		cred, err := resolveCredential("", "CUSTOM_TOKEN", strings.NewReader(""), &prompt)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "from-env", cred.Reveal())
		assert.Empty(t, prompt.String())
	})
}
