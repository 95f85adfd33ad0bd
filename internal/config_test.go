package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_LoadConfiguration(t *testing.T) {
	t.Run("success - defaults when file is missing", func(t *testing.T) {
		// arrange
		dir := filepath.Join(t.TempDir(), "mycrate")
		require.NoError(t, os.Mkdir(dir, 0o755))

		// act
		config, err := LoadConfiguration(dir, "")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "v", config.TagPrefix)
		assert.Equal(t, 3, config.Registry.Attempts)
		assert.Equal(t, time.Second, config.Registry.InitialBackoff)
		assert.Equal(t, 60*time.Second, config.Registry.AttemptTimeout)
		assert.Len(t, config.Packages, 1)
		assert.Equal(t, "mycrate", config.Packages[0].Name)
		assert.Equal(t, "target/package/{name}-{version}.crate", config.Packages[0].Artifact)
	})
	t.Run("success - yaml overrides defaults", func(t *testing.T) {
		// arrange
		dir := t.TempDir()
		content := `
tag_prefix: release-
strict_semver: true
registry:
  url: https://registry.example.com
  attempt_timeout: 10s
packages:
  - name: alpha
    artifact: dist/{name}-{version}.tgz
    build:
      timeout: 2m
      release: [make, dist]
  - name: beta
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

		// act
		config, err := LoadConfiguration(dir, "")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "release-", config.TagPrefix)
		assert.True(t, config.StrictSemver)
		assert.Equal(t, "https://registry.example.com", config.Registry.URL)
		assert.Equal(t, 10*time.Second, config.Registry.AttemptTimeout)
		assert.Equal(t, 3, config.Registry.Attempts)
		assert.Len(t, config.Packages, 2)
		alpha, ok := config.Package("alpha")
		assert.True(t, ok)
		assert.Equal(t, 2*time.Minute, alpha.Build.Timeout)
		assert.Equal(t, []string{"make", "dist"}, alpha.Build.Command("release"))
		assert.Equal(t, "dist/alpha-1.0.0.tgz", alpha.Expand(alpha.Artifact, "1.0.0"))
		beta, ok := config.Package("beta")
		assert.True(t, ok)
		assert.Equal(t, 30*time.Minute, beta.Build.Timeout)
	})
	t.Run("failure - invalid registry scheme and duplicate packages", func(t *testing.T) {
		// arrange
		dir := t.TempDir()
		content := `
registry:
  url: ftp://registry.example.com
packages:
  - name: alpha
  - name: alpha
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

		// act
		config, err := LoadConfiguration(dir, "")

		// assert
		assert.Error(t, err)
		assert.Nil(t, config)
		assert.Contains(t, err.Error(), "unsupported scheme")
		assert.Contains(t, err.Error(), "duplicate name")
	})
	t.Run("failure - package name that is not a plain identifier", func(t *testing.T) {
		for _, name := range []string{"../x", "a/b", ".hidden", "a b"} {
			// arrange
			dir := t.TempDir()
			content := "packages:\n  - name: \"" + name + "\"\n"
			require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

			// act
			config, err := LoadConfiguration(dir, "")

			// assert
			assert.Nil(t, config, name)
			require.Error(t, err, name)
			assert.Contains(t, err.Error(), "invalid name")
		}
	})
	t.Run("failure - malformed yaml", func(t *testing.T) {
		// arrange
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("packages: [name: {"), 0o644))

		// act
		_, err := LoadConfiguration(".", path)

		// assert
		assert.Error(t, err)
	})
}
