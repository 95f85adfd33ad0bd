package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_ReadDotenv(t *testing.T) {
	t.Run("success - .env files is read into env variables", func(t *testing.T) {
		// arrange
		testDotEnvFile := filepath.Join(t.TempDir(), ".env.test")
		lines := []string{
			`#COMMENTED=asdf`,
			`SIMPLE_RELEASE_TEST=1234`,
			``,
			`SIMPLE_RELEASE_TEST2= 2345 `,
			`SIMPLE_RELEASE_TEST3="a=b"`,
		}
		f, err := os.Create(testDotEnvFile)
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range lines {
			f.Write([]byte(line + "\n"))
		}
		f.Close()
		t.Cleanup(func() {
			os.Unsetenv("SIMPLE_RELEASE_TEST")
			os.Unsetenv("SIMPLE_RELEASE_TEST2")
			os.Unsetenv("SIMPLE_RELEASE_TEST3")
		})

		// act
		err = ReadDotenv(testDotEnvFile)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "1234", os.Getenv("SIMPLE_RELEASE_TEST"))
		assert.Equal(t, "2345", os.Getenv("SIMPLE_RELEASE_TEST2"))
		assert.Equal(t, "a=b", os.Getenv("SIMPLE_RELEASE_TEST3"))
		_, commented := os.LookupEnv("COMMENTED")
		assert.False(t, commented)
	})
	t.Run("success - environment wins over .env", func(t *testing.T) {
		// arrange
		path := filepath.Join(t.TempDir(), ".env")
		os.WriteFile(path, []byte("SIMPLE_RELEASE_KEEP=fromfile\n"), 0o644)
		t.Setenv("SIMPLE_RELEASE_KEEP", "fromenv")

		// act
		err := ReadDotenv(path)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "fromenv", os.Getenv("SIMPLE_RELEASE_KEEP"))
	})
	t.Run("success - missing file is ignored", func(t *testing.T) {
		assert.NoError(t, ReadDotenv(filepath.Join(t.TempDir(), "missing")))
	})
}

func TestSettings_NewSettings(t *testing.T) {
	t.Run("success - port gets a colon prefix", func(t *testing.T) {
		// arrange
		t.Setenv("RELEASE_REGISTRY_PORT", "9090")

		// act
		s := NewSettings()

		// assert
		assert.Equal(t, ":9090", s.RegistryPort)
		assert.Equal(t, "sqlite", s.GooseDialect())
	})
	t.Run("success - sqlite dsn carries pragmas", func(t *testing.T) {
		// arrange
		s := &AppSettings{DatabaseDriver: "sqlite", DatabaseDSN: "file:test.sqlite"}

		// act
		dsn := s.DSN(true)

		// assert
		assert.Contains(t, dsn, "file:test.sqlite?")
		assert.Contains(t, dsn, "mode=ro")
	})
	t.Run("success - pgx dsn is passed through", func(t *testing.T) {
		// arrange
		s := &AppSettings{DatabaseDriver: "pgx", DatabaseDSN: "postgres://localhost/release"}

		// act & assert
		assert.Equal(t, "postgres://localhost/release", s.DSN(false))
		assert.Equal(t, "postgres", s.GooseDialect())
	})
}
