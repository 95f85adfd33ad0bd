package settings

import (
	"bufio"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

type AppSettings struct {
	DatabaseDriver  string
	DatabaseDSN     string
	LogLevel        string
	LogFormat       string
	RegistryPort    string
	RegistryStorage string
	RegistryBaseURL string
}

func NewSettings() *AppSettings {
	settings := AppSettings{
		DatabaseDriver:  getEnvOrDefault("RELEASE_DB_DRIVER", "sqlite"),
		DatabaseDSN:     getEnvOrDefault("RELEASE_DB_DSN", "file:.release/history.sqlite"),
		LogLevel:        getEnvOrDefault("RELEASE_LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("RELEASE_LOG_FORMAT", ""),
		RegistryPort:    getEnvOrDefault("RELEASE_REGISTRY_PORT", ":8080"),
		RegistryStorage: getEnvOrDefault("RELEASE_REGISTRY_STORAGE", "./registry-data"),
		RegistryBaseURL: getEnvOrDefault("RELEASE_REGISTRY_BASE_URL", ""),
	}
	if !strings.HasPrefix(settings.RegistryPort, ":") {
		settings.RegistryPort = ":" + settings.RegistryPort
	}
	return &settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

// GooseDialect maps the database driver to the migration dialect.
func (as *AppSettings) GooseDialect() string {
	if as.DatabaseDriver == "pgx" {
		return "postgres"
	}
	return "sqlite"
}

// DSN returns the connection string, with sqlite pragmas appended for the
// sqlite driver.
func (as *AppSettings) DSN(readonly bool) string {
	if as.DatabaseDriver != "sqlite" {
		return as.DatabaseDSN
	}
	params := make(url.Values)
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(ON)")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_txlock", "immediate")
		params.Add("mode", "rwc")
	}

	sep := "?"
	if strings.Contains(as.DatabaseDSN, "?") {
		sep = "&"
	}
	return as.DatabaseDSN + sep + params.Encode()
}

// ReadDotenv loads KEY=value lines into the environment. A missing file is
// not an error.
func ReadDotenv(path string) error {
	re := regexp.MustCompile(`^[^0-9][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] != '#' && re.Match(line) {
			name, value, _ := strings.Cut(string(line), "=")
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			value = strings.Trim(value, `"`)
			if _, exists := os.LookupEnv(name); exists {
				log.Debug().Str("name", name).Msg("dotenv value ignored, already set in environment")
				continue
			}
			os.Setenv(name, value)
		}
	}
	return scanner.Err()
}
