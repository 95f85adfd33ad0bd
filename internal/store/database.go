package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/haatos/simple-release/internal/settings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// InitDatabase opens the history database described by the settings.
func InitDatabase(as *settings.AppSettings, readonly bool) (*sql.DB, error) {
	if as.DatabaseDriver == "sqlite" && !readonly {
		if err := ensureSQLiteDir(as.DatabaseDSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(as.DatabaseDriver, as.DSN(readonly))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", as.DatabaseDriver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s database: %w", as.DatabaseDriver, err)
	}

	if as.DatabaseDriver == "sqlite" {
		if readonly {
			db.SetMaxOpenConns(max(4, runtime.NumCPU()))
		} else {
			if _, err := db.Exec("PRAGMA temp_store=memory"); err != nil {
				_ = db.Close()
				return nil, err
			}
			db.SetMaxOpenConns(1)
		}
	}

	return db, nil
}

func ensureSQLiteDir(dsn string) error {
	p := strings.TrimPrefix(dsn, "file:")
	p, _, _ = strings.Cut(p, "?")
	if p == "" || p == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
