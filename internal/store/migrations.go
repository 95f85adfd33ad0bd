package store

import (
	"database/sql"
	"fmt"

	assets "github.com/haatos/simple-release"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded migrations using the goose dialect.
func RunMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(assets.MigrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
