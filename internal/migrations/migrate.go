package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// dialects maps database drivers to goose dialects.
var dialects = map[string]string{
	"":         "sqlite3",
	"sqlite":   "sqlite3",
	"postgres": "postgres",
}

// Up runs all pending SQL migrations found in migrationsDir.
func Up(db *sql.DB, driver, migrationsDir string) error {
	dialect, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("no migration dialect for driver %q", driver)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}
