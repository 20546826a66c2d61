package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func setup(dialect string) error {
	gooseDialect := "sqlite3"
	if dialect == "postgres" {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(FS)
	return nil
}

// Up migrates the schema to the latest version.
func Up(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Up(db, "sql")
}

// Down rolls back a single migration.
func Down(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Down(db, "sql")
}

// Status prints migration status.
func Status(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Status(db, "sql")
}
