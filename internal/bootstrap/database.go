// Package bootstrap assembles process-level infrastructure from config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/repository/sqlstore"
)

// OpenDatabase opens the configured backing store and verifies connectivity.
// SQLite gets WAL mode and a busy timeout; Postgres goes through the pgx
// stdlib driver. The pool is sized from config.
func OpenDatabase(ctx context.Context, cfg config.DBConfig) (*sqlstore.DB, error) {
	var (
		raw     *sql.DB
		dialect sqlstore.Dialect
		err     error
	)

	switch cfg.Driver {
	case "", "sqlite":
		raw, err = openSQLite(cfg.DSN)
		dialect = sqlstore.DialectSQLite
	case "postgres":
		raw, err = sql.Open("pgx", cfg.DSN)
		dialect = sqlstore.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	raw.SetMaxOpenConns(maxOpen)
	raw.SetMaxIdleConns(maxIdle)
	raw.SetConnMaxIdleTime(5 * time.Minute)

	if err := pingWithRetry(ctx, raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return sqlstore.Wrap(raw, dialect), nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_busy_timeout=30000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// pingWithRetry waits for the database to accept connections, backing off
// between attempts so a freshly started Postgres container can catch up.
func pingWithRetry(ctx context.Context, db *sql.DB) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, backoff.WithContext(policy, ctx))
}
