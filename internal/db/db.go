package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/paulexconde/surveydesk/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var embeddedMigrations embed.FS

// Open connects to the configured database and applies the pool settings.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return conn, nil
}

// Migrate executes the embedded schema files for the driver of conn, in name order.
// Every statement is idempotent so Migrate can run on each start.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	dir := "migrations/" + conn.DriverName()

	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("no migrations for driver %q: %w", conn.DriverName(), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := embeddedMigrations.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := conn.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	return nil
}

// SeedUsers provisions users by name. Existing names are left alone.
func SeedUsers(ctx context.Context, conn *sqlx.DB, usernames ...string) error {
	for _, name := range usernames {
		query := conn.Rebind(`INSERT INTO users (username) VALUES (?) ON CONFLICT (username) DO NOTHING`)
		if _, err := conn.ExecContext(ctx, query, name); err != nil {
			return fmt.Errorf("seed user %s: %w", name, err)
		}
	}
	return nil
}
