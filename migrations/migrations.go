// migrations хранит SQL-миграции схемы (goose) для обоих бэкендов хранилища
// и применяет их при старте сервиса.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres применяет миграции к PostgreSQL.
func Postgres(ctx context.Context, db *sql.DB) error {
	return up(ctx, db, goose.DialectPostgres, "postgres")
}

// SQLite применяет миграции к SQLite.
func SQLite(ctx context.Context, db *sql.DB) error {
	return up(ctx, db, goose.DialectSQLite3, "sqlite")
}

func up(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	const op = "migrations.up"

	sub, err := fs.Sub(files, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
