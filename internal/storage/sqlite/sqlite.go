// sqlite - встраиваемая реализация storage.Storage поверх modernc.org/sqlite.
// Используется в окружении local и в тестах, где поднимать PostgreSQL избыточно.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/migrations"
)

// timeLayout - фиксированная ширина, чтобы лексикографический порядок TEXT
// совпадал с хронологическим.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Storage struct {
	db *sql.DB
}

// New открывает (или создаёт) БД по пути path и применяет миграции.
// path может быть путём к файлу, ":memory:" или DSN вида "file:...".
func New(ctx context.Context, path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Одно соединение: SQLite сериализует запись, а :memory: живёт, пока живо соединение.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := migrations.SQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB оборачивает уже открытое соединение без миграций (для тестов с sqlmock).
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close закрывает соединение.
func (s *Storage) Close() {
	_ = s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// mapConstraint переводит ошибки ограничений SQLite в ошибки storage.
func mapConstraint(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return storage.ErrAlreadyExists
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return storage.ErrNotFound
	}

	return err
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
