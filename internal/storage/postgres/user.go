package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage"
)

const userColumns = `id, email, password_hash, status, created_at, updated_at, confirmed_at`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	status := user.Status
	if status == "" {
		status = models.StatusUnconfirmed
	}

	query := `
		INSERT INTO users(id, email, password_hash, status, created_at, updated_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(status),
		user.CreatedAt,
		user.UpdatedAt,
		user.ConfirmedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email (CITEXT - без учёта регистра).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SetConfirmed переводит пользователя unconfirmed -> confirmed.
// Условие в WHERE делает переход однократным при конкурентных вызовах.
func (s *Storage) SetConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const op = "storage.postgres.SetConfirmed"

	const upd = `
		UPDATE users
		SET status = 'confirmed', confirmed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'unconfirmed'
	`

	tag, err := s.db.Exec(ctx, upd, id, at)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user   models.User
		status string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	user.Status = models.UserStatus(status)

	return &user, nil
}
