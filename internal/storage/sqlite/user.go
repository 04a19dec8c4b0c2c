package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage"
)

const userColumns = `id, email, password_hash, status, created_at, updated_at, confirmed_at`

// SaveUser создает нового пользователя.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.sqlite.SaveUser"

	status := user.Status
	if status == "" {
		status = models.StatusUnconfirmed
	}

	var confirmedAt any
	if user.ConfirmedAt != nil {
		confirmedAt = formatTime(*user.ConfirmedAt)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, status, created_at, updated_at, confirmed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		string(status),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		confirmedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapConstraint(err))
	}

	return nil
}

// UserByEmail находит пользователя по email (COLLATE NOCASE).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlite.UserByEmail"

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SetConfirmed переводит пользователя unconfirmed -> confirmed ровно один раз.
func (s *Storage) SetConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const op = "storage.sqlite.SetConfirmed"

	res, err := s.db.ExecContext(ctx, `
UPDATE users
SET status = 'confirmed', confirmed_at = ?, updated_at = ?
WHERE id = ? AND status = 'unconfirmed'`,
		formatTime(at), formatTime(at), id.String(),
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return true, nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id.String()).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*models.User, error) {
	var (
		user                 models.User
		id, status           string
		createdAt, updatedAt string
		confirmedAt          sql.NullString
	)

	if err := row.Scan(
		&id,
		&user.Email,
		&user.PasswordHash,
		&status,
		&createdAt,
		&updatedAt,
		&confirmedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("scan user: %w", err)
	}

	var err error
	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan user id: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("scan user created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("scan user updated_at: %w", err)
	}
	if confirmedAt.Valid && strings.TrimSpace(confirmedAt.String) != "" {
		t, err := parseTime(confirmedAt.String)
		if err != nil {
			return nil, fmt.Errorf("scan user confirmed_at: %w", err)
		}
		user.ConfirmedAt = &t
	}

	user.Status = models.UserStatus(status)

	return &user, nil
}
