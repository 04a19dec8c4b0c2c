package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/storage"
)

// SaveRefreshToken сохраняет новый refresh-токен.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.sqlite.SaveRefreshToken"

	if err := insertRefresh(ctx, s.db, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByID находит refresh-токен по jti.
func (s *Storage) RefreshTokenByID(ctx context.Context, id uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.sqlite.RefreshTokenByID"

	var (
		token               models.RefreshToken
		tokenID, userID     string
		issuedAt, expiresAt string
	)

	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, issued_at, expires_at, revoked
FROM refresh_tokens
WHERE id = ?`, id.String()).Scan(&tokenID, &userID, &issuedAt, &expiresAt, &token.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.ID, err = uuid.Parse(tokenID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RevokeRefreshToken пытается отозвать refresh-токен, если он ещё не был отозван.
func (s *Storage) RevokeRefreshToken(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "storage.sqlite.RevokeRefreshToken"

	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE id = ? AND revoked = 0`, id.String())
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

	var revoked bool
	err = s.db.QueryRowContext(ctx, `SELECT revoked FROM refresh_tokens WHERE id = ?`, id.String()).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RotateRefreshToken в одной транзакции отзывает oldID и сохраняет next.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID uuid.UUID, next *models.RefreshToken, now time.Time) error {
	const op = "storage.sqlite.RotateRefreshToken"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() // no-op после Commit

	res, err := tx.ExecContext(ctx, `
UPDATE refresh_tokens
SET revoked = 1
WHERE id = ? AND revoked = 0 AND expires_at > ?`, oldID.String(), formatTime(now))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM refresh_tokens WHERE id = ?`, oldID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return fmt.Errorf("%s: %w", op, storage.ErrRevoked)
	}

	if err := insertRefresh(ctx, tx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeUserTokens отзывает все активные refresh-токены пользователя.
func (s *Storage) RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.sqlite.RevokeUserTokens"

	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`, userID.String())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.sqlite.DeleteExpiredTokens"

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, formatTime(now)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRefresh(ctx context.Context, db execer, token *models.RefreshToken) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO refresh_tokens (id, user_id, issued_at, expires_at, revoked)
VALUES (?, ?, ?, ?, ?)`,
		token.ID.String(),
		token.UserID.String(),
		formatTime(token.IssuedAt),
		formatTime(token.ExpiresAt),
		token.Revoked,
	)
	if err != nil {
		return mapConstraint(err)
	}

	return nil
}
