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

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	if err := insertRefresh(ctx, s.db, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByID находит refresh-токен по jti.
func (s *Storage) RefreshTokenByID(ctx context.Context, id uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByID"

	query := `
        SELECT id, user_id, issued_at, expires_at, revoked
        FROM refresh_tokens
        WHERE id = $1
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Revoked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RevokeRefreshToken пытается отозвать refresh-токен, если он ещё не был отозван.
// Возвращает:
//
//	(true, nil)  - токен был активен и успешно отозван сейчас;
//	(false, nil) - токен существует, но уже был отозван;
//	(false, ErrNotFound) - токен не найден.
func (s *Storage) RevokeRefreshToken(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE
		RETURNING user_id
	`

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, upd, id).Scan(&userID)
	if err == nil {
		return true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var revoked bool
	err = s.db.QueryRow(ctx, `SELECT revoked FROM refresh_tokens WHERE id = $1`, id).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RotateRefreshToken атомарно отзывает oldID и сохраняет next.
// Строка старого токена блокируется (FOR UPDATE), поэтому из двух
// конкурентных ротаций одного токена успешна ровно одна.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID uuid.UUID, next *models.RefreshToken, now time.Time) (err error) {
	const op = "storage.postgres.RotateRefreshToken"

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		revoked   bool
		expiresAt time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT revoked, expires_at FROM refresh_tokens WHERE id = $1 FOR UPDATE`, oldID,
	).Scan(&revoked, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if revoked || !now.Before(expiresAt) {
		return fmt.Errorf("%s: %w", op, storage.ErrRevoked)
	}

	if _, err = tx.Exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, oldID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = insertRefresh(ctx, tx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeUserTokens отзывает все активные refresh-токены пользователя.
func (s *Storage) RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeUserTokens"

	tag, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at <= $1
    `

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// execer - общий контракт для *pgxpool.Pool и pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRefresh(ctx context.Context, db execer, token *models.RefreshToken) error {
	query := `
        INSERT INTO refresh_tokens(id, user_id, issued_at, expires_at, revoked)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.IssuedAt,
		token.ExpiresAt,
		token.Revoked,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return storage.ErrAlreadyExists
		}
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return storage.ErrNotFound
		}

		return err
	}

	return nil
}
