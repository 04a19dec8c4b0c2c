package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/contacts-auth/internal/models"
)

var (
	// ErrNotFound - запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email/id).
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevoked - refresh-токен уже отозван или истёк (ротация невозможна).
	ErrRevoked = errors.New("revoked")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя. Уникальность email обеспечивается
	// на уровне БД (регистронезависимо) -> ErrAlreadyExists.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// SetConfirmed переводит пользователя в состояние confirmed.
	// Возвращает true, если перевод выполнен этим вызовом, и false, если
	// пользователь уже был подтверждён. Нет пользователя -> ErrNotFound.
	SetConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет идентификатор нового refresh-токена.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByID находит запись по jti.
	RefreshTokenByID(ctx context.Context, id uuid.UUID) (*models.RefreshToken, error)
	// RevokeRefreshToken пытается отозвать токен.
	// (true, nil) - отозван сейчас; (false, nil) - уже был отозван; ErrNotFound - нет записи.
	RevokeRefreshToken(ctx context.Context, id uuid.UUID) (bool, error)
	// RotateRefreshToken в одной транзакции отзывает активный токен oldID и
	// сохраняет next. Если oldID не найден -> ErrNotFound; уже отозван или
	// истёк к моменту now -> ErrRevoked. В обоих случаях next не сохраняется.
	RotateRefreshToken(ctx context.Context, oldID uuid.UUID, next *models.RefreshToken, now time.Time) error
	// RevokeUserTokens отзывает все активные refresh-токены пользователя
	// и возвращает их количество.
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
