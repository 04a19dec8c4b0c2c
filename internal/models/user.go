package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus - состояние учётной записи в процессе подтверждения e-mail.
type UserStatus string

const (
	// StatusUnconfirmed - пользователь зарегистрирован, e-mail ещё не подтверждён.
	StatusUnconfirmed UserStatus = "unconfirmed"
	// StatusConfirmed - e-mail подтверждён, вход разрешён. Терминальное состояние.
	StatusConfirmed UserStatus = "confirmed"
)

// Valid сообщает, является ли значение одним из известных состояний.
func (s UserStatus) Valid() bool {
	return s == StatusUnconfirmed || s == StatusConfirmed
}

// User - модель пользователя в системе.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Confirmed - true, если e-mail пользователя подтверждён.
func (u *User) Confirmed() bool {
	return u != nil && u.Status == StatusConfirmed
}
