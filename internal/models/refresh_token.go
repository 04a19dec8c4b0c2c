package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - серверная запись о выданном refresh-токене.
// Сам токен (JWT) клиенту отдаётся целиком, в хранилище живёт только его jti.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active - токен не отозван и не истёк на момент now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}
