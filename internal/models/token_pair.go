package models

import "time"

// TokenPair - пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к API, проверяется без обращения к БД;
//   - RefreshToken - долгоживущий JWT, идентификатор (jti) которого хранится на сервере
//     и может быть отозван;
//   - AccessExpiresAt/RefreshExpiresAt - моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
