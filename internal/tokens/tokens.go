// tokens выпускает и проверяет подписанные JWT (HS256) трёх видов:
// access, refresh и confirm. Все виды используют один набор claims и
// различаются дискриминатором typ, поэтому токен одного вида не может быть
// предъявлен вместо другого.
//
// Пакет не обращается к хранилищу: проверка - это подпись, алгоритм,
// issuer/audience, срок действия и тип. Отзыв refresh-токенов реализован
// уровнем выше (service) по jti.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type - дискриминатор вида токена (claim "typ").
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
	TypeConfirm Type = "confirm"
)

var (
	// ErrInvalidToken - единая ошибка для любых проблем с токеном:
	// подпись, формат, алгоритм, issuer/audience, тип, срок действия.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired - срок действия истёк. Оборачивает ErrInvalidToken, так что
	// вызывающий код, которому причина не нужна, проверяет только ErrInvalidToken.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrEmptySecret - менеджер нельзя создать без ключа подписи.
	ErrEmptySecret = errors.New("empty signing secret")
)

// Claims - набор полей, подписываемых внутри любого токена.
type Claims struct {
	Type  Type   `json:"typ"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issued - результат выпуска токена.
type Issued struct {
	Token     string
	ID        uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Option настраивает Manager.
type Option func(*Manager)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager подписывает и проверяет токены общим секретом.
// Секрет и параметры фиксируются при создании; Manager безопасен для
// конкурентного использования.
type Manager struct {
	secret   []byte
	issuer   string
	audience []string
	now      func() time.Time
}

// New создаёт Manager.
func New(secret, issuer string, audience []string, opts ...Option) (*Manager, error) {
	const op = "tokens.New"

	if secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	m := &Manager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: append([]string(nil), audience...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Issue выпускает токен вида typ для subject со сроком жизни ttl.
func (m *Manager) Issue(subject string, typ Type, ttl time.Duration) (Issued, error) {
	return m.issue(subject, "", typ, ttl)
}

// IssueConfirmation выпускает токен подтверждения, привязанный к e-mail.
func (m *Manager) IssueConfirmation(subject, email string, ttl time.Duration) (Issued, error) {
	return m.issue(subject, email, TypeConfirm, ttl)
}

func (m *Manager) issue(subject, email string, typ Type, ttl time.Duration) (Issued, error) {
	const op = "tokens.Issue"

	now := m.now().UTC()
	id := uuid.New()

	claims := Claims{
		Type:  typ,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   subject,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w", op, err)
	}

	return Issued{
		Token:     signed,
		ID:        id,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify проверяет токен и его тип. Любая неудача - ErrInvalidToken
// (для истёкших токенов - ErrExpired, который тоже является ErrInvalidToken).
func (m *Manager) Verify(token string, expected Type) (*Claims, error) {
	const op = "tokens.Verify"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if len(m.audience) > 0 {
		opts = append(opts, jwt.WithAudience(m.audience...))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}

		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// ttl <= 0: токен недействителен с момента выпуска.
	if claims.IssuedAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpired)
	}

	if claims.Type != expected || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// SubjectID разбирает subject как UUID пользователя.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}

// TokenID разбирает jti как UUID.
func (c *Claims) TokenID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}
