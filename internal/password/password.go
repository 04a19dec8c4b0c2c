// password хэширует и проверяет пароли пользователей с помощью bcrypt.
//
// Соль генерируется bcrypt на каждый вызов и хранится внутри дайджеста вместе
// с идентификатором алгоритма и cost, поэтому Verify не требует дополнительных данных.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrTooLong - пароль длиннее 72 байт (ограничение bcrypt).
var ErrTooLong = errors.New("password exceeds 72 bytes")

// MaxLength - максимальная длина пароля в байтах, которую принимает bcrypt.
const MaxLength = 72

// Hasher хэширует пароли с заданным cost.
// Нулевое значение использует bcrypt.DefaultCost.
type Hasher struct {
	cost int
}

// NewHasher создаёт Hasher. Значение cost вне [bcrypt.MinCost, bcrypt.MaxCost]
// приводится к ближайшей границе, 0 означает bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}

	return &Hasher{cost: cost}
}

// Cost возвращает используемый work factor.
func (h *Hasher) Cost() int {
	if h == nil || h.cost == 0 {
		return bcrypt.DefaultCost
	}

	return h.cost
}

// Hash возвращает bcrypt-дайджест пароля. Два вызова для одного и того же
// пароля дают разные дайджесты.
func (h *Hasher) Hash(plain string) (string, error) {
	const op = "password.Hash"

	if len(plain) > MaxLength {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%s: %w", op, ErrTooLong)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// Verify сравнивает пароль с дайджестом. Битый дайджест - просто false.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
