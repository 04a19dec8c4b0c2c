package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/service"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/apierrors"
)

// Authenticator проверяет access-токен и возвращает его владельца.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type userKey struct{}

// RequireAuth пропускает запрос только с действительным Bearer access-токеном.
// Пользователь кладётся в контекст (см. UserFrom). Любая проблема с токеном -
// 401 invalid_token без указания причины.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom возвращает аутентифицированного пользователя из контекста.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// bearerToken извлекает токен из "Authorization: Bearer <token>".
// Схема сравнивается без учёта регистра.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")

	const prefix = "bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(auth[len(prefix):])

	return token, token != ""
}
