package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/service"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/apierrors"
)

// maxBodyBytes - предел размера тела запроса.
const maxBodyBytes = 1 << 20

// AuthService - операции сервиса аутентификации, доступные по HTTP.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
	ConfirmEmail(ctx context.Context, token string) (service.ConfirmResult, error)
	ResendConfirmation(ctx context.Context, email string) (bool, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc AuthService
}

func New(svc AuthService) *Handlers {
	return &Handlers{svc: svc}
}

// validatable - DTO запроса с собственной проверкой полей.
type validatable interface {
	Validate() error
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: неизвестные поля и лишние данные
// после объекта запрещены, тело ограничено maxBodyBytes.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return apierrors.ErrInvalidArgument
	}
	if dec.More() {
		return apierrors.ErrInvalidArgument
	}

	return nil
}

// bind декодирует и валидирует тело запроса. При ошибке ответ уже записан.
func bind(w http.ResponseWriter, r *http.Request, in validatable) bool {
	if err := decodeStrict(w, r, in); err != nil {
		apierrors.WriteError(w, r, err)
		return false
	}

	if err := in.Validate(); err != nil {
		apierrors.WriteError(w, r, apierrors.BadRequest(err.Error()))
		return false
	}

	return true
}

// errMissingUser - маршрут без RequireAuth; программная ошибка сборки роутера.
var errMissingUser = errors.New("handlers: no authenticated user in context")
