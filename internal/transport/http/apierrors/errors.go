// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - короткий стабильный код для клиента;
//   - безопасное message без утечки деталей.
//
// Ошибки токенов не раскрывают причину (подпись, тип, отзыв и т.п.).
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/contacts-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrInvalidArgument - локальная ошибка разбора/валидации запроса.
var ErrInvalidArgument = errors.New("invalid argument")

// APIError - единый формат для клиента.
// Code - короткий стабильный код для машиночитаемой обработки.
// Message - безопасное человекочитаемое описание.
// RequestID - прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// badRequest несёт безопасное для клиента описание ошибки валидации.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }
func (e *badRequest) Unwrap() error { return ErrInvalidArgument }

// BadRequest - ошибка валидации с сообщением, которое можно показать клиенту.
func BadRequest(msg string) error {
	return &badRequest{msg: msg}
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal, чтобы не
//     послать "200 OK" с телом ошибки;
//   - ErrInvalidToken проверяется раньше ErrNotFound: токен на удалённого
//     пользователя - это 401, а не 404;
//   - неизвестная ошибка - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

func classify(err error) (int, string, string) {
	var br *badRequest

	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.As(err, &br):
		return http.StatusBadRequest, "invalid_argument", br.msg
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "email_taken", "account already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid email or password"
	case errors.Is(err, service.ErrAccountNotConfirmed):
		return http.StatusForbidden, "account_not_confirmed", "email not confirmed"
	case errors.Is(err, service.ErrExpiredToken):
		return http.StatusBadRequest, "expired_token", "token expired"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "invalid token"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError - хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="contacts-auth"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
