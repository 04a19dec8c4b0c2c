package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/apierrors"
)

var errPanic = errors.New("panic")

// Recover превращает panic обработчика в ответ 500/internal.
// Причина и стек пишутся в лог, клиент видит только безопасное сообщение.
// http.ErrAbortHandler пробрасывается дальше: это штатный способ оборвать ответ.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
