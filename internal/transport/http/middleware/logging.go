package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст и пишет одну запись на запрос.
// Query string не логируется: в ней может оказаться токен.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}

			r = r.WithContext(log.Into(r.Context(), reqLogger))

			rec := recordResponse(w)
			start := time.Now()

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", rec.written),
			}

			level := slog.LevelInfo
			if rec.status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			log.From(r.Context()).LogAttrs(r.Context(), level, "http", attrs...)
		})
	}
}
