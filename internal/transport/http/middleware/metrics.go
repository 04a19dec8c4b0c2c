package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver - приёмник HTTP-метрик (реализуется internal/metrics).
type HTTPObserver interface {
	ObserveHTTP(method, route string, code int, dur time.Duration)
}

// Metrics считает запросы и их длительность по шаблону маршрута chi.
// Шаблон, а не сырой путь: токен из /confirm/{token} не попадает в метки.
func Metrics(o HTTPObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if o == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordResponse(w)
			start := time.Now()

			next.ServeHTTP(rec, r)

			o.ObserveHTTP(r.Method, routePattern(r), rec.status(), time.Since(start))
		})
	}
}

// routePattern - шаблон сматченного маршрута ("" вне chi или без совпадения).
func routePattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ""
	}

	return rc.RoutePattern()
}
