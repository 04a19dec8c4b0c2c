// middleware содержит net/http мидлвары REST-слоя: восстановление после
// паники, request id, логирование, метрики, дедлайн и Bearer-аутентификацию.
package middleware

import (
	"net/http"
)

// Middleware - стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain применяет мидлвары к обработчику в порядке их перечисления.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	return h
}

// responseRecorder запоминает первый записанный статус и число байт тела.
// Вложенные мидлвары переиспользуют уже созданную обёртку.
type responseRecorder struct {
	http.ResponseWriter
	code    int
	written int
}

func recordResponse(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}

	return &responseRecorder{ResponseWriter: w}
}

func (rec *responseRecorder) WriteHeader(code int) {
	if rec.code == 0 {
		rec.code = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	if rec.code == 0 {
		rec.code = http.StatusOK
	}

	n, err := rec.ResponseWriter.Write(p)
	rec.written += n

	return n, err
}

// Unwrap открывает исходный ResponseWriter для http.ResponseController.
func (rec *responseRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// status - итоговый статус; обработчик, ничего не записавший, отдаёт 200.
func (rec *responseRecorder) status() int {
	if rec.code == 0 {
		return http.StatusOK
	}

	return rec.code
}
