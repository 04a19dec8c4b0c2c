package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/contacts-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/middleware"
)

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/auth"; если пустой - роуты регистрируются на корне.
	Metrics  middleware.HTTPObserver
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout), // общий дедлайн запроса; <=0 - без дедлайна
	)

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, "not_found", "not found")
	})
	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	h := handlers.New(svc)

	if opts.BasePath != "" && opts.BasePath != "/" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.Authenticator) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Get("/confirm/{token}", h.ConfirmEmail)
	r.Post("/request_email", h.RequestEmail)

	r.With(middleware.RequireAuth(auth)).Get("/me", h.Me)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	resp := apierrors.ErrorResponse{Error: apierrors.APIError{
		Code:      code,
		Message:   msg,
		RequestID: r.Header.Get("X-Request-Id"),
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
