package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/contacts-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/contacts-auth/internal/transport/http/middleware"
)

// Signup регистрирует пользователя: 201 и профиль без хэша пароля.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupRequest
	if !bind(w, r, &in) {
		return
	}

	user, err := h.svc.Signup(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userFromModel(user))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if !bind(w, r, &in) {
		return
	}

	pair, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshRequest
	if !bind(w, r, &in) {
		return
	}

	pair, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}

// Logout всегда отвечает 204 на корректно сформированный запрос:
// результат отзыва клиенту не сообщается.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in LogoutRequest
	if !bind(w, r, &in) {
		return
	}

	h.svc.Logout(r.Context(), in.RefreshToken)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	res, err := h.svc.ConfirmEmail(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if res.AlreadyConfirmed {
		writeJSON(w, http.StatusOK, MessageResponse{Message: msgAlreadyConfirmed})
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgEmailConfirmed})
}

// RequestEmail повторно отправляет письмо подтверждения.
// Для неизвестного email ответ совпадает с успешной отправкой.
func (h *Handlers) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var in RequestEmailRequest
	if !bind(w, r, &in) {
		return
	}

	already, err := h.svc.ResendConfirmation(r.Context(), in.Email)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if already {
		writeJSON(w, http.StatusOK, MessageResponse{Message: msgAlreadyConfirmed})
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgCheckEmail})
}

// Me возвращает профиль владельца access-токена. Требует RequireAuth.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, errMissingUser)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(user))
}
