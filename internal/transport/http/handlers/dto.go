package handlers

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/pribylovaa/contacts-auth/internal/models"
)

// Входные/выходные модели REST.

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginRequest проверяет только наличие полей: формат email при входе
// не раскрывается отдельной ошибкой, неверные данные - всегда 401.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type RequestEmailRequest struct {
	Email string `json:"email"`
}

func (r RequestEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

func userFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt,
		ConfirmedAt: u.ConfirmedAt,
	}
}

type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	AccessExpiresAt  int64  `json:"access_expires_at"`  // Unix UTC
	RefreshExpiresAt int64  `json:"refresh_expires_at"` // Unix UTC
}

func tokensFromModel(p *models.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  p.AccessExpiresAt.Unix(),
		RefreshExpiresAt: p.RefreshExpiresAt.Unix(),
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

const (
	msgEmailConfirmed   = "Email confirmed"
	msgAlreadyConfirmed = "Your email is already confirmed"
	msgCheckEmail       = "Check your email for confirmation."
)
