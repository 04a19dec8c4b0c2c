package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/password"
	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
	"github.com/pribylovaa/contacts-auth/internal/pkg/redact"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/tokens"
)

// Signup регистрирует нового пользователя в состоянии unconfirmed
// и запускает отправку письма подтверждения.
func (s *Service) Signup(ctx context.Context, email, pw string) (_ *models.User, err error) {
	const op = "service.auth.Signup"

	defer func() { s.observer.AuthEvent("signup", outcome(err)) }()

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.validatePassword(pw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%s: %w", op, ErrWeakPassword)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: hash,
		Status:       models.StatusUnconfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_signed_up",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	// Письмо не влияет на результат регистрации: при ошибке пользователь
	// запросит повторную отправку.
	if _, err := s.RequestConfirmation(ctx, user); err != nil {
		lg.Error("confirmation_request_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
	}

	return user, nil
}

// Login выполняет вход по email+пароль.
// Неизвестный email и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, email, pw string) (_ *models.TokenPair, err error) {
	const op = "service.auth.Login"

	defer func() { s.observer.AuthEvent("login", outcome(err)) }()

	normEmail, err := validateEmail(email)
	if err != nil || pw == "" {
		s.hasher.Verify(pw, s.dummyHash)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify(pw, s.dummyHash)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.Confirmed() {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotConfirmed)
	}

	if !s.hasher.Verify(pw, user.PasswordHash) {
		log.From(ctx).Warn("login_wrong_password",
			slog.String("user_id", user.ID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Authenticate проверяет access-токен и возвращает его владельца.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.Authenticate"

	claims, err := s.tokens.Verify(accessToken, tokens.TypeAccess)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected",
			slog.String("op", op),
			slog.String("reason", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := claims.SubjectID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// validateEmail проверяет формат email (RFC 5322, без display name),
// обрезает пробелы снаружи и приводит к нижнему регистру.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю:
// не пустой, не короче MinPasswordLen рун и не длиннее 72 байт (предел bcrypt).
func (s *Service) validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < s.cfg.MinPasswordLen || len(pw) > password.MaxLength {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
