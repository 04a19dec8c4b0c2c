package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/contacts-auth/internal/mail"
	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
	"github.com/pribylovaa/contacts-auth/internal/pkg/redact"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/tokens"
)

// ConfirmResult - результат погашения токена подтверждения.
type ConfirmResult struct {
	// AlreadyConfirmed - аккаунт был подтверждён раньше; побочных эффектов нет.
	AlreadyConfirmed bool
}

// RequestConfirmation выпускает токен подтверждения для user и ставит
// письмо в фоновую отправку. Одно письмо на вызов.
func (s *Service) RequestConfirmation(ctx context.Context, user *models.User) (string, error) {
	const op = "service.confirm.RequestConfirmation"

	issued, err := s.tokens.IssueConfirmation(user.ID.String(), user.Email, s.cfg.ConfirmTokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(ctx, mail.ConfirmationMessage(s.baseURL, user.Email, issued.Token))

	return issued.Token, nil
}

// ConfirmEmail погашает токен подтверждения.
// Истёкший токен -> ErrExpiredToken; любой иной дефект токена,
// несуществующий пользователь или смена email -> ErrInvalidToken.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (_ ConfirmResult, err error) {
	const op = "service.confirm.ConfirmEmail"

	defer func() { s.observer.AuthEvent("confirm", outcome(err)) }()

	lg := log.From(ctx)

	claims, err := s.tokens.Verify(token, tokens.TypeConfirm)
	if err != nil {
		if errors.Is(err, tokens.ErrExpired) {
			return ConfirmResult{}, fmt.Errorf("%s: %w", op, ErrExpiredToken)
		}

		lg.Debug("confirm_token_rejected", slog.String("reason", err.Error()))
		return ConfirmResult{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := claims.SubjectID()
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ConfirmResult{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrNotFound)
		}

		return ConfirmResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !strings.EqualFold(user.Email, claims.Email) {
		lg.Warn("confirm_email_mismatch", slog.String("user_id", user.ID.String()))
		return ConfirmResult{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if user.Confirmed() {
		return ConfirmResult{AlreadyConfirmed: true}, nil
	}

	changed, err := s.storage.SetConfirmed(ctx, uid, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ConfirmResult{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrNotFound)
		}

		return ConfirmResult{}, fmt.Errorf("%s: %w", op, err)
	}

	// Конкурентное погашение уже перевело аккаунт в confirmed.
	if !changed {
		return ConfirmResult{AlreadyConfirmed: true}, nil
	}

	lg.Info("email_confirmed", slog.String("user_id", uid.String()))

	return ConfirmResult{}, nil
}

// ResendConfirmation повторно отправляет письмо подтверждения.
// Для неизвестного email ответ тот же, что и при успешной отправке.
// Возвращает true, если аккаунт уже подтверждён (письмо не отправляется).
func (s *Service) ResendConfirmation(ctx context.Context, email string) (_ bool, err error) {
	const op = "service.confirm.ResendConfirmation"

	defer func() { s.observer.AuthEvent("resend_confirmation", outcome(err)) }()

	normEmail, err := validateEmail(email)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Info("resend_unknown_email", slog.String("email", redact.Email(normEmail)))
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if user.Confirmed() {
		return true, nil
	}

	if _, err := s.RequestConfirmation(ctx, user); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// dispatch отправляет письмо в отдельной горутине со своим таймаутом.
// Контекст запроса не отменяет отправку; логгер запроса сохраняется.
func (s *Service) dispatch(ctx context.Context, msg mail.Message) {
	if s.sender == nil {
		return
	}

	ctx = log.Detach(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
		defer cancel()

		lg := log.From(ctx)

		err := s.sender.Send(sendCtx, msg)
		s.observer.MailDispatched(err)
		if err != nil {
			lg.Error("confirmation_mail_failed",
				slog.String("to", redact.Email(msg.To)),
				slog.String("err", err.Error()),
			)
			return
		}

		lg.Info("confirmation_mail_sent", slog.String("to", redact.Email(msg.To)))
	}()
}
