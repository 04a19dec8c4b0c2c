package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/contacts-auth/internal/cache"
	"github.com/pribylovaa/contacts-auth/internal/models"
	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/tokens"
)

// Refresh обменивает refresh-токен на новую пару. Старый токен отзывается
// в той же транзакции, в которой сохраняется новый, поэтому из двух
// конкурентных обменов одного токена успешен ровно один.
//
// Повторное предъявление уже отозванного (но не истёкшего) токена
// считается утечкой: отзываются все refresh-токены пользователя.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *models.TokenPair, err error) {
	const op = "service.token.Refresh"

	defer func() { s.observer.AuthEvent("refresh", outcome(err)) }()

	lg := log.From(ctx)

	claims, oldID, userID, err := s.verifyRefresh(refreshToken)
	if err != nil {
		lg.Debug("refresh_token_rejected",
			slog.String("op", op),
			slog.String("reason", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if s.cachedRevoked(ctx, oldID) {
		s.revokeFamily(ctx, userID)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := s.storage.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, next, err := s.mintPair(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.storage.RotateRefreshToken(ctx, oldID, next, s.now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		lg.Warn("refresh_token_unknown",
			slog.String("user_id", userID.String()),
			slog.String("jti", oldID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	case errors.Is(err, storage.ErrRevoked):
		s.markRevoked(ctx, oldID, userID, claims.ExpiresAt.Time)
		s.revokeFamily(ctx, userID)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	default:
		lg.Error("refresh_rotate_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.markRevoked(ctx, oldID, userID, claims.ExpiresAt.Time)

	return pair, nil
}

// Logout отзывает refresh-токен. Операция best-effort: некорректные,
// неизвестные и уже отозванные токены, как и ошибки хранилища,
// только логируются.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	const op = "service.token.Logout"

	lg := log.From(ctx)

	claims, id, userID, err := s.verifyRefresh(refreshToken)
	if err != nil {
		lg.Debug("logout_token_ignored",
			slog.String("op", op),
			slog.String("reason", err.Error()),
		)
		s.observer.AuthEvent("logout", "ignored")
		return
	}

	if s.cachedRevoked(ctx, id) {
		s.observer.AuthEvent("logout", "already_revoked")
		return
	}

	revoked, err := s.storage.RevokeRefreshToken(ctx, id)
	switch {
	case err == nil && revoked:
		s.markRevoked(ctx, id, userID, claims.ExpiresAt.Time)
		lg.Info("user_logged_out", slog.String("user_id", userID.String()))
		s.observer.AuthEvent("logout", "ok")
	case err == nil:
		s.observer.AuthEvent("logout", "already_revoked")
	case errors.Is(err, storage.ErrNotFound):
		s.observer.AuthEvent("logout", "ignored")
	default:
		lg.Error("logout_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		s.observer.AuthEvent("logout", "error")
	}
}

// issueTokenPair выпускает пару access+refresh и сохраняет jti refresh-токена.
func (s *Service) issueTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error) {
	const op = "service.token.issueTokenPair"

	pair, rt, err := s.mintPair(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SaveRefreshToken(ctx, rt); err != nil {
		log.From(ctx).Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// mintPair подписывает access и refresh токены и готовит запись refresh для хранилища.
func (s *Service) mintPair(userID uuid.UUID) (*models.TokenPair, *models.RefreshToken, error) {
	access, err := s.tokens.Issue(userID.String(), tokens.TypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, nil, err
	}

	refresh, err := s.tokens.Issue(userID.String(), tokens.TypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, nil, err
	}

	pair := &models.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
	rt := &models.RefreshToken{
		ID:        refresh.ID,
		UserID:    userID,
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	}

	return pair, rt, nil
}

// verifyRefresh проверяет подпись/срок/тип refresh-токена и разбирает sub и jti.
func (s *Service) verifyRefresh(token string) (*tokens.Claims, uuid.UUID, uuid.UUID, error) {
	claims, err := s.tokens.Verify(token, tokens.TypeRefresh)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}

	id, err := claims.TokenID()
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}

	return claims, id, userID, nil
}

// revokeFamily отзывает все refresh-токены пользователя после повторного
// предъявления уже использованного токена.
func (s *Service) revokeFamily(ctx context.Context, userID uuid.UUID) {
	lg := log.From(ctx)

	n, err := s.storage.RevokeUserTokens(ctx, userID)
	if err != nil {
		lg.Error("refresh_reuse_revoke_failed",
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return
	}

	lg.Warn("refresh_reuse_detected",
		slog.String("user_id", userID.String()),
		slog.Int64("revoked", n),
	)
}

// cachedRevoked сообщает, отмечен ли токен в кэше как отозванный.
// Ошибки кэша не влияют на результат: решение принимает БД.
func (s *Service) cachedRevoked(ctx context.Context, id uuid.UUID) bool {
	if s.rcache == nil {
		return false
	}

	e, ok, err := s.rcache.Get(ctx, id)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		return false
	}

	return ok && e.Revoked
}

func (s *Service) markRevoked(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) {
	if s.rcache == nil {
		return
	}

	err := s.rcache.MarkRevoked(ctx, id, &cache.RefreshEntry{
		UserID:    userID,
		Revoked:   true,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		log.From(ctx).Warn("refresh_cache_mark_failed", slog.String("err", err.Error()))
	}
}
