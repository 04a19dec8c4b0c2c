// service содержит бизнес-логику аутентификации:
// регистрацию и вход, выпуск/ротацию/отзыв токенов, подтверждение email
// и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасны storage и mail.Sender.
//   - Письма отправляются асинхронно; Wait дожидается всех отправок
//     (вызывается при остановке процесса).
//   - Ошибки возвращаются обёрнутыми с префиксом операции и далее маппятся
//     транспортом на HTTP-коды (см. комментарии к переменным ошибок ниже).
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pribylovaa/contacts-auth/internal/cache"
	"github.com/pribylovaa/contacts-auth/internal/config"
	"github.com/pribylovaa/contacts-auth/internal/mail"
	"github.com/pribylovaa/contacts-auth/internal/password"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/tokens"
)

var (
	// ErrEmailTaken - e-mail уже занят другим пользователем.
	// Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials - пара логин/пароль неверна или пользователь не найден.
	// Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotConfirmed - вход до подтверждения email.
	// Транспорт: HTTP 403.
	ErrAccountNotConfirmed = errors.New("account not confirmed")

	// ErrInvalidToken - токен некорректен, истёк, не того вида, отозван
	// или уже использован. Причина наружу не раскрывается. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken - истёк токен подтверждения email. Транспорт: HTTP 400.
	ErrExpiredToken = errors.New("token expired")

	// ErrNotFound - субъект токена не найден. Всегда сопровождается
	// ErrInvalidToken и нужен для логов и метрик.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidEmail - e-mail имеет некорректный формат.
	// Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword - пароль короче минимума или длиннее 72 байт.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword - пароль пустой.
	// Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Observer получает события сервиса (реализуется пакетом metrics).
type Observer interface {
	AuthEvent(op, outcome string)
	MailDispatched(err error)
}

type nopObserver struct{}

func (nopObserver) AuthEvent(string, string) {}
func (nopObserver) MailDispatched(error)     {}

// Option настраивает Service.
type Option func(*Service)

// WithRefreshCache подключает кэш отозванных refresh-токенов.
func WithRefreshCache(c cache.RefreshCache) Option {
	return func(s *Service) { s.rcache = c }
}

// WithObserver подключает сбор метрик.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMail задаёт публичный адрес для ссылок подтверждения и таймаут отправки.
func WithMail(baseURL string, timeout time.Duration) Option {
	return func(s *Service) {
		s.baseURL = baseURL
		if timeout > 0 {
			s.mailTimeout = timeout
		}
	}
}

// Service описывает бизнес-логику аутентификации.
type Service struct {
	storage  storage.Storage
	cfg      config.AuthConfig
	tokens   *tokens.Manager
	hasher   *password.Hasher
	sender   mail.Sender
	rcache   cache.RefreshCache // может быть nil, если кэш не сконфигурирован
	observer Observer
	now      func() time.Time

	baseURL     string
	mailTimeout time.Duration

	// dummyHash сравнивается при входе с неизвестным email,
	// чтобы время ответа не выдавало существование аккаунта.
	dummyHash string

	wg sync.WaitGroup
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, cfg config.AuthConfig, sender mail.Sender, opts ...Option) (*Service, error) {
	const op = "service.New"

	s := &Service{
		storage:     st,
		cfg:         cfg,
		sender:      sender,
		observer:    nopObserver{},
		now:         time.Now,
		mailTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.MinPasswordLen < 1 {
		s.cfg.MinPasswordLen = 8
	}

	tm, err := tokens.New(cfg.JWTSecret, cfg.Issuer, cfg.Audience, tokens.WithClock(s.now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.tokens = tm

	s.hasher = password.NewHasher(cfg.BcryptCost)
	s.dummyHash, err = s.hasher.Hash("contacts-auth-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Wait блокируется до завершения всех фоновых отправок писем.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Ready проверяет зависимости для readiness-проб.
func (s *Service) Ready(ctx context.Context) error {
	if s.rcache != nil {
		if err := s.rcache.Ping(ctx); err != nil {
			return fmt.Errorf("service.Ready: cache: %w", err)
		}
	}

	return nil
}

// outcome сводит ошибку операции к метке метрики.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountNotConfirmed):
		return "account_not_confirmed"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrEmptyPassword):
		return "invalid_argument"
	default:
		return "error"
	}
}
