package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/contacts-auth/internal/cache"
	"github.com/pribylovaa/contacts-auth/internal/config"
	"github.com/pribylovaa/contacts-auth/internal/mail"
	"github.com/pribylovaa/contacts-auth/internal/metrics"
	"github.com/pribylovaa/contacts-auth/internal/pkg/log"
	"github.com/pribylovaa/contacts-auth/internal/service"
	"github.com/pribylovaa/contacts-auth/internal/storage"
	"github.com/pribylovaa/contacts-auth/internal/storage/postgres"
	"github.com/pribylovaa/contacts-auth/internal/storage/sqlite"
	transport "github.com/pribylovaa/contacts-auth/internal/transport/http"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	logger := log.New(cfg.Env, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	logger.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	str, err := openStorage(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		return err
	}
	defer str.Close()
	logger.Info("storage_ready", slog.String("driver", cfg.DB.Driver))

	m := metrics.New(prometheus.DefaultRegisterer)

	opts := []service.Option{
		service.WithObserver(m),
		service.WithMail(cfg.Mail.BaseURL, cfg.Mail.SendTimeout),
	}

	// Кэш refresh-токенов опционален: без Redis сервис работает только с БД.
	if cfg.Redis.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()

		opts = append(opts, service.WithRefreshCache(rc))
		logger.Info("redis_connected")
	}

	svc, err := service.New(str, cfg.Auth, newSender(cfg.Mail, logger), opts...)
	if err != nil {
		return err
	}
	logger.Info("service_initialized")

	var ready atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		if err := svc.Ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", transport.NewRouter(svc, transport.Options{
		Logger:   logger,
		Timeout:  cfg.Timeouts.Service,
		BasePath: cfg.HTTP.BasePath,
		Metrics:  m,
	}))

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(ctx, str, logger, cfg.Auth.JanitorPeriod)

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			logger.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	ready.Store(false)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	logger.Info("http_stopped")

	// Дожидаемся писем, поставленных в очередь до остановки.
	svc.Wait()

	return serveErr
}

// openStorage открывает хранилище по драйверу из конфигурации.
// Для Postgres сразу применяются миграции.
func openStorage(ctx context.Context, cfg config.DBConfig) (storage.Storage, error) {
	const op = "main.openStorage"

	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%s: unknown db driver %q", op, cfg.Driver)
	}
}

// newSender выбирает способ доставки писем подтверждения.
func newSender(cfg config.MailConfig, logger *slog.Logger) mail.Sender {
	if cfg.Driver == config.MailSMTP {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}

	return mail.NewLogSender(logger)
}

// startRefreshJanitor запускает фоновую задачу, которая периодически удаляет
// просроченные refresh-токены из хранилища с помощью storage.DeleteExpiredTokens.
func startRefreshJanitor(ctx context.Context, st storage.Storage, logger *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := st.DeleteExpiredTokens(ctx, time.Now().UTC()); err != nil {
					logger.Error("refresh_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
