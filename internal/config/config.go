// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Поддерживаемые драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Поддерживаемые способы отправки писем.
const (
	MailLog  = "log"
	MailSMTP = "smtp"
)

// Config - корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Mail     MailConfig    `yaml:"mail"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig - таймауты сервиса.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig - сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/auth"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	ConfirmTokenTTL time.Duration `yaml:"confirm_token_ttl" env:"CONFIRM_TOKEN_TTL" env-default:"24h"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	MinPasswordLen  int           `yaml:"min_password_len" env:"MIN_PASSWORD_LEN" env-default:"8"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"contacts-auth"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"contacts-api"`
	JanitorPeriod   time.Duration `yaml:"janitor_period" env:"JANITOR_PERIOD" env-default:"30m"`
}

// DBConfig - настройки подключения к базе данных.
// Для sqlite DatabaseURL - путь к файлу или ":memory:".
type DBConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-default:"data/auth.db"`
}

// RedisConfig - пустой RedisURL отключает кэш refresh-токенов.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"auth:rt:"`
}

// MailConfig - параметры отправки писем подтверждения.
type MailConfig struct {
	Driver      string        `yaml:"driver" env:"MAIL_DRIVER" env-default:"log"`
	Host        string        `yaml:"host" env:"SMTP_HOST"`
	Port        string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username    string        `yaml:"username" env:"SMTP_USERNAME"`
	Password    string        `yaml:"password" env:"SMTP_PASSWORD"`
	From        string        `yaml:"from" env:"MAIL_FROM" env-default:"no-reply@contacts.local"`
	BaseURL     string        `yaml:"base_url" env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080/auth"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"MAIL_SEND_TIMEOUT" env-default:"10s"`
}

// Addr возвращает адрес SMTP-сервера в формате host:port.
func (m MailConfig) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	const op = "config.Validate"

	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is empty"))
	}
	if c.Auth.MinPasswordLen < 1 {
		errs = append(errs, errors.New("auth.min_password_len must be at least 1"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 || c.Auth.ConfirmTokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttls must be positive"))
	}

	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown db.driver %q", c.DB.Driver))
	}
	if c.DB.DatabaseURL == "" {
		errs = append(errs, errors.New("db.db_url is empty"))
	}

	switch c.Mail.Driver {
	case MailLog:
	case MailSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
