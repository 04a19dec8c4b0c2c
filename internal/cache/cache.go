// cache - опциональное зеркало состояния refresh-токенов в Redis.
// Источник истины - БД; кэш позволяет отбрасывать отозванные токены
// без обращения к хранилищу.
package cache

//go:generate mockgen -source=cache.go -destination=../../mocks/mock_cache.go -package=mocks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshEntry описывает данные, которые храним в Redis по jti refresh-токена.
type RefreshEntry struct {
	UserID    uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache - минимальный контракт кэша refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	Get(ctx context.Context, id uuid.UUID) (*RefreshEntry, bool, error)
	// MarkRevoked сохраняет запись отозванной до e.ExpiresAt.
	// Уже истёкшие записи не сохраняются.
	MarkRevoked(ctx context.Context, id uuid.UUID, e *RefreshEntry) error
	// Ping проверяет доступность Redis (для /healthz).
	Ping(ctx context.Context) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой - используется "auth:rt:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (RefreshCache, error) {
	const op = "cache.NewRedisCache"

	if prefix == "" {
		prefix = "auth:rt:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix, now: time.Now}, nil
}

func (c *redisCache) key(id uuid.UUID) string { return c.prefix + id.String() }

// Храним как Redis Hash с полями: uid, rev (0/1), exp (unix).
func (c *redisCache) Get(ctx context.Context, id uuid.UUID) (*RefreshEntry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, err
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &RefreshEntry{
		UserID:    uid,
		Revoked:   m["rev"] == "1",
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}, true, nil
}

func (c *redisCache) set(ctx context.Context, id uuid.UUID, e *RefreshEntry) error {
	ttl := e.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"uid": e.UserID.String(),
		"rev": boolTo01(e.Revoked),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(id), kv)
	pipe.Expire(ctx, c.key(id), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// MarkRevoked перезаписывает запись целиком, чтобы у ключа всегда был TTL.
func (c *redisCache) MarkRevoked(ctx context.Context, id uuid.UUID, e *RefreshEntry) error {
	revoked := *e
	revoked.Revoked = true

	return c.set(ctx, id, &revoked)
}

func (c *redisCache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
