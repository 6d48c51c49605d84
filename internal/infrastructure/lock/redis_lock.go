package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const (
	redisKeyPrefix    = "lock:stock-ledger:"
	redisRetryBackoff = 50 * time.Millisecond
)

// RedisLocker bloqueo distribuido por clave con bsm/redislock. El TTL debe cubrir la operación
// más larga (incluida la propagación); si expira antes, el token de versión del periodo detecta el cruce.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisLocker construye el locker sobre un cliente Redis ya conectado.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, log: log}
}

// Lock reintenta hasta obtener el bloqueo o hasta que ctx termine.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Obtain(ctx, redisKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(redisRetryBackoff),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("redis lock %s: %w", key, domain.ErrLockTimeout)
	case err != nil:
		return nil, fmt.Errorf("redis lock %s: %w: %w", key, domain.ErrStorageUnavailable, err)
	}
	return func() {
		// La liberación no depende del ctx del caller: la operación ya terminó.
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el bloqueo redis")
		} else if errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Error().Str("key", key).Msg("el bloqueo redis expiró antes de terminar la operación")
		}
	}, nil
}

// NewRedisClient conecta a Redis y verifica con PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
