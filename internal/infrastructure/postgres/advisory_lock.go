package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const (
	advisoryMinBackoff = 10 * time.Millisecond
	advisoryMaxBackoff = 250 * time.Millisecond
)

// AdvisoryLocker bloqueo por clave con pg_try_advisory_lock, atado a una conexión dedicada del pool.
// Quien espera no retiene conexiones: cada intento toma una y la devuelve si no obtuvo el bloqueo.
// El bloqueo vive mientras la conexión esté tomada; si el proceso muere, PostgreSQL lo libera.
type AdvisoryLocker struct {
	pool       *pgxpool.Pool
	log        *logger.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewAdvisoryLocker construye el locker con el pool.
func NewAdvisoryLocker(pool *pgxpool.Pool, log *logger.Logger) *AdvisoryLocker {
	if log == nil {
		log = logger.Nop()
	}
	return &AdvisoryLocker{pool: pool, log: log, minBackoff: advisoryMinBackoff, maxBackoff: advisoryMaxBackoff}
}

// tryFunc un intento de obtener el bloqueo: ok=false sin error significa ocupado.
type tryFunc func(ctx context.Context) (unlock func(), ok bool, err error)

// Lock reintenta con espera creciente hasta obtener el bloqueo de key o hasta que ctx termine.
// Devuelve la función para liberarlo.
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := pollLock(ctx, l.minBackoff, l.maxBackoff, func(ctx context.Context) (func(), bool, error) {
		return l.tryLock(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return unlock, nil
}

func pollLock(ctx context.Context, minBackoff, maxBackoff time.Duration, try tryFunc) (func(), error) {
	wait := minBackoff
	for {
		unlock, ok, err := try(ctx)
		switch {
		case ok:
			return unlock, nil
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %w", domain.ErrLockTimeout, ctx.Err())
		case err != nil:
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %w", domain.ErrLockTimeout, ctx.Err())
		case <-t.C:
		}
		wait = min(wait*2, maxBackoff)
	}
}

func (l *AdvisoryLocker) tryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&locked); err != nil {
		// La consulta pudo quedar cancelada a medias; la conexión no vuelve al pool.
		conn.Conn().Close(context.Background())
		conn.Release()
		return nil, false, err
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}
	return func() {
		var released bool
		err := conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&released)
		closed := finishUnlock(err, released, func() { conn.Conn().Close(context.Background()) }, conn.Release)
		if closed {
			l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el bloqueo advisory; se cierra la conexión")
		}
	}, true, nil
}

// finishUnlock devuelve la conexión al pool. Si la liberación falló la cierra antes: cerrar la sesión
// suelta el bloqueo en PostgreSQL y evita que otra operación herede una conexión que lo retiene.
func finishUnlock(err error, released bool, closeConn, release func()) bool {
	closed := err != nil || !released
	if closed {
		closeConn()
	}
	release()
	return closed
}
