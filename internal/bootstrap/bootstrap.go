// Package bootstrap arma el almacén y el bloqueo según la configuración (compartido por cmd/api y cmd/ledgerctl).
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appinventory "github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Infra recursos abiertos. Close libera conexiones en orden inverso.
type Infra struct {
	Repo   repository.StockPeriodRepository
	Locker appinventory.Locker
	Pool   *pgxpool.Pool // nil con STORE_DRIVER=memory

	closers []func()
}

// Close libera los recursos abiertos.
func (i *Infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

// Open abre el almacén (postgres o memoria) y el bloqueo por producto (memoria, redis o postgres).
// Con DB_AUTO_MIGRATE aplica las migraciones pendientes.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	infra := &Infra{}

	switch cfg.DB.Driver {
	case "memory":
		log.Warn().Msg("STORE_DRIVER=memory: los periodos no se persisten")
		infra.Repo = memory.NewStockPeriodRepository()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		infra.Pool = pool
		infra.closers = append(infra.closers, pool.Close)
		if cfg.DB.AutoMigrate {
			if err := postgres.RunMigrations(pool); err != nil {
				infra.Close()
				return nil, fmt.Errorf("migraciones: %w", err)
			}
			log.Info().Msg("migraciones aplicadas")
		}
		infra.Repo = postgres.NewStockPeriodRepository(pool)
	}

	switch cfg.Lock.Driver {
	case "redis":
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("conexión a Redis: %w", err)
		}
		infra.closers = append(infra.closers, func() { _ = rdb.Close() })
		infra.Locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, log.Component("redis_lock"))
	case "postgres":
		infra.Locker = postgres.NewAdvisoryLocker(infra.Pool, log.Component("advisory_lock"))
	default:
		infra.Locker = lock.NewKeyedMutex()
	}
	log.Info().Str("store", cfg.DB.Driver).Str("lock", cfg.Lock.Driver).Msg("infraestructura lista")
	return infra, nil
}

// LedgerConfig traduce la configuración a los parámetros del servicio.
func LedgerConfig(cfg *config.Config) (appinventory.LedgerConfig, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return appinventory.LedgerConfig{}, err
	}
	policy, err := inventory.ParsePolicy(cfg.Ledger.BalancePolicy)
	if err != nil {
		return appinventory.LedgerConfig{}, err
	}
	return appinventory.LedgerConfig{
		Location:           loc,
		Policy:             policy,
		LockWait:           cfg.Lock.Wait,
		PropagationRetries: cfg.Ledger.PropagationRetries,
	}, nil
}
