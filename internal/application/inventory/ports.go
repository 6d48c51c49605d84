package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Locker exclusión mutua por clave (tenant/producto). Lock espera hasta obtener el bloqueo o hasta
// que ctx termine; devuelve la función que lo libera. Claves distintas no deben bloquearse entre sí.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Metrics señales operativas del libro (implementada por infrastructure/metrics).
type Metrics interface {
	ObserveOperation(operation string, err error, elapsed time.Duration)
	ObserveLockWait(elapsed time.Duration)
	AddPeriodsPropagated(n int)
	AddRepairCorrections(n int)
	AddClampedEntries(n int)
}

// StatementRenderer genera el extracto imprimible (PDF) de un periodo.
type StatementRenderer interface {
	RenderPeriodStatement(ctx context.Context, p *entity.StockPeriod) ([]byte, error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, error, time.Duration) {}
func (nopMetrics) ObserveLockWait(time.Duration)                 {}
func (nopMetrics) AddPeriodsPropagated(int)                      {}
func (nopMetrics) AddRepairCorrections(int)                      {}
func (nopMetrics) AddClampedEntries(int)                         {}
