// Package metrics expone las señales del libro de stock en Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Resultados de una operación (etiqueta outcome).
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeStorage      = "storage_unavailable"
	OutcomeConflict     = "concurrent_modification"
	OutcomeLockTimeout  = "lock_timeout"
	OutcomePropagation  = "propagation_incomplete"
	OutcomeUnknownError = "unknown"
)

// ClassifyOutcome traduce el error de una operación a la etiqueta outcome.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrPropagationIncomplete):
		return OutcomePropagation
	case errors.Is(err, domain.ErrInvalidMovement), errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrConcurrentModification):
		return OutcomeConflict
	case errors.Is(err, domain.ErrLockTimeout):
		return OutcomeLockTimeout
	case errors.Is(err, domain.ErrStorageUnavailable):
		return OutcomeStorage
	}
	return OutcomeUnknownError
}

// LedgerMetrics colectores del libro de stock.
type LedgerMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lockWait          prometheus.Histogram
	periodsPropagated prometheus.Counter
	repairCorrections prometheus.Counter
	clampedEntries    prometheus.Counter
}

// NewLedgerMetrics registra los colectores en reg con el prefijo indicado.
func NewLedgerMetrics(reg prometheus.Registerer, prefix string) *LedgerMetrics {
	if prefix == "" {
		prefix = "stock_ledger"
	}
	m := &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total de operaciones del libro por tipo y resultado",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_operation_duration_seconds",
			Help:    "Duración de las operaciones del libro (incluye espera del bloqueo y propagación)",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_lock_wait_seconds",
			Help:    "Espera para obtener el bloqueo por (tenant, producto)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		periodsPropagated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_periods_propagated_total",
			Help: "Periodos posteriores recalculados por propagación del saldo inicial",
		}),
		repairCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_repair_corrections_total",
			Help: "Periodos corregidos por reparaciones de cadena",
		}),
		clampedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_clamped_entries_total",
			Help: "Movimientos cuyo saldo se acotó a cero al registrarse",
		}),
	}
	reg.MustRegister(m.operations, m.operationDuration, m.lockWait,
		m.periodsPropagated, m.repairCorrections, m.clampedEntries)
	return m
}

// ObserveOperation registra una operación terminada.
func (m *LedgerMetrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, ClassifyOutcome(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveLockWait registra la espera del bloqueo.
func (m *LedgerMetrics) ObserveLockWait(elapsed time.Duration) {
	m.lockWait.Observe(elapsed.Seconds())
}

// AddPeriodsPropagated suma periodos recalculados por propagación.
func (m *LedgerMetrics) AddPeriodsPropagated(n int) {
	if n > 0 {
		m.periodsPropagated.Add(float64(n))
	}
}

// AddRepairCorrections suma periodos corregidos por reparación.
func (m *LedgerMetrics) AddRepairCorrections(n int) {
	if n > 0 {
		m.repairCorrections.Add(float64(n))
	}
}

// AddClampedEntries suma movimientos acotados a cero.
func (m *LedgerMetrics) AddClampedEntries(n int) {
	if n > 0 {
		m.clampedEntries.Add(float64(n))
	}
}
