package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Tipos de hallazgo de la auditoría de cadena.
const (
	InconsistencyChain   = "chain"   // inicial != cierre del periodo anterior
	InconsistencyBalance = "balance" // saldos parciales, totales o cierre desalineados con el recálculo
)

// Inconsistency hallazgo de la auditoría previa a una reparación.
type Inconsistency struct {
	Period entity.Period
	Kind   string
	Detail string
}

// RepairReport resultado de RepairChain.
type RepairReport struct {
	Key              entity.ProductKey
	PeriodsExamined  int
	PeriodsCorrected int
	Inconsistencies  []Inconsistency
	DryRun           bool
}

// Err devuelve domain.ErrChainInconsistency si la auditoría encontró hallazgos.
func (r RepairReport) Err() error {
	if len(r.Inconsistencies) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %w: %d hallazgos", r.Key, domain.ErrChainInconsistency, len(r.Inconsistencies))
}

// PeriodChainManager mantiene la regla de arrastre: el inicial de cada periodo es el cierre del
// periodo existente inmediatamente anterior del mismo (tenant, producto).
type PeriodChainManager struct {
	repo repository.StockPeriodRepository
	calc inventory.BalanceCalculator
}

// NewPeriodChainManager construye el gestor de cadena.
func NewPeriodChainManager(repo repository.StockPeriodRepository, calc inventory.BalanceCalculator) *PeriodChainManager {
	return &PeriodChainManager{repo: repo, calc: calc}
}

// ResolveOpeningBalance cierre del periodo anterior, o 0 si el producto no tiene historia previa.
// Solo se usa al crear un periodo.
func (m *PeriodChainManager) ResolveOpeningBalance(ctx context.Context, key entity.PeriodKey) (int64, error) {
	prev, err := m.repo.GetPrevious(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return prev.ClosingBalance, nil
}

// PropagateForward carga el periodo key y arrastra su cierre hacia adelante. Si el periodo guardado
// no coincide con su propio recálculo (ej. el inicial se corrigió a mano), primero lo recalcula.
// Devuelve la cantidad de periodos reescritos; una segunda llamada sin escrituras intermedias devuelve 0.
func (m *PeriodChainManager) PropagateForward(ctx context.Context, key entity.PeriodKey) (int, error) {
	from, err := m.repo.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	updated := 0
	if len(m.calc.Verify(from)) > 0 {
		m.calc.Apply(from, from.OpeningBalance)
		if err := m.repo.Put(ctx, from); err != nil {
			return 0, err
		}
		updated++
	}
	n, err := m.propagateFrom(ctx, from)
	return updated + n, err
}

// propagateFrom recorre los periodos siguientes a from mientras su inicial no coincida con el cierre
// del anterior. Se detiene en el primer periodo ya consistente o al final de la cadena.
// Cada periodo se confirma por separado: una falla a mitad de camino deja periodos consistentes
// individualmente y reintentar completa el trabajo.
func (m *PeriodChainManager) propagateFrom(ctx context.Context, from *entity.StockPeriod) (int, error) {
	closing := from.ClosingBalance
	key := from.Key
	updated := 0
	for {
		next, err := m.repo.GetNext(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return updated, nil
		}
		if err != nil {
			return updated, err
		}
		if next.OpeningBalance == closing {
			return updated, nil
		}
		m.calc.Apply(next, closing)
		if err := m.repo.Put(ctx, next); err != nil {
			return updated, err
		}
		updated++
		closing = next.ClosingBalance
		key = next.Key
	}
}

// RepairChain reconcilia la cadena completa del producto. El inicial guardado del primer periodo es
// la verdad (no tiene anterior); cada periodo siguiente se recalcula con el cierre del anterior.
// Solo se escriben los periodos cuyo estado cambia, así una segunda reparación corrige 0.
// Con dryRun no escribe nada y solo informa.
func (m *PeriodChainManager) RepairChain(ctx context.Context, key entity.ProductKey, dryRun bool) (RepairReport, error) {
	report := RepairReport{Key: key, DryRun: dryRun}
	chain, err := m.repo.GetChain(ctx, key)
	if err != nil {
		return report, err
	}

	var prevClosing int64
	for i, stored := range chain {
		report.PeriodsExamined++

		opening := stored.OpeningBalance
		if i > 0 {
			opening = prevClosing
			if stored.OpeningBalance != prevClosing {
				report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
					Period: stored.Key.Period,
					Kind:   InconsistencyChain,
					Detail: fmt.Sprintf("inicial %d, cierre anterior %d", stored.OpeningBalance, prevClosing),
				})
			}
		}
		for _, d := range m.calc.Verify(stored) {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				Period: stored.Key.Period,
				Kind:   InconsistencyBalance,
				Detail: d,
			})
		}

		fixed := stored.Clone()
		m.calc.Apply(fixed, opening)
		prevClosing = fixed.ClosingBalance
		if sameBalances(stored, fixed) {
			continue
		}
		report.PeriodsCorrected++
		if dryRun {
			continue
		}
		if err := m.repo.Put(ctx, fixed); err != nil {
			return report, err
		}
	}
	return report, nil
}

// sameBalances compara los campos derivados de dos versiones del mismo periodo.
func sameBalances(a, b *entity.StockPeriod) bool {
	if a.OpeningBalance != b.OpeningBalance || a.ClosingBalance != b.ClosingBalance ||
		a.TotalAdded != b.TotalAdded || a.TotalUsed != b.TotalUsed ||
		a.TotalExpired != b.TotalExpired || a.TotalDamaged != b.TotalDamaged ||
		a.ClampedEntries != b.ClampedEntries || len(a.Movements) != len(b.Movements) {
		return false
	}
	for i := range a.Movements {
		if a.Movements[i].RunningBalance != b.Movements[i].RunningBalance {
			return false
		}
	}
	return true
}
