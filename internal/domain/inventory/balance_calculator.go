package inventory

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Policy política de acotamiento a cero del saldo.
type Policy string

const (
	// PolicyPerEntry acota cada saldo parcial a cero y arrastra el valor acotado: una salida registrada
	// antes de una reposición no puede "tomar prestado" de la reposición futura.
	PolicyPerEntry Policy = "per_entry"
	// PolicyAggregate acota una sola vez al final: cierre = max(0, inicial + neto acumulado).
	// Los saldos parciales se muestran acotados pero no se arrastra el acotamiento.
	PolicyAggregate Policy = "aggregate"
)

// ParsePolicy convierte el valor de configuración; vacío = PolicyPerEntry.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPerEntry:
		return PolicyPerEntry, nil
	case PolicyAggregate:
		return PolicyAggregate, nil
	}
	return "", fmt.Errorf("política de saldo desconocida: %q", s)
}

// Totals sumas simples (sin acotar) de las cantidades de un periodo. Informativas: pueden no cuadrar
// con cierre - inicial cuando hubo acotamiento.
type Totals struct {
	Added   int64
	Used    int64
	Expired int64
	Damaged int64
}

// Replay resultado de recalcular un periodo.
type Replay struct {
	Movements      []entity.MovementEntry
	Totals         Totals
	ClosingBalance int64
	ClampedEntries int
}

// BalanceCalculator motor de saldos (servicio de dominio puro, sin efectos).
type BalanceCalculator struct {
	policy Policy
}

// NewBalanceCalculator construye el motor con la política indicada (vacía = PolicyPerEntry).
func NewBalanceCalculator(policy Policy) BalanceCalculator {
	if policy == "" {
		policy = PolicyPerEntry
	}
	return BalanceCalculator{policy: policy}
}

// Policy devuelve la política activa.
func (c BalanceCalculator) Policy() Policy { return c.policy }

// Compute recalcula todos los saldos parciales desde openingBalance en orden. No modifica movements:
// devuelve una copia con RunningBalance actualizado.
//
//	running = opening
//	por cada movimiento: running = max(0, running + added - used - expired - damaged)
//	cierre = running (u opening si no hay movimientos)
//
// Las sumas saturan en los límites de int64 en lugar de desbordar.
func (c BalanceCalculator) Compute(openingBalance int64, movements []entity.MovementEntry) Replay {
	out := Replay{
		Movements:      make([]entity.MovementEntry, len(movements)),
		ClosingBalance: openingBalance,
	}
	running := openingBalance
	unclamped := openingBalance
	for i, m := range movements {
		out.Totals.Added = entity.SaturatingAdd(out.Totals.Added, m.Added)
		out.Totals.Used = entity.SaturatingAdd(out.Totals.Used, m.Used)
		out.Totals.Expired = entity.SaturatingAdd(out.Totals.Expired, m.Expired)
		out.Totals.Damaged = entity.SaturatingAdd(out.Totals.Damaged, m.Damaged)

		switch c.policy {
		case PolicyAggregate:
			unclamped = entity.SaturatingAdd(unclamped, m.Net())
			running = max(0, unclamped)
			if unclamped < 0 {
				out.ClampedEntries++
			}
		default:
			next := entity.SaturatingAdd(running, m.Net())
			if next < 0 {
				out.ClampedEntries++
				next = 0
			}
			running = next
		}

		m.RunningBalance = running
		out.Movements[i] = m
	}
	if len(movements) > 0 {
		out.ClosingBalance = running
	}
	return out
}

// Apply recalcula el periodo completo en sitio con un nuevo saldo inicial. Nunca se parchea de forma incremental.
func (c BalanceCalculator) Apply(p *entity.StockPeriod, openingBalance int64) {
	r := c.Compute(openingBalance, p.Movements)
	p.OpeningBalance = openingBalance
	p.Movements = r.Movements
	p.TotalAdded = r.Totals.Added
	p.TotalUsed = r.Totals.Used
	p.TotalExpired = r.Totals.Expired
	p.TotalDamaged = r.Totals.Damaged
	p.ClosingBalance = r.ClosingBalance
	p.ClampedEntries = r.ClampedEntries
}

// Verify compara lo guardado en p contra un recálculo completo. Devuelve las diferencias encontradas
// (saldo parcial, totales o cierre); vacío = el periodo cumple sus invariantes.
func (c BalanceCalculator) Verify(p *entity.StockPeriod) []string {
	r := c.Compute(p.OpeningBalance, p.Movements)
	var diffs []string
	for i, m := range r.Movements {
		if p.Movements[i].RunningBalance != m.RunningBalance {
			diffs = append(diffs, fmt.Sprintf("movimiento %d: saldo %d, esperado %d", i, p.Movements[i].RunningBalance, m.RunningBalance))
		}
	}
	if p.ClosingBalance != r.ClosingBalance {
		diffs = append(diffs, fmt.Sprintf("cierre %d, esperado %d", p.ClosingBalance, r.ClosingBalance))
	}
	if p.TotalAdded != r.Totals.Added || p.TotalUsed != r.Totals.Used ||
		p.TotalExpired != r.Totals.Expired || p.TotalDamaged != r.Totals.Damaged {
		diffs = append(diffs, "totales no coinciden con la suma de movimientos")
	}
	return diffs
}
