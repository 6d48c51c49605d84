package inventory_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func mv(i int, added, used, expired, damaged int64) entity.MovementEntry {
	return entity.MovementEntry{
		Timestamp: t0.Add(time.Duration(i) * time.Hour),
		MovementQuantities: entity.MovementQuantities{
			Added: added, Used: used, Expired: expired, Damaged: damaged,
		},
	}
}

func runningBalances(ms []entity.MovementEntry) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.RunningBalance
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Política por movimiento
// ──────────────────────────────────────────────────────────────────────────────

// Caso 1: Reposiciones y ventas sin acotamiento.
func TestCompute_PerEntry_SinAcotamiento(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)

	r := calc.Compute(100, []entity.MovementEntry{
		mv(0, 50, 0, 0, 0),
		mv(1, 0, 30, 0, 0),
	})

	assert.Equal(t, []int64{150, 120}, runningBalances(r.Movements))
	assert.Equal(t, int64(120), r.ClosingBalance)
	assert.Equal(t, inventory.Totals{Added: 50, Used: 30}, r.Totals)
	assert.Zero(t, r.ClampedEntries)
}

// Caso 2: Una salida mayor al saldo se acota a cero y la reposición posterior no la compensa.
func TestCompute_PerEntry_AcotaACero(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)

	r := calc.Compute(10, []entity.MovementEntry{
		mv(0, 0, 25, 0, 0),
		mv(1, 5, 0, 0, 0),
	})

	assert.Equal(t, []int64{0, 5}, runningBalances(r.Movements))
	assert.Equal(t, int64(5), r.ClosingBalance)
	assert.Equal(t, 1, r.ClampedEntries)
	// Los totales son sumas simples: no cuadran con cierre - inicial.
	assert.Equal(t, int64(25), r.Totals.Used)
	assert.NotEqual(t, r.ClosingBalance-10, r.Totals.Added-r.Totals.Used)
}

// Sin movimientos el cierre es el inicial.
func TestCompute_SinMovimientos(t *testing.T) {
	calc := inventory.NewBalanceCalculator("")

	r := calc.Compute(42, nil)

	assert.Equal(t, int64(42), r.ClosingBalance)
	assert.Empty(t, r.Movements)
	assert.Equal(t, inventory.PolicyPerEntry, calc.Policy())
}

// Ningún saldo parcial es negativo para cualquier secuencia de movimientos.
func TestCompute_NuncaNegativo(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)
	var ms []entity.MovementEntry
	for i := 0; i < 50; i++ {
		switch i % 4 {
		case 0:
			ms = append(ms, mv(i, int64(i%7), 0, 0, 0))
		case 1:
			ms = append(ms, mv(i, 0, int64(i%11)+1, 0, 0))
		case 2:
			ms = append(ms, mv(i, 0, 0, int64(i%5)+1, 0))
		default:
			ms = append(ms, mv(i, 0, 0, 0, int64(i%3)+1))
		}
	}

	r := calc.Compute(3, ms)

	for i, m := range r.Movements {
		assert.GreaterOrEqual(t, m.RunningBalance, int64(0), "movimiento %d", i)
	}
	assert.GreaterOrEqual(t, r.ClosingBalance, int64(0))
}

// Compute no modifica los movimientos recibidos.
func TestCompute_NoModificaEntrada(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)
	ms := []entity.MovementEntry{mv(0, 5, 0, 0, 0)}

	_ = calc.Compute(1, ms)

	assert.Zero(t, ms[0].RunningBalance)
}

// Dos recálculos con la misma entrada dan exactamente el mismo resultado.
func TestCompute_Determinista(t *testing.T) {
	ms := []entity.MovementEntry{
		mv(0, 0, 7, 0, 0), mv(1, 12, 0, 0, 0), mv(2, 0, 3, 2, 0), mv(3, 0, 0, 0, 20), mv(4, 4, 0, 0, 0),
	}
	for _, policy := range []inventory.Policy{inventory.PolicyPerEntry, inventory.PolicyAggregate} {
		calc := inventory.NewBalanceCalculator(policy)

		first := calc.Compute(5, ms)
		second := calc.Compute(5, ms)

		assert.Equal(t, first, second, string(policy))
	}
}

// Cantidades en el límite de int64: los saldos y totales saturan, nunca cambian de signo.
func TestCompute_SaturaEnLosLimites(t *testing.T) {
	for _, policy := range []inventory.Policy{inventory.PolicyPerEntry, inventory.PolicyAggregate} {
		calc := inventory.NewBalanceCalculator(policy)

		r := calc.Compute(0, []entity.MovementEntry{mv(0, 0, math.MaxInt64, math.MaxInt64, 0)})
		assert.Equal(t, int64(0), r.ClosingBalance, string(policy))
		assert.Equal(t, 1, r.ClampedEntries, string(policy))

		r = calc.Compute(math.MaxInt64, []entity.MovementEntry{mv(0, 1, 0, 0, 0)})
		assert.Equal(t, int64(math.MaxInt64), r.ClosingBalance, string(policy))

		r = calc.Compute(0, []entity.MovementEntry{mv(0, math.MaxInt64, 0, 0, 0), mv(1, math.MaxInt64, 0, 0, 0)})
		assert.Equal(t, int64(math.MaxInt64), r.Totals.Added, string(policy))
		assert.Equal(t, []int64{math.MaxInt64, math.MaxInt64}, runningBalances(r.Movements), string(policy))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Política agregada
// ──────────────────────────────────────────────────────────────────────────────

// La reposición posterior sí compensa una salida anterior; el cierre se acota una sola vez.
func TestCompute_Aggregate(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyAggregate)

	r := calc.Compute(10, []entity.MovementEntry{
		mv(0, 0, 25, 0, 0),
		mv(1, 5, 0, 0, 0),
		mv(2, 20, 0, 0, 0),
	})

	assert.Equal(t, []int64{0, 0, 10}, runningBalances(r.Movements))
	assert.Equal(t, int64(10), r.ClosingBalance)
	assert.Equal(t, 2, r.ClampedEntries)
}

func TestParsePolicy(t *testing.T) {
	p, err := inventory.ParsePolicy("aggregate")
	require.NoError(t, err)
	assert.Equal(t, inventory.PolicyAggregate, p)

	p, err = inventory.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, inventory.PolicyPerEntry, p)

	_, err = inventory.ParsePolicy("fifo")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Apply / Verify
// ──────────────────────────────────────────────────────────────────────────────

func TestApplyYVerify(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)
	key := entity.PeriodKey{
		ProductKey: entity.ProductKey{TenantID: "t1", ProductID: "p1"},
		Period:     entity.Period{Year: 2024, Month: time.March},
	}
	p := entity.NewStockPeriod(key, 100, t0)
	p.Movements = []entity.MovementEntry{mv(0, 50, 0, 0, 0), mv(1, 0, 30, 0, 0)}

	assert.NotEmpty(t, calc.Verify(p), "sin recalcular los saldos parciales no coinciden")

	calc.Apply(p, 100)
	assert.Empty(t, calc.Verify(p))
	assert.Equal(t, int64(120), p.ClosingBalance)

	// Cambiar el inicial recalcula todo el periodo.
	calc.Apply(p, 0)
	assert.Equal(t, []int64{50, 20}, runningBalances(p.Movements))
	assert.Equal(t, int64(20), p.ClosingBalance)

	p.ClosingBalance = 999
	diffs := calc.Verify(p)
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "cierre")
}

// Recalcular desde el inicial guardado es idempotente.
func TestApply_Idempotente(t *testing.T) {
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)
	p := &entity.StockPeriod{Movements: []entity.MovementEntry{mv(0, 0, 7, 0, 0), mv(1, 3, 0, 0, 0)}}

	calc.Apply(p, 4)
	first := p.Clone()
	calc.Apply(p, p.OpeningBalance)

	assert.Equal(t, first, p)
}
