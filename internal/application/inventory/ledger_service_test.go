package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	app "github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// RecordMovement: saldos
// ──────────────────────────────────────────────────────────────────────────────

// Caso 1: Periodo nuevo sin historia parte de cero.
func TestRecordMovement_PrimerMovimiento(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	res := record(t, s, at(2024, time.March, 1), added(100))

	assert.Equal(t, int64(100), res.ClosingBalance())
	assert.Equal(t, int64(100), res.Entry.RunningBalance)
	assert.NotEmpty(t, res.Entry.ID)
	assert.Equal(t, entity.MovementKindAdded, res.Entry.Kind())
	assert.Zero(t, res.PeriodsPropagated)

	p := mustGet(t, repo, periodKey(2024, time.March))
	assert.Zero(t, p.OpeningBalance)
	assert.Equal(t, int64(100), p.ClosingBalance)
}

// Caso 2: Reposición y venta en el mismo mes: 100 + 50 - 30 = 120.
func TestRecordMovement_SaldosParciales(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.February, 20), added(100))
	record(t, s, at(2024, time.March, 2), added(50))
	res := record(t, s, at(2024, time.March, 3), used(30))

	assert.Equal(t, int64(120), res.ClosingBalance())
	p := mustGet(t, repo, periodKey(2024, time.March))
	assert.Equal(t, int64(100), p.OpeningBalance)
	assert.Equal(t, int64(50), p.TotalAdded)
	assert.Equal(t, int64(30), p.TotalUsed)
	require.Len(t, p.Movements, 2)
	assert.Equal(t, int64(150), p.Movements[0].RunningBalance)
	assert.Equal(t, int64(120), p.Movements[1].RunningBalance)
}

// Caso 3: Una venta mayor al saldo se acota a cero; la reposición posterior no la compensa.
func TestRecordMovement_AcotaACero(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.February, 1), added(10))
	res := record(t, s, at(2024, time.March, 1), used(25))
	assert.Equal(t, int64(0), res.ClosingBalance())

	res = record(t, s, at(2024, time.March, 2), added(5))
	assert.Equal(t, int64(5), res.ClosingBalance())

	p := mustGet(t, repo, periodKey(2024, time.March))
	assert.Equal(t, 1, p.ClampedEntries)
	assert.Equal(t, int64(25), p.TotalUsed)
}

// Con la política agregada la reposición posterior sí compensa.
func TestRecordMovement_PoliticaAgregada(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{Policy: "aggregate"})

	record(t, s, at(2024, time.March, 1), added(10))
	record(t, s, at(2024, time.March, 2), used(25))
	res := record(t, s, at(2024, time.March, 3), added(20))

	assert.Equal(t, int64(5), res.ClosingBalance())
}

// Caso 4: Inicial arrastrado del periodo anterior existente (cierre de febrero 120).
func TestRecordMovement_InicialArrastrado(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.February, 3), added(150))
	record(t, s, at(2024, time.February, 4), damaged(30))

	res := record(t, s, at(2024, time.March, 1), expired(20))

	assert.Equal(t, int64(120), res.Period.OpeningBalance)
	assert.Equal(t, int64(100), res.ClosingBalance())
}

// Un hueco de meses se salta: el inicial es el cierre del periodo existente inmediatamente anterior.
func TestRecordMovement_InicialSaltaHuecos(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2023, time.November, 3), added(40))
	res := record(t, s, at(2024, time.April, 1), used(1))

	assert.Equal(t, int64(40), res.Period.OpeningBalance)
	assert.Equal(t, int64(39), res.ClosingBalance())
}

// Un movimiento con fecha anterior se inserta en orden cronológico y el periodo se recalcula completo.
func TestRecordMovement_FechaAnteriorDentroDelMes(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.March, 10), used(5))
	res := record(t, s, at(2024, time.March, 5), added(10))

	p := mustGet(t, repo, periodKey(2024, time.March))
	require.Len(t, p.Movements, 2)
	assert.Equal(t, int64(10), p.Movements[0].Added)
	assert.Equal(t, int64(10), p.Movements[0].RunningBalance)
	assert.Equal(t, int64(5), p.Movements[1].RunningBalance)
	assert.Zero(t, p.ClampedEntries)
	assert.Equal(t, int64(10), res.Entry.RunningBalance)
	assert.Equal(t, int64(5), res.ClosingBalance())

	out := app.ToRecordMovementResponse(res)
	assert.Equal(t, int64(10), out.RunningBalance)
	assert.Equal(t, int64(5), out.ClosingBalance)
}

// El mes se decide en la zona configurada.
func TestRecordMovement_ZonaHoraria(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{Location: bogota})

	record(t, s, time.Date(2024, time.April, 1, 2, 0, 0, 0, time.UTC), added(3))

	_, err = repo.Get(context.Background(), periodKey(2024, time.March))
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// RecordMovement: propagación
// ──────────────────────────────────────────────────────────────────────────────

// Caso 5: Movimiento en octubre con noviembre y diciembre existentes.
func TestRecordMovement_PropagaHaciaAdelante(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.October, 10), added(50))
	record(t, s, at(2024, time.November, 10), used(20))
	record(t, s, at(2024, time.December, 10), added(5))

	res := record(t, s, at(2024, time.October, 20), added(10))

	assert.Equal(t, 2, res.PeriodsPropagated)
	nov := mustGet(t, repo, periodKey(2024, time.November))
	dec := mustGet(t, repo, periodKey(2024, time.December))
	assert.Equal(t, int64(60), nov.OpeningBalance)
	assert.Equal(t, int64(40), nov.ClosingBalance)
	assert.Equal(t, int64(40), dec.OpeningBalance)
	assert.Equal(t, int64(45), dec.ClosingBalance)
	requireConsistentChain(t, repo, testProductKey)

	balance, err := s.GetCurrentBalance(context.Background(), testTenant, testProduct)
	require.NoError(t, err)
	assert.Equal(t, int64(45), balance)
}

// La propagación se detiene en el primer periodo cuyo inicial ya coincide.
func TestRecordMovement_PropagacionSeDetiene(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.October, 5), added(50))
	record(t, s, at(2024, time.November, 5), used(100)) // se acota a 0
	record(t, s, at(2024, time.December, 5), added(5))
	decBefore := mustGet(t, repo, periodKey(2024, time.December))

	res := record(t, s, at(2024, time.October, 6), added(10))

	assert.Equal(t, 1, res.PeriodsPropagated)
	nov := mustGet(t, repo, periodKey(2024, time.November))
	assert.Equal(t, int64(60), nov.OpeningBalance)
	assert.Equal(t, int64(0), nov.ClosingBalance)
	decAfter := mustGet(t, repo, periodKey(2024, time.December))
	assert.Equal(t, decBefore.Version, decAfter.Version, "diciembre no se reescribe")
}

// Un mes anterior a toda la historia se crea con inicial 0 y desplaza la cadena.
func TestRecordMovement_NuevoPrimerPeriodo(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})

	record(t, s, at(2024, time.November, 3), added(10))
	res := record(t, s, at(2024, time.September, 3), added(5))

	assert.Zero(t, res.Period.OpeningBalance)
	assert.Equal(t, 1, res.PeriodsPropagated)
	nov := mustGet(t, repo, periodKey(2024, time.November))
	assert.Equal(t, int64(5), nov.OpeningBalance)
	assert.Equal(t, int64(15), nov.ClosingBalance)
}

// Para cualquier orden de registro la cadena queda consistente.
func TestRecordMovement_CadenaConsistente(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})
	months := []time.Month{time.June, time.March, time.August, time.January, time.March, time.June, time.February}

	for i, m := range months {
		q := added(int64(10 + i))
		if i%2 == 1 {
			q = used(int64(7 * i))
		}
		record(t, s, at(2024, m, 1+i), q)
		requireConsistentChain(t, repo, testProductKey)
	}

	chain, err := s.ListChain(context.Background(), testTenant, testProduct)
	require.NoError(t, err)
	assert.Len(t, chain, 5)
}

// ──────────────────────────────────────────────────────────────────────────────
// RecordMovement: errores
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_MovimientoInvalido(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})
	ctx := context.Background()

	for _, q := range []entity.MovementQuantities{
		{}, {Used: -3}, {Added: 5, Damaged: -1}, {Added: entity.MaxMovementQuantity + 1},
	} {
		_, err := s.RecordMovement(ctx, app.RecordMovementInput{
			TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.March, 1), Quantities: q,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidMovement)
	}

	chain, err := repo.GetChain(ctx, testProductKey)
	require.NoError(t, err)
	assert.Empty(t, chain, "no se crea ningún periodo")

	_, err = s.RecordMovement(ctx, app.RecordMovementInput{ProductID: testProduct, Quantities: added(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateMovement_Tope(t *testing.T) {
	assert.NoError(t, app.ValidateMovement(entity.MovementQuantities{Used: entity.MaxMovementQuantity}))

	err := app.ValidateMovement(entity.MovementQuantities{Expired: entity.MaxMovementQuantity + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMovement)
}

// Falla de almacenamiento al guardar: no queda estado parcial y se puede reintentar.
func TestRecordMovement_AlmacenamientoNoDisponible(t *testing.T) {
	repo := newFaultyRepo()
	s := newService(repo, app.LedgerConfig{})
	ctx := context.Background()
	record(t, s, at(2024, time.March, 1), added(10))

	repo.FailPuts(1)
	_, err := s.RecordMovement(ctx, app.RecordMovementInput{
		TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.March, 2), Quantities: used(4),
	})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.True(t, domain.IsRetryable(err))

	p := mustGet(t, repo, periodKey(2024, time.March))
	assert.Len(t, p.Movements, 1)
	assert.Equal(t, int64(10), p.ClosingBalance)

	res := record(t, s, at(2024, time.March, 2), used(4))
	assert.Equal(t, int64(6), res.ClosingBalance())
}

// Una falla transitoria durante la propagación se reintenta.
func TestRecordMovement_ReintentaPropagacion(t *testing.T) {
	repo := newFaultyRepo()
	s := newService(repo, app.LedgerConfig{PropagationRetries: 2})

	record(t, s, at(2024, time.October, 1), added(50))
	record(t, s, at(2024, time.November, 1), used(10))

	repo.FailGetNext(1)
	res := record(t, s, at(2024, time.October, 2), added(5))

	assert.Equal(t, 1, res.PeriodsPropagated)
	assert.Equal(t, int64(55), mustGet(t, repo, periodKey(2024, time.November)).OpeningBalance)
}

// Sin reintentos disponibles el movimiento queda guardado y se informa la propagación incompleta.
func TestRecordMovement_PropagacionIncompleta(t *testing.T) {
	repo := newFaultyRepo()
	s := newService(repo, app.LedgerConfig{PropagationRetries: 0})
	ctx := context.Background()

	record(t, s, at(2024, time.October, 1), added(50))
	record(t, s, at(2024, time.November, 1), used(10))

	repo.FailGetNext(1)
	res, err := s.RecordMovement(ctx, app.RecordMovementInput{
		TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.October, 2), Quantities: added(5),
	})
	require.ErrorIs(t, err, domain.ErrPropagationIncomplete)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.False(t, domain.IsRetryable(err), "reintentar duplicaría el movimiento")
	require.NotNil(t, res.Period)
	assert.Equal(t, int64(55), res.ClosingBalance())
	assert.Equal(t, int64(50), mustGet(t, repo, periodKey(2024, time.November)).OpeningBalance)

	// La reparación completa la propagación pendiente.
	report, err := s.RepairProduct(ctx, testTenant, testProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PeriodsCorrected)
	assert.ErrorIs(t, report.Err(), domain.ErrChainInconsistency)
	requireConsistentChain(t, repo, testProductKey)
}

// La siguiente escritura sobre el producto también completa una propagación pendiente.
func TestRecordMovement_SiguienteEscrituraCompletaPropagacion(t *testing.T) {
	repo := newFaultyRepo()
	s := newService(repo, app.LedgerConfig{})
	ctx := context.Background()

	record(t, s, at(2024, time.October, 1), added(50))
	record(t, s, at(2024, time.November, 1), used(10))
	repo.FailGetNext(1)
	_, err := s.RecordMovement(ctx, app.RecordMovementInput{
		TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.October, 2), Quantities: added(5),
	})
	require.ErrorIs(t, err, domain.ErrPropagationIncomplete)

	record(t, s, at(2024, time.October, 3), added(1))

	requireConsistentChain(t, repo, testProductKey)
	assert.Equal(t, int64(56), mustGet(t, repo, periodKey(2024, time.November)).OpeningBalance)
}

func TestRecordMovement_TiempoDeEsperaDelBloqueo(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	km := lock.NewKeyedMutex()
	s := app.NewLedgerService(repo, km, app.LedgerConfig{LockWait: 20 * time.Millisecond}, nil, nil)
	ctx := context.Background()

	unlock, err := km.Lock(ctx, testProductKey.String())
	require.NoError(t, err)
	defer unlock()

	_, err = s.RecordMovement(ctx, app.RecordMovementInput{
		TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.March, 1), Quantities: added(1),
	})
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))

	// Otro producto no espera.
	_, err = s.RecordMovement(ctx, app.RecordMovementInput{
		TenantID: testTenant, ProductID: "otro", Timestamp: at(2024, time.March, 1), Quantities: added(1),
	})
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

// Caso 6: Dos ventas concurrentes de 5 con inicial 8: ambas se aplican y el cierre es 0.
func TestRecordMovement_VentasConcurrentes(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})
	record(t, s, at(2024, time.February, 1), added(8))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RecordMovement(context.Background(), app.RecordMovementInput{
				TenantID: testTenant, ProductID: testProduct, Timestamp: at(2024, time.March, 1+i), Quantities: used(5),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	p := mustGet(t, repo, periodKey(2024, time.March))
	assert.Len(t, p.Movements, 2)
	assert.Equal(t, int64(8), p.OpeningBalance)
	assert.Equal(t, int64(0), p.ClosingBalance)
	assert.Equal(t, int64(10), p.TotalUsed)
}

// Muchas escrituras concurrentes sobre el mismo producto no pierden movimientos.
func TestRecordMovement_SinPerdidaDeActualizaciones(t *testing.T) {
	repo := memory.NewStockPeriodRepository()
	s := newService(repo, app.LedgerConfig{})
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RecordMovement(context.Background(), app.RecordMovementInput{
				TenantID:   testTenant,
				ProductID:  testProduct,
				Timestamp:  at(2024, time.Month(1+i%3), 1+i%20),
				Quantities: added(1),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, err := s.GetCurrentBalance(context.Background(), testTenant, testProduct)
	require.NoError(t, err)
	assert.Equal(t, int64(n), balance)
	requireConsistentChain(t, repo, testProductKey)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestGetCurrentBalance_SinHistoria(t *testing.T) {
	s := newService(memory.NewStockPeriodRepository(), app.LedgerConfig{})

	balance, err := s.GetCurrentBalance(context.Background(), testTenant, "nuevo")

	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGetPeriod(t *testing.T) {
	s := newService(memory.NewStockPeriodRepository(), app.LedgerConfig{})
	ctx := context.Background()
	record(t, s, at(2024, time.March, 1), added(3))

	p, err := s.GetPeriod(ctx, testTenant, testProduct, 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ClosingBalance)

	_, err = s.GetPeriod(ctx, testTenant, testProduct, 2024, time.April)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetPeriod(ctx, testTenant, testProduct, 2024, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordMovementFromRequest(t *testing.T) {
	s := newService(memory.NewStockPeriodRepository(), app.LedgerConfig{})
	ts := at(2024, time.May, 4)

	res, err := s.RecordMovementFromRequest(context.Background(), testTenant, testProduct, dto.RecordMovementRequest{
		Timestamp:       &ts,
		Added:           12,
		SourceReference: "orden-778",
	})
	require.NoError(t, err)

	out := app.ToRecordMovementResponse(res)
	assert.Equal(t, int64(12), out.RunningBalance)
	assert.Equal(t, int64(12), out.ClosingBalance)
	assert.Equal(t, "orden-778", out.Entry.SourceReference)
	assert.Equal(t, entity.MovementKindAdded, out.Entry.Kind)
	assert.Equal(t, 5, out.Period.Month)
	assert.Empty(t, out.Period.Movements)
}

func TestGetTenantSummary(t *testing.T) {
	s := newService(memory.NewStockPeriodRepository(), app.LedgerConfig{})
	ctx := context.Background()
	record(t, s, at(2024, time.March, 1), added(80))
	record(t, s, at(2024, time.March, 2), expired(6))
	record(t, s, at(2024, time.March, 3), damaged(2))

	sum, err := s.GetTenantSummary(ctx, testTenant, 2024, time.March)
	require.NoError(t, err)

	assert.Equal(t, "2024-03", sum.Period)
	require.Len(t, sum.Products, 1)
	row := sum.Products[0]
	assert.Equal(t, testProduct, row.ProductID)
	assert.Equal(t, "10", row.WastagePct.String())
	assert.Equal(t, 3, row.MovementCount)

	_, err = s.GetTenantSummary(ctx, "", 2024, time.March)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
