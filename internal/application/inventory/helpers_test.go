package inventory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testTenant  = "teatro-1"
	testProduct = "popcorn-grande"
)

var testProductKey = entity.ProductKey{TenantID: testTenant, ProductID: testProduct}

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func periodKey(year int, month time.Month) entity.PeriodKey {
	return entity.PeriodKey{ProductKey: testProductKey, Period: entity.Period{Year: year, Month: month}}
}

func newService(repo repository.StockPeriodRepository, cfg app.LedgerConfig) *app.LedgerService {
	return app.NewLedgerService(repo, lock.NewKeyedMutex(), cfg, nil, nil)
}

func record(t *testing.T, s *app.LedgerService, ts time.Time, q entity.MovementQuantities) app.RecordMovementResult {
	t.Helper()
	res, err := s.RecordMovement(context.Background(), app.RecordMovementInput{
		TenantID:   testTenant,
		ProductID:  testProduct,
		Timestamp:  ts,
		Quantities: q,
	})
	require.NoError(t, err)
	return res
}

func added(n int64) entity.MovementQuantities   { return entity.MovementQuantities{Added: n} }
func used(n int64) entity.MovementQuantities    { return entity.MovementQuantities{Used: n} }
func expired(n int64) entity.MovementQuantities { return entity.MovementQuantities{Expired: n} }
func damaged(n int64) entity.MovementQuantities { return entity.MovementQuantities{Damaged: n} }

func mustGet(t *testing.T, repo repository.StockPeriodRepository, key entity.PeriodKey) *entity.StockPeriod {
	t.Helper()
	p, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	return p
}

// requireConsistentChain verifica la regla de arrastre y que cada periodo coincide con su recálculo.
func requireConsistentChain(t *testing.T, repo repository.StockPeriodRepository, key entity.ProductKey) {
	t.Helper()
	calc := inventory.NewBalanceCalculator(inventory.PolicyPerEntry)
	chain, err := repo.GetChain(context.Background(), key)
	require.NoError(t, err)
	for i, p := range chain {
		require.Empty(t, calc.Verify(p), "periodo %s", p.Key)
		if i > 0 {
			require.Equal(t, chain[i-1].ClosingBalance, p.OpeningBalance, "arrastre hacia %s", p.Key)
		}
		for _, m := range p.Movements {
			require.GreaterOrEqual(t, m.RunningBalance, int64(0))
		}
	}
}

// faultyRepo envuelve el almacén en memoria e inyecta fallas de almacenamiento.
type faultyRepo struct {
	*memory.StockPeriodRepo

	mu          sync.Mutex
	failPuts    int // próximas n llamadas a Put fallan
	failGetNext int // próximas n llamadas a GetNext fallan
	puts        int
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{StockPeriodRepo: memory.NewStockPeriodRepository()}
}

func (r *faultyRepo) FailPuts(n int) {
	r.mu.Lock()
	r.failPuts = n
	r.mu.Unlock()
}

func (r *faultyRepo) FailGetNext(n int) {
	r.mu.Lock()
	r.failGetNext = n
	r.mu.Unlock()
}

func (r *faultyRepo) Puts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}

func (r *faultyRepo) Put(ctx context.Context, p *entity.StockPeriod) error {
	r.mu.Lock()
	if r.failPuts > 0 {
		r.failPuts--
		r.mu.Unlock()
		return fmt.Errorf("put %s: %w", p.Key, domain.ErrStorageUnavailable)
	}
	r.puts++
	r.mu.Unlock()
	return r.StockPeriodRepo.Put(ctx, p)
}

func (r *faultyRepo) GetNext(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	r.mu.Lock()
	if r.failGetNext > 0 {
		r.failGetNext--
		r.mu.Unlock()
		return nil, fmt.Errorf("get next %s: %w", key, domain.ErrStorageUnavailable)
	}
	r.mu.Unlock()
	return r.StockPeriodRepo.GetNext(ctx, key)
}
