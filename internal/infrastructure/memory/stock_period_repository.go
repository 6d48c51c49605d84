// Package memory implementa el almacén de periodos en memoria (modo desarrollo y pruebas).
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockPeriodRepository = (*StockPeriodRepo)(nil)

// StockPeriodRepo guarda los periodos por producto, ordenados cronológicamente.
type StockPeriodRepo struct {
	mu     sync.RWMutex
	chains map[entity.ProductKey][]*entity.StockPeriod
	now    func() time.Time
}

// NewStockPeriodRepository construye el almacén vacío.
func NewStockPeriodRepository() *StockPeriodRepo {
	return &StockPeriodRepo{
		chains: make(map[entity.ProductKey][]*entity.StockPeriod),
		now:    time.Now,
	}
}

// find devuelve la posición de period en la cadena (o donde se insertaría) y si existe.
func find(chain []*entity.StockPeriod, period entity.Period) (int, bool) {
	i := sort.Search(len(chain), func(i int) bool {
		return !chain[i].Key.Period.Before(period)
	})
	return i, i < len(chain) && chain[i].Key.Period == period
}

func (r *StockPeriodRepo) Get(_ context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[key.ProductKey]
	i, ok := find(chain, key.Period)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return chain[i].Clone(), nil
}

func (r *StockPeriodRepo) GetPrevious(_ context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[key.ProductKey]
	i, _ := find(chain, key.Period)
	if i == 0 {
		return nil, domain.ErrNotFound
	}
	return chain[i-1].Clone(), nil
}

func (r *StockPeriodRepo) GetNext(_ context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[key.ProductKey]
	i, ok := find(chain, key.Period)
	if ok {
		i++
	}
	if i >= len(chain) {
		return nil, domain.ErrNotFound
	}
	return chain[i].Clone(), nil
}

func (r *StockPeriodRepo) GetLatest(_ context.Context, key entity.ProductKey) (*entity.StockPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[key]
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}
	return chain[len(chain)-1].Clone(), nil
}

func (r *StockPeriodRepo) GetChain(_ context.Context, key entity.ProductKey) ([]*entity.StockPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[key]
	out := make([]*entity.StockPeriod, 0, len(chain))
	for _, p := range chain {
		out = append(out, p.Clone())
	}
	return out, nil
}

// Put reemplaza el periodo completo verificando la versión (concurrencia optimista).
func (r *StockPeriodRepo) Put(_ context.Context, period *entity.StockPeriod) error {
	if period == nil || !period.Key.Period.Valid() {
		return domain.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := period.Key.ProductKey
	chain := r.chains[key]
	i, ok := find(chain, period.Key.Period)
	var stored int64
	if ok {
		stored = chain[i].Version
	}
	if stored != period.Version {
		return fmt.Errorf("put %s (versión %d, guardada %d): %w", period.Key, period.Version, stored, domain.ErrConcurrentModification)
	}

	period.Version++
	period.UpdatedAt = r.now()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = period.UpdatedAt
	}
	c := period.Clone()
	// Las claves se guardan con memoria propia: el caller puede traerlas de un buffer reutilizable.
	c.Key.TenantID = strings.Clone(c.Key.TenantID)
	c.Key.ProductID = strings.Clone(c.Key.ProductID)
	key = c.Key.ProductKey
	if ok {
		chain[i] = c
		return nil
	}
	chain = append(chain, nil)
	copy(chain[i+1:], chain[i:])
	chain[i] = c
	r.chains[key] = chain
	return nil
}

// SummarizeTenant resume un mes de un tenant, un registro por producto (orden por producto).
func (r *StockPeriodRepo) SummarizeTenant(_ context.Context, tenantID string, period entity.Period) ([]repository.ProductPeriodSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.ProductPeriodSummary
	for key, chain := range r.chains {
		if key.TenantID != tenantID {
			continue
		}
		i, ok := find(chain, period)
		if !ok {
			continue
		}
		p := chain[i]
		out = append(out, repository.ProductPeriodSummary{
			ProductID:      key.ProductID,
			OpeningBalance: decimal.NewFromInt(p.OpeningBalance),
			TotalAdded:     decimal.NewFromInt(p.TotalAdded),
			TotalUsed:      decimal.NewFromInt(p.TotalUsed),
			TotalExpired:   decimal.NewFromInt(p.TotalExpired),
			TotalDamaged:   decimal.NewFromInt(p.TotalDamaged),
			ClosingBalance: decimal.NewFromInt(p.ClosingBalance),
			MovementCount:  len(p.Movements),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ProductID < out[b].ProductID })
	return out, nil
}
