package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockPeriodRepository puerto del almacén de periodos de stock, por (tenant, producto, año, mes).
// Put es la única mutación (reemplazo completo de un periodo); no hay actualizaciones parciales.
// Las lecturas devuelven copias: modificar el resultado no altera lo almacenado.
type StockPeriodRepository interface {
	// Get devuelve el periodo o domain.ErrNotFound.
	Get(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error)
	// GetPrevious devuelve el periodo existente inmediatamente anterior a key o domain.ErrNotFound.
	GetPrevious(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error)
	// GetNext devuelve el periodo existente inmediatamente posterior a key o domain.ErrNotFound.
	GetNext(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error)
	// GetLatest devuelve el periodo más reciente del producto o domain.ErrNotFound.
	GetLatest(ctx context.Context, key entity.ProductKey) (*entity.StockPeriod, error)
	// GetChain devuelve todos los periodos del producto en orden cronológico (vacío si no hay).
	GetChain(ctx context.Context, key entity.ProductKey) ([]*entity.StockPeriod, error)
	// Put reemplaza el periodo completo. Version 0 = alta; si la versión guardada no coincide
	// devuelve domain.ErrConcurrentModification. En éxito incrementa period.Version.
	// Fallas de E/S se devuelven envueltas en domain.ErrStorageUnavailable.
	Put(ctx context.Context, period *entity.StockPeriod) error
	// SummarizeTenant agrega los periodos de un tenant en un mes (uno por producto).
	SummarizeTenant(ctx context.Context, tenantID string, period entity.Period) ([]ProductPeriodSummary, error)
}

// ProductPeriodSummary fila del resumen mensual de un tenant.
type ProductPeriodSummary struct {
	ProductID      string
	OpeningBalance decimal.Decimal
	TotalAdded     decimal.Decimal
	TotalUsed      decimal.Decimal
	TotalExpired   decimal.Decimal
	TotalDamaged   decimal.Decimal
	ClosingBalance decimal.Decimal
	MovementCount  int
}
