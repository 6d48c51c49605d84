package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// GetTenantSummary resumen del mes para todos los productos del tenant, con % de merma por producto.
// Productos sin periodo en ese mes no aparecen.
func (s *LedgerService) GetTenantSummary(ctx context.Context, tenantID string, year int, month time.Month) (dto.TenantSummaryResponse, error) {
	period := entity.Period{Year: year, Month: month}
	out := dto.TenantSummaryResponse{Period: period.String(), Products: []dto.ProductSummaryDTO{}}
	if tenantID == "" || !period.Valid() {
		return out, domain.ErrInvalidInput
	}
	rows, err := s.repo.SummarizeTenant(ctx, tenantID, period)
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		out.Products = append(out.Products, dto.ProductSummaryDTO{
			ProductID:      r.ProductID,
			OpeningBalance: r.OpeningBalance,
			TotalAdded:     r.TotalAdded,
			TotalUsed:      r.TotalUsed,
			TotalExpired:   r.TotalExpired,
			TotalDamaged:   r.TotalDamaged,
			ClosingBalance: r.ClosingBalance,
			WastagePct:     inventory.WastagePct(r.OpeningBalance, r.TotalAdded, r.TotalExpired, r.TotalDamaged),
			MovementCount:  r.MovementCount,
		})
	}
	return out, nil
}
