package inventory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// RecordMovementFromRequest adapta el request HTTP a RecordMovement(ctx, RecordMovementInput).
// Usar desde handlers HTTP o herramientas que ya tengan tenantID y productID resueltos.
func (s *LedgerService) RecordMovementFromRequest(ctx context.Context, tenantID, productID string, in dto.RecordMovementRequest) (RecordMovementResult, error) {
	input := RecordMovementInput{
		TenantID:  tenantID,
		ProductID: productID,
		Quantities: entity.MovementQuantities{
			Added:   in.Added,
			Used:    in.Used,
			Expired: in.Expired,
			Damaged: in.Damaged,
		},
		SourceReference: in.SourceReference,
	}
	if in.Timestamp != nil {
		input.Timestamp = *in.Timestamp
	}
	return s.RecordMovement(ctx, input)
}

// ToEntryDTO mapea un movimiento a su representación JSON.
func ToEntryDTO(e entity.MovementEntry) dto.MovementEntryDTO {
	return dto.MovementEntryDTO{
		ID:              e.ID,
		Timestamp:       e.Timestamp,
		Kind:            e.Kind(),
		Added:           e.Added,
		Used:            e.Used,
		Expired:         e.Expired,
		Damaged:         e.Damaged,
		RunningBalance:  e.RunningBalance,
		SourceReference: e.SourceReference,
	}
}

// ToPeriodDTO mapea un periodo. withMovements=false omite el detalle (listados).
func ToPeriodDTO(p *entity.StockPeriod, withMovements bool) dto.StockPeriodDTO {
	out := dto.StockPeriodDTO{
		TenantID:       p.Key.TenantID,
		ProductID:      p.Key.ProductID,
		Year:           p.Key.Year,
		Month:          int(p.Key.Month),
		OpeningBalance: p.OpeningBalance,
		TotalAdded:     p.TotalAdded,
		TotalUsed:      p.TotalUsed,
		TotalExpired:   p.TotalExpired,
		TotalDamaged:   p.TotalDamaged,
		ClosingBalance: p.ClosingBalance,
		ClampedEntries: p.ClampedEntries,
		UpdatedAt:      p.UpdatedAt,
	}
	if withMovements {
		out.Movements = make([]dto.MovementEntryDTO, 0, len(p.Movements))
		for _, e := range p.Movements {
			out.Movements = append(out.Movements, ToEntryDTO(e))
		}
	}
	return out
}

// ToRecordMovementResponse mapea el resultado de RecordMovement.
func ToRecordMovementResponse(r RecordMovementResult) dto.RecordMovementResponse {
	out := dto.RecordMovementResponse{
		Entry:             ToEntryDTO(r.Entry),
		RunningBalance:    r.Entry.RunningBalance,
		ClosingBalance:    r.ClosingBalance(),
		PeriodsPropagated: r.PeriodsPropagated,
	}
	if r.Period != nil {
		out.Period = ToPeriodDTO(r.Period, false)
	}
	return out
}

// ToRepairReportResponse mapea un RepairReport.
func ToRepairReportResponse(r RepairReport) dto.RepairReportResponse {
	out := dto.RepairReportResponse{
		ProductID:        r.Key.ProductID,
		DryRun:           r.DryRun,
		PeriodsExamined:  r.PeriodsExamined,
		PeriodsCorrected: r.PeriodsCorrected,
		Inconsistencies:  make([]dto.InconsistencyDTO, 0, len(r.Inconsistencies)),
	}
	for _, inc := range r.Inconsistencies {
		out.Inconsistencies = append(out.Inconsistencies, dto.InconsistencyDTO{
			Period: inc.Period.String(),
			Kind:   inc.Kind,
			Detail: inc.Detail,
		})
	}
	return out
}

// ToPeriodListResponse pagina la cadena ya ordenada. page debe venir con DefaultPage aplicado.
func ToPeriodListResponse(chain []*entity.StockPeriod, page dto.PageRequest) dto.PeriodListResponse {
	out := dto.PeriodListResponse{
		Items: []dto.StockPeriodDTO{},
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(chain)},
	}
	if page.Offset >= len(chain) {
		return out
	}
	end := min(page.Offset+page.Limit, len(chain))
	for _, p := range chain[page.Offset:end] {
		out.Items = append(out.Items, ToPeriodDTO(p, false))
	}
	return out
}
