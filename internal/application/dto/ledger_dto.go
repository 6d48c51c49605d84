package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/ledger/products/:productId/movements.
// Exactamente una cantidad suele ser distinta de cero: added (reposición), used (venta),
// expired (vencimiento) o damaged (daño).
type RecordMovementRequest struct {
	Timestamp       *time.Time `json:"timestamp,omitempty"` // vacío = ahora
	Added           int64      `json:"added"`
	Used            int64      `json:"used"`
	Expired         int64      `json:"expired"`
	Damaged         int64      `json:"damaged"`
	SourceReference string     `json:"source_reference,omitempty"` // ej. id del pedido
}

// MovementEntryDTO movimiento con su saldo parcial.
type MovementEntryDTO struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Kind            string    `json:"kind"`
	Added           int64     `json:"added"`
	Used            int64     `json:"used"`
	Expired         int64     `json:"expired"`
	Damaged         int64     `json:"damaged"`
	RunningBalance  int64     `json:"running_balance"`
	SourceReference string    `json:"source_reference,omitempty"`
}

// StockPeriodDTO periodo mensual completo. Los totales son informativos: no necesariamente
// cumplen closing - opening = added - used - expired - damaged (acotamiento a cero).
type StockPeriodDTO struct {
	TenantID       string             `json:"tenant_id"`
	ProductID      string             `json:"product_id"`
	Year           int                `json:"year"`
	Month          int                `json:"month"`
	OpeningBalance int64              `json:"opening_balance"`
	TotalAdded     int64              `json:"total_added"`
	TotalUsed      int64              `json:"total_used"`
	TotalExpired   int64              `json:"total_expired"`
	TotalDamaged   int64              `json:"total_damaged"`
	ClosingBalance int64              `json:"closing_balance"`
	ClampedEntries int                `json:"clamped_entries"`
	Movements      []MovementEntryDTO `json:"movements,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// RecordMovementResponse respuesta de registrar un movimiento.
type RecordMovementResponse struct {
	Entry             MovementEntryDTO `json:"entry"`
	Period            StockPeriodDTO   `json:"period"`
	RunningBalance    int64            `json:"running_balance"` // saldo inmediatamente después de este movimiento
	ClosingBalance    int64            `json:"closing_balance"` // cierre del periodo (saldo disponible)
	PeriodsPropagated int              `json:"periods_propagated"`
	Warning           string           `json:"warning,omitempty"` // el movimiento quedó guardado pero la propagación no terminó
}

// BalanceResponse saldo actual de un producto.
type BalanceResponse struct {
	ProductID string `json:"product_id"`
	Balance   int64  `json:"balance"`
}

// InconsistencyDTO hallazgo de auditoría.
type InconsistencyDTO struct {
	Period string `json:"period"` // YYYY-MM
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// RepairReportResponse resultado de reparar la cadena de un producto.
type RepairReportResponse struct {
	ProductID        string             `json:"product_id"`
	DryRun           bool               `json:"dry_run"`
	PeriodsExamined  int                `json:"periods_examined"`
	PeriodsCorrected int                `json:"periods_corrected"`
	Inconsistencies  []InconsistencyDTO `json:"inconsistencies"`
}

// ProductSummaryDTO fila del resumen mensual de un tenant.
type ProductSummaryDTO struct {
	ProductID      string          `json:"product_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	TotalAdded     decimal.Decimal `json:"total_added"`
	TotalUsed      decimal.Decimal `json:"total_used"`
	TotalExpired   decimal.Decimal `json:"total_expired"`
	TotalDamaged   decimal.Decimal `json:"total_damaged"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	WastagePct     decimal.Decimal `json:"wastage_pct"` // (expired + damaged) / (opening + added) * 100
	MovementCount  int             `json:"movement_count"`
}

// TenantSummaryResponse resumen mensual de todos los productos de un tenant.
type TenantSummaryResponse struct {
	Period   string              `json:"period"`
	Products []ProductSummaryDTO `json:"products"`
}

// PeriodListResponse página de la cadena de periodos de un producto (orden cronológico).
type PeriodListResponse struct {
	Items []StockPeriodDTO `json:"items"`
	Page  PageResponse     `json:"page"`
}
