package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockPeriodRepository = (*StockPeriodRepo)(nil)

const periodColumns = `tenant_id, product_id, year, month, opening_balance, movements,
	total_added, total_used, total_expired, total_damaged, closing_balance, clamped_entries,
	version, created_at, updated_at`

// StockPeriodRepo implementación de StockPeriodRepository sobre PostgreSQL (usable con pool o tx).
// Un registro por (tenant, producto, año, mes); los movimientos van en una columna JSONB.
type StockPeriodRepo struct {
	q Querier
}

// NewStockPeriodRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockPeriodRepository(q Querier) *StockPeriodRepo {
	return &StockPeriodRepo{q: q}
}

func scanPeriod(row pgx.Row) (*entity.StockPeriod, error) {
	var p entity.StockPeriod
	var month int
	err := row.Scan(
		&p.Key.TenantID, &p.Key.ProductID, &p.Key.Year, &month, &p.OpeningBalance, &p.Movements,
		&p.TotalAdded, &p.TotalUsed, &p.TotalExpired, &p.TotalDamaged, &p.ClosingBalance, &p.ClampedEntries,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Key.Month = time.Month(month)
	return &p, nil
}

func (r *StockPeriodRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockPeriod, error) {
	p, err := scanPeriod(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return p, nil
}

// Get obtiene un periodo por su clave.
func (r *StockPeriodRepo) Get(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM stock_periods
		WHERE tenant_id = $1 AND product_id = $2 AND year = $3 AND month = $4`
	return r.getOne(ctx, "get stock period", query, key.TenantID, key.ProductID, key.Year, int(key.Month))
}

// GetPrevious obtiene el periodo existente inmediatamente anterior.
func (r *StockPeriodRepo) GetPrevious(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM stock_periods
		WHERE tenant_id = $1 AND product_id = $2 AND (year, month) < ($3, $4)
		ORDER BY year DESC, month DESC
		LIMIT 1`
	return r.getOne(ctx, "get previous stock period", query, key.TenantID, key.ProductID, key.Year, int(key.Month))
}

// GetNext obtiene el periodo existente inmediatamente posterior.
func (r *StockPeriodRepo) GetNext(ctx context.Context, key entity.PeriodKey) (*entity.StockPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM stock_periods
		WHERE tenant_id = $1 AND product_id = $2 AND (year, month) > ($3, $4)
		ORDER BY year, month
		LIMIT 1`
	return r.getOne(ctx, "get next stock period", query, key.TenantID, key.ProductID, key.Year, int(key.Month))
}

// GetLatest obtiene el periodo más reciente del producto.
func (r *StockPeriodRepo) GetLatest(ctx context.Context, key entity.ProductKey) (*entity.StockPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM stock_periods
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY year DESC, month DESC
		LIMIT 1`
	return r.getOne(ctx, "get latest stock period", query, key.TenantID, key.ProductID)
}

// GetChain lista todos los periodos del producto en orden cronológico.
func (r *StockPeriodRepo) GetChain(ctx context.Context, key entity.ProductKey) ([]*entity.StockPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM stock_periods
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY year, month`
	rows, err := r.q.Query(ctx, query, key.TenantID, key.ProductID)
	if err != nil {
		return nil, wrapErr("get stock period chain", err)
	}
	defer rows.Close()
	var list []*entity.StockPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, wrapErr("scan stock period", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("get stock period chain", err)
	}
	return list, nil
}

// Put reemplaza el periodo completo en una sola sentencia (todo o nada).
// Alta con ON CONFLICT DO NOTHING; actualización condicionada a la versión leída.
func (r *StockPeriodRepo) Put(ctx context.Context, period *entity.StockPeriod) error {
	if period == nil || !period.Key.Period.Valid() {
		return domain.ErrInvalidInput
	}
	movements := period.Movements
	if movements == nil {
		movements = []entity.MovementEntry{}
	}
	k := period.Key
	args := []any{
		k.TenantID, k.ProductID, k.Year, int(k.Month), period.OpeningBalance, movements,
		period.TotalAdded, period.TotalUsed, period.TotalExpired, period.TotalDamaged,
		period.ClosingBalance, period.ClampedEntries,
	}

	var query string
	if period.Version == 0 {
		query = `
			INSERT INTO stock_periods (tenant_id, product_id, year, month, opening_balance, movements,
				total_added, total_used, total_expired, total_damaged, closing_balance, clamped_entries,
				version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, now(), now())
			ON CONFLICT (tenant_id, product_id, year, month) DO NOTHING`
	} else {
		query = `
			UPDATE stock_periods SET
				opening_balance = $5, movements = $6,
				total_added = $7, total_used = $8, total_expired = $9, total_damaged = $10,
				closing_balance = $11, clamped_entries = $12,
				version = version + 1, updated_at = now()
			WHERE tenant_id = $1 AND product_id = $2 AND year = $3 AND month = $4 AND version = $13`
		args = append(args, period.Version)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return wrapErr("put stock period", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("put %s (versión %d): %w", k, period.Version, domain.ErrConcurrentModification)
	}
	now := time.Now()
	if period.Version == 0 {
		period.CreatedAt = now
	}
	period.Version++
	period.UpdatedAt = now
	return nil
}

// SummarizeTenant resumen de un mes de un tenant por producto. Las cantidades se leen como NUMERIC
// (codec shopspring/decimal registrado en el pool).
func (r *StockPeriodRepo) SummarizeTenant(ctx context.Context, tenantID string, period entity.Period) ([]repository.ProductPeriodSummary, error) {
	query := `
		SELECT product_id,
			opening_balance::numeric, total_added::numeric, total_used::numeric,
			total_expired::numeric, total_damaged::numeric, closing_balance::numeric,
			jsonb_array_length(movements)
		FROM stock_periods
		WHERE tenant_id = $1 AND year = $2 AND month = $3
		ORDER BY product_id`
	rows, err := r.q.Query(ctx, query, tenantID, period.Year, int(period.Month))
	if err != nil {
		return nil, wrapErr("summarize tenant", err)
	}
	defer rows.Close()
	var list []repository.ProductPeriodSummary
	for rows.Next() {
		var s repository.ProductPeriodSummary
		if err := rows.Scan(&s.ProductID, &s.OpeningBalance, &s.TotalAdded, &s.TotalUsed,
			&s.TotalExpired, &s.TotalDamaged, &s.ClosingBalance, &s.MovementCount); err != nil {
			return nil, wrapErr("scan tenant summary", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("summarize tenant", err)
	}
	return list, nil
}
