package entity

import (
	"fmt"
	"time"
)

// ProductKey identifica la cadena de periodos de un producto dentro de un tenant (teatro).
type ProductKey struct {
	TenantID  string
	ProductID string
}

// String devuelve "tenant/producto"; se usa como clave de bloqueo.
func (k ProductKey) String() string {
	return k.TenantID + "/" + k.ProductID
}

// Period mes calendario (año, mes).
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf devuelve el periodo del instante t en la zona loc (nil = UTC).
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Before indica si p es cronológicamente anterior a o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Valid indica si el mes está en 1..12 y el año es positivo.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Index ordinal del mes (año*12 + mes-1), útil para ordenar.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// String formato YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// PeriodKey clave única e inmutable de un StockPeriod.
type PeriodKey struct {
	ProductKey
	Period
}

// String formato "tenant/producto@YYYY-MM".
func (k PeriodKey) String() string {
	return k.ProductKey.String() + "@" + k.Period.String()
}

// StockPeriod unidad de almacenamiento: movimientos de un (tenant, producto) en un mes calendario,
// con saldo inicial arrastrado del cierre del periodo anterior.
// Totales y saldo de cierre son derivados; solo el motor de saldos los escribe.
type StockPeriod struct {
	Key            PeriodKey
	OpeningBalance int64
	Movements      []MovementEntry
	TotalAdded     int64
	TotalUsed      int64
	TotalExpired   int64
	TotalDamaged   int64
	ClosingBalance int64
	// ClampedEntries cantidad de movimientos cuyo saldo se acotó a cero en el último recálculo.
	ClampedEntries int
	// Version token de concurrencia optimista; 0 = todavía no persistido.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStockPeriod crea un periodo vacío con el saldo inicial indicado.
func NewStockPeriod(key PeriodKey, openingBalance int64, now time.Time) *StockPeriod {
	return &StockPeriod{
		Key:            key,
		OpeningBalance: openingBalance,
		ClosingBalance: openingBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone copia profunda (los movimientos no se comparten entre copias).
func (p *StockPeriod) Clone() *StockPeriod {
	if p == nil {
		return nil
	}
	c := *p
	c.Movements = append([]MovementEntry(nil), p.Movements...)
	return &c
}
