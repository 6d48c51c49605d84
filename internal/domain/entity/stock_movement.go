package entity

import (
	"math"
	"time"
)

// Tipos de movimiento derivados de las cantidades (solo informativo; el libro no los interpreta).
const (
	MovementKindAdded   = "added"   // reposición / entrada
	MovementKindUsed    = "used"    // venta / consumo
	MovementKindExpired = "expired" // baja por vencimiento
	MovementKindDamaged = "damaged" // baja por daño
	MovementKindMixed   = "mixed"   // más de una cantidad distinta de cero
)

// MaxMovementQuantity tope de cada cantidad de un movimiento.
const MaxMovementQuantity int64 = 1_000_000_000_000

// MovementQuantities cantidades de un movimiento. Normalmente solo una es distinta de cero.
type MovementQuantities struct {
	Added   int64 `json:"added"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
	Damaged int64 `json:"damaged"`
}

// Net devuelve added - used - expired - damaged (sin acotar). Satura en los límites de int64.
func (q MovementQuantities) Net() int64 {
	return saturatingSub(q.Added, SaturatingAdd(SaturatingAdd(q.Used, q.Expired), q.Damaged))
}

// ExceedsMax indica si alguna cantidad supera MaxMovementQuantity.
func (q MovementQuantities) ExceedsMax() bool {
	return max(q.Added, q.Used, q.Expired, q.Damaged) > MaxMovementQuantity
}

// SaturatingAdd suma a + b acotando el resultado a [math.MinInt64, math.MaxInt64].
func SaturatingAdd(a, b int64) int64 {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}

func saturatingSub(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a - b
	}
	return SaturatingAdd(a, -b)
}

// IsZero indica si las cuatro cantidades son cero.
func (q MovementQuantities) IsZero() bool {
	return q.Added == 0 && q.Used == 0 && q.Expired == 0 && q.Damaged == 0
}

// HasNegative indica si alguna cantidad es negativa.
func (q MovementQuantities) HasNegative() bool {
	return q.Added < 0 || q.Used < 0 || q.Expired < 0 || q.Damaged < 0
}

// Kind etiqueta el movimiento según la cantidad distinta de cero.
func (q MovementQuantities) Kind() string {
	kind, n := "", 0
	for _, c := range []struct {
		qty  int64
		kind string
	}{
		{q.Added, MovementKindAdded},
		{q.Used, MovementKindUsed},
		{q.Expired, MovementKindExpired},
		{q.Damaged, MovementKindDamaged},
	} {
		if c.qty != 0 {
			kind = c.kind
			n++
		}
	}
	if n > 1 {
		return MovementKindMixed
	}
	return kind
}

// MovementEntry un evento registrado dentro de un periodo. Pertenece exclusivamente a su StockPeriod.
type MovementEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	MovementQuantities
	RunningBalance  int64  `json:"runningBalance"`  // derivado; se guarda para lecturas rápidas
	SourceReference string `json:"sourceReference"` // id externo (ej. pedido), no se interpreta
}
