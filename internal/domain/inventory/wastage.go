package inventory

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// WastagePct porcentaje de merma del periodo (servicio de dominio).
// Merma% = (Vencido + Dañado) / (Inicial + Entradas) * 100, redondeado a 2 decimales.
func WastagePct(opening, added, expired, damaged decimal.Decimal) decimal.Decimal {
	base := opening.Add(added)
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return expired.Add(damaged).Div(base).Mul(hundred).Round(2)
}
