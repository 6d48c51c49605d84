// Package pdf genera el extracto mensual de stock de un producto.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Tenant + Producto   │  Periodo + Fecha de emisión  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: Inicial | Entradas | Ventas | Vencido | Dañado    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Fecha | Tipo | Cantidades | Saldo | Referencia      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CIERRE + nota de saldos acotados a cero                    │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 170, Green: 40, Blue: 40}
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoStatementGenerator implementa inventory.StatementRenderer usando Maroto v2.
type MarotoStatementGenerator struct {
	loc     *time.Location
	printer *message.Printer
	now     func() time.Time
}

// NewMarotoStatementGenerator construye el generador. Las fechas se muestran en loc (nil = UTC).
func NewMarotoStatementGenerator(loc *time.Location) *MarotoStatementGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &MarotoStatementGenerator{
		loc:     loc,
		printer: message.NewPrinter(language.Spanish),
		now:     time.Now,
	}
}

// RenderPeriodStatement genera el PDF del periodo y devuelve sus bytes.
func (g *MarotoStatementGenerator) RenderPeriodStatement(_ context.Context, p *entity.StockPeriod) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("pdf: periodo nulo")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Extracto de stock "+p.Key.String(), true).
		WithAuthor(p.Key.TenantID, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(p))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(g.summaryRows(p)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.movementRows(p)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.closingRows(p)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: tenant + producto (izq) y periodo + fecha de emisión (der).
func (g *MarotoStatementGenerator) headerRow(p *entity.StockPeriod) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("EXTRACTO MENSUAL DE STOCK", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Tenant: "+p.Key.TenantID+"   |   Producto: "+p.Key.ProductID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(periodLabel(p.Key.Period), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 1,
			}),
			text.New("Emitido: "+g.now().In(g.loc).Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

// summaryRows: saldo inicial y totales del periodo.
func (g *MarotoStatementGenerator) summaryRows(p *entity.StockPeriod) []core.Row {
	cell := func(label string, v int64) core.Col {
		return col.New(2).Add(
			text.New(label, props.Text{Size: 7, Align: align.Center, Color: colorGray, Top: 1}),
			text.New(g.qty(v), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Center, Top: 5}),
		)
	}
	return []core.Row{
		row.New(12).Add(
			cell("Inicial", p.OpeningBalance),
			cell("Entradas", p.TotalAdded),
			cell("Ventas", p.TotalUsed),
			cell("Vencido", p.TotalExpired),
			cell("Dañado", p.TotalDamaged),
			cell("Cierre", p.ClosingBalance),
		),
	}
}

// tableHeaderRow: cabecera de la tabla de movimientos.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Fecha", 2, align.Left),
		h("Tipo", 1, align.Left),
		h("Entrada", 1, align.Right),
		h("Venta", 1, align.Right),
		h("Vencido", 1, align.Right),
		h("Dañado", 1, align.Right),
		h("Saldo", 2, align.Right),
		h("Referencia", 3, align.Left),
	)
}

// movementRows: una fila por movimiento, en orden cronológico.
func (g *MarotoStatementGenerator) movementRows(p *entity.StockPeriod) []core.Row {
	if len(p.Movements) == 0 {
		return []core.Row{row.New(8).Add(col.New(12).Add(
			text.New("Sin movimientos en el periodo", props.Text{
				Size: 8, Align: align.Center, Color: colorGray, Top: 2,
			}),
		))}
	}
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	result := make([]core.Row, 0, len(p.Movements))
	for _, e := range p.Movements {
		result = append(result, row.New(6).Add(
			cell(e.Timestamp.In(g.loc).Format("02/01/2006 15:04"), 2, align.Left),
			cell(kindLabel(e.Kind()), 1, align.Left),
			cell(g.qtyOrDash(e.Added), 1, align.Right),
			cell(g.qtyOrDash(e.Used), 1, align.Right),
			cell(g.qtyOrDash(e.Expired), 1, align.Right),
			cell(g.qtyOrDash(e.Damaged), 1, align.Right),
			cell(g.qty(e.RunningBalance), 2, align.Right),
			cell(nonEmpty(e.SourceReference, "—"), 3, align.Left),
		))
	}
	return result
}

// closingRows: saldo de cierre y, si hubo, la nota de movimientos acotados a cero.
func (g *MarotoStatementGenerator) closingRows(p *entity.StockPeriod) []core.Row {
	rows := []core.Row{
		row.New(10).Add(
			col.New(8),
			col.New(2).Add(text.New("SALDO DE CIERRE:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
			})),
			col.New(2).Add(text.New(g.qty(p.ClosingBalance), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2, Right: 1,
			})),
		),
	}
	if p.ClampedEntries > 0 {
		rows = append(rows, row.New(8).Add(col.New(12).Add(
			text.New(g.printer.Sprintf(
				"%d movimiento(s) dejaron el saldo en cero: las salidas superaron el stock disponible y el faltante no se arrastra.",
				p.ClampedEntries,
			), props.Text{Size: 7, Color: colorAlert, Top: 2}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

// qty formatea cantidades con separador de miles del locale.
func (g *MarotoStatementGenerator) qty(v int64) string {
	return g.printer.Sprintf("%d", v)
}

func (g *MarotoStatementGenerator) qtyOrDash(v int64) string {
	if v == 0 {
		return "—"
	}
	return g.qty(v)
}

func periodLabel(p entity.Period) string {
	if !p.Valid() {
		return p.String()
	}
	return fmt.Sprintf("%s %d", monthNames[p.Month-1], p.Year)
}

func kindLabel(kind string) string {
	switch kind {
	case entity.MovementKindAdded:
		return "Entrada"
	case entity.MovementKindUsed:
		return "Venta"
	case entity.MovementKindExpired:
		return "Vencido"
	case entity.MovementKindDamaged:
		return "Dañado"
	case entity.MovementKindMixed:
		return "Mixto"
	}
	return kind
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
