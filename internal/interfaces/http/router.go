package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger     *inventory.LedgerService
	Statements inventory.StatementRenderer
	Gatherer   prometheus.Gatherer // nil = sin /metrics
	JWTSecret  string
	Log        *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Libro de stock (protegido: el tenant sale del token)
	ledger := api.Group("/ledger", AuthMiddleware(deps.JWTSecret))
	h := NewLedgerHandler(deps.Ledger, deps.Statements, deps.Log)

	products := ledger.Group("/products/:productId")
	products.Post("/movements", h.RecordMovement)
	products.Get("/balance", h.GetBalance)
	products.Get("/periods", h.ListPeriods)
	products.Get("/periods/:year/:month", h.GetPeriod)
	products.Get("/periods/:year/:month/pdf", h.GetPeriodPDF)
	products.Post("/repair", h.RepairProduct)

	ledger.Get("/summary/:year/:month", h.GetTenantSummary)
}
