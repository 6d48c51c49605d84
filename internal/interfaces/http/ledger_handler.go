package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// LedgerHandler maneja las peticiones HTTP del libro mensual de stock (protegido).
type LedgerHandler struct {
	svc        *inventory.LedgerService
	statements inventory.StatementRenderer
	log        *logger.Logger
}

// NewLedgerHandler construye el handler. statements puede ser nil (extracto PDF deshabilitado).
func NewLedgerHandler(svc *inventory.LedgerService, statements inventory.StatementRenderer, log *logger.Logger) *LedgerHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerHandler{svc: svc, statements: statements, log: log}
}

// RecordMovement godoc
// @Summary      Registrar movimiento de stock
// @Description  Agrega el movimiento al periodo del mes de su timestamp y propaga el saldo a los meses siguientes.
// @Tags         ledger
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        productId  path  string                     true  "ID del producto"
// @Param        body       body  dto.RecordMovementRequest  true  "added, used, expired, damaged, timestamp (opcional)"
// @Success      201  {object}  dto.RecordMovementResponse
// @Success      202  {object}  dto.RecordMovementResponse  "guardado; propagación pendiente"
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/ledger/products/{productId}/movements [post]
func (h *LedgerHandler) RecordMovement(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RecordMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.svc.RecordMovementFromRequest(c.UserContext(), tenantID, productParam(c), in)
	if errors.Is(err, domain.ErrPropagationIncomplete) && res.Period != nil {
		out := inventory.ToRecordMovementResponse(res)
		out.Warning = "movimiento registrado; la propagación a periodos posteriores quedó pendiente"
		return c.Status(fiber.StatusAccepted).JSON(out)
	}
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.ToRecordMovementResponse(res))
}

// GetBalance godoc
// @Summary      Saldo actual del producto
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        productId  path  string  true  "ID del producto"
// @Success      200  {object}  dto.BalanceResponse
// @Router       /api/ledger/products/{productId}/balance [get]
func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	productID := productParam(c)
	balance, err := h.svc.GetCurrentBalance(c.UserContext(), GetTenantID(c), productID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.BalanceResponse{ProductID: productID, Balance: balance})
}

// ListPeriods godoc
// @Summary      Periodos del producto
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        productId  path   string  true   "ID del producto"
// @Param        limit      query  int     false  "Máximo de periodos (por defecto 24, máximo 100)"
// @Param        offset     query  int     false  "Periodos a saltar"
// @Success      200  {object}  dto.PeriodListResponse
// @Router       /api/ledger/products/{productId}/periods [get]
func (h *LedgerHandler) ListPeriods(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "BAD_REQUEST", Message: "paginación inválida"})
	}
	page.DefaultPage()
	chain, err := h.svc.ListChain(c.UserContext(), GetTenantID(c), productParam(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(inventory.ToPeriodListResponse(chain, page))
}

// GetPeriod godoc
// @Summary      Periodo mensual con sus movimientos
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        productId  path  string  true  "ID del producto"
// @Param        year       path  int     true  "Año"
// @Param        month      path  int     true  "Mes (1-12)"
// @Success      200  {object}  dto.StockPeriodDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/products/{productId}/periods/{year}/{month} [get]
func (h *LedgerHandler) GetPeriod(c *fiber.Ctx) error {
	year, month, err := periodParams(c)
	if err != nil {
		return h.writeError(c, err)
	}
	p, err := h.svc.GetPeriod(c.UserContext(), GetTenantID(c), productParam(c), year, month)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(inventory.ToPeriodDTO(p, true))
}

// GetPeriodPDF godoc
// @Summary      Extracto PDF del periodo
// @Tags         ledger
// @Security     Bearer
// @Produce      application/pdf
// @Param        productId  path  string  true  "ID del producto"
// @Param        year       path  int     true  "Año"
// @Param        month      path  int     true  "Mes (1-12)"
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/products/{productId}/periods/{year}/{month}/pdf [get]
func (h *LedgerHandler) GetPeriodPDF(c *fiber.Ctx) error {
	if h.statements == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "extracto PDF no disponible"})
	}
	year, month, err := periodParams(c)
	if err != nil {
		return h.writeError(c, err)
	}
	productID := productParam(c)
	doc, err := h.svc.PeriodStatement(c.UserContext(), h.statements, GetTenantID(c), productID, year, month)
	if err != nil {
		return h.writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=extracto-%s-%04d-%02d.pdf", productID, year, int(month)))
	return c.Send(doc)
}

// RepairProduct godoc
// @Summary      Reparar la cadena de periodos del producto
// @Description  Audita la cadena y recalcula cada periodo desde el inicial del primero. Con dry_run=true solo audita.
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        productId  path   string  true   "ID del producto"
// @Param        dry_run    query  bool    false  "Solo auditar"
// @Success      200  {object}  dto.RepairReportResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/ledger/products/{productId}/repair [post]
func (h *LedgerHandler) RepairProduct(c *fiber.Ctx) error {
	report, err := h.svc.RepairProduct(c.UserContext(), GetTenantID(c), productParam(c), c.QueryBool("dry_run", false))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(inventory.ToRepairReportResponse(report))
}

// GetTenantSummary godoc
// @Summary      Resumen mensual del tenant
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        year   path  int  true  "Año"
// @Param        month  path  int  true  "Mes (1-12)"
// @Success      200  {object}  dto.TenantSummaryResponse
// @Router       /api/ledger/summary/{year}/{month} [get]
func (h *LedgerHandler) GetTenantSummary(c *fiber.Ctx) error {
	year, month, err := periodParams(c)
	if err != nil {
		return h.writeError(c, err)
	}
	out, err := h.svc.GetTenantSummary(c.UserContext(), GetTenantID(c), year, month)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// productParam copia el id del producto: fasthttp reutiliza el buffer de la petición y el id
// termina guardado como clave del periodo.
func productParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("productId"))
}

func periodParams(c *fiber.Ctx) (int, time.Month, error) {
	year, err := c.ParamsInt("year")
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	month, err := c.ParamsInt("month")
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return year, time.Month(month), nil
}

// writeError traduce errores de dominio a respuestas HTTP.
func (h *LedgerHandler) writeError(c *fiber.Ctx, err error) error {
	retryable := domain.IsRetryable(err)
	switch {
	case errors.Is(err, domain.ErrInvalidMovement):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_MOVEMENT", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "periodo no encontrado"})
	case errors.Is(err, domain.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENT_MODIFICATION", Message: "modificación concurrente detectada"})
	case errors.Is(err, domain.ErrLockTimeout):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "LOCK_TIMEOUT", Message: "producto ocupado, reintente", Retryable: retryable})
	case errors.Is(err, domain.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: "almacenamiento no disponible", Retryable: retryable})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error no controlado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
