package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Nombres de operación (métricas y logs).
const (
	OpRecordMovement = "record_movement"
	OpRepairProduct  = "repair_product"
)

const propagationRetryBackoff = 100 * time.Millisecond

// LedgerConfig parámetros del servicio.
type LedgerConfig struct {
	Location           *time.Location // zona para decidir el mes de un movimiento (nil = UTC)
	Policy             inventory.Policy
	LockWait           time.Duration // espera máxima del bloqueo por producto (0 = sin límite propio)
	PropagationRetries int
}

// LedgerService orquesta el libro mensual de stock: registrar movimientos, consultar saldos y reparar
// cadenas. Las mutaciones de un mismo (tenant, producto) se serializan con Locker; claves distintas
// avanzan en paralelo.
type LedgerService struct {
	repo    repository.StockPeriodRepository
	chain   *PeriodChainManager
	calc    inventory.BalanceCalculator
	locker  Locker
	metrics Metrics
	log     *logger.Logger

	loc                *time.Location
	lockWait           time.Duration
	propagationRetries int

	now   func() time.Time
	newID func() string
}

// NewLedgerService construye el servicio. metrics y log pueden ser nil.
func NewLedgerService(
	repo repository.StockPeriodRepository,
	locker Locker,
	cfg LedgerConfig,
	metrics Metrics,
	log *logger.Logger,
) *LedgerService {
	calc := inventory.NewBalanceCalculator(cfg.Policy)
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		repo:               repo,
		chain:              NewPeriodChainManager(repo, calc),
		calc:               calc,
		locker:             locker,
		metrics:            metrics,
		log:                log,
		loc:                loc,
		lockWait:           cfg.LockWait,
		propagationRetries: cfg.PropagationRetries,
		now:                time.Now,
		newID:              func() string { return uuid.New().String() },
	}
}

// Chain expone el gestor de cadena (herramientas de operación).
func (s *LedgerService) Chain() *PeriodChainManager { return s.chain }

// RecordMovementInput entrada para registrar un movimiento.
type RecordMovementInput struct {
	TenantID        string
	ProductID       string
	Timestamp       time.Time // cero = ahora
	Quantities      entity.MovementQuantities
	SourceReference string
}

// RecordMovementResult periodo resultante y el movimiento con su saldo parcial.
type RecordMovementResult struct {
	Period            *entity.StockPeriod
	Entry             entity.MovementEntry
	PeriodsPropagated int
}

// ClosingBalance saldo disponible tras registrar el movimiento: cierre del periodo afectado.
// Difiere de Entry.RunningBalance cuando el movimiento es anterior a otros ya registrados en el mes.
func (r RecordMovementResult) ClosingBalance() int64 {
	if r.Period == nil {
		return 0
	}
	return r.Period.ClosingBalance
}

// ValidateMovement rechaza movimientos con las cuatro cantidades en cero, alguna negativa o alguna
// por encima de entity.MaxMovementQuantity.
func ValidateMovement(q entity.MovementQuantities) error {
	if q.IsZero() {
		return fmt.Errorf("%w: todas las cantidades son cero", domain.ErrInvalidMovement)
	}
	if q.HasNegative() {
		return fmt.Errorf("%w: cantidades negativas", domain.ErrInvalidMovement)
	}
	if q.ExceedsMax() {
		return fmt.Errorf("%w: cantidad mayor a %d", domain.ErrInvalidMovement, entity.MaxMovementQuantity)
	}
	return nil
}

// RecordMovement registra un movimiento en el periodo del mes de su timestamp (creándolo si no existe
// con el inicial arrastrado), recalcula el periodo completo, lo persiste y propaga el cierre hacia
// adelante. Una vez obtenido el bloqueo la operación no se cancela: termina o falla sin escrituras parciales.
// Si el periodo se guardó pero la propagación no terminó, devuelve el resultado junto con
// domain.ErrPropagationIncomplete.
func (s *LedgerService) RecordMovement(ctx context.Context, in RecordMovementInput) (res RecordMovementResult, err error) {
	start := s.now()
	defer func() { s.metrics.ObserveOperation(OpRecordMovement, err, time.Since(start)) }()

	if in.TenantID == "" || in.ProductID == "" {
		return res, domain.ErrInvalidInput
	}
	if err := ValidateMovement(in.Quantities); err != nil {
		return res, err
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	pkey := entity.ProductKey{TenantID: in.TenantID, ProductID: in.ProductID}
	key := entity.PeriodKey{ProductKey: pkey, Period: entity.PeriodOf(ts, s.loc)}

	unlock, err := s.lock(ctx, pkey)
	if err != nil {
		return res, err
	}
	defer unlock()
	work := context.WithoutCancel(ctx)
	log := s.log.With().Str("tenant_id", in.TenantID).Str("product_id", in.ProductID).
		Str("period", key.Period.String()).Logger()

	period, err := s.repo.Get(work, key)
	if errors.Is(err, domain.ErrNotFound) {
		opening, rerr := s.chain.ResolveOpeningBalance(work, key)
		if rerr != nil {
			return res, rerr
		}
		period = entity.NewStockPeriod(key, opening, s.now())
	} else if err != nil {
		log.Error().Err(err).Msg("leer periodo")
		return res, err
	}

	entry := entity.MovementEntry{
		ID:                 s.newID(),
		Timestamp:          ts,
		MovementQuantities: in.Quantities,
		SourceReference:    in.SourceReference,
	}
	idx := insertChronological(period, entry)
	clampedBefore := period.ClampedEntries
	s.calc.Apply(period, period.OpeningBalance)

	if err := s.repo.Put(work, period); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			log.Error().Err(err).Msg("modificación concurrente: se evitó la disciplina de bloqueo")
		} else {
			log.Error().Err(err).Msg("guardar periodo")
		}
		return res, err
	}
	s.metrics.AddClampedEntries(period.ClampedEntries - clampedBefore)

	res.Period = period
	res.Entry = period.Movements[idx]

	n, err := s.propagate(work, period, log)
	res.PeriodsPropagated = n
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrPropagationIncomplete, err)
	}
	return res, nil
}

// insertChronological inserta el movimiento después de todos los de timestamp menor o igual y
// devuelve su posición. En el caso normal (movimiento más reciente) es un append.
func insertChronological(p *entity.StockPeriod, e entity.MovementEntry) int {
	i := sort.Search(len(p.Movements), func(i int) bool {
		return p.Movements[i].Timestamp.After(e.Timestamp)
	})
	p.Movements = append(p.Movements, entity.MovementEntry{})
	copy(p.Movements[i+1:], p.Movements[i:])
	p.Movements[i] = e
	return i
}

// propagate arrastra el cierre de from y reintenta ante fallas de almacenamiento (la propagación es idempotente).
func (s *LedgerService) propagate(ctx context.Context, from *entity.StockPeriod, log zerolog.Logger) (int, error) {
	total := 0
	for attempt := 0; ; attempt++ {
		n, err := s.chain.propagateFrom(ctx, from)
		total += n
		s.metrics.AddPeriodsPropagated(n)
		if err == nil {
			if total > 0 {
				log.Info().Int("periods", total).Msg("saldo propagado a periodos posteriores")
			}
			return total, nil
		}
		if !errors.Is(err, domain.ErrStorageUnavailable) || attempt >= s.propagationRetries {
			log.Error().Err(err).Int("periods", total).Msg("propagación incompleta")
			return total, err
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("reintentando propagación")
		time.Sleep(propagationRetryBackoff * time.Duration(attempt+1))
	}
}

func (s *LedgerService) lock(ctx context.Context, key entity.ProductKey) (func(), error) {
	lockCtx := ctx
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}
	start := s.now()
	unlock, err := s.locker.Lock(lockCtx, key.String())
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("no se obtuvo el bloqueo")
		return nil, err
	}
	return unlock, nil
}

// GetCurrentBalance cierre del periodo más reciente del producto, o 0 si no hay historia.
// No toma el bloqueo: durante una propagación puede verse un estado transitorio.
func (s *LedgerService) GetCurrentBalance(ctx context.Context, tenantID, productID string) (int64, error) {
	if tenantID == "" || productID == "" {
		return 0, domain.ErrInvalidInput
	}
	latest, err := s.repo.GetLatest(ctx, entity.ProductKey{TenantID: tenantID, ProductID: productID})
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.ClosingBalance, nil
}

// GetPeriod lectura de un periodo (domain.ErrNotFound si no existe).
func (s *LedgerService) GetPeriod(ctx context.Context, tenantID, productID string, year int, month time.Month) (*entity.StockPeriod, error) {
	key := entity.PeriodKey{
		ProductKey: entity.ProductKey{TenantID: tenantID, ProductID: productID},
		Period:     entity.Period{Year: year, Month: month},
	}
	if tenantID == "" || productID == "" || !key.Period.Valid() {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.Get(ctx, key)
}

// ListChain periodos del producto en orden cronológico (tableros).
func (s *LedgerService) ListChain(ctx context.Context, tenantID, productID string) ([]*entity.StockPeriod, error) {
	if tenantID == "" || productID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.GetChain(ctx, entity.ProductKey{TenantID: tenantID, ProductID: productID})
}

// RepairProduct audita y reconcilia la cadena completa del producto bajo el bloqueo del producto.
// Con dryRun solo audita (sin bloqueo ni escrituras).
func (s *LedgerService) RepairProduct(ctx context.Context, tenantID, productID string, dryRun bool) (report RepairReport, err error) {
	start := s.now()
	defer func() { s.metrics.ObserveOperation(OpRepairProduct, err, time.Since(start)) }()

	if tenantID == "" || productID == "" {
		return report, domain.ErrInvalidInput
	}
	pkey := entity.ProductKey{TenantID: tenantID, ProductID: productID}
	work := ctx
	if !dryRun {
		unlock, err := s.lock(ctx, pkey)
		if err != nil {
			return report, err
		}
		defer unlock()
		work = context.WithoutCancel(ctx)
	}

	report, err = s.chain.RepairChain(work, pkey, dryRun)
	log := s.log.With().Str("tenant_id", tenantID).Str("product_id", productID).Bool("dry_run", dryRun).Logger()
	if err != nil {
		log.Error().Err(err).Int("examined", report.PeriodsExamined).Int("corrected", report.PeriodsCorrected).
			Msg("reparación interrumpida")
		return report, err
	}
	if !dryRun {
		s.metrics.AddRepairCorrections(report.PeriodsCorrected)
	}
	for _, inc := range report.Inconsistencies {
		log.Warn().Str("period", inc.Period.String()).Str("kind", inc.Kind).Str("detail", inc.Detail).
			Msg("inconsistencia de cadena")
	}
	log.Info().Int("examined", report.PeriodsExamined).Int("corrected", report.PeriodsCorrected).
		Msg("reparación de cadena terminada")
	return report, nil
}
