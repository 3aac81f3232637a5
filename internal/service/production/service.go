package production

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository"
	"github.com/mamadbah2/bakery/internal/service/stock"
)

// Ledger is the part of the stock ledger production submissions rely on.
type Ledger interface {
	Consume(ctx context.Context, requests []models.MaterialRequest, at time.Time, commit stock.CommitFunc) ([]models.MaterialUsage, error)
	Deduct(ctx context.Context, name string, at time.Time, measure stock.MeasureFunc) (int, error)
}

// ResetResult describes what a daily reset settled.
type ResetResult struct {
	LogsSettled   int64 `json:"logsSettled"`
	FlourUsed     int   `json:"flourUsed"`
	FlourDeducted int   `json:"flourDeducted"`
}

// Service records production submissions and settles wages.
type Service struct {
	store   repository.Store
	ledger  Ledger
	pricing models.Pricing
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewService constructs the production service.
func NewService(store repository.Store, ledger Ledger, pricing models.Pricing, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:   store,
		ledger:  ledger,
		pricing: pricing,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// LogCakeProduction records the cakes and bread a shift produced.
func (s *Service) LogCakeProduction(ctx context.Context, shift string, date *time.Time, counts models.ProductionCounts) (models.ProductionLog, error) {
	return s.LogProduction(ctx, models.ProductionEntry{Shift: shift, Date: date, Production: &counts})
}

// LogMaterialsUsage allocates the raw materials a shift consumed and records them.
func (s *Service) LogMaterialsUsage(ctx context.Context, shift string, date *time.Time, materials []models.MaterialRequest) (models.ProductionLog, error) {
	if len(materials) == 0 {
		return models.ProductionLog{}, models.Validationf("at least one material is required")
	}
	return s.LogProduction(ctx, models.ProductionEntry{Shift: shift, Date: date, Materials: materials})
}

// LogProduction records a submission carrying production counts, consumed
// materials, or both. Materials are allocated and the log is stored in one
// transaction.
func (s *Service) LogProduction(ctx context.Context, entry models.ProductionEntry) (models.ProductionLog, error) {
	shift := strings.TrimSpace(entry.Shift)
	if shift == "" {
		return models.ProductionLog{}, models.Validationf("shift is required")
	}
	if entry.Production == nil && len(entry.Materials) == 0 {
		return models.ProductionLog{}, models.Validationf("production or raw materials are required")
	}
	if p := entry.Production; p != nil && (p.StandardCakes < 0 || p.Bread < 0) {
		return models.ProductionLog{}, models.Validationf("production counts must not be negative")
	}

	now := s.now()
	log := models.ProductionLog{
		ID:            repository.NewID(),
		Date:          now,
		Shift:         shift,
		MaterialsUsed: []models.MaterialUsage{},
		LastUpdated:   now,
	}
	if entry.Date != nil && !entry.Date.IsZero() {
		log.Date = *entry.Date
	}
	if entry.Production != nil {
		counts := *entry.Production
		log.Production = &counts
		log.TotalValue = s.pricing.ValueOf(counts)
	}

	if len(entry.Materials) == 0 {
		if err := s.store.InsertLog(ctx, log); err != nil {
			return models.ProductionLog{}, fmt.Errorf("log production: %w", err)
		}
	} else {
		_, err := s.ledger.Consume(ctx, entry.Materials, now, func(ctx context.Context, used []models.MaterialUsage) error {
			log.MaterialsUsed = used
			return s.store.InsertLog(ctx, log)
		})
		if err != nil {
			return models.ProductionLog{}, fmt.Errorf("log production: %w", err)
		}
	}

	s.logger.Info("production logged",
		zap.String("log_id", log.ID),
		zap.String("shift", log.Shift),
		zap.Float64("total_value", log.TotalValue),
		zap.Int("materials", len(log.MaterialsUsed)))
	return log, nil
}

// PayWages marks every log of shift on the day of date as paid. Calling it
// again for the same shift and day changes nothing.
func (s *Service) PayWages(ctx context.Context, shift string, date time.Time) (int64, error) {
	shift = strings.TrimSpace(shift)
	if shift == "" {
		return 0, models.Validationf("shift is required")
	}
	if date.IsZero() {
		return 0, models.Validationf("date is required")
	}

	start, end := models.DayBounds(date, s.loc)
	modified, err := s.store.MarkShiftPaid(ctx, shift, start, end, s.now())
	if err != nil {
		return 0, fmt.Errorf("pay wages: %w", err)
	}

	s.logger.Info("wages paid",
		zap.String("shift", shift),
		zap.String("date", start.Format(models.DateLayout)),
		zap.Int64("logs", modified))
	return modified, nil
}

// errSettleConflict reports logs paid by someone else while a reset ran.
var errSettleConflict = errors.New("unpaid logs changed during settlement")

// DailyReset settles every unpaid log: their flour consumption is deducted
// from the flour stock and the logs are marked paid, atomically. The unpaid
// logs are read under the flour lock so concurrent resets settle them once.
func (s *Service) DailyReset(ctx context.Context) (ResetResult, error) {
	now := s.now()

	var result ResetResult
	deducted, err := s.ledger.Deduct(ctx, s.pricing.FlourMaterial, now, func(ctx context.Context) (int, error) {
		result = ResetResult{}

		unpaid, err := s.store.UnpaidLogs(ctx)
		if err != nil {
			return 0, err
		}
		if len(unpaid) == 0 {
			return 0, nil
		}

		batches, err := s.store.ListBatches(ctx)
		if err != nil {
			return 0, err
		}
		names := make(map[string]string, len(batches))
		for _, b := range batches {
			names[b.ID] = b.Name
		}

		ids := make([]string, 0, len(unpaid))
		for _, l := range unpaid {
			ids = append(ids, l.ID)
			for _, m := range l.MaterialsUsed {
				if name, ok := names[m.MaterialID]; ok && s.pricing.IsFlour(name) {
					result.FlourUsed += m.Quantity
				}
			}
		}

		settled, err := s.store.MarkLogsPaid(ctx, ids, now)
		if err != nil {
			return 0, err
		}
		if settled != int64(len(ids)) {
			return 0, models.Persistence("settle wages", errSettleConflict)
		}
		result.LogsSettled = settled
		return result.FlourUsed, nil
	})
	if err != nil {
		return ResetResult{}, fmt.Errorf("daily reset: %w", err)
	}
	result.FlourDeducted = deducted

	s.logger.Info("daily reset completed",
		zap.Int64("logs_settled", result.LogsSettled),
		zap.Int("flour_used", result.FlourUsed),
		zap.Int("flour_deducted", result.FlourDeducted))
	return result, nil
}
