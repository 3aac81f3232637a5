package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
)

// Repository is the read side the summaries are computed from.
type Repository interface {
	LogsBetween(ctx context.Context, start, end time.Time) ([]models.ProductionLog, error)
	ListBatches(ctx context.Context) ([]models.RawMaterialBatch, error)
}

// Service computes production summaries. It never writes.
type Service struct {
	repo    Repository
	pricing models.Pricing
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(repository Repository, pricing models.Pricing, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repository, pricing: pricing, loc: loc, logger: logger, now: time.Now}
}

// Location returns the time zone days are cut in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// DailySummary aggregates the logs of one day per shift.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error) {
	start, end := models.DayBounds(day, s.loc)

	logs, err := s.repo.LogsBetween(ctx, start, end)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("load production logs: %w", err)
	}
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("load raw materials: %w", err)
	}
	index := indexBatches(batches)

	summary := models.DailySummary{
		Date:           start.Format(models.DateLayout),
		Shifts:         s.aggregateShifts(logs, index),
		RawMaterials:   make(map[string]models.MaterialStock),
		TotalStockCost: totalStockCost(batches),
		LastUpdated:    s.now(),
	}
	for _, shift := range summary.Shifts {
		summary.Totals.Add(shift)
	}

	latest := latestPrices(batches)
	for _, b := range batches {
		position := summary.RawMaterials[b.Name]
		position.Price = latest[b.Name]
		position.Used += b.Used()
		position.Remaining += b.Remaining()
		summary.RawMaterials[b.Name] = position
	}

	s.logger.Debug("daily summary computed",
		zap.String("date", summary.Date),
		zap.Int("logs", len(logs)),
		zap.Int("shifts", len(summary.Shifts)))
	return summary, nil
}

// RangeSummary aggregates the logs from the start day through the end day
// inclusive. Wages are owed per shift and day, following the daily rule.
func (s *Service) RangeSummary(ctx context.Context, startDay, endDay time.Time) (models.RangeSummary, error) {
	start := models.DayStart(startDay, s.loc)
	last := models.DayStart(endDay, s.loc)
	if last.Before(start) {
		return models.RangeSummary{}, models.Validationf("end date %s is before start date %s",
			last.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	end := last.AddDate(0, 0, 1)

	logs, err := s.repo.LogsBetween(ctx, start, end)
	if err != nil {
		return models.RangeSummary{}, fmt.Errorf("load production logs: %w", err)
	}
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return models.RangeSummary{}, fmt.Errorf("load raw materials: %w", err)
	}
	index := indexBatches(batches)

	summary := models.RangeSummary{
		StartDate:        start.Format(models.DateLayout),
		EndDate:          last.Format(models.DateLayout),
		RawMaterialUsage: make(map[string]models.MaterialConsumption),
		TotalStockCost:   totalStockCost(batches),
		LastUpdated:      s.now(),
	}

	for _, dayLogs := range s.splitByDay(logs) {
		for _, shift := range s.aggregateShifts(dayLogs, index) {
			summary.Totals.Add(shift)
		}
	}

	latest := latestPrices(batches)
	for _, l := range logs {
		for _, m := range l.MaterialsUsed {
			batch, ok := index[m.MaterialID]
			if !ok {
				continue
			}
			usage := summary.RawMaterialUsage[batch.Name]
			usage.Quantity += m.Quantity
			usage.HistoricalCost += float64(m.Quantity) * m.UnitPrice
			summary.RawMaterialUsage[batch.Name] = usage
		}
	}
	for name, usage := range summary.RawMaterialUsage {
		usage.Cost = float64(usage.Quantity) * latest[name]
		summary.RawMaterialUsage[name] = usage
	}

	s.logger.Debug("range summary computed",
		zap.String("start", summary.StartDate),
		zap.String("end", summary.EndDate),
		zap.Int("logs", len(logs)))
	return summary, nil
}

// aggregateShifts groups logs by shift in order of first appearance.
func (s *Service) aggregateShifts(logs []models.ProductionLog, index map[string]models.RawMaterialBatch) []models.ShiftSummary {
	shifts := make([]models.ShiftSummary, 0)
	positions := make(map[string]int)

	for _, l := range logs {
		i, ok := positions[l.Shift]
		if !ok {
			i = len(shifts)
			positions[l.Shift] = i
			shifts = append(shifts, models.ShiftSummary{Name: l.Shift, AllWagesPaid: true})
		}
		shift := &shifts[i]

		if l.Production != nil {
			shift.CakesSold += l.Production.StandardCakes
			shift.BreadSold += l.Production.Bread
		}
		shift.TotalCakeValue += l.TotalValue
		shift.AllWagesPaid = shift.AllWagesPaid && l.WagesPaid

		for _, m := range l.MaterialsUsed {
			batch, ok := index[m.MaterialID]
			if !ok {
				s.logger.Debug("production log references unknown batch",
					zap.String("log_id", l.ID),
					zap.String("material_id", m.MaterialID))
				continue
			}
			if s.pricing.IsFlour(batch.Name) {
				shift.FlourUsed += m.Quantity
			}
		}
	}

	for i := range shifts {
		if !shifts[i].AllWagesPaid {
			shifts[i].WorkerWages = float64(shifts[i].FlourUsed) * s.pricing.WageRate
		}
	}
	return shifts
}

// splitByDay buckets date-ordered logs per calendar day.
func (s *Service) splitByDay(logs []models.ProductionLog) [][]models.ProductionLog {
	var days [][]models.ProductionLog
	var current time.Time
	for _, l := range logs {
		day := models.DayStart(l.Date, s.loc)
		if len(days) == 0 || !day.Equal(current) {
			days = append(days, nil)
			current = day
		}
		days[len(days)-1] = append(days[len(days)-1], l)
	}
	return days
}

func indexBatches(batches []models.RawMaterialBatch) map[string]models.RawMaterialBatch {
	index := make(map[string]models.RawMaterialBatch, len(batches))
	for _, b := range batches {
		index[b.ID] = b
	}
	return index
}

// latestPrices returns, per material name, the price of its most recently
// priced batch.
func latestPrices(batches []models.RawMaterialBatch) map[string]float64 {
	latest := make(map[string]models.RawMaterialBatch, len(batches))
	for _, b := range batches {
		cur, ok := latest[b.Name]
		if !ok || newerPrice(b, cur) {
			latest[b.Name] = b
		}
	}

	prices := make(map[string]float64, len(latest))
	for name, b := range latest {
		prices[name] = b.Price
	}
	return prices
}

func newerPrice(a, b models.RawMaterialBatch) bool {
	if !a.PricedAt.Equal(b.PricedAt) {
		return a.PricedAt.After(b.PricedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// totalStockCost values the stock still on hand at each batch's price.
func totalStockCost(batches []models.RawMaterialBatch) float64 {
	var total float64
	for _, b := range batches {
		total += b.StockValue()
	}
	return total
}

// FormatDailyReport renders a daily summary as a short text message.
func FormatDailyReport(summary models.DailySummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Production report %s\n", summary.Date)

	if len(summary.Shifts) == 0 {
		sb.WriteString("No production logged.\n")
	}
	for _, shift := range summary.Shifts {
		status := "owed"
		if shift.AllWagesPaid {
			status = "paid"
		}
		fmt.Fprintf(&sb, "%s: %d cakes, %d bread, value %.2f, flour %d, wages %.2f (%s)\n",
			shift.Name, shift.CakesSold, shift.BreadSold, shift.TotalCakeValue, shift.FlourUsed, shift.WorkerWages, status)
	}

	fmt.Fprintf(&sb, "Total: %d cakes, %d bread, value %.2f, wages %.2f\n",
		summary.Totals.CakesSold, summary.Totals.BreadSold, summary.Totals.TotalCakeValue, summary.Totals.WorkerWages)

	names := make([]string, 0, len(summary.RawMaterials))
	for name := range summary.RawMaterials {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := summary.RawMaterials[name]
		fmt.Fprintf(&sb, "%s: %d left, %d used @ %.2f\n", name, m.Remaining, m.Used, m.Price)
	}

	fmt.Fprintf(&sb, "Stock value: %.2f", summary.TotalStockCost)
	return sb.String()
}
