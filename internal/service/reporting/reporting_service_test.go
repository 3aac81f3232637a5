package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository/memory"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(d time.Time, hour int) time.Time {
	return d.Add(time.Duration(hour) * time.Hour)
}

func newTestService(t *testing.T) (*Service, *memory.Repository) {
	t.Helper()
	store := memory.NewRepository()
	svc := NewService(store, models.DefaultPricing(), time.UTC, zap.NewNop())
	svc.now = func() time.Time { return at(day, 23) }
	return svc, store
}

func seedBatch(t *testing.T, store *memory.Repository, b models.RawMaterialBatch) {
	t.Helper()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = day.AddDate(0, 0, -7)
	}
	if b.PricedAt.IsZero() {
		b.PricedAt = b.CreatedAt
	}
	require.NoError(t, store.InsertBatch(context.Background(), b))
}

func seedLog(t *testing.T, store *memory.Repository, l models.ProductionLog) {
	t.Helper()
	require.NoError(t, store.InsertLog(context.Background(), l))
}

func counts(cakes, bread int) *models.ProductionCounts {
	return &models.ProductionCounts{StandardCakes: cakes, Bread: bread}
}

func TestDailySummaryPerShift(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-1", Name: "Flour", Price: 10, InitialStock: 100, CurrentStock: 60})
	seedBatch(t, store, models.RawMaterialBatch{ID: "sugar-1", Name: "Sugar", Price: 2, InitialStock: 50, CurrentStock: 45})

	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(day, 8), Shift: "Shift 1", Production: counts(10, 2), TotalValue: 560})
	seedLog(t, store, models.ProductionLog{ID: "l2", Date: at(day, 9), Shift: "Shift 1", MaterialsUsed: []models.MaterialUsage{
		{MaterialID: "flour-1", Quantity: 4, UnitPrice: 10},
		{MaterialID: "sugar-1", Quantity: 5, UnitPrice: 2},
	}})
	seedLog(t, store, models.ProductionLog{ID: "l3", Date: at(day, 15), Shift: "Shift 2", Production: counts(0, 3), TotalValue: 165, WagesPaid: true,
		MaterialsUsed: []models.MaterialUsage{{MaterialID: "flour-1", Quantity: 6, UnitPrice: 10}}})
	seedLog(t, store, models.ProductionLog{ID: "other-day", Date: at(day, 30), Shift: "Shift 1", Production: counts(99, 0), TotalValue: 4455})

	summary, err := svc.DailySummary(context.Background(), at(day, 12))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", summary.Date)
	assert.Equal(t, []models.ShiftSummary{
		{Name: "Shift 1", CakesSold: 10, BreadSold: 2, TotalCakeValue: 560, FlourUsed: 4, WorkerWages: 2000},
		{Name: "Shift 2", BreadSold: 3, TotalCakeValue: 165, FlourUsed: 6, AllWagesPaid: true},
	}, summary.Shifts)
	assert.Equal(t, models.ProductionTotals{CakesSold: 10, BreadSold: 5, TotalCakeValue: 725, FlourUsed: 10, WorkerWages: 2000}, summary.Totals)
	assert.Equal(t, map[string]models.MaterialStock{
		"Flour": {Price: 10, Used: 40, Remaining: 60},
		"Sugar": {Price: 2, Used: 5, Remaining: 45},
	}, summary.RawMaterials)
	assert.Equal(t, 60*10.0+45*2.0, summary.TotalStockCost)
	assert.Equal(t, at(day, 23), summary.LastUpdated)
}

func TestDailySummaryWagesZeroOnlyWhenAllPaid(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-1", Name: "Flour", Price: 10, InitialStock: 100, CurrentStock: 90})
	flour := []models.MaterialUsage{{MaterialID: "flour-1", Quantity: 5, UnitPrice: 10}}

	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(day, 8), Shift: "Shift 1", MaterialsUsed: flour, WagesPaid: true})
	seedLog(t, store, models.ProductionLog{ID: "l2", Date: at(day, 9), Shift: "Shift 1", MaterialsUsed: flour})

	summary, err := svc.DailySummary(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, summary.Shifts, 1)

	shift := summary.Shifts[0]
	assert.False(t, shift.AllWagesPaid)
	assert.Equal(t, 10, shift.FlourUsed)
	assert.Equal(t, 10*500.0, shift.WorkerWages)
}

func TestDailySummaryEmptyDay(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-1", Name: "Flour", Price: 10, InitialStock: 20, CurrentStock: 20})

	summary, err := svc.DailySummary(context.Background(), day)
	require.NoError(t, err)
	assert.Empty(t, summary.Shifts)
	assert.NotNil(t, summary.Shifts)
	assert.Equal(t, models.ProductionTotals{}, summary.Totals)
	assert.Equal(t, 200.0, summary.TotalStockCost)
}

func TestDailySummaryToleratesUnknownBatch(t *testing.T) {
	svc, store := newTestService(t)
	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(day, 8), Shift: "Shift 1", Production: counts(1, 0), TotalValue: 45,
		MaterialsUsed: []models.MaterialUsage{{MaterialID: "gone", Quantity: 3}}})

	summary, err := svc.DailySummary(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, summary.Shifts, 1)
	assert.Equal(t, 0, summary.Shifts[0].FlourUsed)
	assert.Equal(t, 45.0, summary.Shifts[0].TotalCakeValue)
}

func TestDailySummaryUsesLatestPrice(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-old", Name: "Flour", Price: 10, InitialStock: 10, CurrentStock: 10, CreatedAt: day.AddDate(0, 0, -5)})
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-new", Name: "Flour", Price: 12, InitialStock: 10, CurrentStock: 10, CreatedAt: day.AddDate(0, 0, -2)})

	summary, err := svc.DailySummary(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, models.MaterialStock{Price: 12, Remaining: 20}, summary.RawMaterials["Flour"])
}

func TestRangeSummaryMatchesDailyForOneDay(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-1", Name: "Flour", Price: 10, InitialStock: 100, CurrentStock: 80})
	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(day, 8), Shift: "Shift 1", Production: counts(4, 1), TotalValue: 235,
		MaterialsUsed: []models.MaterialUsage{{MaterialID: "flour-1", Quantity: 12, UnitPrice: 10}}})
	seedLog(t, store, models.ProductionLog{ID: "l2", Date: at(day, 14), Shift: "Shift 2", Production: counts(2, 0), TotalValue: 90, WagesPaid: true,
		MaterialsUsed: []models.MaterialUsage{{MaterialID: "flour-1", Quantity: 8, UnitPrice: 10}}})

	daily, err := svc.DailySummary(context.Background(), day)
	require.NoError(t, err)
	overall, err := svc.RangeSummary(context.Background(), day, day)
	require.NoError(t, err)

	assert.Equal(t, daily.Totals, overall.Totals)
	assert.Equal(t, daily.TotalStockCost, overall.TotalStockCost)
	assert.Equal(t, "2026-03-02", overall.StartDate)
	assert.Equal(t, "2026-03-02", overall.EndDate)
	assert.Equal(t, models.MaterialConsumption{Quantity: 20, Cost: 200, HistoricalCost: 200}, overall.RawMaterialUsage["Flour"])
}

func TestRangeSummaryAppliesWageRulePerDay(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "flour-1", Name: "Flour", Price: 10, InitialStock: 100, CurrentStock: 80})
	flour := func(q int) []models.MaterialUsage {
		return []models.MaterialUsage{{MaterialID: "flour-1", Quantity: q, UnitPrice: 10}}
	}
	yesterday := day.AddDate(0, 0, -1)

	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(yesterday, 8), Shift: "Shift 1", MaterialsUsed: flour(3), WagesPaid: true})
	seedLog(t, store, models.ProductionLog{ID: "l2", Date: at(day, 8), Shift: "Shift 1", MaterialsUsed: flour(2)})
	seedLog(t, store, models.ProductionLog{ID: "l3", Date: at(day, 10), Shift: "Shift 1", MaterialsUsed: flour(1)})

	overall, err := svc.RangeSummary(context.Background(), yesterday, day)
	require.NoError(t, err)
	assert.Equal(t, 6, overall.Totals.FlourUsed)
	assert.Equal(t, 3*500.0, overall.Totals.WorkerWages)
}

func TestRangeSummaryCosts(t *testing.T) {
	svc, store := newTestService(t)
	seedBatch(t, store, models.RawMaterialBatch{ID: "sugar-1", Name: "Sugar", Price: 2, InitialStock: 50, CurrentStock: 40, CreatedAt: day.AddDate(0, 0, -9)})
	seedBatch(t, store, models.RawMaterialBatch{ID: "sugar-2", Name: "Sugar", Price: 3, InitialStock: 50, CurrentStock: 50, CreatedAt: day.AddDate(0, 0, -1)})
	seedLog(t, store, models.ProductionLog{ID: "l1", Date: at(day, 8), Shift: "Shift 1",
		MaterialsUsed: []models.MaterialUsage{{MaterialID: "sugar-1", Quantity: 10, UnitPrice: 2}}})

	overall, err := svc.RangeSummary(context.Background(), day.AddDate(0, 0, -3), day)
	require.NoError(t, err)
	assert.Equal(t, models.MaterialConsumption{Quantity: 10, Cost: 30, HistoricalCost: 20}, overall.RawMaterialUsage["Sugar"])
	assert.Equal(t, 40*2.0+50*3.0, overall.TotalStockCost)
	assert.Zero(t, overall.Totals.FlourUsed)
}

func TestRangeSummaryRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RangeSummary(context.Background(), day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFormatDailyReport(t *testing.T) {
	report := FormatDailyReport(models.DailySummary{
		Date: "2026-03-02",
		Shifts: []models.ShiftSummary{
			{Name: "Shift 1", CakesSold: 3, TotalCakeValue: 135, FlourUsed: 2, WorkerWages: 1000},
		},
		Totals:         models.ProductionTotals{CakesSold: 3, TotalCakeValue: 135, FlourUsed: 2, WorkerWages: 1000},
		RawMaterials:   map[string]models.MaterialStock{"Flour": {Price: 10, Used: 2, Remaining: 8}},
		TotalStockCost: 80,
	})

	assert.Contains(t, report, "Production report 2026-03-02")
	assert.Contains(t, report, "Shift 1: 3 cakes, 0 bread, value 135.00, flour 2, wages 1000.00 (owed)")
	assert.Contains(t, report, "Flour: 8 left, 2 used @ 10.00")
	assert.Contains(t, report, "Stock value: 80.00")

	empty := FormatDailyReport(models.DailySummary{Date: "2026-03-03", Shifts: []models.ShiftSummary{}})
	assert.Contains(t, empty, "No production logged.")
}
