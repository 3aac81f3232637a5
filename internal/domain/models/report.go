package models

import "time"

// ShiftSummary aggregates the logs of one shift on one day.
type ShiftSummary struct {
	Name           string  `json:"name"`
	CakesSold      int     `json:"cakesSold"`
	BreadSold      int     `json:"breadSold"`
	TotalCakeValue float64 `json:"totalCakeValue"`
	FlourUsed      int     `json:"flourUsed"`
	WorkerWages    float64 `json:"workerWages"`
	AllWagesPaid   bool    `json:"allWagesPaid"`
}

// ProductionTotals sums production over a set of logs.
type ProductionTotals struct {
	CakesSold      int     `json:"cakesSold"`
	BreadSold      int     `json:"breadSold"`
	TotalCakeValue float64 `json:"totalCakeValue"`
	FlourUsed      int     `json:"flourUsed"`
	WorkerWages    float64 `json:"workerWages"`
}

// Add folds a shift into the totals.
func (t *ProductionTotals) Add(s ShiftSummary) {
	t.CakesSold += s.CakesSold
	t.BreadSold += s.BreadSold
	t.TotalCakeValue += s.TotalCakeValue
	t.FlourUsed += s.FlourUsed
	t.WorkerWages += s.WorkerWages
}

// MaterialStock is the stock position of one material name across its batches.
type MaterialStock struct {
	Price     float64 `json:"price"`
	Used      int     `json:"used"`
	Remaining int     `json:"remaining"`
}

// MaterialConsumption is the consumption of one material over a period.
// Cost uses the latest known price; HistoricalCost uses the prices captured
// when the stock was allocated.
type MaterialConsumption struct {
	Quantity       int     `json:"quantity"`
	Cost           float64 `json:"cost"`
	HistoricalCost float64 `json:"historicalCost"`
}

// DailySummary is the per-shift view of one day.
type DailySummary struct {
	Date           string                   `json:"date"`
	Shifts         []ShiftSummary           `json:"shifts"`
	Totals         ProductionTotals         `json:"totals"`
	RawMaterials   map[string]MaterialStock `json:"rawMaterials"`
	TotalStockCost float64                  `json:"totalStockCost"`
	LastUpdated    time.Time                `json:"lastUpdated"`
}

// RangeSummary is the overall view of an inclusive range of days.
type RangeSummary struct {
	StartDate        string                         `json:"startDate"`
	EndDate          string                         `json:"endDate"`
	Totals           ProductionTotals               `json:"totals"`
	RawMaterialUsage map[string]MaterialConsumption `json:"rawMaterialUsage"`
	TotalStockCost   float64                        `json:"totalStockCost"`
	LastUpdated      time.Time                      `json:"lastUpdated"`
}
