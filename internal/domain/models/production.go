package models

import (
	"strings"
	"time"
)

// Default business constants. They can be overridden through configuration.
const (
	DefaultCakePrice            = 45.0
	DefaultBreadPrice           = 55.0
	DefaultWageRatePerFlourUnit = 500.0
	DefaultFlourMaterialName    = "Flour"
)

// ProductionCounts holds the goods produced in one submission.
type ProductionCounts struct {
	StandardCakes int `bson:"standardCakes" json:"standardCakes"`
	Bread         int `bson:"bread" json:"bread"`
}

// MaterialUsage links a production log to the batch quantity it consumed.
// UnitPrice is the batch price at allocation time.
type MaterialUsage struct {
	MaterialID string  `bson:"materialId" json:"materialId"`
	Quantity   int     `bson:"quantity" json:"quantity"`
	UnitPrice  float64 `bson:"unitPrice" json:"unitPrice"`
}

// ProductionLog is one shift submission.
type ProductionLog struct {
	ID            string            `bson:"_id" json:"id"`
	Date          time.Time         `bson:"date" json:"date"`
	Shift         string            `bson:"shift" json:"shift"`
	Production    *ProductionCounts `bson:"production,omitempty" json:"production,omitempty"`
	TotalValue    float64           `bson:"totalValue" json:"totalValue"`
	MaterialsUsed []MaterialUsage   `bson:"materialsUsed" json:"materialsUsed"`
	WagesPaid     bool              `bson:"wagesPaid" json:"wagesPaid"`
	LastUpdated   time.Time         `bson:"lastUpdated" json:"lastUpdated"`
}

// MaterialRequest asks for a quantity of the material identified by one of its batches.
type MaterialRequest struct {
	MaterialID string `json:"materialId" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// ProductionEntry is a submission before it becomes a log.
type ProductionEntry struct {
	Shift      string            `json:"shift"`
	Date       *time.Time        `json:"date,omitempty"`
	Production *ProductionCounts `json:"production,omitempty"`
	Materials  []MaterialRequest `json:"rawMaterialsUsed,omitempty"`
}

// Pricing carries the sale prices and wage rate applied to production.
type Pricing struct {
	CakePrice     float64
	BreadPrice    float64
	WageRate      float64
	FlourMaterial string
}

// DefaultPricing returns the standard bakery prices.
func DefaultPricing() Pricing {
	return Pricing{
		CakePrice:     DefaultCakePrice,
		BreadPrice:    DefaultBreadPrice,
		WageRate:      DefaultWageRatePerFlourUnit,
		FlourMaterial: DefaultFlourMaterialName,
	}
}

// ValueOf returns the sale value of the produced goods.
func (p Pricing) ValueOf(counts ProductionCounts) float64 {
	return float64(counts.StandardCakes)*p.CakePrice + float64(counts.Bread)*p.BreadPrice
}

// IsFlour reports whether a material name designates flour.
func (p Pricing) IsFlour(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), p.FlourMaterial)
}
