package models

import "time"

// UsageRecord is one consumption entry recorded against a batch.
type UsageRecord struct {
	Date     time.Time `bson:"date" json:"date"`
	Quantity int       `bson:"quantity" json:"quantity"`
}

// RawMaterialBatch is one purchase lot of a named raw material. Several batches
// may share a name; each keeps its own purchase price.
type RawMaterialBatch struct {
	ID           string        `bson:"_id" json:"id"`
	Name         string        `bson:"name" json:"name"`
	Price        float64       `bson:"price" json:"price"`
	InitialStock int           `bson:"initialStock" json:"initialStock"`
	CurrentStock int           `bson:"currentStock" json:"currentStock"`
	DailyUsage   []UsageRecord `bson:"dailyUsage" json:"dailyUsage"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	PricedAt     time.Time     `bson:"pricedAt" json:"pricedAt"`
	LastUpdated  time.Time     `bson:"lastUpdated" json:"lastUpdated"`
}

// Used returns the quantity consumed from the batch so far.
func (b RawMaterialBatch) Used() int {
	return b.InitialStock - b.CurrentStock
}

// Remaining returns the quantity still available in the batch.
func (b RawMaterialBatch) Remaining() int {
	return b.CurrentStock
}

// OutOfStock reports whether the batch is exhausted.
func (b RawMaterialBatch) OutOfStock() bool {
	return b.CurrentStock <= 0
}

// StockValue is the value of what is left in the batch at its purchase price.
func (b RawMaterialBatch) StockValue() float64 {
	return b.Price * float64(b.CurrentStock)
}

// MaterialView is the listing representation of a batch with its derived fields.
type MaterialView struct {
	RawMaterialBatch
	Used       int  `json:"used"`
	Remaining  int  `json:"remaining"`
	OutOfStock bool `json:"outOfStock"`
}

// NewMaterialView computes the derived fields of a batch at read time.
func NewMaterialView(b RawMaterialBatch) MaterialView {
	return MaterialView{
		RawMaterialBatch: b,
		Used:             b.Used(),
		Remaining:        b.Remaining(),
		OutOfStock:       b.OutOfStock(),
	}
}

// StockReceipt is an incoming purchase of a raw material.
type StockReceipt struct {
	Name     string  `json:"name" binding:"required"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// MaterialPatch lists the batch fields that may be changed directly. Nil
// fields are left untouched.
type MaterialPatch struct {
	Name         *string  `json:"name,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	InitialStock *int     `json:"initialStock,omitempty"`
	CurrentStock *int     `json:"currentStock,omitempty"`
}

// Empty reports whether the patch carries no field.
func (p MaterialPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.InitialStock == nil && p.CurrentStock == nil
}

// Apply returns a copy of b with the patch applied.
func (p MaterialPatch) Apply(b RawMaterialBatch) RawMaterialBatch {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.InitialStock != nil {
		b.InitialStock = *p.InitialStock
	}
	if p.CurrentStock != nil {
		b.CurrentStock = *p.CurrentStock
	}
	return b
}
