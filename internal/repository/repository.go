// Package repository declares the persistence contracts shared by the
// MongoDB and in-memory stores.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/bakery/internal/domain/models"
)

// ErrStockConflict is returned when a batch no longer holds the stock level a
// write expected. It always also matches models.ErrPersistence.
var ErrStockConflict = errors.New("batch stock changed concurrently")

// MaterialRepository persists raw-material batches.
type MaterialRepository interface {
	// ListBatches returns every batch ordered by creation time.
	ListBatches(ctx context.Context) ([]models.RawMaterialBatch, error)
	// BatchesByName returns the batches of one material ordered by creation time.
	BatchesByName(ctx context.Context, name string) ([]models.RawMaterialBatch, error)
	// GetBatch returns models.ErrNotFound when the id is unknown.
	GetBatch(ctx context.Context, id string) (models.RawMaterialBatch, error)
	// FindBatchByPrice returns models.ErrNotFound when no batch of that name has that exact price.
	FindBatchByPrice(ctx context.Context, name string, price float64) (models.RawMaterialBatch, error)
	InsertBatch(ctx context.Context, batch models.RawMaterialBatch) error
	// AddStock increases both initial and current stock of a batch.
	AddStock(ctx context.Context, id string, quantity int, at time.Time) error
	// ConsumeStock decrements current stock by usage.Quantity, provided the
	// batch still holds expected units, and appends usage to its history.
	ConsumeStock(ctx context.Context, id string, expected int, usage models.UsageRecord) error
	// ReplaceBatch overwrites the mutable fields of an existing batch.
	ReplaceBatch(ctx context.Context, batch models.RawMaterialBatch) error
}

// ProductionRepository persists production logs.
type ProductionRepository interface {
	InsertLog(ctx context.Context, log models.ProductionLog) error
	// LogsBetween returns logs dated in [start, end), ordered by date then id.
	LogsBetween(ctx context.Context, start, end time.Time) ([]models.ProductionLog, error)
	// UnpaidLogs returns every log whose wages are not yet paid.
	UnpaidLogs(ctx context.Context) ([]models.ProductionLog, error)
	// MarkShiftPaid flags the logs of a shift dated in [start, end) as paid.
	MarkShiftPaid(ctx context.Context, shift string, start, end time.Time, at time.Time) (int64, error)
	// MarkLogsPaid flags the given logs as paid.
	MarkLogsPaid(ctx context.Context, ids []string, at time.Time) (int64, error)
}

// TxFunc runs inside a store transaction. It must use the context it receives.
type TxFunc func(ctx context.Context) error

// Store is the storage handle injected into the services.
type Store interface {
	MaterialRepository
	ProductionRepository
	// WithTransaction runs fn atomically: either every write made through the
	// transaction context is kept or none is.
	WithTransaction(ctx context.Context, fn TxFunc) error
	Close(ctx context.Context) error
}
