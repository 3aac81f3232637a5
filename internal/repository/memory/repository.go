// Package memory is an in-process implementation of repository.Store used
// for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository"
)

var _ repository.Store = (*Repository)(nil)

type txKey struct{}

// Repository keeps batches and logs in maps. Transactions are serialized and
// rolled back by restoring a snapshot taken when they start. Reads made outside
// a transaction wait for the running one to finish.
type Repository struct {
	txMu sync.RWMutex

	mu        sync.RWMutex
	batches   map[string]models.RawMaterialBatch
	logs      map[string]models.ProductionLog
	writes    int
	rollbacks int
}

// NewRepository creates an empty store.
func NewRepository() *Repository {
	return &Repository{
		batches: make(map[string]models.RawMaterialBatch),
		logs:    make(map[string]models.ProductionLog),
	}
}

// write serializes writes made outside a transaction with running transactions.
func (r *Repository) write(ctx context.Context, fn func() error) error {
	if ctx.Value(txKey{}) == nil {
		r.txMu.Lock()
		defer r.txMu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	r.writes++
	return nil
}

// view holds off running transactions for a read made outside of one.
func (r *Repository) view(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	r.txMu.RLock()
	return r.txMu.RUnlock
}

// WithTransaction runs fn with writes applied all-or-nothing.
func (r *Repository) WithTransaction(ctx context.Context, fn repository.TxFunc) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	batches := make(map[string]models.RawMaterialBatch, len(r.batches))
	for id, b := range r.batches {
		batches[id] = cloneBatch(b)
	}
	logs := make(map[string]models.ProductionLog, len(r.logs))
	for id, l := range r.logs {
		logs[id] = cloneLog(l)
	}
	r.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.mu.Lock()
		r.batches = batches
		r.logs = logs
		r.rollbacks++
		r.mu.Unlock()
		return err
	}
	return nil
}

// Writes returns how many writes were applied, rolled back ones included.
func (r *Repository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Rollbacks returns how many transactions were rolled back.
func (r *Repository) Rollbacks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rollbacks
}

// ListBatches returns every batch ordered by creation time.
func (r *Repository) ListBatches(ctx context.Context) ([]models.RawMaterialBatch, error) {
	defer r.view(ctx)()
	return r.selectBatches(func(models.RawMaterialBatch) bool { return true }), nil
}

// BatchesByName returns the batches of one material ordered by creation time.
func (r *Repository) BatchesByName(ctx context.Context, name string) ([]models.RawMaterialBatch, error) {
	defer r.view(ctx)()
	return r.selectBatches(func(b models.RawMaterialBatch) bool { return b.Name == name }), nil
}

func (r *Repository) selectBatches(keep func(models.RawMaterialBatch) bool) []models.RawMaterialBatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RawMaterialBatch, 0, len(r.batches))
	for _, b := range r.batches {
		if keep(b) {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetBatch loads one batch by id.
func (r *Repository) GetBatch(ctx context.Context, id string) (models.RawMaterialBatch, error) {
	defer r.view(ctx)()
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[id]
	if !ok {
		return models.RawMaterialBatch{}, models.NotFoundf("raw material %s", id)
	}
	return cloneBatch(b), nil
}

// FindBatchByPrice loads the oldest batch of a material bought at exactly price.
func (r *Repository) FindBatchByPrice(ctx context.Context, name string, price float64) (models.RawMaterialBatch, error) {
	defer r.view(ctx)()
	matches := r.selectBatches(func(b models.RawMaterialBatch) bool {
		return b.Name == name && b.Price == price
	})
	if len(matches) == 0 {
		return models.RawMaterialBatch{}, models.NotFoundf("%s batch at price %v", name, price)
	}
	return matches[0], nil
}

// InsertBatch stores a new batch.
func (r *Repository) InsertBatch(ctx context.Context, batch models.RawMaterialBatch) error {
	return r.write(ctx, func() error {
		if _, exists := r.batches[batch.ID]; exists {
			return models.Persistence("insert batch", errDuplicateID(batch.ID))
		}
		r.batches[batch.ID] = cloneBatch(batch)
		return nil
	})
}

// AddStock merges a repeat purchase into an existing batch.
func (r *Repository) AddStock(ctx context.Context, id string, quantity int, at time.Time) error {
	return r.write(ctx, func() error {
		b, ok := r.batches[id]
		if !ok {
			return models.NotFoundf("raw material %s", id)
		}
		b.InitialStock += quantity
		b.CurrentStock += quantity
		b.PricedAt = at
		b.LastUpdated = at
		r.batches[id] = b
		return nil
	})
}

// ConsumeStock decrements a batch only if it still holds expected units.
func (r *Repository) ConsumeStock(ctx context.Context, id string, expected int, usage models.UsageRecord) error {
	return r.write(ctx, func() error {
		b, ok := r.batches[id]
		if !ok || b.CurrentStock != expected {
			return models.Persistence("consume stock", repository.ErrStockConflict)
		}
		b.CurrentStock -= usage.Quantity
		b.DailyUsage = append(b.DailyUsage, usage)
		b.LastUpdated = usage.Date
		r.batches[id] = b
		return nil
	})
}

// ReplaceBatch overwrites the mutable fields of a batch.
func (r *Repository) ReplaceBatch(ctx context.Context, batch models.RawMaterialBatch) error {
	return r.write(ctx, func() error {
		b, ok := r.batches[batch.ID]
		if !ok {
			return models.NotFoundf("raw material %s", batch.ID)
		}
		b.Name = batch.Name
		b.Price = batch.Price
		b.InitialStock = batch.InitialStock
		b.CurrentStock = batch.CurrentStock
		b.PricedAt = batch.PricedAt
		b.LastUpdated = batch.LastUpdated
		r.batches[batch.ID] = b
		return nil
	})
}

// InsertLog stores a production log.
func (r *Repository) InsertLog(ctx context.Context, log models.ProductionLog) error {
	return r.write(ctx, func() error {
		if _, exists := r.logs[log.ID]; exists {
			return models.Persistence("insert production log", errDuplicateID(log.ID))
		}
		r.logs[log.ID] = cloneLog(log)
		return nil
	})
}

// LogsBetween returns logs dated in [start, end).
func (r *Repository) LogsBetween(ctx context.Context, start, end time.Time) ([]models.ProductionLog, error) {
	defer r.view(ctx)()
	return r.selectLogs(func(l models.ProductionLog) bool {
		return !l.Date.Before(start) && l.Date.Before(end)
	}), nil
}

// UnpaidLogs returns every log whose wages are still owed.
func (r *Repository) UnpaidLogs(ctx context.Context) ([]models.ProductionLog, error) {
	defer r.view(ctx)()
	return r.selectLogs(func(l models.ProductionLog) bool { return !l.WagesPaid }), nil
}

func (r *Repository) selectLogs(keep func(models.ProductionLog) bool) []models.ProductionLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProductionLog, 0)
	for _, l := range r.logs {
		if keep(l) {
			out = append(out, cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkShiftPaid flags the unpaid logs of a shift in [start, end) as paid.
func (r *Repository) MarkShiftPaid(ctx context.Context, shift string, start, end time.Time, at time.Time) (int64, error) {
	return r.markPaid(ctx, func(l models.ProductionLog) bool {
		return l.Shift == shift && !l.Date.Before(start) && l.Date.Before(end)
	}, at)
}

// MarkLogsPaid flags the given logs as paid.
func (r *Repository) MarkLogsPaid(ctx context.Context, ids []string, at time.Time) (int64, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return r.markPaid(ctx, func(l models.ProductionLog) bool {
		_, ok := wanted[l.ID]
		return ok
	}, at)
}

func (r *Repository) markPaid(ctx context.Context, match func(models.ProductionLog) bool, at time.Time) (int64, error) {
	var modified int64
	err := r.write(ctx, func() error {
		for id, l := range r.logs {
			if l.WagesPaid || !match(l) {
				continue
			}
			l.WagesPaid = true
			l.LastUpdated = at
			r.logs[id] = l
			modified++
		}
		return nil
	})
	return modified, err
}

// Close is a no-op.
func (r *Repository) Close(context.Context) error {
	return nil
}

func cloneBatch(b models.RawMaterialBatch) models.RawMaterialBatch {
	b.DailyUsage = append([]models.UsageRecord(nil), b.DailyUsage...)
	return b
}

func cloneLog(l models.ProductionLog) models.ProductionLog {
	l.MaterialsUsed = append([]models.MaterialUsage(nil), l.MaterialsUsed...)
	if l.Production != nil {
		counts := *l.Production
		l.Production = &counts
	}
	return l
}

type errDuplicateID string

func (e errDuplicateID) Error() string {
	return "duplicate id " + string(e)
}
