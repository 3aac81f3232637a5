package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository"
)

// CommitFunc persists whatever depends on a stock consumption. It runs in the
// same transaction as the batch updates.
type CommitFunc func(ctx context.Context, used []models.MaterialUsage) error

// Ledger owns raw-material batches and serializes stock changes per material.
type Ledger struct {
	store  repository.Store
	locks  *lockSet
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger wires a ledger on top of the given store.
func NewLedger(store repository.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		locks:  newLockSet(),
		logger: logger,
		now:    time.Now,
	}
}

// ListMaterials returns every batch with its derived stock figures.
func (l *Ledger) ListMaterials(ctx context.Context) ([]models.MaterialView, error) {
	batches, err := l.store.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}

	views := make([]models.MaterialView, 0, len(batches))
	for _, b := range batches {
		views = append(views, models.NewMaterialView(b))
	}
	return views, nil
}

// ReceiveStock records a purchase. A purchase at the exact price of an
// existing batch of the same material is merged into that batch; any other
// price opens a new batch.
func (l *Ledger) ReceiveStock(ctx context.Context, receipt models.StockReceipt) (models.RawMaterialBatch, error) {
	name := strings.TrimSpace(receipt.Name)
	switch {
	case name == "":
		return models.RawMaterialBatch{}, models.Validationf("material name is required")
	case receipt.Price < 0:
		return models.RawMaterialBatch{}, models.Validationf("price must not be negative")
	case receipt.Quantity <= 0:
		return models.RawMaterialBatch{}, models.Validationf("quantity must be positive")
	}

	release := l.locks.acquire(name)
	defer release()

	now := l.now()
	var batch models.RawMaterialBatch
	err := l.store.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := l.store.FindBatchByPrice(ctx, name, receipt.Price)
		switch {
		case err == nil:
			if err := l.store.AddStock(ctx, existing.ID, receipt.Quantity, now); err != nil {
				return err
			}
			batch, err = l.store.GetBatch(ctx, existing.ID)
			return err
		case errors.Is(err, models.ErrNotFound):
			batch = models.RawMaterialBatch{
				ID:           repository.NewID(),
				Name:         name,
				Price:        receipt.Price,
				InitialStock: receipt.Quantity,
				CurrentStock: receipt.Quantity,
				DailyUsage:   []models.UsageRecord{},
				CreatedAt:    now,
				PricedAt:     now,
				LastUpdated:  now,
			}
			return l.store.InsertBatch(ctx, batch)
		default:
			return err
		}
	})
	if err != nil {
		l.logger.Error("receive stock failed", zap.String("material", name), zap.Error(err))
		return models.RawMaterialBatch{}, fmt.Errorf("receive stock for %s: %w", name, err)
	}

	l.logger.Info("stock received",
		zap.String("material", name),
		zap.String("batch_id", batch.ID),
		zap.Float64("price", receipt.Price),
		zap.Int("quantity", receipt.Quantity),
		zap.Int("current_stock", batch.CurrentStock))
	return batch, nil
}

// UpdateMaterial patches a batch directly. Stock figures must stay within
// 0 <= currentStock <= initialStock.
func (l *Ledger) UpdateMaterial(ctx context.Context, id string, patch models.MaterialPatch) (models.RawMaterialBatch, error) {
	if patch.Empty() {
		return models.RawMaterialBatch{}, models.Validationf("no updatable field provided")
	}

	current, err := l.store.GetBatch(ctx, id)
	if err != nil {
		return models.RawMaterialBatch{}, fmt.Errorf("update material: %w", err)
	}

	names := []string{current.Name}
	if patch.Name != nil {
		names = append(names, *patch.Name)
	}
	release := l.locks.acquire(names...)
	defer release()

	now := l.now()
	var updated models.RawMaterialBatch
	err = l.store.WithTransaction(ctx, func(ctx context.Context) error {
		batch, err := l.store.GetBatch(ctx, id)
		if err != nil {
			return err
		}

		updated = patch.Apply(batch)
		updated.Name = strings.TrimSpace(updated.Name)
		if err := validateBatch(updated); err != nil {
			return err
		}
		if updated.Price != batch.Price {
			updated.PricedAt = now
		}
		updated.LastUpdated = now
		return l.store.ReplaceBatch(ctx, updated)
	})
	if err != nil {
		return models.RawMaterialBatch{}, fmt.Errorf("update material %s: %w", id, err)
	}

	l.logger.Info("material updated", zap.String("batch_id", id), zap.String("material", updated.Name))
	return updated, nil
}

func validateBatch(b models.RawMaterialBatch) error {
	switch {
	case b.Name == "":
		return models.Validationf("material name must not be empty")
	case b.Price < 0:
		return models.Validationf("price must not be negative")
	case b.InitialStock < 0:
		return models.Validationf("initialStock must not be negative")
	case b.CurrentStock < 0:
		return models.Validationf("currentStock must not be negative")
	case b.CurrentStock > b.InitialStock:
		return models.Validationf("currentStock %d exceeds initialStock %d", b.CurrentStock, b.InitialStock)
	}
	return nil
}

type materialDemand struct {
	name     string
	quantity int
}

// Consume allocates every requested material across its batches and runs
// commit in the same transaction. Requests naming batches of the same
// material are merged. Either all batch writes and commit succeed or nothing
// is kept.
func (l *Ledger) Consume(ctx context.Context, requests []models.MaterialRequest, at time.Time, commit CommitFunc) ([]models.MaterialUsage, error) {
	demands, err := l.resolve(ctx, requests)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(demands))
	for i, d := range demands {
		names[i] = d.name
	}
	release := l.locks.acquire(names...)
	defer release()

	var used []models.MaterialUsage
	err = l.store.WithTransaction(ctx, func(ctx context.Context) error {
		used = make([]models.MaterialUsage, 0)
		for _, d := range demands {
			usage, err := l.allocate(ctx, d, at)
			if err != nil {
				return err
			}
			used = append(used, usage...)
		}
		if commit == nil {
			return nil
		}
		return commit(ctx, used)
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			l.logger.Warn("stock allocation rejected", zap.Error(err))
		} else {
			l.logger.Error("stock allocation failed", zap.Error(err))
		}
		return nil, err
	}

	for _, d := range demands {
		l.logger.Debug("stock allocated", zap.String("material", d.name), zap.Int("quantity", d.quantity))
	}
	return used, nil
}

// resolve maps material ids to names and merges quantities per name,
// keeping the order in which materials first appear.
func (l *Ledger) resolve(ctx context.Context, requests []models.MaterialRequest) ([]materialDemand, error) {
	demands := make([]materialDemand, 0, len(requests))
	index := make(map[string]int, len(requests))

	for _, req := range requests {
		if strings.TrimSpace(req.MaterialID) == "" {
			return nil, models.Validationf("materialId is required")
		}
		if req.Quantity < 0 {
			return nil, models.Validationf("quantity for material %s must not be negative", req.MaterialID)
		}

		batch, err := l.store.GetBatch(ctx, req.MaterialID)
		if err != nil {
			return nil, fmt.Errorf("resolve material: %w", err)
		}

		if i, ok := index[batch.Name]; ok {
			demands[i].quantity += req.Quantity
			continue
		}
		index[batch.Name] = len(demands)
		demands = append(demands, materialDemand{name: batch.Name, quantity: req.Quantity})
	}
	return demands, nil
}

func (l *Ledger) allocate(ctx context.Context, d materialDemand, at time.Time) ([]models.MaterialUsage, error) {
	batches, err := l.store.BatchesByName(ctx, d.name)
	if err != nil {
		return nil, err
	}

	allocations, err := Allocate(d.name, Levels(batches), d.quantity)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.RawMaterialBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	used := make([]models.MaterialUsage, 0, len(allocations))
	for _, a := range allocations {
		batch := byID[a.BatchID]
		usage := models.UsageRecord{Date: at, Quantity: a.Quantity}
		if err := l.store.ConsumeStock(ctx, batch.ID, batch.CurrentStock, usage); err != nil {
			return nil, fmt.Errorf("consume %d %s from batch %s: %w", a.Quantity, d.name, batch.ID, err)
		}
		used = append(used, models.MaterialUsage{
			MaterialID: batch.ID,
			Quantity:   a.Quantity,
			UnitPrice:  batch.Price,
		})
	}
	return used, nil
}

// MeasureFunc runs inside the deduction transaction while the material is
// locked and returns the quantity to deduct.
type MeasureFunc func(ctx context.Context) (int, error)

// Deduct removes the quantity returned by measure from the batches whose name
// matches name case insensitively, oldest first, never taking a batch below
// zero. It returns the quantity actually deducted. measure can read and settle
// whatever the quantity is derived from; its writes commit or roll back with
// the deduction. models.ErrNotFound is returned when the material has no batch.
func (l *Ledger) Deduct(ctx context.Context, name string, at time.Time, measure MeasureFunc) (int, error) {
	release := l.locks.acquire(name)
	defer release()

	deducted := 0
	err := l.store.WithTransaction(ctx, func(ctx context.Context) error {
		deducted = 0
		all, err := l.store.ListBatches(ctx)
		if err != nil {
			return err
		}

		batches := make([]models.RawMaterialBatch, 0, len(all))
		for _, b := range all {
			if strings.EqualFold(b.Name, name) {
				batches = append(batches, b)
			}
		}
		if len(batches) == 0 {
			return models.NotFoundf("no %s batch", name)
		}

		quantity, err := measure(ctx)
		if err != nil {
			return err
		}
		if quantity < 0 {
			return models.Validationf("quantity must not be negative")
		}

		remaining := quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}
			if b.CurrentStock == 0 {
				continue
			}
			take := min(remaining, b.CurrentStock)
			usage := models.UsageRecord{Date: at, Quantity: take}
			if err := l.store.ConsumeStock(ctx, b.ID, b.CurrentStock, usage); err != nil {
				return fmt.Errorf("deduct %d %s from batch %s: %w", take, name, b.ID, err)
			}
			remaining -= take
			deducted += take
		}
		if remaining > 0 {
			l.logger.Warn("deduction exceeds stock on hand",
				zap.String("material", name),
				zap.Int("requested", quantity),
				zap.Int("short", remaining))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deducted, nil
}
