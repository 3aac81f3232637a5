package stock

import "github.com/mamadbah2/bakery/internal/domain/models"

// StockLevel is the stock a batch can contribute to an allocation.
type StockLevel struct {
	BatchID   string
	Available int
}

// Allocation is the quantity taken from one batch.
type Allocation struct {
	BatchID  string
	Quantity int
}

// Allocate spreads requested units over levels in proportion to each
// batch's available stock. Shares are floored and the shortfall is handed
// out one unit at a time, in level order, to batches with spare capacity.
// Only positive allocations are returned, in level order.
func Allocate(name string, levels []StockLevel, requested int) ([]Allocation, error) {
	if requested < 0 {
		return nil, models.Validationf("quantity for %s must not be negative, got %d", name, requested)
	}

	total := 0
	for _, l := range levels {
		if l.Available < 0 {
			return nil, models.Validationf("batch %s of %s has negative stock %d", l.BatchID, name, l.Available)
		}
		total += l.Available
	}

	if requested > total {
		return nil, &models.InsufficientStockError{Name: name, Available: total, Requested: requested}
	}
	if requested == 0 {
		return []Allocation{}, nil
	}

	shares := make([]int, len(levels))
	allocated := 0
	for i, l := range levels {
		shares[i] = int(int64(l.Available) * int64(requested) / int64(total))
		allocated += shares[i]
	}

	// The floored remainder is smaller than the number of batches with a
	// fractional share, so a single pass normally settles it.
	remainder := requested - allocated
	for remainder > 0 {
		progressed := false
		for i, l := range levels {
			if remainder == 0 {
				break
			}
			if shares[i] < l.Available {
				shares[i]++
				remainder--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	out := make([]Allocation, 0, len(levels))
	for i, l := range levels {
		if shares[i] > 0 {
			out = append(out, Allocation{BatchID: l.BatchID, Quantity: shares[i]})
		}
	}
	return out, nil
}

// Levels converts batches to allocation input, preserving their order.
func Levels(batches []models.RawMaterialBatch) []StockLevel {
	levels := make([]StockLevel, len(batches))
	for i, b := range batches {
		levels[i] = StockLevel{BatchID: b.ID, Available: b.CurrentStock}
	}
	return levels
}
