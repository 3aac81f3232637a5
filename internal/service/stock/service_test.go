package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository"
	"github.com/mamadbah2/bakery/internal/repository/memory"
)

var errDiskFull = errors.New("disk full")

// flakyStore fails the nth ConsumeStock call.
type flakyStore struct {
	*memory.Repository
	mu     sync.Mutex
	calls  int
	failAt int
}

func (f *flakyStore) ConsumeStock(ctx context.Context, id string, expected int, usage models.UsageRecord) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failAt
	f.mu.Unlock()
	if fail {
		return models.Persistence("consume stock", errDiskFull)
	}
	return f.Repository.ConsumeStock(ctx, id, expected, usage)
}

func newTestLedger(store repository.Store) *Ledger {
	l := NewLedger(store, zap.NewNop())
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return l
}

func receive(t *testing.T, l *Ledger, name string, price float64, qty int) models.RawMaterialBatch {
	t.Helper()
	b, err := l.ReceiveStock(context.Background(), models.StockReceipt{Name: name, Price: price, Quantity: qty})
	require.NoError(t, err)
	return b
}

func stockOf(t *testing.T, store repository.Store, id string) int {
	t.Helper()
	b, err := store.GetBatch(context.Background(), id)
	require.NoError(t, err)
	return b.CurrentStock
}

func TestReceiveStockMergesSamePrice(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)

	first := receive(t, l, "Flour", 10, 30)
	merged := receive(t, l, "Flour", 10, 20)
	other := receive(t, l, "Flour", 12, 70)

	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 50, merged.InitialStock)
	assert.Equal(t, 50, merged.CurrentStock)
	assert.True(t, merged.PricedAt.After(first.PricedAt))
	assert.NotEqual(t, first.ID, other.ID)

	views, err := l.ListMaterials(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.ID, views[0].ID)
	assert.Equal(t, 0, views[0].Used)
	assert.Equal(t, 50, views[0].Remaining)
	assert.False(t, views[0].OutOfStock)
}

func TestReceiveStockValidation(t *testing.T) {
	l := newTestLedger(memory.NewRepository())

	for _, receipt := range []models.StockReceipt{
		{Name: " ", Price: 1, Quantity: 1},
		{Name: "Sugar", Price: -1, Quantity: 1},
		{Name: "Sugar", Price: 1, Quantity: 0},
	} {
		_, err := l.ReceiveStock(context.Background(), receipt)
		assert.ErrorIs(t, err, models.ErrValidation, "receipt %+v", receipt)
	}
}

func TestConsumeAllocatesProportionally(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b1 := receive(t, l, "Flour", 10, 30)
	b2 := receive(t, l, "Flour", 12, 70)

	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	var committed []models.MaterialUsage
	used, err := l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: b1.ID, Quantity: 40}}, at,
		func(_ context.Context, used []models.MaterialUsage) error {
			committed = used
			return nil
		})
	require.NoError(t, err)

	want := []models.MaterialUsage{
		{MaterialID: b1.ID, Quantity: 12, UnitPrice: 10},
		{MaterialID: b2.ID, Quantity: 28, UnitPrice: 12},
	}
	assert.Equal(t, want, used)
	assert.Equal(t, want, committed)
	assert.Equal(t, 18, stockOf(t, store, b1.ID))
	assert.Equal(t, 42, stockOf(t, store, b2.ID))

	got, err := store.GetBatch(context.Background(), b2.ID)
	require.NoError(t, err)
	require.Len(t, got.DailyUsage, 1)
	assert.Equal(t, models.UsageRecord{Date: at, Quantity: 28}, got.DailyUsage[0])
}

func TestConsumeMergesRequestsForSameMaterial(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b1 := receive(t, l, "Sugar", 5, 10)
	b2 := receive(t, l, "Sugar", 6, 10)

	used, err := l.Consume(context.Background(), []models.MaterialRequest{
		{MaterialID: b1.ID, Quantity: 3},
		{MaterialID: b2.ID, Quantity: 3},
	}, time.Now(), nil)
	require.NoError(t, err)

	total := 0
	for _, u := range used {
		total += u.Quantity
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 7, stockOf(t, store, b1.ID))
	assert.Equal(t, 7, stockOf(t, store, b2.ID))
}

func TestConsumeOverRequestLeavesStockUntouched(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	flour := receive(t, l, "Flour", 10, 30)
	eggs := receive(t, l, "Eggs", 1, 12)

	called := false
	_, err := l.Consume(context.Background(), []models.MaterialRequest{
		{MaterialID: flour.ID, Quantity: 10},
		{MaterialID: eggs.ID, Quantity: 13},
	}, time.Now(), func(context.Context, []models.MaterialUsage) error {
		called = true
		return nil
	})

	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Eggs", stockErr.Name)
	assert.Equal(t, 12, stockErr.Available)
	assert.Equal(t, 13, stockErr.Requested)
	assert.False(t, called)
	assert.Equal(t, 30, stockOf(t, store, flour.ID))
	assert.Equal(t, 12, stockOf(t, store, eggs.ID))
}

func TestConsumeZeroStockBatch(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b := receive(t, l, "Flour", 10, 5)
	_, err := l.UpdateMaterial(context.Background(), b.ID, models.MaterialPatch{CurrentStock: ptr(0)})
	require.NoError(t, err)

	_, err = l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: b.ID, Quantity: 5}}, time.Now(), nil)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, 0, stockOf(t, store, b.ID))
}

func TestConsumeRollsBackOnPersistenceFailure(t *testing.T) {
	store := &flakyStore{Repository: memory.NewRepository(), failAt: 2}
	l := newTestLedger(store)
	b1 := receive(t, l, "Flour", 10, 30)
	b2 := receive(t, l, "Flour", 12, 70)

	_, err := l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: b1.ID, Quantity: 40}}, time.Now(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, 30, stockOf(t, store, b1.ID))
	assert.Equal(t, 70, stockOf(t, store, b2.ID))
	got, err := store.GetBatch(context.Background(), b1.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DailyUsage)
	assert.Equal(t, 1, store.Rollbacks())
}

func TestConsumeRollsBackWhenCommitFails(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b := receive(t, l, "Flour", 10, 30)

	_, err := l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: b.ID, Quantity: 5}}, time.Now(),
		func(context.Context, []models.MaterialUsage) error { return errDiskFull })
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 30, stockOf(t, store, b.ID))
}

func TestConsumeUnknownMaterial(t *testing.T) {
	l := newTestLedger(memory.NewRepository())
	_, err := l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: "missing", Quantity: 1}}, time.Now(), nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConsumeConcurrentRequestsNeverOverAllocate(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b1 := receive(t, l, "Flour", 10, 25)
	b2 := receive(t, l, "Flour", 11, 35)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(context.Background(), []models.MaterialRequest{{MaterialID: b1.ID, Quantity: 5}}, time.Now(), nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInsufficientStock)
				rejected++
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 12, succeeded)
	assert.Equal(t, 8, rejected)
	assert.Equal(t, 0, stockOf(t, store, b1.ID)+stockOf(t, store, b2.ID))
}

func TestUpdateMaterial(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b := receive(t, l, "Butter", 20, 10)

	updated, err := l.UpdateMaterial(context.Background(), b.ID, models.MaterialPatch{Price: ptr(25.0)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Price)
	assert.True(t, updated.PricedAt.After(b.PricedAt))

	_, err = l.UpdateMaterial(context.Background(), b.ID, models.MaterialPatch{CurrentStock: ptr(11)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.UpdateMaterial(context.Background(), b.ID, models.MaterialPatch{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.UpdateMaterial(context.Background(), "missing", models.MaterialPatch{Price: ptr(1.0)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	renamed, err := l.UpdateMaterial(context.Background(), b.ID, models.MaterialPatch{Name: ptr("Margarine")})
	require.NoError(t, err)
	assert.Equal(t, "Margarine", renamed.Name)
	assert.Equal(t, updated.PricedAt, renamed.PricedAt)
}

func quantity(n int) MeasureFunc {
	return func(context.Context) (int, error) { return n, nil }
}

func TestDeductOldestFirstClampedAtZero(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b1 := receive(t, l, "Flour", 10, 4)
	b2 := receive(t, l, "flour", 12, 10)
	other := receive(t, l, "Sugar", 3, 10)

	measured := false
	deducted, err := l.Deduct(context.Background(), "Flour", time.Now(), func(context.Context) (int, error) {
		measured = true
		return 6, nil
	})
	require.NoError(t, err)
	assert.True(t, measured)
	assert.Equal(t, 6, deducted)
	assert.Equal(t, 0, stockOf(t, store, b1.ID))
	assert.Equal(t, 8, stockOf(t, store, b2.ID))
	assert.Equal(t, 10, stockOf(t, store, other.ID))

	deducted, err = l.Deduct(context.Background(), "Flour", time.Now(), quantity(100))
	require.NoError(t, err)
	assert.Equal(t, 8, deducted)
	assert.Equal(t, 0, stockOf(t, store, b2.ID))
}

func TestDeductMeasuresInsideTransaction(t *testing.T) {
	store := memory.NewRepository()
	l := newTestLedger(store)
	b := receive(t, l, "Flour", 10, 50)

	_, err := l.Deduct(context.Background(), "Flour", time.Now(), func(ctx context.Context) (int, error) {
		require.NoError(t, store.InsertLog(ctx, models.ProductionLog{ID: "l1", Shift: "Shift 1", Date: time.Now()}))
		return 0, errDiskFull
	})
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 50, stockOf(t, store, b.ID))

	unpaid, err := store.UnpaidLogs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	_, err = l.Deduct(context.Background(), "Flour", time.Now(), quantity(-1))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 50, stockOf(t, store, b.ID))
}

func TestDeductWithoutBatches(t *testing.T) {
	l := newTestLedger(memory.NewRepository())
	measured := false
	_, err := l.Deduct(context.Background(), "Flour", time.Now(), func(context.Context) (int, error) {
		measured = true
		return 0, nil
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, measured)
}

func ptr[T any](v T) *T {
	return &v
}
