package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/infrastructure/storage/memory"
)

type recordingNotifier struct {
	got []inventory.Crossing
}

func (n *recordingNotifier) NotifyLowStock(_ context.Context, c []inventory.Crossing) {
	n.got = append(n.got, c...)
}

func newLedger() (*inventory.Ledger, *memory.Store) {
	store := memory.New()
	return inventory.NewLedger(store.Inventory(), store), store
}

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func TestAdjust_ThresholdSequenceFiresTwice(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()

	// 15 -> 8 -> 3 -> 12 -> 6 against the default threshold of 10.
	steps := []int64{15, -7, -5, 9, -6}
	var crossedAt []types.Quantity
	for _, step := range steps {
		adj, err := ledger.Adjust(ctx, product, store, qty(step))
		require.NoError(t, err)
		if adj.Crossed {
			crossedAt = append(crossedAt, adj.After)
		}
	}

	assert.Equal(t, []types.Quantity{qty(8), qty(6)}, crossedAt)

	rec, err := ledger.Get(ctx, product, store)
	require.NoError(t, err)
	assert.Equal(t, qty(6), rec.Quantity)
	assert.True(t, rec.LowStockNotified)
}

func TestAdjust_CreatesRecordOnPositiveDelta(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()

	adj, err := ledger.Adjust(ctx, product, store, qty(4))
	require.NoError(t, err)

	assert.True(t, adj.Created)
	assert.False(t, adj.Crossed)
	assert.Equal(t, types.Quantity(0), adj.Before)
	assert.Equal(t, qty(4), adj.After)
	assert.Equal(t, inventory.DefaultLowStockThreshold, adj.Threshold)
}

func TestAdjust_NegativeDeltaOnMissingRecord(t *testing.T) {
	ledger, _ := newLedger()

	_, err := ledger.Adjust(context.Background(), id.New(), id.New(), qty(-1))

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.True(t, apperror.IsConflict(err))
}

func TestAdjust_CannotGoNegative(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()
	_, err := ledger.Adjust(ctx, product, store, qty(3))
	require.NoError(t, err)

	_, err = ledger.Adjust(ctx, product, store, qty(-5))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	rec, err := ledger.Get(ctx, product, store)
	require.NoError(t, err)
	assert.Equal(t, qty(3), rec.Quantity)
}

func TestAdjust_RejectsOverflowingSum(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()
	huge := types.MustQuantity("900000000000000")
	_, err := ledger.Adjust(ctx, product, store, huge)
	require.NoError(t, err)

	_, err = ledger.Adjust(ctx, product, store, huge)
	assert.True(t, apperror.IsValidation(err))

	rec, err := ledger.Get(ctx, product, store)
	require.NoError(t, err)
	assert.Equal(t, huge, rec.Quantity)
}

func TestAdjust_ZeroDeltaRejected(t *testing.T) {
	ledger, _ := newLedger()
	_, err := ledger.Adjust(context.Background(), id.New(), id.New(), 0)
	assert.True(t, apperror.IsValidation(err))
}

func TestAdjustMany_RollsBackEveryDeltaOnFailure(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	store := id.New()
	a, b := id.New(), id.New()
	_, err := ledger.Adjust(ctx, a, store, qty(5))
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, b, store, qty(1))
	require.NoError(t, err)

	_, err = ledger.AdjustMany(ctx, []inventory.Delta{
		{ProductID: a, StoreID: store, Quantity: qty(-2)},
		{ProductID: b, StoreID: store, Quantity: qty(-2)},
	})
	require.Error(t, err)

	recA, _ := ledger.Get(ctx, a, store)
	recB, _ := ledger.Get(ctx, b, store)
	assert.Equal(t, qty(5), recA.Quantity)
	assert.Equal(t, qty(1), recB.Quantity)
}

func TestAdjustMany_MergesDuplicatesBeforeChecking(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()
	_, err := ledger.Adjust(ctx, product, store, qty(12))
	require.NoError(t, err)

	// Restoring 5 then taking 7 is a net -2: no shortage and no transient crossing.
	post, err := ledger.AdjustMany(ctx, []inventory.Delta{
		{ProductID: product, StoreID: store, Quantity: qty(5)},
		{ProductID: product, StoreID: store, Quantity: qty(-7)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, post.Len())

	rec, _ := ledger.Get(ctx, product, store)
	assert.Equal(t, qty(10), rec.Quantity)
}

func TestAdjustMany_PostCommitCarriesCrossings(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()
	_, err := ledger.Adjust(ctx, product, store, qty(11))
	require.NoError(t, err)

	post, err := ledger.AdjustMany(ctx, []inventory.Delta{
		{ProductID: product, StoreID: store, Quantity: qty(-2)},
	})
	require.NoError(t, err)

	n := &recordingNotifier{}
	post.Run(ctx, n)
	require.Len(t, n.got, 1)
	assert.Equal(t, product, n.got[0].ProductID)
	assert.Equal(t, qty(9), n.got[0].Quantity)
	assert.Equal(t, qty(10), n.got[0].Threshold)
}

func TestMergeDeltas_SortsByStoreThenProduct(t *testing.T) {
	s1 := id.MustParse("00000000-0000-0000-0000-000000000001")
	s2 := id.MustParse("00000000-0000-0000-0000-000000000002")
	p1 := id.MustParse("00000000-0000-0000-0000-0000000000a1")
	p2 := id.MustParse("00000000-0000-0000-0000-0000000000a2")

	merged := inventory.MergeDeltas([]inventory.Delta{
		{ProductID: p1, StoreID: s2, Quantity: qty(1)},
		{ProductID: p2, StoreID: s1, Quantity: qty(1)},
		{ProductID: p1, StoreID: s1, Quantity: qty(3)},
		{ProductID: p1, StoreID: s1, Quantity: qty(-3)},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, inventory.Key{StoreID: s1, ProductID: p2}, inventory.Key{StoreID: merged[0].StoreID, ProductID: merged[0].ProductID})
	assert.Equal(t, inventory.Key{StoreID: s2, ProductID: p1}, inventory.Key{StoreID: merged[1].StoreID, ProductID: merged[1].ProductID})
}

func TestSetThreshold(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	product, store := id.New(), id.New()
	_, err := ledger.Adjust(ctx, product, store, qty(8))
	require.NoError(t, err)

	rec, err := ledger.SetThreshold(ctx, product, store, qty(5))
	require.NoError(t, err)
	assert.False(t, rec.LowStockNotified)

	// Dropping from 8 to 4 now crosses the new threshold.
	adj, err := ledger.Adjust(ctx, product, store, qty(-4))
	require.NoError(t, err)
	assert.True(t, adj.Crossed)

	_, err = ledger.SetThreshold(ctx, product, store, qty(-1))
	assert.True(t, apperror.IsValidation(err))

	_, err = ledger.SetThreshold(ctx, id.New(), store, qty(1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestListByStore_LowStockOnly(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()
	store := id.New()
	low, high := id.New(), id.New()
	_, err := ledger.Adjust(ctx, low, store, qty(2))
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, high, store, qty(50))
	require.NoError(t, err)

	all, err := ledger.ListByStore(ctx, store, inventory.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyLow, err := ledger.ListByStore(ctx, store, inventory.ListFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyLow, 1)
	assert.Equal(t, low, onlyLow[0].ProductID)
}
