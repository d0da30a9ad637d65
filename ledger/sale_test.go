package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var commitTime = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...store.Option) *store.Memory {
	t.Helper()
	opts = append([]store.Option{store.WithClock(func() time.Time { return commitTime })}, opts...)
	return store.NewMemory(opts...)
}

func putProduct(t *testing.T, s *store.Memory, p ledger.Product) {
	t.Helper()
	require.NoError(t, s.PutProduct(context.Background(), p))
}

func saleRecord(productID ledger.ProductID, items ...ledger.SoldSize) ledger.Record {
	return ledger.Record{
		Amount:           decimal.NewFromInt(999), // must be overwritten
		Kind:             ledger.KindIncome,
		Category:         "sales",
		TransactionDate:  ledger.At(time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC)),
		RegistrationDate: ledger.ServerTimestamp(),
		ProductID:        productID,
		ProductName:      "client supplied",
		SoldSizes:        items,
	}
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommitSale_TopProduct(t *testing.T) {
	// GIVEN: A shirt with 5 M
	// WHEN: A sale of 2 M at 10 is committed
	// THEN: Stock drops to 3 and the record carries the derived total and name
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))

	id, err := ledger.CommitSale(ctx, s, saleRecord("p-top", item("M", 2, 10)), "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Sizes["M"])
	assert.Equal(t, 3, p.Stock)

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "Shirt", rec.ProductName)
	assert.Equal(t, commitTime, rec.RegistrationDate.Time)
}

func TestCommitSale_BottomCounted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, bottomProduct(ledger.Counted("40", 1)))

	id, err := ledger.CommitSale(ctx, s, saleRecord("p-bottom", item("40", 1, 50)), "")
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "p-bottom")
	require.NoError(t, err)
	assert.Equal(t, 0, p.NumericSizes[0].Stock)

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Boots", rec.ProductName)
}

func TestCommitSale_UpdatesExistingRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))

	registered := ledger.At(time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC))
	existing, err := s.InsertRecord(ctx, ledger.Record{Kind: ledger.KindIncome, RegistrationDate: registered})
	require.NoError(t, err)

	rec := saleRecord("p-top", item("M", 1, 15))
	rec.RegistrationDate = ledger.Timestamp{}

	id, err := ledger.CommitSale(ctx, s, rec, existing)
	require.NoError(t, err)
	assert.Equal(t, existing, id)

	got, err := s.GetRecord(ctx, existing)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, registered, got.RegistrationDate)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// =============================================================================
// FAILURES - Nothing is written
// =============================================================================

func TestCommitSale_ProductNotFound(t *testing.T) {
	// GIVEN: An empty catalog
	// WHEN: A sale references a missing product
	// THEN: ProductNotFound and the ledger is unchanged
	ctx := context.Background()
	s := newTestStore(t)

	_, err := ledger.CommitSale(ctx, s, saleRecord("missing", item("M", 1, 10)), "")
	require.ErrorIs(t, err, ledger.ErrProductNotFound)

	var detail *ledger.ProductNotFoundError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, ledger.ProductID("missing"), detail.ProductID)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitSale_InsufficientStockWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5, "L": 1}))

	_, err := ledger.CommitSale(ctx, s, saleRecord("p-top", item("M", 2, 10), item("L", 3, 10)), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"M": 5, "L": 1}, p.Sizes)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitSale_SizeNotFoundWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, bottomProduct(slots("30", "32")...))

	_, err := ledger.CommitSale(ctx, s, saleRecord("p-bottom", item("44", 1, 10)), "")
	require.ErrorIs(t, err, ledger.ErrSizeNotFound)

	p, err := s.GetProduct(ctx, "p-bottom")
	require.NoError(t, err)
	assert.Len(t, p.NumericSizes, 2)
}

// =============================================================================
// CONCURRENCY - Retry applies the sale exactly once
// =============================================================================

func TestCommitSale_ConflictRetriesOnFreshSnapshot(t *testing.T) {
	// GIVEN: A shirt with 5 M
	// WHEN: Another writer sells 1 M while our first attempt is committing
	// THEN: Our body reruns against 4 M and the final stock is 4 - 2 = 2
	ctx := context.Background()
	var s *store.Memory
	s = newTestStore(t, store.WithBeforeCommit(func(attempt int) {
		if attempt == 1 {
			require.NoError(t, s.PutProduct(ctx, topProduct(map[string]int{"M": 4})))
		}
	}))
	putProduct(t, s, topProduct(map[string]int{"M": 5}))

	id, err := ledger.CommitSale(ctx, s, saleRecord("p-top", item("M", 2, 10)), "")
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Sizes["M"])

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(20)))
}

func TestCommitSale_AbortsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	var s *store.Memory
	bump := 10
	s = newTestStore(t,
		store.WithMaxAttempts(3),
		store.WithBeforeCommit(func(int) {
			bump++
			require.NoError(t, s.PutProduct(ctx, topProduct(map[string]int{"M": bump})))
		}),
	)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))

	_, err := ledger.CommitSale(ctx, s, saleRecord("p-top", item("M", 1, 10)), "")
	require.ErrorIs(t, err, ledger.ErrTransactionAborted)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	var aborted *ledger.TransactionAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, 3, aborted.Attempts)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 13, p.Sizes["M"], "only the concurrent writes landed")

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
