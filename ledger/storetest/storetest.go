// Package storetest holds behavior checks shared by every ledger.DocumentStore
// implementation. Each adapter's tests call Run with a constructor.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
)

// Opener returns an empty store whose commit timestamps come from clock.
type Opener func(t *testing.T, clock func() time.Time) ledger.DocumentStore

// CommitTime is the clock value Run passes to the Opener.
var CommitTime = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func Run(t *testing.T, open Opener) {
	clock := func() time.Time { return CommitTime }
	newStore := func(t *testing.T) ledger.DocumentStore {
		s := open(t, clock)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("InsertResolvesServerTimestamp", func(t *testing.T) { testInsert(t, newStore(t)) })
	t.Run("UpdateKeepsRegistrationDate", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateUnknownRecord", func(t *testing.T) { testUpdateUnknown(t, newStore(t)) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ProductRoundTrip", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("TransactionCommitsSale", func(t *testing.T) { testSale(t, newStore(t)) })
	t.Run("TransactionRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("TransactionMissingProduct", func(t *testing.T) { testMissingProduct(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

func day(d int) ledger.Timestamp {
	return ledger.At(time.Date(2025, time.May, d, 0, 0, 0, 0, time.UTC))
}

func expense(date ledger.Timestamp, amount int64) ledger.Record {
	return ledger.Record{
		Amount:           decimal.NewFromInt(amount),
		Kind:             ledger.KindExpense,
		Category:         "rent",
		Description:      "monthly",
		TransactionDate:  date,
		RegistrationDate: ledger.ServerTimestamp(),
	}
}

func shirt() ledger.Product {
	return ledger.Product{
		ID:           "shirt",
		Name:         "Shirt",
		ClothingType: ledger.ClothingTop,
		Sizes:        map[string]int{"M": 5, "L": 2},
		Stock:        7,
	}
}

func jeans() ledger.Product {
	return ledger.Product{
		ID:           "jeans",
		Name:         "Jeans",
		ClothingType: ledger.ClothingBottom,
		NumericSizes: []ledger.SizeUnit{ledger.Slot("30"), ledger.Counted("32", 2), ledger.Slot("M")},
		Stock:        3,
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func testInsert(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	id, err := s.InsertRecord(ctx, expense(day(3), 120))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, ledger.KindExpense, got.Kind)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "rent", got.Category)
	assert.Equal(t, "monthly", got.Description)
	assert.True(t, day(3).Time.Equal(got.TransactionDate.Time))
	assert.False(t, got.RegistrationDate.IsServer())
	assert.True(t, CommitTime.Equal(got.RegistrationDate.Time))
}

func testUpdate(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	id, err := s.InsertRecord(ctx, expense(day(3), 120))
	require.NoError(t, err)

	edited := expense(day(4), 150)
	edited.RegistrationDate = day(1)
	require.NoError(t, s.UpdateRecord(ctx, id, edited))

	got, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, day(4).Time.Equal(got.TransactionDate.Time))
	assert.True(t, CommitTime.Equal(got.RegistrationDate.Time), "registration date is set once")
}

func testUpdateUnknown(t *testing.T, s ledger.DocumentStore) {
	err := s.UpdateRecord(context.Background(), "missing", expense(day(3), 1))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func testDelete(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	id, err := s.InsertRecord(ctx, expense(day(3), 1))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(ctx, id))
	require.NoError(t, s.DeleteRecord(ctx, id))

	_, err = s.GetRecord(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func testListOrder(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	mid, err := s.InsertRecord(ctx, expense(day(10), 1))
	require.NoError(t, err)
	oldest, err := s.InsertRecord(ctx, expense(day(2), 1))
	require.NoError(t, err)
	newest, err := s.InsertRecord(ctx, expense(day(20), 1))
	require.NoError(t, err)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []ledger.RecordID{newest, mid, oldest},
		[]ledger.RecordID{records[0].ID, records[1].ID, records[2].ID})
}

// =============================================================================
// PRODUCTS
// =============================================================================

func testProducts(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.PutProduct(ctx, shirt()))
	require.NoError(t, s.PutProduct(ctx, jeans()))

	got, err := s.GetProduct(ctx, "jeans")
	require.NoError(t, err)
	assert.Equal(t, jeans().NumericSizes, got.NumericSizes)
	assert.Equal(t, ledger.ClothingBottom, got.ClothingType)
	assert.Equal(t, 3, got.Stock)

	got, err = s.GetProduct(ctx, "shirt")
	require.NoError(t, err)
	assert.Equal(t, shirt().Sizes, got.Sizes)

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ledger.ProductID("jeans"), list[0].ID)
	assert.Equal(t, ledger.ProductID("shirt"), list[1].ID)

	_, err = s.GetProduct(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	assert.Error(t, s.PutProduct(ctx, ledger.Product{Name: "no id"}))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testSale(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.PutProduct(ctx, jeans()))

	rec := ledger.Record{
		Kind:             ledger.KindIncome,
		TransactionDate:  day(5),
		RegistrationDate: ledger.ServerTimestamp(),
		ProductID:        "jeans",
		SoldSizes: []ledger.SoldSize{
			{Size: "32", Quantity: 2, UnitPrice: decimal.NewFromInt(40)},
			{Size: "30", Quantity: 1, UnitPrice: decimal.NewFromInt(35)},
		},
	}
	id, err := ledger.CommitSale(ctx, s, rec, "")
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "jeans")
	require.NoError(t, err)
	assert.Equal(t, []ledger.SizeUnit{ledger.Counted("32", 0), ledger.Slot("M")}, p.NumericSizes)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, "Jeans", p.Name, "catalog fields survive a stock write")

	saved, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.True(t, saved.Amount.Equal(decimal.NewFromInt(115)))
	assert.Equal(t, "Jeans", saved.ProductName)
	assert.True(t, CommitTime.Equal(saved.RegistrationDate.Time))
	require.Len(t, saved.SoldSizes, 2)
	assert.Equal(t, ledger.SizeLabel("32"), saved.SoldSizes[0].Size)
}

func testRollback(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.PutProduct(ctx, shirt()))
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, ok, err := tx.GetProduct(ctx, "shirt")
		require.NoError(t, err)
		require.True(t, ok)
		p.Sizes["M"] = 0
		if err := tx.UpdateProductStock(ctx, p); err != nil {
			return err
		}
		if _, err := tx.CreateRecord(ctx, expense(day(1), 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ledger.ErrTransactionAborted, "body errors are returned unchanged")

	p, err := s.GetProduct(ctx, "shirt")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Sizes["M"])

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testMissingProduct(t *testing.T, s ledger.DocumentStore) {
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, ok, err := tx.GetProduct(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	_, err = ledger.CommitSale(ctx, s, ledger.Record{
		Kind:      ledger.KindIncome,
		ProductID: "ghost",
		SoldSizes: []ledger.SoldSize{{Size: "M", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	}, "")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
