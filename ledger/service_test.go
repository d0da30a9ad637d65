package ledger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
)

func expenseDraft(date string, amount int64) ledger.Draft {
	d := ledger.EmptyDraft()
	d.Amount = decimal.NewFromInt(amount)
	d.Category = "rent"
	d.TransactionDate = ledger.DateText(date)
	return d
}

func saleDraft(productID ledger.ProductID, items ...ledger.SoldSize) ledger.Draft {
	d := ledger.EmptyDraft()
	d.Kind = ledger.KindIncome
	d.Category = "sales"
	d.TransactionDate = ledger.DateText("2025-05-30")
	d.ProductID = productID
	d.SoldSizes = items
	return d
}

func TestService_SavePlainRecord(t *testing.T) {
	// GIVEN: An expense draft
	// WHEN: It is saved
	// THEN: The record is stored as entered with a commit-time registration date
	ctx := context.Background()
	s := newTestStore(t)
	svc := ledger.NewService(s)

	id, err := svc.Save(ctx, expenseDraft("2025-04-01", 300), "")
	require.NoError(t, err)

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindExpense, rec.Kind)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, commitTime, rec.RegistrationDate.Time)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), rec.TransactionDate.Time)
}

func TestService_IncomeWithoutItemsSkipsInventory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))
	svc := ledger.NewService(s)

	d := saleDraft("p-top")
	d.Amount = decimal.NewFromInt(77)

	id, err := svc.Save(ctx, d, "")
	require.NoError(t, err)

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(77)), "amount is taken as entered")

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Sizes["M"])
}

func TestService_SaveStockedSale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))
	svc := ledger.NewService(s)

	id, err := svc.Save(ctx, saleDraft("p-top", item("M", 2, 10)), "")
	require.NoError(t, err)

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "Shirt", rec.ProductName)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Sizes["M"])
}

func TestService_SaleErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 1}))
	svc := ledger.NewService(s)

	_, err := svc.Save(ctx, saleDraft("p-top", item("M", 2, 10)), "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	_, err = svc.Save(ctx, saleDraft("p-nope", item("M", 1, 10)), "")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestService_EditKeepsRegistrationDate(t *testing.T) {
	ctx := context.Background()
	clock := commitTime
	s := newTestStore(t)
	svc := ledger.NewService(s)

	id, err := svc.Save(ctx, expenseDraft("2025-04-01", 300), "")
	require.NoError(t, err)
	original, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, clock, original.RegistrationDate.Time)

	d := expenseDraft("2025-04-02", 350)
	d.RegistrationDate = original.RegistrationDate
	saved, err := svc.Save(ctx, d, id)
	require.NoError(t, err)
	assert.Equal(t, id, saved)

	updated, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, original.RegistrationDate, updated.RegistrationDate)
}

func TestService_EditUnknownRecord(t *testing.T) {
	svc := ledger.NewService(newTestStore(t))

	_, err := svc.Save(context.Background(), expenseDraft("2025-04-01", 1), "missing")
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestService_InvalidDateIsRejected(t *testing.T) {
	svc := ledger.NewService(newTestStore(t))

	_, err := svc.Save(context.Background(), expenseDraft("31/02/2025", 1), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)
}

func TestService_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(newTestStore(t))

	for _, date := range []string{"2025-01-15", "2025-03-01", "2024-12-31"} {
		_, err := svc.Save(ctx, expenseDraft(date, 1), "")
		require.NoError(t, err)
	}

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2025, records[0].TransactionDate.Time.Year())
	assert.Equal(t, time.March, records[0].TransactionDate.Time.Month())
	assert.Equal(t, time.January, records[1].TransactionDate.Time.Month())
	assert.Equal(t, 2024, records[2].TransactionDate.Time.Year())
}

func TestService_RemoveLeavesProductsAlone(t *testing.T) {
	// GIVEN: A committed sale
	// WHEN: Its record is removed
	// THEN: The record is gone and the stock is not restored
	ctx := context.Background()
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 5}))
	svc := ledger.NewService(s)

	id, err := svc.Save(ctx, saleDraft("p-top", item("M", 2, 10)), "")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, id))

	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	p, err := s.GetProduct(ctx, "p-top")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Sizes["M"])
}

func TestService_RemoveUnknownSucceeds(t *testing.T) {
	svc := ledger.NewService(newTestStore(t))
	assert.NoError(t, svc.Remove(context.Background(), "never-existed"))
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestService_LogsRejectedSalesAsWarnings(t *testing.T) {
	// GIVEN: A sale asking for more stock than exists
	// WHEN: It is saved
	// THEN: The rejection is logged at warn with the product id
	var buf bytes.Buffer
	s := newTestStore(t)
	putProduct(t, s, topProduct(map[string]int{"M": 1}))
	svc := ledger.NewService(s, ledger.WithLogger(zerolog.New(&buf)))

	_, err := svc.Save(context.Background(), saleDraft("p-top", item("M", 2, 10)), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "sale rejected", entry["message"])
	assert.Equal(t, "p-top", entry["product_id"])
}

func TestService_LogsAbortedSalesAsErrors(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	var s *store.Memory
	s = newTestStore(t, store.WithMaxAttempts(1), store.WithBeforeCommit(func(int) {
		require.NoError(t, s.PutProduct(ctx, topProduct(map[string]int{"M": 9})))
	}))
	putProduct(t, s, topProduct(map[string]int{"M": 5}))
	svc := ledger.NewService(s, ledger.WithLogger(zerolog.New(&buf)))

	_, err := svc.Save(ctx, saleDraft("p-top", item("M", 1, 10)), "")
	require.ErrorIs(t, err, ledger.ErrTransactionAborted)

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "sale failed", entry["message"])
}
