package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
)

func TestPrepare_NewRecordGetsServerTimestamp(t *testing.T) {
	d := ledger.EmptyDraft()
	d.Amount = decimal.NewFromInt(12)
	d.Category = "supplies"
	d.TransactionDate = ledger.DateText("2025-03-10")
	d.CurrentSize = "M"
	d.CurrentQuantity = 3

	rec, err := ledger.Prepare(d, false)
	require.NoError(t, err)

	assert.True(t, rec.RegistrationDate.IsServer())
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), rec.TransactionDate.Time)
	assert.Equal(t, "supplies", rec.Category)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(12)))
}

func TestPrepare_EditKeepsRegistrationDate(t *testing.T) {
	registered := ledger.At(time.Date(2025, time.January, 2, 9, 0, 0, 0, time.UTC))
	d := ledger.EmptyDraft()
	d.RegistrationDate = registered

	rec, err := ledger.Prepare(d, true)
	require.NoError(t, err)

	assert.False(t, rec.RegistrationDate.IsServer())
	assert.Equal(t, registered, rec.RegistrationDate)
}

func TestPrepare_StoredDatePassesThrough(t *testing.T) {
	stored := ledger.At(time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC))
	d := ledger.EmptyDraft()
	d.TransactionDate = ledger.DateStored(stored)

	first, err := ledger.Prepare(d, true)
	require.NoError(t, err)

	// Preparing the prepared value again changes nothing.
	d.TransactionDate = ledger.DateStored(first.TransactionDate)
	second, err := ledger.Prepare(d, true)
	require.NoError(t, err)

	assert.Equal(t, stored, first.TransactionDate)
	assert.Equal(t, first.TransactionDate, second.TransactionDate)
}

func TestPrepare_Dates(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2025-03-10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2025-03-10T14:30", time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)},
		{"2025-03-10T14:30:05", time.Date(2025, 3, 10, 14, 30, 5, 0, time.UTC)},
		{"2025-03-10T14:30:05-03:00", time.Date(2025, 3, 10, 17, 30, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d := ledger.EmptyDraft()
			d.TransactionDate = ledger.DateText(tt.raw)

			rec, err := ledger.Prepare(d, false)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(rec.TransactionDate.Time))
		})
	}
}

func TestPrepare_EmptyDateStaysEmpty(t *testing.T) {
	rec, err := ledger.Prepare(ledger.EmptyDraft(), false)
	require.NoError(t, err)
	assert.True(t, rec.TransactionDate.IsZero())
}

func TestPrepare_InvalidDate(t *testing.T) {
	d := ledger.EmptyDraft()
	d.TransactionDate = ledger.DateText("next tuesday")

	_, err := ledger.Prepare(d, false)
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)
}

func TestPrepare_CopiesSoldSizes(t *testing.T) {
	d := ledger.EmptyDraft()
	d.Kind = ledger.KindIncome
	d.SoldSizes = []ledger.SoldSize{item("M", 1, 10)}

	rec, err := ledger.Prepare(d, false)
	require.NoError(t, err)

	d.SoldSizes[0].Quantity = 99
	assert.Equal(t, 1, rec.SoldSizes[0].Quantity)
	assert.True(t, rec.IsStockedSale())
}
