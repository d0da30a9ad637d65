package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-ledger/ledger"
)

// timeLayout is fixed width so that text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(ts ledger.Timestamp) string {
	if ts.IsZero() || ts.IsServer() {
		return ""
	}
	return ts.Time.UTC().Format(timeLayout)
}

func parseTime(s string) (ledger.Timestamp, error) {
	if s == "" {
		return ledger.Timestamp{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return ledger.Timestamp{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return ledger.At(t), nil
}

func scanRecord(row scanner) (ledger.Record, error) {
	var (
		rec              ledger.Record
		amount           string
		transactionDate  string
		registrationDate string
		soldJSON         string
	)

	err := row.Scan(
		&rec.ID, &amount, &rec.Kind, &rec.Category, &rec.Description,
		&transactionDate, &registrationDate, &rec.ProductID, &rec.ProductName, &soldJSON,
	)
	if err != nil {
		return rec, err
	}

	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return rec, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if rec.TransactionDate, err = parseTime(transactionDate); err != nil {
		return rec, err
	}
	if rec.RegistrationDate, err = parseTime(registrationDate); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(soldJSON), &rec.SoldSizes); err != nil {
		return rec, fmt.Errorf("invalid stored sold sizes: %w", err)
	}
	return rec, nil
}

func scanProduct(row scanner) (ledger.Product, int64, error) {
	var (
		p           ledger.Product
		sizesJSON   string
		numericJSON string
		version     int64
	)

	err := row.Scan(&p.ID, &p.Name, &p.ClothingType, &sizesJSON, &numericJSON, &p.Stock, &version)
	if err != nil {
		return p, 0, err
	}
	if err := json.Unmarshal([]byte(sizesJSON), &p.Sizes); err != nil {
		return p, 0, fmt.Errorf("invalid stored sizes for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(numericJSON), &p.NumericSizes); err != nil {
		return p, 0, fmt.Errorf("invalid stored numeric sizes for %s: %w", p.ID, err)
	}
	return p, version, nil
}

func encodeSoldSizes(items []ledger.SoldSize) (string, error) {
	if items == nil {
		items = []ledger.SoldSize{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode sold sizes: %w", err)
	}
	return string(b), nil
}

func encodeStock(p ledger.Product) (sizes, numeric string, err error) {
	s := p.Sizes
	if s == nil {
		s = map[string]int{}
	}
	n := p.NumericSizes
	if n == nil {
		n = []ledger.SizeUnit{}
	}
	sb, err := json.Marshal(s)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode sizes: %w", err)
	}
	nb, err := json.Marshal(n)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode numeric sizes: %w", err)
	}
	return string(sb), string(nb), nil
}
