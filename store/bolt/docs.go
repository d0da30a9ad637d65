package bolt

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-ledger/ledger"
)

// recordDoc is the stored JSON form of a ledger record.
type recordDoc struct {
	ID               string            `json:"id"`
	Amount           decimal.Decimal   `json:"amount"`
	Kind             string            `json:"kind"`
	Category         string            `json:"category"`
	Description      string            `json:"description"`
	TransactionDate  *time.Time        `json:"transactionDate,omitempty"`
	RegistrationDate *time.Time        `json:"registrationDate,omitempty"`
	ProductID        string            `json:"productId,omitempty"`
	ProductName      string            `json:"productName,omitempty"`
	SoldSizes        []ledger.SoldSize `json:"soldSizes,omitempty"`
}

func toRecordDoc(r ledger.Record) recordDoc {
	return recordDoc{
		ID:               string(r.ID),
		Amount:           r.Amount,
		Kind:             string(r.Kind),
		Category:         r.Category,
		Description:      r.Description,
		TransactionDate:  timePtr(r.TransactionDate),
		RegistrationDate: timePtr(r.RegistrationDate),
		ProductID:        string(r.ProductID),
		ProductName:      r.ProductName,
		SoldSizes:        r.SoldSizes,
	}
}

func decodeRecord(data []byte) (ledger.Record, error) {
	var d recordDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return ledger.Record{}, err
	}
	r := ledger.Record{
		ID:          ledger.RecordID(d.ID),
		Amount:      d.Amount,
		Kind:        ledger.Kind(d.Kind),
		Category:    d.Category,
		Description: d.Description,
		ProductID:   ledger.ProductID(d.ProductID),
		ProductName: d.ProductName,
		SoldSizes:   d.SoldSizes,
	}
	if d.TransactionDate != nil {
		r.TransactionDate = ledger.At(*d.TransactionDate)
	}
	if d.RegistrationDate != nil {
		r.RegistrationDate = ledger.At(*d.RegistrationDate)
	}
	return r, nil
}

func timePtr(ts ledger.Timestamp) *time.Time {
	if ts.IsZero() || ts.IsServer() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

// productDoc mirrors the catalog's document shape.
type productDoc struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ClothingType string            `json:"clothingType"`
	Sizes        map[string]int    `json:"sizes,omitempty"`
	NumericSizes []ledger.SizeUnit `json:"numericSizes,omitempty"`
	Stock        int               `json:"stock"`
}

func toProductDoc(p ledger.Product) productDoc {
	return productDoc{
		ID:           string(p.ID),
		Name:         p.Name,
		ClothingType: string(p.ClothingType),
		Sizes:        p.Sizes,
		NumericSizes: p.NumericSizes,
		Stock:        p.Stock,
	}
}

func (d productDoc) product() ledger.Product {
	return ledger.Product{
		ID:           ledger.ProductID(d.ID),
		Name:         d.Name,
		ClothingType: ledger.ClothingType(d.ClothingType),
		Sizes:        d.Sizes,
		NumericSizes: d.NumericSizes,
		Stock:        d.Stock,
	}
}
