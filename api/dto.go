/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Accounts:  AccountDTO, SaveAccountRequest, SoldSizeDTO
  Products:  ProductDTO
  Errors:    ErrorResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
  Amounts are decimals and accept JSON numbers or strings.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// SoldSizeDTO is one sale line item. Size accepts a string or a number.
type SoldSizeDTO struct {
	Size      ledger.SizeLabel `json:"size"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
}

// AccountDTO represents a ledger record in API responses.
type AccountDTO struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Kind             string          `json:"kind"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	TransactionDate  string          `json:"transaction_date,omitempty"`
	RegistrationDate string          `json:"registration_date,omitempty"`
	ProductID        string          `json:"product_id,omitempty"`
	ProductName      string          `json:"product_name,omitempty"`
	SoldSizes        []SoldSizeDTO   `json:"sold_sizes"`
}

// SaveAccountRequest is the body of create and update. For a sale (income
// with sold_sizes) the amount and product_name sent are ignored.
// current_size and current_quantity are the form's line-item buffer; they
// are accepted and dropped.
type SaveAccountRequest struct {
	Amount          decimal.Decimal  `json:"amount"`
	Kind            string           `json:"kind"`
	Category        string           `json:"category"`
	Description     string           `json:"description"`
	TransactionDate string           `json:"transaction_date"`
	ProductID       string           `json:"product_id"`
	ProductName     string           `json:"product_name"`
	SoldSizes       []SoldSizeDTO    `json:"sold_sizes"`
	CurrentSize     ledger.SizeLabel `json:"current_size,omitempty"`
	CurrentQuantity int              `json:"current_quantity,omitempty"`
}

// SaveAccountResponse returns the id of the written record.
type SaveAccountResponse struct {
	ID string `json:"id"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO is a catalog product. numeric_sizes elements are either bare
// labels (one item each) or {"size", "stock"} objects.
type ProductDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ClothingType string            `json:"clothing_type"`
	Sizes        map[string]int    `json:"sizes,omitempty"`
	NumericSizes []ledger.SizeUnit `json:"numeric_sizes,omitempty"`
	Stock        int               `json:"stock"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(r ledger.Record) AccountDTO {
	dto := AccountDTO{
		ID:               string(r.ID),
		Amount:           r.Amount,
		Kind:             string(r.Kind),
		Category:         r.Category,
		Description:      r.Description,
		TransactionDate:  formatTimestamp(r.TransactionDate),
		RegistrationDate: formatTimestamp(r.RegistrationDate),
		ProductID:        string(r.ProductID),
		ProductName:      r.ProductName,
		SoldSizes:        make([]SoldSizeDTO, len(r.SoldSizes)),
	}
	for i, s := range r.SoldSizes {
		dto.SoldSizes[i] = SoldSizeDTO{Size: s.Size, Quantity: s.Quantity, UnitPrice: s.UnitPrice}
	}
	return dto
}

func (req SaveAccountRequest) toDraft(kind ledger.Kind) ledger.Draft {
	d := ledger.EmptyDraft()
	d.Amount = req.Amount
	d.Kind = kind
	d.Category = req.Category
	d.Description = req.Description
	d.TransactionDate = ledger.DateText(req.TransactionDate)
	d.ProductID = ledger.ProductID(req.ProductID)
	d.ProductName = req.ProductName
	d.CurrentSize = req.CurrentSize
	if req.CurrentQuantity > 0 {
		d.CurrentQuantity = req.CurrentQuantity
	}
	if len(req.SoldSizes) > 0 {
		d.SoldSizes = make([]ledger.SoldSize, len(req.SoldSizes))
		for i, s := range req.SoldSizes {
			d.SoldSizes[i] = ledger.SoldSize{Size: s.Size, Quantity: s.Quantity, UnitPrice: s.UnitPrice}
		}
	}
	return d
}

func toProductDTO(p ledger.Product) ProductDTO {
	return ProductDTO{
		ID:           string(p.ID),
		Name:         p.Name,
		ClothingType: string(p.ClothingType),
		Sizes:        p.Sizes,
		NumericSizes: p.NumericSizes,
		Stock:        p.Stock,
	}
}

func (dto ProductDTO) toProduct() ledger.Product {
	return ledger.Product{
		ID:           ledger.ProductID(dto.ID),
		Name:         dto.Name,
		ClothingType: ledger.ClothingType(dto.ClothingType),
		Sizes:        dto.Sizes,
		NumericSizes: dto.NumericSizes,
		Stock:        dto.Stock,
	}
}

func formatTimestamp(ts ledger.Timestamp) string {
	if ts.IsZero() || ts.IsServer() {
		return ""
	}
	return ts.Time.UTC().Format(time.RFC3339)
}
