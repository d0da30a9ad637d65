/*
Package ledger provides the accounting ledger and the product-sale stock engine.

PURPOSE:
  Records monetary transactions (expenses and income) and, for income that
  comes from a product sale, decrements the product's clothing stock and
  derives the sale total from its line items. The stock mutation and the
  ledger write commit together or not at all.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: One persisted ledger entry
  - Draft: The form-shaped input a caller edits before saving
  - SoldSize: One sale line item (size, quantity, unit price)
  - Product: A catalog product as seen by the sale transaction
  - SizeUnit: One element of a bottom product's stock sequence

DESIGN PRINCIPLES:
  1. Derived values win: a sale's Amount and ProductName always come from
     the stock transaction, never from the caller
  2. Precision: money uses decimal.Decimal
  3. Store-assigned time: registration dates are resolved at commit

SEE ALSO:
  - stock.go: Stock applier
  - sale.go: Transactional sale committer
  - service.go: CRUD facade
  - store.go: Persistence interfaces
*/
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	RecordID  string
	ProductID string
)

// =============================================================================
// KIND - Expense or income
// =============================================================================

type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// ParseKind accepts the canonical names and the legacy Spanish ones
// ("gasto", "ingreso") still present in older documents.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "gasto":
		return KindExpense, nil
	case "income", "ingreso":
		return KindIncome, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// =============================================================================
// SIZE LABEL
// =============================================================================

// SizeLabel names a size ("M", "40"). JSON numbers are kept in their
// canonical decimal text form so that 40, 40.0 and "40" match.
type SizeLabel string

func (l SizeLabel) String() string { return string(l) }

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (l *SizeLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = SizeLabel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("size label must be a string or number: %w", err)
	}
	// 40, 40.0 and 4e1 all name size "40".
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fmt.Errorf("size label %s: %w", n, err)
	}
	*l = SizeLabel(d.String())
	return nil
}

// MarshalJSON writes numeric labels as JSON numbers and everything else as strings.
func (l SizeLabel) MarshalJSON() ([]byte, error) {
	if isNumericLabel(string(l)) {
		return []byte(l), nil
	}
	return json.Marshal(string(l))
}

func isNumericLabel(s string) bool {
	if s == "" {
		return false
	}
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return false
	}
	return n.String() == s && !dec.More()
}

// =============================================================================
// SALE LINE ITEM
// =============================================================================

// SoldSize is one sale line item.
type SoldSize struct {
	Size      SizeLabel       `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns quantity * unit price.
func (s SoldSize) Subtotal() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// =============================================================================
// RECORD - Persisted ledger entry
// =============================================================================

// Record is one accounting entry in its persisted form.
//
// INVARIANTS:
//   - RegistrationDate is set once at creation and never modified.
//   - For an income record with SoldSizes, Amount and ProductName are the
//     values derived by the sale transaction.
type Record struct {
	ID               RecordID
	Amount           decimal.Decimal
	Kind             Kind
	Category         string
	Description      string
	TransactionDate  Timestamp
	RegistrationDate Timestamp
	ProductID        ProductID
	ProductName      string
	SoldSizes        []SoldSize
}

// IsStockedSale reports whether saving r must go through the sale transaction.
func (r Record) IsStockedSale() bool {
	return r.Kind == KindIncome && len(r.SoldSizes) > 0
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	c := r
	if r.SoldSizes != nil {
		c.SoldSizes = append([]SoldSize(nil), r.SoldSizes...)
	}
	return c
}

// =============================================================================
// DRAFT - Form-shaped input
// =============================================================================

// Draft is a record as edited by a user. CurrentSize and CurrentQuantity are
// the input buffer for the next line item and are never persisted.
type Draft struct {
	Amount           decimal.Decimal
	Kind             Kind
	Category         string
	Description      string
	TransactionDate  DateInput
	RegistrationDate Timestamp
	ProductID        ProductID
	ProductName      string
	SoldSizes        []SoldSize

	CurrentSize     SizeLabel
	CurrentQuantity int
}

// EmptyDraft returns the defaults of a blank entry form.
func EmptyDraft() Draft {
	return Draft{
		Amount:          decimal.Zero,
		Kind:            KindExpense,
		SoldSizes:       []SoldSize{},
		CurrentQuantity: 1,
	}
}

// =============================================================================
// PRODUCT
// =============================================================================

// ClothingType selects which stock representation of a product is active.
type ClothingType string

const (
	ClothingTop    ClothingType = "top"
	ClothingBottom ClothingType = "bottom"
)

// Product is owned by the catalog. The ledger only reads it and rewrites
// its stock fields inside a sale transaction.
type Product struct {
	ID           ProductID
	Name         string
	ClothingType ClothingType
	Sizes        map[string]int // active when ClothingType is top
	NumericSizes []SizeUnit     // active otherwise
	Stock        int            // denormalized total
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	c := p
	if p.Sizes != nil {
		c.Sizes = make(map[string]int, len(p.Sizes))
		for k, v := range p.Sizes {
			c.Sizes[k] = v
		}
	}
	if p.NumericSizes != nil {
		c.NumericSizes = append([]SizeUnit(nil), p.NumericSizes...)
	}
	return c
}

// =============================================================================
// SIZE UNIT - Slot | Counted
// =============================================================================

type UnitKind int

const (
	// UnitSlot is one physical item per sequence element.
	UnitSlot UnitKind = iota + 1
	// UnitCounted is a size with a decrementable stock counter.
	UnitCounted
)

// SizeUnit is one element of a bottom product's NumericSizes.
// Build values with Slot or Counted.
type SizeUnit struct {
	Kind  UnitKind
	Size  SizeLabel
	Stock int // UnitCounted only
}

func Slot(size SizeLabel) SizeUnit { return SizeUnit{Kind: UnitSlot, Size: size} }

func Counted(size SizeLabel, stock int) SizeUnit {
	return SizeUnit{Kind: UnitCounted, Size: size, Stock: stock}
}

// Match dispatches to the handler for u's variant.
func (u SizeUnit) Match(slot func(size SizeLabel) error, counted func(size SizeLabel, stock int) error) error {
	switch u.Kind {
	case UnitSlot:
		return slot(u.Size)
	case UnitCounted:
		return counted(u.Size, u.Stock)
	}
	return fmt.Errorf("unknown size unit kind %d", u.Kind)
}

// MarshalJSON writes a slot as its bare label and a counted unit as {size, stock}.
func (u SizeUnit) MarshalJSON() ([]byte, error) {
	if u.Kind == UnitCounted {
		return json.Marshal(struct {
			Size  SizeLabel `json:"size"`
			Stock int       `json:"stock"`
		}{u.Size, u.Stock})
	}
	return u.Size.MarshalJSON()
}

// UnmarshalJSON reads bare labels as slots and objects as counted units.
// Objects may name the size "size" or "talla"; a missing stock is zero.
func (u *SizeUnit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var label SizeLabel
		if err := label.UnmarshalJSON(data); err != nil {
			return err
		}
		*u = Slot(label)
		return nil
	}

	var obj struct {
		Size  *SizeLabel `json:"size"`
		Talla *SizeLabel `json:"talla"`
		Stock int        `json:"stock"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	var label SizeLabel
	switch {
	case obj.Size != nil && *obj.Size != "":
		label = *obj.Size
	case obj.Talla != nil:
		label = *obj.Talla
	}
	*u = Counted(label, obj.Stock)
	return nil
}
