/*
stock.go - Applies a sale's line items to a product's stock

PURPOSE:
  Given a product snapshot and the sold line items, validates stock,
  decrements it and computes the sale total. This is the only stateful
  rule in the ledger.

STOCK REPRESENTATIONS:
  top:    Sizes maps a size label to a unit count.
  bottom: NumericSizes is a sequence of SizeUnit. A Slot element is one
          physical item; a Counted element carries its own stock counter.

ORDERING:
  Line items apply in input order against the product as already mutated
  by earlier items. Two items for the same size are cumulative.

PURITY:
  ApplySale never touches its input. It works on a deep copy and returns
  the copy only on success, so a store may run it again on a fresh
  snapshot when it retries a transaction.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// Sale is the outcome of applying line items to a product.
type Sale struct {
	Product     Product // mutated copy, ready to persist
	Total       decimal.Decimal
	ProductName string
}

// ApplySale applies items to a copy of product. Any failure aborts the whole
// sale; the returned Sale is only meaningful when err is nil.
func ApplySale(product Product, items []SoldSize) (Sale, error) {
	p := product.Clone()
	total := decimal.Zero

	for _, item := range items {
		var err error
		if p.ClothingType == ClothingTop {
			err = consumeTop(&p, item)
		} else {
			err = consumeBottom(&p, item)
		}
		if err != nil {
			return Sale{}, err
		}
		total = total.Add(item.Subtotal())
	}

	p.Stock = totalStock(p)
	return Sale{Product: p, Total: total, ProductName: p.Name}, nil
}

func consumeTop(p *Product, item SoldSize) error {
	available, ok := p.Sizes[string(item.Size)]
	// A size at zero is treated like a missing one, whatever the quantity.
	if !ok || available == 0 || available < item.Quantity {
		return &InsufficientStockError{Size: item.Size, Available: available, Requested: item.Quantity}
	}
	p.Sizes[string(item.Size)] = available - item.Quantity
	return nil
}

func consumeBottom(p *Product, item SoldSize) error {
	idx := indexOfSize(p.NumericSizes, item.Size)
	if idx < 0 {
		return &SizeNotFoundError{Size: item.Size}
	}

	return p.NumericSizes[idx].Match(
		func(SizeLabel) error {
			n := min(item.Quantity, len(p.NumericSizes)-idx)
			if n > 0 {
				p.NumericSizes = append(p.NumericSizes[:idx], p.NumericSizes[idx+n:]...)
			}
			return nil
		},
		func(size SizeLabel, stock int) error {
			if stock < item.Quantity {
				return &InsufficientStockError{Size: size, Available: stock, Requested: item.Quantity}
			}
			p.NumericSizes[idx].Stock = stock - item.Quantity
			return nil
		},
	)
}

func indexOfSize(units []SizeUnit, size SizeLabel) int {
	for i, u := range units {
		if u.Size == size {
			return i
		}
	}
	return -1
}

func totalStock(p Product) int {
	if p.ClothingType != ClothingTop {
		return len(p.NumericSizes)
	}
	sum := 0
	for _, n := range p.Sizes {
		sum += n
	}
	return sum
}
