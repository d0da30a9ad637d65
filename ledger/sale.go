package ledger

import (
	"context"
	"fmt"
)

// CommitSale records a product sale in one store transaction: the product's
// stock is decremented, the record's Amount and ProductName are replaced by
// the derived values, and the record is created (existingID empty) or
// updated. Nothing is written if any step fails.
//
// The transaction body may run several times; each run starts from rec,
// never from a previous run's result.
func CommitSale(ctx context.Context, store Store, rec Record, existingID RecordID) (RecordID, error) {
	var saved RecordID

	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		product, ok, err := tx.GetProduct(ctx, rec.ProductID)
		if err != nil {
			return fmt.Errorf("read product %s: %w", rec.ProductID, err)
		}
		if !ok {
			return &ProductNotFoundError{ProductID: rec.ProductID}
		}

		sale, err := ApplySale(product, rec.SoldSizes)
		if err != nil {
			return err
		}
		if err := tx.UpdateProductStock(ctx, sale.Product); err != nil {
			return fmt.Errorf("write product %s: %w", rec.ProductID, err)
		}

		entry := rec.Clone()
		entry.Amount = sale.Total
		entry.ProductName = sale.ProductName

		if existingID != "" {
			if err := tx.UpdateRecord(ctx, existingID, entry); err != nil {
				return err
			}
			saved = existingID
			return nil
		}
		id, err := tx.CreateRecord(ctx, entry)
		if err != nil {
			return err
		}
		saved = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return saved, nil
}
