package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/stock-ledger/ledger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the demo product catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer store.Close()

		if err := seedCatalog(cmd.Context(), store); err != nil {
			return err
		}
		log.Info().Int("products", len(demoCatalog())).Str("store", cfg.StoreDriver).Msg("catalog seeded")
		return nil
	},
}

// demoCatalog covers the three stock representations.
func demoCatalog() []ledger.Product {
	return []ledger.Product{
		{
			ID:           "shirt-basic",
			Name:         "Basic Shirt",
			ClothingType: ledger.ClothingTop,
			Sizes:        map[string]int{"S": 4, "M": 5, "L": 3},
		},
		{
			ID:           "jeans-slim",
			Name:         "Slim Jeans",
			ClothingType: ledger.ClothingBottom,
			NumericSizes: []ledger.SizeUnit{
				ledger.Slot("30"), ledger.Slot("32"), ledger.Slot("32"), ledger.Slot("34"),
			},
		},
		{
			ID:           "boots-leather",
			Name:         "Leather Boots",
			ClothingType: ledger.ClothingBottom,
			NumericSizes: []ledger.SizeUnit{
				ledger.Counted("39", 2), ledger.Counted("40", 1), ledger.Counted("41", 3),
			},
		},
	}
}

func seedCatalog(ctx context.Context, catalog ledger.ProductCatalog) error {
	for _, p := range demoCatalog() {
		// Stock is derived the same way a sale recomputes it.
		sale, err := ledger.ApplySale(p, nil)
		if err != nil {
			return err
		}
		if err := catalog.PutProduct(ctx, sale.Product); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	return nil
}
