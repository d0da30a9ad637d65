package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/config"
	ledgerstore "github.com/warp/stock-ledger/ledger/store"
)

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	store := ledgerstore.NewMemory()

	require.NoError(t, seedCatalog(ctx, store))

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(demoCatalog()))

	stock := map[string]int{}
	for _, p := range products {
		stock[string(p.ID)] = p.Stock
	}
	assert.Equal(t, map[string]int{"boots-leather": 3, "jeans-slim": 4, "shirt-basic": 12}, stock)

	// Seeding twice replaces rather than duplicates.
	require.NoError(t, seedCatalog(ctx, store))
	products, err = store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(demoCatalog()))
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite, config.DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{StoreDriver: driver, DBPath: filepath.Join(dir, driver+".db"), TxMaxAttempts: 3}

			store, err := openStore(cfg)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, seedCatalog(context.Background(), store))
		})
	}

	_, err := openStore(&config.Config{StoreDriver: "postgres"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.NoError(t, err)

	_, err = newLogger(&config.Config{LogLevel: "loud"})
	assert.Error(t, err)
}
