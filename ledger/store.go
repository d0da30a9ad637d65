/*
store.go - Persistence interfaces for ledger records and product stock

PURPOSE:
  Defines the contract between the ledger and a transactional document
  store. Implementations:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite
  - store/bolt/bolt.go: bbolt

TRANSACTIONS:
  RunTransaction(ctx, fn) runs fn against a transactional view:
  - fn returns error      -> nothing is written, the error is returned as-is
  - fn returns nil        -> all writes commit atomically
  - concurrent write seen -> fn runs again on a fresh snapshot
  After MaxAttempts conflicts the call fails with *TransactionAbortedError.
  fn must therefore be safe to run more than once.

TIMESTAMPS:
  A ServerTimestamp() value in a written Record is replaced by the store's
  commit time. Updates never change a stored RegistrationDate.
*/
package ledger

import "context"

// DefaultMaxAttempts bounds how many times a transaction body is run.
const DefaultMaxAttempts = 5

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// ListRecords returns every record by TransactionDate, newest first.
	ListRecords(ctx context.Context) ([]Record, error)

	// GetRecord returns ErrRecordNotFound for an unknown id.
	GetRecord(ctx context.Context, id RecordID) (Record, error)

	// InsertRecord assigns the id of a new record.
	InsertRecord(ctx context.Context, rec Record) (RecordID, error)

	// UpdateRecord replaces the record's fields except RegistrationDate.
	// Returns ErrRecordNotFound for an unknown id.
	UpdateRecord(ctx context.Context, id RecordID, rec Record) error

	// DeleteRecord removes a record. Deleting an unknown id succeeds.
	DeleteRecord(ctx context.Context, id RecordID) error

	// RunTransaction executes fn atomically, retrying on conflict.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside RunTransaction.
type Tx interface {
	// GetProduct reads a product; ok is false when it does not exist.
	GetProduct(ctx context.Context, id ProductID) (p Product, ok bool, err error)

	// UpdateProductStock writes Sizes, NumericSizes and Stock of p.
	UpdateProductStock(ctx context.Context, p Product) error

	CreateRecord(ctx context.Context, rec Record) (RecordID, error)
	UpdateRecord(ctx context.Context, id RecordID, rec Record) error
}

// =============================================================================
// PRODUCT CATALOG - Owned elsewhere; exposed for seeding and read views
// =============================================================================

type ProductCatalog interface {
	PutProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (Product, error) // ErrProductNotFound
	ListProducts(ctx context.Context) ([]Product, error)
}

// DocumentStore is what the server needs from a backend.
type DocumentStore interface {
	Store
	ProductCatalog
	Close() error
}
