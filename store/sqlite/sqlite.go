/*
Package sqlite provides a SQLite-backed implementation of ledger.DocumentStore.

PURPOSE:
  Persists ledger records and the product catalog in SQLite. Products keep
  their two stock representations as JSON columns so a bottom product's
  mixed Slot/Counted sequence round-trips unchanged.

KEY TABLES:
  accounts:  Ledger records (expense/income)
  products:  Catalog products with a version column for optimistic writes

INDEXES:
  - idx_accounts_transaction_date: ListRecords ordering (hot path)
  - idx_accounts_product: Sales by product

TRANSACTIONS:
  RunTransaction opens an IMMEDIATE transaction (DSN _txlock=immediate), so
  the write lock is taken before the product is read. Product writes are
  also guarded by the version read in the same transaction; a version
  mismatch or SQLITE_BUSY/SQLITE_LOCKED is ledger.ErrConflict and the body
  is run again.

TIMESTAMPS:
  Times are stored as fixed-width UTC text so string order is time order.
  ServerTimestamp values are resolved with the time the write lock was
  taken, which follows commit order.

CONCURRENCY:
  A sync.Mutex serializes access within the process; one open connection
  keeps ":memory:" databases coherent.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  svc := ledger.NewService(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/stock-ledger/ledger"
)

// Store implements ledger.DocumentStore using SQLite.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	clock       func() time.Time
	maxAttempts int
}

type Option func(*Store)

func WithMaxAttempts(n int) Option {
	return func(s *Store) { s.maxAttempts = n }
}

// WithClock sets the clock used to resolve commit timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, clock: time.Now, maxAttempts: ledger.DefaultMaxAttempts}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		transaction_date TEXT NOT NULL DEFAULT '',
		registration_date TEXT NOT NULL DEFAULT '',
		product_id TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL DEFAULT '',
		sold_sizes_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_transaction_date
		ON accounts(transaction_date DESC, registration_date DESC);
	CREATE INDEX IF NOT EXISTS idx_accounts_product
		ON accounts(product_id) WHERE product_id <> '';

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		clothing_type TEXT NOT NULL,
		sizes_json TEXT NOT NULL DEFAULT '{}',
		numeric_sizes_json TEXT NOT NULL DEFAULT '[]',
		stock INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RECORDS (ledger.Store)
// =============================================================================

const recordColumns = `id, amount, kind, category, description, transaction_date,
	registration_date, product_id, product_name, sold_sizes_json`

func (s *Store) ListRecords(ctx context.Context) ([]ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM accounts
		ORDER BY transaction_date DESC, registration_date DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	records := []ledger.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) GetRecord(ctx context.Context, id ledger.RecordID) (ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM accounts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, ledger.ErrRecordNotFound
	}
	return rec, err
}

func (s *Store) InsertRecord(ctx context.Context, rec ledger.Record) (ledger.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRecord(ctx, s.db, rec, s.clock())
}

func (s *Store) UpdateRecord(ctx context.Context, id ledger.RecordID, rec ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRecord(ctx, s.db, id, rec, s.clock())
}

func (s *Store) DeleteRecord(ctx context.Context, id ledger.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", mapError(err))
	}
	return nil
}

func insertRecord(ctx context.Context, db execer, rec ledger.Record, now time.Time) (ledger.RecordID, error) {
	soldJSON, err := encodeSoldSizes(rec.SoldSizes)
	if err != nil {
		return "", err
	}
	id := rec.ID
	if id == "" {
		id = ledger.RecordID(uuid.NewString())
	}

	_, err = db.ExecContext(ctx, `INSERT INTO accounts (`+recordColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.Amount.String(),
		rec.Kind,
		rec.Category,
		rec.Description,
		formatTime(rec.TransactionDate.Resolve(now)),
		formatTime(rec.RegistrationDate.Resolve(now)),
		rec.ProductID,
		rec.ProductName,
		soldJSON,
		formatTime(ledger.At(now)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert account: %w", mapError(err))
	}
	return id, nil
}

// updateRecord leaves registration_date untouched.
func updateRecord(ctx context.Context, db execer, id ledger.RecordID, rec ledger.Record, now time.Time) error {
	soldJSON, err := encodeSoldSizes(rec.SoldSizes)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE accounts SET
		amount = ?, kind = ?, category = ?, description = ?, transaction_date = ?,
		product_id = ?, product_name = ?, sold_sizes_json = ?, updated_at = ?
		WHERE id = ?`,
		rec.Amount.String(),
		rec.Kind,
		rec.Category,
		rec.Description,
		formatTime(rec.TransactionDate.Resolve(now)),
		rec.ProductID,
		rec.ProductName,
		soldJSON,
		formatTime(ledger.At(now)),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n == 0 {
		return ledger.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// PRODUCT CATALOG (ledger.ProductCatalog)
// =============================================================================

const productColumns = `id, name, clothing_type, sizes_json, numeric_sizes_json, stock, version`

// PutProduct inserts or replaces a product and bumps its version.
func (s *Store) PutProduct(ctx context.Context, p ledger.Product) error {
	if p.ID == "" {
		return errors.New("product id is required")
	}
	sizesJSON, numericJSON, err := encodeStock(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			clothing_type = excluded.clothing_type,
			sizes_json = excluded.sizes_json,
			numeric_sizes_json = excluded.numeric_sizes_json,
			stock = excluded.stock,
			version = products.version + 1,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.ClothingType, sizesJSON, numericJSON, p.Stock,
		formatTime(ledger.At(s.clock())),
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id ledger.ProductID) (ledger.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _, ok, err := getProduct(ctx, s.db, id)
	if err != nil {
		return ledger.Product{}, err
	}
	if !ok {
		return ledger.Product{}, &ledger.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []ledger.Product{}
	for rows.Next() {
		p, _, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func getProduct(ctx context.Context, db execer, id ledger.ProductID) (ledger.Product, int64, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, version, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Product{}, 0, false, nil
	}
	if err != nil {
		return ledger.Product{}, 0, false, err
	}
	return p, version, true, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// RunTransaction executes fn within a database transaction, retrying on conflict.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return ledger.RetryTransaction(ctx, s.maxAttempts, func(n int) error {
		return s.attempt(ctx, n, fn)
	})
}

// attempt runs one transaction. Body errors are returned unchanged; begin and
// commit failures other than lock contention abort the transaction.
func (s *Store) attempt(ctx context.Context, n int, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.CommitFailed(n, fmt.Errorf("failed to begin transaction: %w", mapError(err)))
	}
	defer sqlTx.Rollback()

	tx := &txStore{tx: sqlTx, now: s.clock(), versions: make(map[ledger.ProductID]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return ledger.CommitFailed(n, fmt.Errorf("failed to commit transaction: %w", mapError(err)))
	}
	return nil
}

type txStore struct {
	tx       *sql.Tx
	now      time.Time
	versions map[ledger.ProductID]int64
}

func (ts *txStore) GetProduct(ctx context.Context, id ledger.ProductID) (ledger.Product, bool, error) {
	p, version, ok, err := getProduct(ctx, ts.tx, id)
	if err != nil {
		return ledger.Product{}, false, mapError(err)
	}
	if ok {
		ts.versions[id] = version
	}
	return p, ok, nil
}

func (ts *txStore) UpdateProductStock(ctx context.Context, p ledger.Product) error {
	sizesJSON, numericJSON, err := encodeStock(p)
	if err != nil {
		return err
	}

	query := `UPDATE products SET sizes_json = ?, numeric_sizes_json = ?, stock = ?,
		version = version + 1, updated_at = ? WHERE id = ?`
	args := []any{sizesJSON, numericJSON, p.Stock, formatTime(ledger.At(ts.now)), p.ID}
	version, read := ts.versions[p.ID]
	if read {
		query += ` AND version = ?`
		args = append(args, version)
	}

	res, err := ts.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if n == 0 {
		if read {
			return fmt.Errorf("product %s changed during transaction: %w", p.ID, ledger.ErrConflict)
		}
		return &ledger.ProductNotFoundError{ProductID: p.ID}
	}
	if read {
		ts.versions[p.ID] = version + 1
	}
	return nil
}

func (ts *txStore) CreateRecord(ctx context.Context, rec ledger.Record) (ledger.RecordID, error) {
	rec.ID = ""
	return insertRecord(ctx, ts.tx, rec, ts.now)
}

func (ts *txStore) UpdateRecord(ctx context.Context, id ledger.RecordID, rec ledger.Record) error {
	return updateRecord(ctx, ts.tx, id, rec, ts.now)
}

// =============================================================================
// HELPERS
// =============================================================================

// mapError turns lock contention into ledger.ErrConflict.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%v: %w", err, ledger.ErrConflict)
	}
	return err
}
