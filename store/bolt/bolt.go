// Package bolt provides a bbolt-backed ledger.DocumentStore. Records and
// products are JSON documents in two buckets keyed by id.
//
// bbolt serializes write transactions, so RunTransaction never observes a
// conflicting write; the body runs exactly once per call. The commit time
// used for ServerTimestamp values is taken once per write transaction.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/stock-ledger/ledger"
	bbolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketAccounts = "accounts"
	BucketProducts = "products"
)

// Store wraps a bbolt database.
type Store struct {
	db          *bbolt.DB
	clock       func() time.Time
	maxAttempts int
}

type Option func(*Store)

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithMaxAttempts(n int) Option {
	return func(s *Store) { s.maxAttempts = n }
}

// New opens the database file and creates the buckets.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{BucketAccounts, BucketProducts} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, clock: time.Now, maxAttempts: ledger.DefaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *Store) ListRecords(_ context.Context) ([]ledger.Record, error) {
	records := []ledger.Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketAccounts)).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("account %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	ledger.SortRecords(records)
	return records, nil
}

func (s *Store) GetRecord(_ context.Context, id ledger.RecordID) (ledger.Record, error) {
	var rec ledger.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx, id)
		return err
	})
	return rec, err
}

func (s *Store) InsertRecord(_ context.Context, rec ledger.Record) (ledger.RecordID, error) {
	var id ledger.RecordID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = putNewRecord(tx, rec, s.clock())
		return err
	})
	return id, err
}

func (s *Store) UpdateRecord(_ context.Context, id ledger.RecordID, rec ledger.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return replaceRecord(tx, id, rec, s.clock())
	})
}

func (s *Store) DeleteRecord(_ context.Context, id ledger.RecordID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketAccounts)).Delete([]byte(id))
	})
}

func getRecord(tx *bbolt.Tx, id ledger.RecordID) (ledger.Record, error) {
	data := tx.Bucket([]byte(BucketAccounts)).Get([]byte(id))
	if data == nil {
		return ledger.Record{}, ledger.ErrRecordNotFound
	}
	return decodeRecord(data)
}

func putNewRecord(tx *bbolt.Tx, rec ledger.Record, now time.Time) (ledger.RecordID, error) {
	if rec.ID == "" {
		rec.ID = ledger.RecordID(uuid.NewString())
	}
	rec.TransactionDate = rec.TransactionDate.Resolve(now)
	rec.RegistrationDate = rec.RegistrationDate.Resolve(now)
	if err := putRecord(tx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// replaceRecord keeps the stored registration date.
func replaceRecord(tx *bbolt.Tx, id ledger.RecordID, rec ledger.Record, now time.Time) error {
	existing, err := getRecord(tx, id)
	if err != nil {
		return err
	}
	rec.ID = id
	rec.TransactionDate = rec.TransactionDate.Resolve(now)
	rec.RegistrationDate = existing.RegistrationDate
	return putRecord(tx, rec)
}

func putRecord(tx *bbolt.Tx, rec ledger.Record) error {
	data, err := json.Marshal(toRecordDoc(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return tx.Bucket([]byte(BucketAccounts)).Put([]byte(rec.ID), data)
}

// =============================================================================
// PRODUCT CATALOG
// =============================================================================

func (s *Store) PutProduct(_ context.Context, p ledger.Product) error {
	if p.ID == "" {
		return errors.New("product id is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putProduct(tx, p)
	})
}

func (s *Store) GetProduct(_ context.Context, id ledger.ProductID) (ledger.Product, error) {
	var (
		p  ledger.Product
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		p, ok, err = getProduct(tx, id)
		return err
	})
	if err != nil {
		return ledger.Product{}, err
	}
	if !ok {
		return ledger.Product{}, &ledger.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]ledger.Product, error) {
	products := []ledger.Product{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketProducts)).ForEach(func(k, v []byte) error {
			var doc productDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("product %s: %w", k, err)
			}
			products = append(products, doc.product())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func getProduct(tx *bbolt.Tx, id ledger.ProductID) (ledger.Product, bool, error) {
	data := tx.Bucket([]byte(BucketProducts)).Get([]byte(id))
	if data == nil {
		return ledger.Product{}, false, nil
	}
	var doc productDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ledger.Product{}, false, fmt.Errorf("product %s: %w", id, err)
	}
	return doc.product(), true, nil
}

func putProduct(tx *bbolt.Tx, p ledger.Product) error {
	data, err := json.Marshal(toProductDoc(p))
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return tx.Bucket([]byte(BucketProducts)).Put([]byte(p.ID), data)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// RunTransaction runs fn inside one bbolt write transaction. An error from fn
// rolls the whole transaction back and is returned unchanged; a failure to
// open or commit the transaction is a TransactionAbortedError.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return ledger.RetryTransaction(ctx, s.maxAttempts, func(n int) error {
		var bodyErr error
		err := s.db.Update(func(btx *bbolt.Tx) error {
			bodyErr = fn(ctx, &txView{tx: btx, now: s.clock()})
			return bodyErr
		})
		if err != nil && bodyErr == nil {
			return ledger.CommitFailed(n, err)
		}
		return err
	})
}

type txView struct {
	tx  *bbolt.Tx
	now time.Time
}

func (v *txView) GetProduct(_ context.Context, id ledger.ProductID) (ledger.Product, bool, error) {
	return getProduct(v.tx, id)
}

func (v *txView) UpdateProductStock(_ context.Context, p ledger.Product) error {
	cur, ok, err := getProduct(v.tx, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.ProductNotFoundError{ProductID: p.ID}
	}
	cur.Sizes = p.Sizes
	cur.NumericSizes = p.NumericSizes
	cur.Stock = p.Stock
	return putProduct(v.tx, cur)
}

func (v *txView) CreateRecord(_ context.Context, rec ledger.Record) (ledger.RecordID, error) {
	rec.ID = ""
	return putNewRecord(v.tx, rec, v.now)
}

func (v *txView) UpdateRecord(_ context.Context, id ledger.RecordID, rec ledger.Record) error {
	return replaceRecord(v.tx, id, rec, v.now)
}
