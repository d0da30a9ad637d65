// Package store provides an in-memory ledger.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps documents in maps. Transactions are optimistic: product reads
// record a version, writes are buffered, and commit fails with
// ledger.ErrConflict if a read product changed in the meantime.
type Memory struct {
	mu       sync.Mutex
	records  map[ledger.RecordID]ledger.Record
	products map[ledger.ProductID]versionedProduct

	clock        func() time.Time
	maxAttempts  int
	beforeCommit func(attempt int)
	attempts     int
}

type versionedProduct struct {
	product ledger.Product
	version uint64
}

type Option func(*Memory)

// WithClock sets the clock used to resolve commit timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Memory) { m.clock = clock }
}

func WithMaxAttempts(n int) Option {
	return func(m *Memory) { m.maxAttempts = n }
}

// WithBeforeCommit registers a hook run after a transaction body succeeds and
// before its commit is validated. Tests use it to inject concurrent writes.
// attempt counts transaction attempts across the store's lifetime, from 1.
func WithBeforeCommit(fn func(attempt int)) Option {
	return func(m *Memory) { m.beforeCommit = fn }
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		records:     make(map[ledger.RecordID]ledger.Record),
		products:    make(map[ledger.ProductID]versionedProduct),
		clock:       time.Now,
		maxAttempts: ledger.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) ListRecords(_ context.Context) ([]ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ledger.Record, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, r.Clone())
	}
	ledger.SortRecords(result)
	return result, nil
}

func (m *Memory) GetRecord(_ context.Context, id ledger.RecordID) (ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ledger.Record{}, ledger.ErrRecordNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) InsertRecord(_ context.Context, rec ledger.Record) (ledger.RecordID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec, m.clock()), nil
}

func (m *Memory) UpdateRecord(_ context.Context, id ledger.RecordID, rec ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, rec, m.clock())
}

func (m *Memory) DeleteRecord(_ context.Context, id ledger.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *Memory) insertLocked(rec ledger.Record, now time.Time) ledger.RecordID {
	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = ledger.RecordID(uuid.NewString())
	}
	rec.TransactionDate = rec.TransactionDate.Resolve(now)
	rec.RegistrationDate = rec.RegistrationDate.Resolve(now)
	m.records[rec.ID] = rec
	return rec.ID
}

func (m *Memory) updateLocked(id ledger.RecordID, rec ledger.Record, now time.Time) error {
	existing, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	rec = rec.Clone()
	rec.ID = id
	rec.TransactionDate = rec.TransactionDate.Resolve(now)
	rec.RegistrationDate = existing.RegistrationDate
	m.records[id] = rec
	return nil
}

// =============================================================================
// PRODUCT CATALOG
// =============================================================================

func (m *Memory) PutProduct(_ context.Context, p ledger.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.products[p.ID].version
	m.products[p.ID] = versionedProduct{product: p.Clone(), version: v + 1}
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id ledger.ProductID) (ledger.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vp, ok := m.products[id]
	if !ok {
		return ledger.Product{}, &ledger.ProductNotFoundError{ProductID: id}
	}
	return vp.product.Clone(), nil
}

func (m *Memory) ListProducts(_ context.Context) ([]ledger.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ledger.Product, 0, len(m.products))
	for _, vp := range m.products {
		result = append(result, vp.product.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return ledger.RetryTransaction(ctx, m.maxAttempts, func(int) error {
		tx := &memoryTx{
			parent:  m,
			reads:   make(map[ledger.ProductID]uint64),
			writes:  make(map[ledger.ProductID]ledger.Product),
			updates: make(map[ledger.RecordID]ledger.Record),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return m.commit(tx)
	})
}

func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	if m.beforeCommit != nil {
		m.beforeCommit(attempt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, seen := range tx.reads {
		if m.products[id].version != seen {
			return fmt.Errorf("product %s changed during transaction: %w", id, ledger.ErrConflict)
		}
	}
	for id := range tx.writes {
		if _, ok := m.products[id]; !ok {
			return &ledger.ProductNotFoundError{ProductID: id}
		}
	}
	for _, u := range tx.updateOrder {
		if _, ok := m.records[u]; !ok {
			return ledger.ErrRecordNotFound
		}
	}

	now := m.clock()
	for id, p := range tx.writes {
		cur := m.products[id]
		cur.product.Sizes = p.Sizes
		cur.product.NumericSizes = p.NumericSizes
		cur.product.Stock = p.Stock
		cur.version++
		m.products[id] = cur
	}
	for _, rec := range tx.creates {
		m.insertLocked(rec, now)
	}
	for _, id := range tx.updateOrder {
		if err := m.updateLocked(id, tx.updates[id], now); err != nil {
			return err
		}
	}
	return nil
}

type memoryTx struct {
	parent      *Memory
	reads       map[ledger.ProductID]uint64
	writes      map[ledger.ProductID]ledger.Product
	creates     []ledger.Record
	updates     map[ledger.RecordID]ledger.Record
	updateOrder []ledger.RecordID
}

func (tx *memoryTx) GetProduct(_ context.Context, id ledger.ProductID) (ledger.Product, bool, error) {
	if p, ok := tx.writes[id]; ok {
		return p.Clone(), true, nil
	}

	tx.parent.mu.Lock()
	defer tx.parent.mu.Unlock()

	vp, ok := tx.parent.products[id]
	tx.reads[id] = vp.version // zero when absent
	if !ok {
		return ledger.Product{}, false, nil
	}
	return vp.product.Clone(), true, nil
}

func (tx *memoryTx) UpdateProductStock(_ context.Context, p ledger.Product) error {
	tx.writes[p.ID] = p.Clone()
	return nil
}

func (tx *memoryTx) CreateRecord(_ context.Context, rec ledger.Record) (ledger.RecordID, error) {
	rec = rec.Clone()
	rec.ID = ledger.RecordID(uuid.NewString())
	tx.creates = append(tx.creates, rec)
	return rec.ID, nil
}

func (tx *memoryTx) UpdateRecord(_ context.Context, id ledger.RecordID, rec ledger.Record) error {
	if _, seen := tx.updates[id]; !seen {
		tx.updateOrder = append(tx.updateOrder, id)
	}
	tx.updates[id] = rec.Clone()
	return nil
}
