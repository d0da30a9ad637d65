package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Service is the CRUD facade over a Store. Stocked sales go through
// CommitSale; every other write is a plain insert or update.
type Service struct {
	store Store
	log   zerolog.Logger
}

type Option func(*Service)

// WithLogger sets the logger used for write events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all records, most recent transaction date first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.ListRecords(ctx)
}

func (s *Service) Get(ctx context.Context, id RecordID) (Record, error) {
	return s.store.GetRecord(ctx, id)
}

// Save persists a draft. An empty editingID creates a new record.
func (s *Service) Save(ctx context.Context, d Draft, editingID RecordID) (RecordID, error) {
	isEdit := editingID != ""
	rec, err := Prepare(d, isEdit)
	if err != nil {
		return "", err
	}

	if rec.IsStockedSale() {
		id, err := CommitSale(ctx, s.store, rec, editingID)
		if err != nil {
			event, msg := s.log.Error(), "sale failed"
			if IsClientError(err) || IsNotFound(err) {
				event, msg = s.log.Warn(), "sale rejected"
			}
			event.Err(err).
				Str("product_id", string(rec.ProductID)).
				Str("record_id", string(editingID)).
				Msg(msg)
			return "", err
		}
		s.log.Info().
			Str("record_id", string(id)).
			Str("product_id", string(rec.ProductID)).
			Int("line_items", len(rec.SoldSizes)).
			Bool("edit", isEdit).
			Msg("sale committed")
		return id, nil
	}

	if isEdit {
		if err := s.store.UpdateRecord(ctx, editingID, rec); err != nil {
			return "", fmt.Errorf("update record %s: %w", editingID, err)
		}
		s.log.Debug().Str("record_id", string(editingID)).Str("kind", string(rec.Kind)).Msg("record updated")
		return editingID, nil
	}

	id, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	s.log.Debug().Str("record_id", string(id)).Str("kind", string(rec.Kind)).Msg("record created")
	return id, nil
}

// Remove deletes a record. Products are not touched.
func (s *Service) Remove(ctx context.Context, id RecordID) error {
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	s.log.Debug().Str("record_id", string(id)).Msg("record deleted")
	return nil
}
