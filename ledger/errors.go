/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error kinds in one place. Sale failures abort the enclosing store
  transaction and reach the caller unchanged; plain CRUD calls surface the
  store's own errors wrapped with context.

ERROR CATEGORIES:
  1. Sale errors - InsufficientStock, SizeNotFound, ProductNotFound
  2. Transaction errors - Conflict (retried), TransactionAborted (final)
  3. Validation errors - InvalidDate, InvalidKind
  4. Lookup errors - RecordNotFound

USAGE:
  if errors.Is(err, ledger.ErrInsufficientStock) {
      var detail *ledger.InsufficientStockError
      errors.As(err, &detail)
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a line item asks for more units
	// than the size has left.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrSizeNotFound is returned when a bottom product has no unit for the size.
	ErrSizeNotFound = errors.New("size not found")

	// ErrProductNotFound is returned when the sale's product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrTransactionAborted is returned when a store transaction could not
	// commit after its retries.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrConflict is returned by stores when a concurrent write invalidated the
	// transaction's snapshot. Transaction runners retry on it.
	ErrConflict = errors.New("write conflict")

	// ErrRecordNotFound is returned when a ledger record id does not resolve.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidDate is returned when a transaction date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidKind is returned for a kind other than expense or income.
	ErrInvalidKind = errors.New("invalid kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports the size and the stock seen when the line
// item was applied.
type InsufficientStockError struct {
	Size      SizeLabel
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for size %s: available %d, requested %d",
		e.Size, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type SizeNotFoundError struct {
	Size SizeLabel
}

func (e *SizeNotFoundError) Error() string {
	return fmt.Sprintf("size %s not found", e.Size)
}

func (e *SizeNotFoundError) Unwrap() error { return ErrSizeNotFound }

type ProductNotFoundError struct {
	ProductID ProductID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// TransactionAbortedError wraps the last failure of a transaction that
// exhausted its attempts or failed to commit.
type TransactionAbortedError struct {
	Attempts int
	Err      error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction aborted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransactionAbortedError) Unwrap() []error {
	return []error{ErrTransactionAborted, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if a transaction body failed only because of a
// concurrent write.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) && !errors.Is(err, ErrTransactionAborted)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrSizeNotFound) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidKind)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
