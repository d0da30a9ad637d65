package ledger

import (
	"context"
	"sort"
)

// RetryTransaction is the attempt loop shared by store adapters. attempt runs
// one full transaction (body and commit) and receives its number, from 1. It
// is repeated while it fails with ErrConflict; any other error stops the loop
// and is returned unchanged. Adapters report a failed begin or commit as
// CommitFailed(n, err) so that it reaches callers as TransactionAborted.
func RetryTransaction(ctx context.Context, maxAttempts int, attempt func(n int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var last error
	for i := 1; i <= maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt(i)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		last = err
	}
	return &TransactionAbortedError{Attempts: maxAttempts, Err: last}
}

// CommitFailed wraps a store failure outside the transaction body. Conflicts
// are returned as-is so that RetryTransaction runs the body again.
func CommitFailed(attempt int, err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	return &TransactionAbortedError{Attempts: attempt, Err: err}
}

// SortRecords orders records as ListRecords returns them: TransactionDate
// descending, then RegistrationDate descending, then id.
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.TransactionDate.Time.Equal(b.TransactionDate.Time) {
			return a.TransactionDate.Time.After(b.TransactionDate.Time)
		}
		if !a.RegistrationDate.Time.Equal(b.RegistrationDate.Time) {
			return a.RegistrationDate.Time.After(b.RegistrationDate.Time)
		}
		return a.ID < b.ID
	})
}
