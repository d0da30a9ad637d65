package ledger

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIMESTAMP - Store time, or a sentinel the store resolves at commit
// =============================================================================

// Timestamp is a point in time as persisted by a store. The zero value is
// "no time". ServerTimestamp returns a sentinel that stores replace with
// their commit time; callers never compute it from their own clock.
type Timestamp struct {
	Time   time.Time
	server bool
}

func At(t time.Time) Timestamp { return Timestamp{Time: t.UTC()} }

// ServerTimestamp is resolved by the store when the write commits.
func ServerTimestamp() Timestamp { return Timestamp{server: true} }

func (ts Timestamp) IsServer() bool { return ts.server }
func (ts Timestamp) IsZero() bool   { return !ts.server && ts.Time.IsZero() }

// Resolve replaces the sentinel with commitTime. Concrete times are returned unchanged.
func (ts Timestamp) Resolve(commitTime time.Time) Timestamp {
	if ts.server {
		return At(commitTime)
	}
	return ts
}

func (ts Timestamp) String() string {
	switch {
	case ts.server:
		return "<server timestamp>"
	case ts.Time.IsZero():
		return ""
	}
	return ts.Time.Format(time.RFC3339Nano)
}

// =============================================================================
// DATE INPUT - User-entered business date
// =============================================================================

// DateInput is either raw text typed by a user or a timestamp previously
// loaded from the store.
type DateInput struct {
	Raw    string
	Stored Timestamp
}

func DateText(raw string) DateInput     { return DateInput{Raw: raw} }
func DateStored(ts Timestamp) DateInput { return DateInput{Stored: ts} }

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp converts the input to store form. Already-stored values pass
// through; empty input yields the zero Timestamp.
func (d DateInput) Timestamp() (Timestamp, error) {
	if !d.Stored.IsZero() {
		return d.Stored, nil
	}
	raw := strings.TrimSpace(d.Raw)
	if raw == "" {
		return Timestamp{}, nil
	}
	return ParseDate(raw)
}

// ParseDate parses a business date. Layouts without a zone are read as UTC.
func ParseDate(raw string) (Timestamp, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return At(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}
