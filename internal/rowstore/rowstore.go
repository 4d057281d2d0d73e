// Package rowstore adapts the external request table behind append/read/update
// primitives. The backing store is treated as a remote, non-transactional row
// table: row numbers are storage positions, never identity.
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stashkeeper/internal/observability"
)

// Fields maps column names to cell values for one row.
type Fields map[string]string

// NumberedRow pairs a row's storage position with its fields.
type NumberedRow struct {
	Number int
	Fields Fields
}

// Table is the raw remote-table contract implemented per backing store.
// Implementations wrap retryable failures in TransientError.
type Table interface {
	AppendRow(ctx context.Context, fields Fields) error
	GetRow(ctx context.Context, number int) (Fields, error)
	UpdateFields(ctx context.Context, number int, fields Fields) error
	FindRowsByColumn(ctx context.Context, column, value string) ([]int, error)
	ScanAll(ctx context.Context) ([]NumberedRow, error)
}

// TransientError marks a failure worth retrying (rate limits, timeouts,
// connection resets). Anything else is definitive.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrRowNotFound is returned by Table implementations for out-of-range rows.
var ErrRowNotFound = errors.New("row not found")

// RetryPolicy bounds the retry loop applied to every table call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the retry budget the service ships with.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Adapter wraps a Table with bounded-retry semantics. Exhausted retries
// surface as a definitive error; the caller must treat the operation as not
// applied.
type Adapter struct {
	table  Table
	policy RetryPolicy
}

// NewAdapter returns an Adapter over table using the given retry policy.
func NewAdapter(table Table, policy RetryPolicy) *Adapter {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Adapter{table: table, policy: policy}
}

func (a *Adapter) retry(ctx context.Context, op string, fn func() error) error {
	defer observability.TrackRowStoreCall(op)()
	var last error
	for attempt := 0; attempt < a.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.policy.delay(attempt - 1)):
			}
			observability.RowStoreRetries.WithLabelValues(op).Inc()
		}
		last = fn()
		if last == nil {
			return nil
		}
		if !IsTransient(last) {
			return last
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, last)
}

// AppendRow adds one row at the end of the table. On failure the row was not
// recorded; there is no partial application.
func (a *Adapter) AppendRow(ctx context.Context, fields Fields) error {
	return a.retry(ctx, "append_row", func() error {
		return a.table.AppendRow(ctx, fields)
	})
}

// GetRow returns the row at the given position, or (nil, false) if the
// position is out of range or the read failed. Absence is not an error.
func (a *Adapter) GetRow(ctx context.Context, number int) (Fields, bool) {
	var fields Fields
	err := a.retry(ctx, "get_row", func() error {
		var inner error
		fields, inner = a.table.GetRow(ctx, number)
		return inner
	})
	if err != nil {
		if !errors.Is(err, ErrRowNotFound) {
			observability.Logger.Warn("row read failed", "row", number, "error", err)
		}
		return nil, false
	}
	return fields, true
}

// UpdateFields applies a per-field targeted update. Unknown column names are
// skipped by the backend, not treated as errors.
func (a *Adapter) UpdateFields(ctx context.Context, number int, fields Fields) error {
	return a.retry(ctx, "update_fields", func() error {
		return a.table.UpdateFields(ctx, number, fields)
	})
}

// FindRowsByColumn returns the numbers of all rows whose column matches value
// exactly, in row order.
func (a *Adapter) FindRowsByColumn(ctx context.Context, column, value string) ([]int, error) {
	var rows []int
	err := a.retry(ctx, "find_rows", func() error {
		var inner error
		rows, inner = a.table.FindRowsByColumn(ctx, column, value)
		return inner
	})
	return rows, err
}

// ScanAll returns every row with its number, in row order. Expensive; used
// only by recompute and listing paths.
func (a *Adapter) ScanAll(ctx context.Context) ([]NumberedRow, error) {
	var rows []NumberedRow
	err := a.retry(ctx, "scan_all", func() error {
		var inner error
		rows, inner = a.table.ScanAll(ctx)
		return inner
	})
	return rows, err
}

// FindRowByID resolves the storage position of the row carrying the given id.
// Identity lives only in the id column; callers must re-resolve after any
// operation that could have shifted rows.
func (a *Adapter) FindRowByID(ctx context.Context, idColumn, id string) (int, bool, error) {
	rows, err := a.FindRowsByColumn(ctx, idColumn, id)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0], true, nil
}
