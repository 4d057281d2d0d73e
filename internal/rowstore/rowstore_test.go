package rowstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashkeeper/internal/models"
)

// flakyTable fails the first n calls of every operation with a transient
// error, then delegates to an inner MemoryTable.
type flakyTable struct {
	inner    *MemoryTable
	failures int
	calls    int
}

func (t *flakyTable) trip() error {
	t.calls++
	if t.calls <= t.failures {
		return Transient(errors.New("rate limited"))
	}
	return nil
}

func (t *flakyTable) AppendRow(ctx context.Context, fields Fields) error {
	if err := t.trip(); err != nil {
		return err
	}
	return t.inner.AppendRow(ctx, fields)
}

func (t *flakyTable) GetRow(ctx context.Context, number int) (Fields, error) {
	if err := t.trip(); err != nil {
		return nil, err
	}
	return t.inner.GetRow(ctx, number)
}

func (t *flakyTable) UpdateFields(ctx context.Context, number int, fields Fields) error {
	if err := t.trip(); err != nil {
		return err
	}
	return t.inner.UpdateFields(ctx, number, fields)
}

func (t *flakyTable) FindRowsByColumn(ctx context.Context, column, value string) ([]int, error) {
	if err := t.trip(); err != nil {
		return nil, err
	}
	return t.inner.FindRowsByColumn(ctx, column, value)
}

func (t *flakyTable) ScanAll(ctx context.Context) ([]NumberedRow, error) {
	if err := t.trip(); err != nil {
		return nil, err
	}
	return t.inner.ScanAll(ctx)
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: 1, MaxDelay: 1}
}

func TestAdapterRetriesTransientFailures(t *testing.T) {
	table := &flakyTable{inner: NewMemoryTable(), failures: 2}
	adapter := NewAdapter(table, fastPolicy(3))

	err := adapter.AppendRow(context.Background(), Fields{models.ColID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, 3, table.calls)
	assert.Equal(t, 1, table.inner.Len())
}

func TestAdapterExhaustsRetryBudget(t *testing.T) {
	table := &flakyTable{inner: NewMemoryTable(), failures: 10}
	adapter := NewAdapter(table, fastPolicy(3))

	err := adapter.AppendRow(context.Background(), Fields{models.ColID: "r1"})
	require.Error(t, err)
	assert.Equal(t, 3, table.calls)
	assert.Equal(t, 0, table.inner.Len(), "row must not be recorded after exhausted retries")
}

func TestAdapterDoesNotRetryDefinitiveErrors(t *testing.T) {
	table := &flakyTable{inner: NewMemoryTable()}
	adapter := NewAdapter(table, fastPolicy(3))

	err := adapter.UpdateFields(context.Background(), 99, Fields{models.ColNotes: "x"})
	require.ErrorIs(t, err, ErrRowNotFound)
	assert.Equal(t, 1, table.calls)
}

func TestAdapterContextCancelStopsRetrying(t *testing.T) {
	table := &flakyTable{inner: NewMemoryTable(), failures: 10}
	adapter := NewAdapter(table, RetryPolicy{MaxAttempts: 5, BaseDelay: 1000, MaxDelay: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := adapter.AppendRow(ctx, Fields{models.ColID: "r1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAdapterGetRowAbsenceIsNotAnError(t *testing.T) {
	adapter := NewAdapter(NewMemoryTable(), fastPolicy(1))

	fields, ok := adapter.GetRow(context.Background(), 7)
	assert.False(t, ok)
	assert.Nil(t, fields)
}

func TestAdapterFindRowByID(t *testing.T) {
	table := NewMemoryTable()
	adapter := NewAdapter(table, fastPolicy(1))
	ctx := context.Background()

	require.NoError(t, adapter.AppendRow(ctx, Fields{models.ColID: "a"}))
	require.NoError(t, adapter.AppendRow(ctx, Fields{models.ColID: "b"}))

	number, ok, err := adapter.FindRowByID(ctx, models.ColID, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, number)

	_, ok, err = adapter.FindRowByID(ctx, models.ColID, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient(errors.New("timeout"))))
	assert.False(t, IsTransient(errors.New("timeout")))
	assert.Nil(t, Transient(nil))
}
