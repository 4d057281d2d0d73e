package rowstore

import (
	"context"
	"sync"
)

// MemoryTable is an in-process Table used by tests and local runs. Rows grow
// append-only; numbers are 1-based and stable.
type MemoryTable struct {
	mu   sync.RWMutex
	rows []Fields
}

// NewMemoryTable returns an empty in-memory table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{}
}

func (t *MemoryTable) AppendRow(_ context.Context, fields Fields) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := make(Fields, len(fields))
	for k, v := range fields {
		row[k] = v
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *MemoryTable) GetRow(_ context.Context, number int) (Fields, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if number < 1 || number > len(t.rows) {
		return nil, ErrRowNotFound
	}
	row := t.rows[number-1]
	out := make(Fields, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, nil
}

func (t *MemoryTable) UpdateFields(_ context.Context, number int, fields Fields) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if number < 1 || number > len(t.rows) {
		return ErrRowNotFound
	}
	row := t.rows[number-1]
	for k, v := range fields {
		// unknown columns are skipped only for backends with a fixed schema;
		// the memory table accepts any column name
		row[k] = v
	}
	return nil
}

func (t *MemoryTable) FindRowsByColumn(_ context.Context, column, value string) ([]int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var matches []int
	for i, row := range t.rows {
		if row[column] == value {
			matches = append(matches, i+1)
		}
	}
	return matches, nil
}

func (t *MemoryTable) ScanAll(_ context.Context) ([]NumberedRow, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]NumberedRow, 0, len(t.rows))
	for i, row := range t.rows {
		copied := make(Fields, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out = append(out, NumberedRow{Number: i + 1, Fields: copied})
	}
	return out, nil
}

// Len returns the current row count.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
