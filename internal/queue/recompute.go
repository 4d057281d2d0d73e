package queue

import (
	"context"
	"strconv"

	"stashkeeper/internal/models"
	"stashkeeper/internal/observability"
	"stashkeeper/internal/rowstore"
)

// Recompute rereads all rows for one resource and rewrites every Active row's
// queue position. Full recompute keeps "positions are 1..N with no gaps"
// trivially true; the table offers no cheap incremental shift. Zero eligible
// rows means zero writes. Callers must hold the mutation lock.
func Recompute(ctx context.Context, store *rowstore.Adapter, resourceKey string) error {
	observability.RecomputesTotal.WithLabelValues(resourceKey).Inc()

	rows, err := store.ScanAll(ctx)
	if err != nil {
		return err
	}

	var scoped []rowstore.NumberedRow
	for _, row := range rows {
		if row.Fields[models.ColResourceKey] == resourceKey {
			scoped = append(scoped, row)
		}
	}
	if len(scoped) == 0 {
		return nil
	}

	for _, p := range Order(scoped) {
		err := store.UpdateFields(ctx, p.RowNumber, rowstore.Fields{
			models.ColQueuePosition: strconv.Itoa(p.Position),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
