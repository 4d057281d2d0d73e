// Package queue holds the deterministic per-resource ordering algorithm.
package queue

import (
	"sort"

	"stashkeeper/internal/models"
	"stashkeeper/internal/rowstore"
)

// Placement assigns a 1-based queue position to a storage row.
type Placement struct {
	RowNumber int
	Position  int
}

// Order produces the total order for one resource's rows. Only Active rows
// participate: pending-approval requests do not hold a position until
// approved. Ordering is priority descending, then submission time ascending,
// then original row order (stable sort) so repeated runs on identical input
// always agree.
func Order(rows []rowstore.NumberedRow) []Placement {
	type candidate struct {
		number  int
		request *models.Request
	}
	var candidates []candidate
	for _, row := range rows {
		req := models.RequestFromFields(row.Fields)
		if req.Status != models.StatusActive {
			continue
		}
		candidates = append(candidates, candidate{number: row.Number, request: req})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].request, candidates[j].request
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.SubmittedAt.Before(b.SubmittedAt)
	})

	placements := make([]Placement, len(candidates))
	for i, c := range candidates {
		placements[i] = Placement{RowNumber: c.number, Position: i + 1}
	}
	return placements
}
