package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFieldsRoundTrip(t *testing.T) {
	submitted := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	req := &Request{
		ID:                "11111111-2222-3333-4444-555555555555",
		RequesterID:       "user-1",
		RequesterDisplay:  "Alice",
		CharacterName:     "Aldara",
		ResourceClass:     ClassRare,
		ResourceKey:       "dragon_scale",
		QuantityRequested: 5,
		QuantityIssued:    2,
		QuantityRemaining: 3,
		Priority:          2,
		SubmittedAt:       submitted,
		QueuePosition:     1,
		Status:            StatusActive,
		ApprovalState:     ApprovalApproved,
		EvidenceReference: "file://2026/03/14/abc.webp",
		Notes:             "approved by staff-1",
	}

	got := RequestFromFields(req.Fields())
	assert.Equal(t, req, got)
}

func TestRequestFieldsZeroPositionIsEmptyCell(t *testing.T) {
	req := &Request{ID: "x", Status: StatusPending, QueuePosition: 0}
	fields := req.Fields()
	assert.Equal(t, "", fields[ColQueuePosition])
}

func TestRequestFromFieldsToleratesSpreadsheetNumerics(t *testing.T) {
	fields := map[string]string{
		ColID:                "x",
		ColQuantityRequested: "3.0",
		ColQuantityIssued:    "not-a-number",
		ColQueuePosition:     "",
		ColPriority:          "2",
	}
	req := RequestFromFields(fields)
	assert.Equal(t, 3, req.QuantityRequested)
	assert.Equal(t, 0, req.QuantityIssued)
	assert.Equal(t, 0, req.QueuePosition)
	assert.Equal(t, 2, req.Priority)
}

func TestRequestTerminal(t *testing.T) {
	assert.False(t, (&Request{Status: StatusPending}).Terminal())
	assert.False(t, (&Request{Status: StatusActive}).Terminal())
	assert.True(t, (&Request{Status: StatusCompleted}).Terminal())
	assert.True(t, (&Request{Status: StatusCancelled}).Terminal())
}

func TestFieldsCoverAllColumns(t *testing.T) {
	fields := (&Request{}).Fields()
	require.Len(t, fields, len(Columns))
	for _, col := range Columns {
		_, ok := fields[col]
		assert.True(t, ok, "missing column %s", col)
	}
}
