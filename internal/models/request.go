// Package models contains data structures for the application's domain models.
package models

import (
	"strconv"
	"time"
)

// ResourceClass splits the catalog into auto-accepted and approval-gated tiers.
type ResourceClass string

const (
	// ClassCommon requests become active immediately on submission.
	ClassCommon ResourceClass = "common"
	// ClassRare requests require staff approval with proof-of-claim evidence.
	ClassRare ResourceClass = "rare"
)

// RequestStatus defines lifecycle states for a resource request.
type RequestStatus string

const (
	// StatusPending indicates a rare request awaiting staff approval.
	StatusPending RequestStatus = "pending"
	// StatusActive indicates the request holds a queue position.
	StatusActive RequestStatus = "active"
	// StatusCompleted indicates the full quantity was issued.
	StatusCompleted RequestStatus = "completed"
	// StatusCancelled indicates the request was withdrawn or denied.
	StatusCancelled RequestStatus = "cancelled"
)

// ApprovalState tracks the human-approval gate for rare requests.
type ApprovalState string

const (
	ApprovalNotApplicable ApprovalState = "n/a"
	ApprovalAwaiting      ApprovalState = "awaiting"
	ApprovalApproved      ApprovalState = "approved"
	ApprovalDenied        ApprovalState = "denied"
)

// Row store column names. Column order carries no meaning; lookups go by name.
const (
	ColID                = "id"
	ColRequesterID       = "requester_id"
	ColRequesterDisplay  = "requester_display"
	ColCharacterName     = "character_name"
	ColResourceClass     = "resource_class"
	ColResourceKey       = "resource_key"
	ColQuantityRequested = "quantity_requested"
	ColQuantityIssued    = "quantity_issued"
	ColQuantityRemaining = "quantity_remaining"
	ColPriority          = "priority"
	ColSubmittedAt       = "submitted_at"
	ColQueuePosition     = "queue_position"
	ColStatus            = "status"
	ColApprovalState     = "approval_state"
	ColEvidenceReference = "evidence_reference"
	ColNotes             = "notes"
	ColChannelRef        = "channel_ref"
	ColMessageRef        = "message_ref"
)

// Columns lists every column of the request table in storage order.
var Columns = []string{
	ColID, ColRequesterID, ColRequesterDisplay, ColCharacterName,
	ColResourceClass, ColResourceKey, ColQuantityRequested, ColQuantityIssued,
	ColQuantityRemaining, ColPriority, ColSubmittedAt, ColQueuePosition,
	ColStatus, ColApprovalState, ColEvidenceReference, ColNotes,
	ColChannelRef, ColMessageRef,
}

// Request is one row of the request table. The ID is the only stable external
// handle; row numbers are a storage detail.
type Request struct {
	ID                string        `json:"id"`
	RequesterID       string        `json:"requester_id"`
	RequesterDisplay  string        `json:"requester_display"`
	CharacterName     string        `json:"character_name"`
	ResourceClass     ResourceClass `json:"resource_class"`
	ResourceKey       string        `json:"resource_key"`
	QuantityRequested int           `json:"quantity_requested"`
	QuantityIssued    int           `json:"quantity_issued"`
	QuantityRemaining int           `json:"quantity_remaining"`
	Priority          int           `json:"priority"`
	SubmittedAt       time.Time     `json:"submitted_at"`
	QueuePosition     int           `json:"queue_position"` // 0 = none
	Status            RequestStatus `json:"status"`
	ApprovalState     ApprovalState `json:"approval_state"`
	EvidenceReference string        `json:"evidence_reference"`
	Notes             string        `json:"notes"`
	ChannelRef        string        `json:"channel_ref,omitempty"`
	MessageRef        string        `json:"message_ref,omitempty"`
}

// Terminal reports whether the request has reached a final state.
func (r *Request) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// Fields converts the request into row-store fields keyed by column name.
func (r *Request) Fields() map[string]string {
	pos := ""
	if r.QueuePosition > 0 {
		pos = strconv.Itoa(r.QueuePosition)
	}
	return map[string]string{
		ColID:                r.ID,
		ColRequesterID:       r.RequesterID,
		ColRequesterDisplay:  r.RequesterDisplay,
		ColCharacterName:     r.CharacterName,
		ColResourceClass:     string(r.ResourceClass),
		ColResourceKey:       r.ResourceKey,
		ColQuantityRequested: strconv.Itoa(r.QuantityRequested),
		ColQuantityIssued:    strconv.Itoa(r.QuantityIssued),
		ColQuantityRemaining: strconv.Itoa(r.QuantityRemaining),
		ColPriority:          strconv.Itoa(r.Priority),
		ColSubmittedAt:       r.SubmittedAt.UTC().Format(time.RFC3339Nano),
		ColQueuePosition:     pos,
		ColStatus:            string(r.Status),
		ColApprovalState:     string(r.ApprovalState),
		ColEvidenceReference: r.EvidenceReference,
		ColNotes:             r.Notes,
		ColChannelRef:        r.ChannelRef,
		ColMessageRef:        r.MessageRef,
	}
}

// RequestFromFields rebuilds a request from row-store fields. Numeric fields
// that fail to parse come back zero rather than erroring; the table may hold
// hand-edited cells.
func RequestFromFields(fields map[string]string) *Request {
	submitted, _ := time.Parse(time.RFC3339Nano, fields[ColSubmittedAt])
	return &Request{
		ID:                fields[ColID],
		RequesterID:       fields[ColRequesterID],
		RequesterDisplay:  fields[ColRequesterDisplay],
		CharacterName:     fields[ColCharacterName],
		ResourceClass:     ResourceClass(fields[ColResourceClass]),
		ResourceKey:       fields[ColResourceKey],
		QuantityRequested: safeInt(fields[ColQuantityRequested]),
		QuantityIssued:    safeInt(fields[ColQuantityIssued]),
		QuantityRemaining: safeInt(fields[ColQuantityRemaining]),
		Priority:          safeInt(fields[ColPriority]),
		SubmittedAt:       submitted,
		QueuePosition:     safeInt(fields[ColQueuePosition]),
		Status:            RequestStatus(fields[ColStatus]),
		ApprovalState:     ApprovalState(fields[ColApprovalState]),
		EvidenceReference: fields[ColEvidenceReference],
		Notes:             fields[ColNotes],
		ChannelRef:        fields[ColChannelRef],
		MessageRef:        fields[ColMessageRef],
	}
}

func safeInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// hand-entered cells sometimes hold "3.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}
