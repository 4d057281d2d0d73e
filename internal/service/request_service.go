// Package service implements the request lifecycle state machine.
package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"stashkeeper/internal/models"
	"stashkeeper/internal/observability"
	"stashkeeper/internal/queue"
	"stashkeeper/internal/rowstore"
)

// Notifier delivers plain structured events to the presentation layer. A nil
// Notifier disables delivery.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, event string, request *models.Request) error
	NotifyStaff(ctx context.Context, event string, request *models.Request) error
}

// PriorityLookup answers the submission-time priority snapshot.
type PriorityLookup interface {
	Get(ctx context.Context, userID string) int
}

// Options tune lifecycle policy.
type Options struct {
	// MergeDuplicates folds a resubmission of the same resource+character by
	// the same user into the open request instead of creating a new row.
	MergeDuplicates bool
}

// RequestService orchestrates every request state transition. A single mutex
// serializes all read-then-write paths against the shared row store; the
// store has no transactions, so this lock is the only correctness mechanism.
type RequestService struct {
	mu        sync.Mutex
	store     *rowstore.Adapter
	directory PriorityLookup
	catalog   *models.ResourceCatalog
	notifier  Notifier
	opts      Options
	now       func() time.Time
}

// NewRequestService wires the lifecycle manager. notifier may be nil.
func NewRequestService(store *rowstore.Adapter, directory PriorityLookup, catalog *models.ResourceCatalog, notifier Notifier, opts Options) *RequestService {
	return &RequestService{
		store:     store,
		directory: directory,
		catalog:   catalog,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
	}
}

// SubmitInput carries a validated submission payload.
type SubmitInput struct {
	RequesterID      string
	RequesterDisplay string
	CharacterName    string
	ResourceKey      string
	Quantity         int
	EvidenceRef      string
	ChannelRef       string
	MessageRef       string
}

// SubmitResult reports where a submission landed.
type SubmitResult struct {
	Request       *models.Request `json:"request"`
	QueuePosition int             `json:"queue_position"` // 0 while pending approval
	Merged        bool            `json:"merged"`
}

// Submit creates (or merges) a request. Common-class requests become Active
// and enter the ordering immediately; rare-class requests await approval and
// hold no position. A failed append after retries means nothing was placed.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "submit", in.ResourceKey)
	defer span.End()

	if in.Quantity <= 0 {
		return nil, models.NewValidationError("quantity must be positive")
	}
	if in.RequesterID == "" {
		return nil, models.NewValidationError("requester id is required")
	}
	class, ok := s.catalog.ClassOf(in.ResourceKey)
	if !ok {
		return nil, models.NewValidationError("unknown resource: " + in.ResourceKey)
	}
	if class == models.ClassRare && in.EvidenceRef == "" {
		return nil, models.NewValidationError("rare resource requests require evidence")
	}
	character := in.CharacterName
	if character == "" {
		character = in.RequesterDisplay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MergeDuplicates {
		if result, merged, err := s.mergeIntoOpenRequest(ctx, in, character); err != nil {
			return nil, err
		} else if merged {
			return result, nil
		}
	}

	req := &models.Request{
		ID:                uuid.NewString(),
		RequesterID:       in.RequesterID,
		RequesterDisplay:  in.RequesterDisplay,
		CharacterName:     character,
		ResourceClass:     class,
		ResourceKey:       in.ResourceKey,
		QuantityRequested: in.Quantity,
		QuantityIssued:    0,
		QuantityRemaining: in.Quantity,
		Priority:          s.directory.Get(ctx, in.RequesterID),
		SubmittedAt:       s.now().UTC(),
		Status:            models.StatusActive,
		ApprovalState:     models.ApprovalNotApplicable,
		EvidenceReference: "n/a",
		ChannelRef:        in.ChannelRef,
		MessageRef:        in.MessageRef,
	}
	if class == models.ClassRare {
		req.Status = models.StatusPending
		req.ApprovalState = models.ApprovalAwaiting
		req.EvidenceReference = in.EvidenceRef
	}

	if err := s.store.AppendRow(ctx, req.Fields()); err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("request was not recorded", err)
	}

	position := 0
	if req.Status == models.StatusActive {
		if err := queue.Recompute(ctx, s.store, req.ResourceKey); err != nil {
			span.SetError(err)
			return nil, models.NewDependencyError("request recorded but queue positions are stale", err)
		}
		// the new row's own position exists only after the recompute
		if current, err := s.reload(ctx, req.ID); err == nil {
			position = current.QueuePosition
			req = current
		}
	}

	observability.SubmissionsTotal.WithLabelValues(string(class)).Inc()
	if req.Status == models.StatusPending {
		s.notifyStaff(ctx, "approval_needed", req)
	}
	s.notifyUser(ctx, req.RequesterID, "submitted", req)

	return &SubmitResult{Request: req, QueuePosition: position}, nil
}

// mergeIntoOpenRequest adds the quantity to an existing open request for the
// same requester, resource, and character. The refreshed timestamp sends the
// merged request to the back of its priority band.
func (s *RequestService) mergeIntoOpenRequest(ctx context.Context, in SubmitInput, character string) (*SubmitResult, bool, error) {
	rows, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, false, models.NewDependencyError("row store scan failed", err)
	}
	for _, row := range rows {
		req := models.RequestFromFields(row.Fields)
		if req.RequesterID != in.RequesterID || req.ResourceKey != in.ResourceKey || req.CharacterName != character {
			continue
		}
		if req.Status != models.StatusActive && req.Status != models.StatusPending {
			continue
		}

		req.QuantityRequested += in.Quantity
		req.QuantityRemaining = req.QuantityRequested - req.QuantityIssued
		req.SubmittedAt = s.now().UTC()
		err := s.store.UpdateFields(ctx, row.Number, rowstore.Fields{
			models.ColQuantityRequested: strconv.Itoa(req.QuantityRequested),
			models.ColQuantityRemaining: strconv.Itoa(req.QuantityRemaining),
			models.ColSubmittedAt:       req.SubmittedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, false, models.NewDependencyError("merge was not recorded", err)
		}
		if req.Status == models.StatusActive {
			if err := queue.Recompute(ctx, s.store, req.ResourceKey); err != nil {
				return nil, false, models.NewDependencyError("merge recorded but queue positions are stale", err)
			}
		}
		current, err := s.reload(ctx, req.ID)
		if err != nil {
			current = req
		}
		s.notifyUser(ctx, current.RequesterID, "merged", current)
		return &SubmitResult{Request: current, QueuePosition: current.QueuePosition, Merged: true}, true, nil
	}
	return nil, false, nil
}

// Approve moves a pending request into the active ordering. Approving an
// already-active request is a conflict, not a repeat: duplicate approval
// signals must not trigger duplicate recomputes or notifications.
func (s *RequestService) Approve(ctx context.Context, requestID, approverID string) (*models.Request, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "approve", "")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	number, req, err := s.resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case models.StatusPending:
	case models.StatusActive:
		return nil, models.NewConflictError("request is already approved")
	default:
		return nil, models.NewConflictError("request is already " + string(req.Status))
	}

	notes := appendNote(req.Notes, "approved by "+approverID)
	err = s.store.UpdateFields(ctx, number, rowstore.Fields{
		models.ColApprovalState: string(models.ApprovalApproved),
		models.ColStatus:        string(models.StatusActive),
		models.ColNotes:         notes,
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("approval was not recorded", err)
	}
	if err := queue.Recompute(ctx, s.store, req.ResourceKey); err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("approval recorded but queue positions are stale", err)
	}

	observability.TransitionsTotal.WithLabelValues("approve").Inc()
	current, err := s.reload(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyUser(ctx, current.RequesterID, "approved", current)
	return current, nil
}

// Deny rejects a pending request. Denied requests never held a queue
// position, so no recompute is needed.
func (s *RequestService) Deny(ctx context.Context, requestID, approverID, reason string) (*models.Request, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "deny", "")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	number, req, err := s.resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, models.NewConflictError("only pending requests can be denied")
	}

	note := "denied by " + approverID
	if reason != "" {
		note += ": " + reason
	}
	err = s.store.UpdateFields(ctx, number, rowstore.Fields{
		models.ColApprovalState:     string(models.ApprovalDenied),
		models.ColStatus:            string(models.StatusCancelled),
		models.ColQueuePosition:     "",
		models.ColQuantityRemaining: "0",
		models.ColNotes:             appendNote(req.Notes, note),
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("denial was not recorded", err)
	}

	observability.TransitionsTotal.WithLabelValues("deny").Inc()
	current, err := s.reload(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyUser(ctx, current.RequesterID, "denied", current)
	return current, nil
}

// IssueInput selects either a delta on top of the issued quantity or an
// absolute issued target. Exactly one must be set.
type IssueInput struct {
	Delta    *int
	Absolute *int
}

// IssueResult reports the post-issue quantities.
type IssueResult struct {
	Request   *models.Request `json:"request"`
	Issued    int             `json:"issued"`
	Remaining int             `json:"remaining"`
	Completed bool            `json:"completed"`
}

// IssueQuantity records a partial or full issuance. The issued quantity is
// clamped to [0, requested]; reaching the requested quantity completes the
// request, clears its position, and frees the queue.
func (s *RequestService) IssueQuantity(ctx context.Context, requestID string, in IssueInput) (*IssueResult, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "issue", "")
	defer span.End()

	if (in.Delta == nil) == (in.Absolute == nil) {
		return nil, models.NewValidationError("exactly one of delta or absolute must be supplied")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueLocked(ctx, span, requestID, func(req *models.Request) int {
		if in.Delta != nil {
			return req.QuantityIssued + *in.Delta
		}
		return *in.Absolute
	})
}

// issueLocked applies an issuance under the mutation lock. target is computed
// from the freshly-read row, then clamped.
func (s *RequestService) issueLocked(ctx context.Context, span *observability.Span, requestID string, computeTarget func(*models.Request) int) (*IssueResult, error) {
	number, req, err := s.resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == models.StatusPending {
		return nil, models.NewConflictError("request is awaiting approval and cannot be issued")
	}
	if req.Terminal() {
		return nil, models.NewConflictError("request is already " + string(req.Status))
	}

	target := computeTarget(req)
	if target < 0 {
		target = 0
	}
	if target > req.QuantityRequested {
		target = req.QuantityRequested
	}

	remaining := req.QuantityRequested - target
	completed := remaining == 0

	updates := rowstore.Fields{
		models.ColQuantityIssued:    strconv.Itoa(target),
		models.ColQuantityRemaining: strconv.Itoa(remaining),
	}
	if completed {
		updates[models.ColStatus] = string(models.StatusCompleted)
		updates[models.ColQueuePosition] = ""
	}
	if err := s.store.UpdateFields(ctx, number, updates); err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("issuance was not recorded", err)
	}
	if completed {
		if err := queue.Recompute(ctx, s.store, req.ResourceKey); err != nil {
			span.SetError(err)
			return nil, models.NewDependencyError("issuance recorded but queue positions are stale", err)
		}
		observability.TransitionsTotal.WithLabelValues("complete").Inc()
	} else {
		observability.TransitionsTotal.WithLabelValues("issue").Inc()
	}

	current, err := s.reload(ctx, requestID)
	if err != nil {
		return nil, err
	}
	event := "issued"
	if completed {
		event = "completed"
	}
	s.notifyUser(ctx, current.RequesterID, event, current)

	return &IssueResult{
		Request:   current,
		Issued:    current.QuantityIssued,
		Remaining: current.QuantityRemaining,
		Completed: completed,
	}, nil
}

// ReturnQuantity corrects an over-issue by handing quantity back. Only valid
// while the request is Active; it never changes status on its own.
func (s *RequestService) ReturnQuantity(ctx context.Context, requestID string, amount int) (*IssueResult, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "return", "")
	defer span.End()

	if amount <= 0 {
		return nil, models.NewValidationError("return amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	number, req, err := s.resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusActive {
		return nil, models.NewConflictError("only active requests can return quantity")
	}

	issued := req.QuantityIssued - amount
	if issued < 0 {
		issued = 0
	}
	remaining := req.QuantityRequested - issued
	err = s.store.UpdateFields(ctx, number, rowstore.Fields{
		models.ColQuantityIssued:    strconv.Itoa(issued),
		models.ColQuantityRemaining: strconv.Itoa(remaining),
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("return was not recorded", err)
	}

	observability.TransitionsTotal.WithLabelValues("return").Inc()
	current, err := s.reload(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &IssueResult{
		Request:   current,
		Issued:    current.QuantityIssued,
		Remaining: current.QuantityRemaining,
	}, nil
}

// Complete issues the full remaining quantity in one step.
func (s *RequestService) Complete(ctx context.Context, requestID, actorID string) (*IssueResult, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "complete", "")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueLocked(ctx, span, requestID, func(req *models.Request) int {
		return req.QuantityRequested
	})
}

// Cancel withdraws a pending or active request. Cancellation discards the
// remaining entitlement rather than pausing it.
func (s *RequestService) Cancel(ctx context.Context, requestID, actorID string) (*models.Request, error) {
	span, ctx := observability.TraceLifecycleOperation(ctx, "cancel", "")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	number, req, err := s.resolve(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Terminal() {
		return nil, models.NewConflictError("request is already " + string(req.Status))
	}
	wasActive := req.Status == models.StatusActive

	err = s.store.UpdateFields(ctx, number, rowstore.Fields{
		models.ColStatus:            string(models.StatusCancelled),
		models.ColQueuePosition:     "",
		models.ColQuantityIssued:    "0",
		models.ColQuantityRemaining: "0",
		models.ColNotes:             appendNote(req.Notes, "cancelled by "+actorID),
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewDependencyError("cancellation was not recorded", err)
	}
	if wasActive {
		if err := queue.Recompute(ctx, s.store, req.ResourceKey); err != nil {
			span.SetError(err)
			return nil, models.NewDependencyError("cancellation recorded but queue positions are stale", err)
		}
	}

	observability.TransitionsTotal.WithLabelValues("cancel").Inc()
	current, err := s.reload(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifyUser(ctx, current.RequesterID, "cancelled", current)
	return current, nil
}

// GetRequest returns the request with the given id.
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	return s.reload(ctx, requestID)
}

// ListForUser returns the user's pending, active, and completed requests with
// live positions and quantities. Listings run unlocked and may trail a
// concurrent recompute by one cycle.
func (s *RequestService) ListForUser(ctx context.Context, userID string) ([]*models.Request, error) {
	rows, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, models.NewDependencyError("row store scan failed", err)
	}
	var out []*models.Request
	for _, row := range rows {
		req := models.RequestFromFields(row.Fields)
		if req.RequesterID != userID {
			continue
		}
		if req.Status == models.StatusCancelled {
			continue
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// ListActiveForResource returns all active requests sorted by queue position,
// optionally filtered to one resource. An empty key lists every resource.
func (s *RequestService) ListActiveForResource(ctx context.Context, resourceKey string) ([]*models.Request, error) {
	if resourceKey != "" {
		if _, ok := s.catalog.ClassOf(resourceKey); !ok {
			return nil, models.NewValidationError("unknown resource: " + resourceKey)
		}
	}
	rows, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, models.NewDependencyError("row store scan failed", err)
	}
	var out []*models.Request
	for _, row := range rows {
		req := models.RequestFromFields(row.Fields)
		if req.Status != models.StatusActive {
			continue
		}
		if resourceKey != "" && req.ResourceKey != resourceKey {
			continue
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ResourceKey != out[j].ResourceKey {
			return out[i].ResourceKey < out[j].ResourceKey
		}
		return out[i].QueuePosition < out[j].QueuePosition
	})
	return out, nil
}

// resolve maps a request id to its current storage position and parsed row.
func (s *RequestService) resolve(ctx context.Context, requestID string) (int, *models.Request, error) {
	if requestID == "" {
		return 0, nil, models.NewValidationError("request id is required")
	}
	number, found, err := s.store.FindRowByID(ctx, models.ColID, requestID)
	if err != nil {
		return 0, nil, models.NewDependencyError("row store lookup failed", err)
	}
	if !found {
		return 0, nil, models.NewNotFoundError("Request", requestID)
	}
	fields, ok := s.store.GetRow(ctx, number)
	if !ok {
		return 0, nil, models.NewNotFoundError("Request", requestID)
	}
	return number, models.RequestFromFields(fields), nil
}

// reload re-resolves a request after a mutation that may have changed it.
func (s *RequestService) reload(ctx context.Context, requestID string) (*models.Request, error) {
	number, found, err := s.store.FindRowByID(ctx, models.ColID, requestID)
	if err != nil {
		return nil, models.NewDependencyError("row store lookup failed", err)
	}
	if !found {
		return nil, models.NewNotFoundError("Request", requestID)
	}
	fields, ok := s.store.GetRow(ctx, number)
	if !ok {
		return nil, models.NewNotFoundError("Request", requestID)
	}
	return models.RequestFromFields(fields), nil
}

func (s *RequestService) notifyUser(ctx context.Context, userID, event string, req *models.Request) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyUser(ctx, userID, event, req); err != nil {
		observability.Logger.Warn("user notification failed", "event", event, "error", err)
	}
}

func (s *RequestService) notifyStaff(ctx context.Context, event string, req *models.Request) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStaff(ctx, event, req); err != nil {
		observability.Logger.Warn("staff notification failed", "event", event, "error", err)
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return fmt.Sprintf("%s; %s", existing, note)
}
