// Package session tracks a user's in-progress multi-step submission. Sessions
// live only in process memory; the coordinator never touches the row store.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stashkeeper/internal/models"
	"stashkeeper/internal/observability"
)

// Step identifies where a submission session currently is.
type Step string

const (
	// StepResourceChoice waits for the user to pick a resource.
	StepResourceChoice Step = "resource_choice"
	// StepFormInput waits for character name and quantity.
	StepFormInput Step = "form_input"
	// StepEvidence waits for proof-of-claim evidence (rare resources only).
	StepEvidence Step = "evidence"
)

// DefaultIdleWindow is how long a session survives without activity.
const DefaultIdleWindow = 120 * time.Second

// Session is one user's in-flight submission.
type Session struct {
	Token         string               `json:"token"`
	UserID        string               `json:"user_id"`
	UserDisplay   string               `json:"user_display"`
	Step          Step                 `json:"step"`
	CreatedAt     time.Time            `json:"created_at"`
	LastActivity  time.Time            `json:"last_activity"`
	ResourceKey   string               `json:"resource_key,omitempty"`
	ResourceClass models.ResourceClass `json:"resource_class,omitempty"`
	CharacterName string               `json:"character_name,omitempty"`
	Quantity      int                  `json:"quantity,omitempty"`
	EvidenceRef   string               `json:"evidence_ref,omitempty"`
	ChannelRef    string               `json:"channel_ref,omitempty"`
}

// Submission is the fully-validated payload a completed session hands to the
// lifecycle manager.
type Submission struct {
	RequesterID      string
	RequesterDisplay string
	CharacterName    string
	ResourceKey      string
	Quantity         int
	EvidenceRef      string
	ChannelRef       string
}

// Coordinator owns the session store. At most one open session per user.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by user id
	catalog  *models.ResourceCatalog
	idle     time.Duration
	now      func() time.Time
}

// NewCoordinator returns a Coordinator validating resource picks against
// catalog. idle <= 0 selects the default window.
func NewCoordinator(catalog *models.ResourceCatalog, idle time.Duration) *Coordinator {
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	return &Coordinator{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		idle:     idle,
		now:      time.Now,
	}
}

func (c *Coordinator) expired(s *Session) bool {
	return c.now().Sub(s.LastActivity) > c.idle
}

// Open starts a new session for the user. An existing live session is a
// conflict; an expired one is force-closed first.
func (c *Coordinator) Open(userID, userDisplay, channelRef string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[userID]; ok {
		if !c.expired(existing) {
			return nil, models.NewConflictError("a submission is already in progress; finish or cancel it first")
		}
		delete(c.sessions, userID)
		observability.SessionsOpen.Dec()
		observability.SessionsExpiredTotal.Inc()
	}

	now := c.now()
	s := &Session{
		Token:        uuid.NewString(),
		UserID:       userID,
		UserDisplay:  userDisplay,
		Step:         StepResourceChoice,
		CreatedAt:    now,
		LastActivity: now,
		ChannelRef:   channelRef,
	}
	c.sessions[userID] = s
	observability.SessionsOpen.Inc()

	copied := *s
	return &copied, nil
}

// validate returns the live session if the token matches and the session has
// not expired. Stale or duplicate UI callbacks get a conflict, never a
// generic failure.
func (c *Coordinator) validate(userID, token string) (*Session, error) {
	s, ok := c.sessions[userID]
	if !ok || s.Token != token {
		return nil, models.NewConflictError("session expired or superseded")
	}
	if c.expired(s) {
		delete(c.sessions, userID)
		observability.SessionsOpen.Dec()
		observability.SessionsExpiredTotal.Inc()
		return nil, models.NewConflictError("session expired or superseded")
	}
	return s, nil
}

// ChooseResource records the resource pick and advances to the form step.
func (c *Coordinator) ChooseResource(userID, token, resourceKey string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.validate(userID, token)
	if err != nil {
		return nil, err
	}
	if s.Step != StepResourceChoice {
		return nil, models.NewConflictError("resource already chosen for this session")
	}
	class, ok := c.catalog.ClassOf(resourceKey)
	if !ok {
		return nil, models.NewValidationError("unknown resource: " + resourceKey)
	}

	s.ResourceKey = resourceKey
	s.ResourceClass = class
	s.Step = StepFormInput
	s.LastActivity = c.now()

	copied := *s
	return &copied, nil
}

// FillForm records character name and quantity. Common-class sessions are
// complete after this step; rare-class sessions advance to evidence upload.
// The returned Submission is non-nil only when the session completed.
func (c *Coordinator) FillForm(userID, token, characterName string, quantity int) (*Submission, *Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.validate(userID, token)
	if err != nil {
		return nil, nil, err
	}
	if s.Step != StepFormInput {
		return nil, nil, models.NewConflictError("session is not awaiting form input")
	}
	if quantity <= 0 {
		return nil, nil, models.NewValidationError("quantity must be positive")
	}
	if characterName == "" {
		characterName = s.UserDisplay
	}

	s.CharacterName = characterName
	s.Quantity = quantity
	s.LastActivity = c.now()

	if s.ResourceClass == models.ClassRare {
		s.Step = StepEvidence
		copied := *s
		return nil, &copied, nil
	}

	sub := c.finish(s)
	return sub, nil, nil
}

// AttachEvidence completes a rare-class session with the evidence reference
// produced by the upload collaborator.
func (c *Coordinator) AttachEvidence(userID, token, evidenceRef string) (*Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.validate(userID, token)
	if err != nil {
		return nil, err
	}
	if s.Step != StepEvidence {
		return nil, models.NewConflictError("session is not awaiting evidence")
	}
	if evidenceRef == "" {
		return nil, models.NewValidationError("evidence reference is required")
	}

	s.EvidenceRef = evidenceRef
	return c.finish(s), nil
}

// finish removes the session and builds its submission payload. Caller holds
// the lock.
func (c *Coordinator) finish(s *Session) *Submission {
	delete(c.sessions, s.UserID)
	observability.SessionsOpen.Dec()
	return &Submission{
		RequesterID:      s.UserID,
		RequesterDisplay: s.UserDisplay,
		CharacterName:    s.CharacterName,
		ResourceKey:      s.ResourceKey,
		Quantity:         s.Quantity,
		EvidenceRef:      s.EvidenceRef,
		ChannelRef:       s.ChannelRef,
	}
}

// Close discards the user's session. Closing an absent or mismatched session
// is a no-op.
func (c *Coordinator) Close(userID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[userID]
	if !ok || s.Token != token {
		return
	}
	delete(c.sessions, userID)
	observability.SessionsOpen.Dec()
}

// Get returns a copy of the user's live session, if any.
func (c *Coordinator) Get(userID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[userID]
	if !ok || c.expired(s) {
		return nil, false
	}
	copied := *s
	return &copied, true
}

// Sweep force-closes every expired session and returns how many were closed.
func (c *Coordinator) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	closed := 0
	for userID, s := range c.sessions {
		if c.expired(s) {
			delete(c.sessions, userID)
			observability.SessionsOpen.Dec()
			observability.SessionsExpiredTotal.Inc()
			closed++
		}
	}
	return closed
}

// StartJanitor sweeps expired sessions until ctx is cancelled. The janitor
// never holds any lock while waiting.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					observability.Logger.Info("swept expired sessions", "count", n)
				}
			}
		}
	}()
}
