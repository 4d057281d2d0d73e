package server

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"stashkeeper/internal/cache"
	"stashkeeper/internal/evidence"
	"stashkeeper/internal/middleware"
	"stashkeeper/internal/models"
	"stashkeeper/internal/service"
	"stashkeeper/internal/session"
)

type openSessionRequest struct {
	ChannelRef string `json:"channel_ref"`
}

// OpenSession starts a new submission session for the caller. A live session
// already in progress is a conflict; the caller must close it first.
func (s *Server) OpenSession(c *fiber.Ctx) error {
	var body openSessionRequest
	// Body is optional; ignore parse errors for an empty payload.
	_ = c.BodyParser(&body)

	sess, err := s.sessions.Open(middleware.ActorID(c), middleware.ActorDisplay(c), body.ChannelRef)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

// GetSession returns the caller's live session, if any.
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess, ok := s.sessions.Get(middleware.ActorID(c))
	if !ok {
		return respondError(c, models.NewNotFoundError("Session", middleware.ActorID(c)))
	}
	return c.JSON(sess)
}

type chooseResourceRequest struct {
	Token       string `json:"token"`
	ResourceKey string `json:"resource_key"`
}

// ChooseResource records the session's resource pick.
func (s *Server) ChooseResource(c *fiber.Ctx) error {
	var body chooseResourceRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	sess, err := s.sessions.ChooseResource(middleware.ActorID(c), body.Token, body.ResourceKey)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sess)
}

type submitFormRequest struct {
	Token         string `json:"token"`
	CharacterName string `json:"character_name"`
	Quantity      int    `json:"quantity"`
}

// SubmitForm records character and quantity. Common-class sessions complete
// here and the request is placed immediately; rare-class sessions advance to
// the evidence step.
func (s *Server) SubmitForm(c *fiber.Ctx) error {
	var body submitFormRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	sub, sess, err := s.sessions.FillForm(middleware.ActorID(c), body.Token, body.CharacterName, body.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	if sub == nil {
		// Rare class: evidence still required.
		return c.JSON(sess)
	}
	return s.placeSubmission(c, sub)
}

// UploadEvidence accepts the proof-of-claim screenshot for a rare-class
// session, normalizes it, stores it, and places the finished request.
func (s *Server) UploadEvidence(c *fiber.Ctx) error {
	token := c.FormValue("token")

	header, err := c.FormFile("evidence")
	if err != nil {
		return respondError(c, models.NewValidationError("evidence file is required"))
	}
	if header.Size > evidence.MaxUploadBytes {
		return respondError(c, models.NewValidationError("evidence file is too large"))
	}

	f, err := header.Open()
	if err != nil {
		return respondError(c, models.NewValidationError("evidence file could not be read"))
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, evidence.MaxUploadBytes+1))
	if err != nil {
		return respondError(c, models.NewValidationError("evidence file could not be read"))
	}

	normalized, contentType, err := evidence.Normalize(raw)
	if err != nil {
		return respondError(c, err)
	}

	ref, err := s.evidence.Put(c.UserContext(), normalized, contentType, header.Filename)
	if err != nil {
		return respondError(c, models.NewDependencyError("evidence could not be stored", err))
	}

	sub, err := s.sessions.AttachEvidence(middleware.ActorID(c), token, ref)
	if err != nil {
		return respondError(c, err)
	}
	return s.placeSubmission(c, sub)
}

// CloseSession discards the caller's session. Idempotent.
func (s *Server) CloseSession(c *fiber.Ctx) error {
	s.sessions.Close(middleware.ActorID(c), c.Query("token"))
	return c.SendStatus(fiber.StatusNoContent)
}

// placeSubmission hands a completed session payload to the lifecycle manager.
func (s *Server) placeSubmission(c *fiber.Ctx, sub *session.Submission) error {
	res, err := s.requests.Submit(c.UserContext(), service.SubmitInput{
		RequesterID:      sub.RequesterID,
		RequesterDisplay: sub.RequesterDisplay,
		CharacterName:    sub.CharacterName,
		ResourceKey:      sub.ResourceKey,
		Quantity:         sub.Quantity,
		EvidenceRef:      sub.EvidenceRef,
		ChannelRef:       sub.ChannelRef,
	})
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), res.Request.ResourceKey, res.Request.RequesterID)
	return c.Status(fiber.StatusCreated).JSON(res)
}
