package server

import (
	"github.com/gofiber/fiber/v2"

	"stashkeeper/internal/cache"
	"stashkeeper/internal/middleware"
	"stashkeeper/internal/models"
)

// ListMyRequests returns the caller's non-cancelled requests, newest last.
func (s *Server) ListMyRequests(c *fiber.Ctx) error {
	actorID := middleware.ActorID(c)

	var requests []*models.Request
	err := cache.CacheAside(c.UserContext(), cache.UserKey(actorID), &requests, listingCacheTTL, func() error {
		var err error
		requests, err = s.requests.ListForUser(c.UserContext(), actorID)
		return err
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetRequest returns a single request. Requesters may only read their own;
// staff may read any.
func (s *Server) GetRequest(c *fiber.Ctx) error {
	req, err := s.requests.GetRequest(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	if req.RequesterID != middleware.ActorID(c) && !middleware.HasRole(c, "staff") {
		// Hide other users' requests rather than confirming they exist.
		return respondError(c, models.NewNotFoundError("Request", c.Params("id")))
	}
	return c.JSON(req)
}

// CancelRequest withdraws a request. The owner may cancel their own; staff
// may cancel any.
func (s *Server) CancelRequest(c *fiber.Ctx) error {
	actorID := middleware.ActorID(c)

	req, err := s.requests.GetRequest(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if req.RequesterID != actorID && !middleware.HasRole(c, "staff") {
		return respondError(c, models.NewNotFoundError("Request", c.Params("id")))
	}

	cancelled, err := s.requests.Cancel(c.UserContext(), req.ID, actorID)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), cancelled.ResourceKey, cancelled.RequesterID)
	return c.JSON(cancelled)
}
