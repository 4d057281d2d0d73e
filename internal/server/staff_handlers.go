package server

import (
	"github.com/gofiber/fiber/v2"

	"stashkeeper/internal/cache"
	"stashkeeper/internal/middleware"
	"stashkeeper/internal/models"
	"stashkeeper/internal/service"
)

// ListQueue returns active requests in issue order, optionally scoped to one
// resource via ?resource=<key>.
func (s *Server) ListQueue(c *fiber.Ctx) error {
	resourceKey := c.Query("resource")

	var requests []*models.Request
	err := cache.CacheAside(c.UserContext(), cache.QueueKey(resourceKey), &requests, listingCacheTTL, func() error {
		var err error
		requests, err = s.requests.ListActiveForResource(c.UserContext(), resourceKey)
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

// ApproveRequest admits a pending rare-class request into the ordering.
func (s *Server) ApproveRequest(c *fiber.Ctx) error {
	req, err := s.requests.Approve(c.UserContext(), c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), req.ResourceKey, req.RequesterID)
	return c.JSON(req)
}

type denyRequest struct {
	Reason string `json:"reason"`
}

// DenyRequest rejects a pending rare-class request.
func (s *Server) DenyRequest(c *fiber.Ctx) error {
	var body denyRequest
	_ = c.BodyParser(&body)

	req, err := s.requests.Deny(c.UserContext(), c.Params("id"), middleware.ActorID(c), body.Reason)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), req.ResourceKey, req.RequesterID)
	return c.JSON(req)
}

type issueRequest struct {
	Delta    *int `json:"delta"`
	Absolute *int `json:"absolute"`
}

// IssueQuantity records a partial or full issuance against an active request.
func (s *Server) IssueQuantity(c *fiber.Ctx) error {
	var body issueRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	res, err := s.requests.IssueQuantity(c.UserContext(), c.Params("id"), service.IssueInput{
		Delta:    body.Delta,
		Absolute: body.Absolute,
	})
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), res.Request.ResourceKey, res.Request.RequesterID)
	return c.JSON(res)
}

type returnRequest struct {
	Amount int `json:"amount"`
}

// ReturnQuantity walks back part of a previous issuance.
func (s *Server) ReturnQuantity(c *fiber.Ctx) error {
	var body returnRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	res, err := s.requests.ReturnQuantity(c.UserContext(), c.Params("id"), body.Amount)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), res.Request.ResourceKey, res.Request.RequesterID)
	return c.JSON(res)
}

// CompleteRequest issues everything still outstanding and closes the request.
func (s *Server) CompleteRequest(c *fiber.Ctx) error {
	res, err := s.requests.Complete(c.UserContext(), c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateListings(c.UserContext(), res.Request.ResourceKey, res.Request.RequesterID)
	return c.JSON(res)
}
