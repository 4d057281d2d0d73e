package server

import (
	"github.com/gofiber/fiber/v2"

	"stashkeeper/internal/models"
	"stashkeeper/internal/priority"
)

// ListPriorities returns every explicit priority assignment.
func (s *Server) ListPriorities(c *fiber.Ctx) error {
	levels, err := s.directory.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"levels":        levels,
		"default_level": s.directory.DefaultLevel(),
	})
}

type setPrioritiesRequest struct {
	UserIDs []string `json:"user_ids"`
	Level   int      `json:"level"`
}

// SetPriorities assigns one level to a batch of users. Existing in-queue
// requests keep their snapshotted priority.
func (s *Server) SetPriorities(c *fiber.Ctx) error {
	var body setPrioritiesRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	if len(body.UserIDs) == 0 {
		return respondError(c, models.NewValidationError("user_ids is required"))
	}
	if body.Level < priority.LevelDefault || body.Level > priority.LevelAdmin {
		return respondError(c, models.NewValidationError("level is out of range"))
	}

	if err := s.directory.SetMany(c.UserContext(), body.UserIDs, body.Level); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": len(body.UserIDs)})
}

type removePrioritiesRequest struct {
	UserIDs []string `json:"user_ids"`
}

// RemovePriorities drops explicit assignments, reverting users to the
// default level for future submissions.
func (s *Server) RemovePriorities(c *fiber.Ctx) error {
	var body removePrioritiesRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	if len(body.UserIDs) == 0 {
		return respondError(c, models.NewValidationError("user_ids is required"))
	}

	if err := s.directory.RemoveMany(c.UserContext(), body.UserIDs); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"removed": len(body.UserIDs)})
}

// ClearPriorities wipes the whole directory.
func (s *Server) ClearPriorities(c *fiber.Ctx) error {
	if err := s.directory.Clear(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
