// Package server contains the HTTP handlers binding the lifecycle engine to
// the outside world.
package server

import (
	"context"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"stashkeeper/internal/config"
	"stashkeeper/internal/evidence"
	"stashkeeper/internal/middleware"
	"stashkeeper/internal/models"
	"stashkeeper/internal/priority"
	"stashkeeper/internal/service"
	"stashkeeper/internal/session"
)

// listingCacheTTL bounds staleness of cached listings to well under one
// recompute cycle.
const listingCacheTTL = 5 * time.Second

// Server holds all dependencies and provides handlers
type Server struct {
	config    *config.Config
	redis     *redis.Client
	requests  *service.RequestService
	sessions  *session.Coordinator
	directory *priority.Directory
	evidence  evidence.Store
	catalog   *models.ResourceCatalog
	prom      *fiberprometheus.FiberPrometheus
}

// NewServer creates a server instance over already-initialized dependencies.
func NewServer(cfg *config.Config, requests *service.RequestService, sessions *session.Coordinator, directory *priority.Directory, evidenceStore evidence.Store, catalog *models.ResourceCatalog, redisClient *redis.Client) *Server {
	middleware.InitAuth(cfg.JWTSecret)
	return &Server{
		config:    cfg,
		redis:     redisClient,
		requests:  requests,
		sessions:  sessions,
		directory: directory,
		evidence:  evidenceStore,
		catalog:   catalog,
		prom:      fiberprometheus.New("stashkeeper"),
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
		app.Use(s.prom.Middleware)
	}

	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)

	api := app.Group("/api", middleware.AuthRequired)

	api.Get("/catalog", s.GetCatalog)

	// Submission sessions (one per user, multi-step)
	sessions := api.Group("/sessions")
	sessions.Post("/", middleware.RateLimit(s.redis, 10, time.Minute, "session_open"), s.OpenSession)
	sessions.Get("/", s.GetSession)
	sessions.Post("/resource", s.ChooseResource)
	sessions.Post("/form", s.SubmitForm)
	sessions.Post("/evidence", s.UploadEvidence)
	sessions.Delete("/", s.CloseSession)

	// Requester-facing request operations
	api.Get("/requests", s.ListMyRequests)
	api.Get("/requests/:id", s.GetRequest)
	api.Post("/requests/:id/cancel", s.CancelRequest)

	// Staff queue management
	staff := api.Group("/staff", middleware.StaffOnly)
	staff.Get("/queue", s.ListQueue)
	staff.Post("/requests/:id/approve", s.ApproveRequest)
	staff.Post("/requests/:id/deny", s.DenyRequest)
	staff.Post("/requests/:id/issue", s.IssueQuantity)
	staff.Post("/requests/:id/return", s.ReturnQuantity)
	staff.Post("/requests/:id/complete", s.CompleteRequest)

	// Priority directory administration
	staff.Get("/priority", s.ListPriorities)
	staff.Put("/priority", s.SetPriorities)
	staff.Delete("/priority", s.RemovePriorities)
	staff.Post("/priority/clear", s.ClearPriorities)
}

// HealthCheck reports service liveness.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "stashkeeper",
	})
}

// GetCatalog returns the requestable resources by class.
func (s *Server) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"common": s.catalog.Common,
		"rare":   s.catalog.Rare,
	})
}

// Shutdown releases server-held resources. Kept for symmetry with future
// background workers; the session janitor stops with the process context.
func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}

func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}
