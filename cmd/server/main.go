// Command main is the entry point for the StashKeeper server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"stashkeeper/internal/bootstrap"
	"stashkeeper/internal/cache"
	"stashkeeper/internal/config"
	"stashkeeper/internal/evidence"
	"stashkeeper/internal/observability"
	"stashkeeper/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Env == "development" {
		observability.SetLevel(slog.LevelDebug)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "stashkeeper",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.SamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.Build(runCtx, cfg)
	if err != nil {
		log.Fatalf("Failed to build runtime: %v", err)
	}

	srv := server.NewServer(cfg, rt.Requests, rt.Sessions, rt.Directory, rt.Evidence, rt.Catalog, cache.GetClient())

	app := fiber.New(fiber.Config{
		AppName:   "StashKeeper API",
		BodyLimit: evidence.MaxUploadBytes + 1024*1024,
	})

	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		cancel()
		cache.Close()
	}()

	log.Printf("Server starting on port %s...", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
