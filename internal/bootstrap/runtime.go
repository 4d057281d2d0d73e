// Package bootstrap assembles the runtime from configuration: row store,
// redis, priority directory, evidence store, catalog, and the lifecycle
// manager itself.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"stashkeeper/internal/cache"
	"stashkeeper/internal/config"
	"stashkeeper/internal/evidence"
	"stashkeeper/internal/models"
	"stashkeeper/internal/notifications"
	"stashkeeper/internal/observability"
	"stashkeeper/internal/priority"
	"stashkeeper/internal/rowstore"
	"stashkeeper/internal/service"
	"stashkeeper/internal/session"
)

// Runtime holds every long-lived component the server needs.
type Runtime struct {
	Config    *config.Config
	Store     *rowstore.Adapter
	Directory *priority.Directory
	Catalog   *models.ResourceCatalog
	Notifier  *notifications.Notifier
	Requests  *service.RequestService
	Sessions  *session.Coordinator
	Evidence  evidence.Store
}

// Build wires the runtime. Redis being down degrades caching, notifications,
// and (with a redis priority store) priority persistence, but never blocks
// startup.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	table, err := openTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	store := rowstore.NewAdapter(table, rowstore.RetryPolicy{
		MaxAttempts: cfg.RowStoreMaxAttempts,
		BaseDelay:   cfg.RowStoreBaseDelay,
		MaxDelay:    cfg.RowStoreMaxDelay,
	})

	var blob priority.BlobStore
	if cfg.PriorityStore == "redis" && rdb != nil {
		blob = priority.NewRedisBlobStore(rdb, "")
	} else {
		blob = priority.NewFileBlobStore(cfg.PriorityFile)
		if cfg.PriorityStore == "redis" {
			observability.Logger.Warn("redis unavailable, priority directory falling back to file",
				"path", cfg.PriorityFile)
		}
	}
	directory := priority.NewDirectory(blob, cfg.DefaultPriority)

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	evidenceStore, err := openEvidenceStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open evidence store: %w", err)
	}

	notifier := notifications.NewNotifier(rdb)
	requests := service.NewRequestService(store, directory, catalog, notifier, service.Options{
		MergeDuplicates: cfg.MergeDuplicates,
	})

	sessions := session.NewCoordinator(catalog, cfg.SessionIdle())
	sessions.StartJanitor(ctx, 30*time.Second)

	return &Runtime{
		Config:    cfg,
		Store:     store,
		Directory: directory,
		Catalog:   catalog,
		Notifier:  notifier,
		Requests:  requests,
		Sessions:  sessions,
		Evidence:  evidenceStore,
	}, nil
}

func openTable(cfg *config.Config) (rowstore.Table, error) {
	switch cfg.RowStoreDriver {
	case "memory":
		return rowstore.NewMemoryTable(), nil
	case "sqlite", "postgres":
		return rowstore.OpenGormTable(cfg.RowStoreDriver, cfg.RowStoreDSN)
	default:
		return nil, fmt.Errorf("unknown row store driver %q", cfg.RowStoreDriver)
	}
}

func loadCatalog(path string) (*models.ResourceCatalog, error) {
	if path == "" {
		return models.DefaultCatalog(), nil
	}
	return models.LoadCatalog(path)
}

func openEvidenceStore(ctx context.Context, cfg *config.Config) (evidence.Store, error) {
	switch cfg.EvidenceStore {
	case "memory":
		return evidence.NewMemoryStore(), nil
	case "filesystem":
		return evidence.NewFilesystemStore(cfg.EvidenceDir)
	case "s3":
		return evidence.NewS3Store(ctx, evidence.S3Config{
			Bucket: cfg.EvidenceBucket,
			Region: cfg.EvidenceRegion,
		})
	default:
		return nil, fmt.Errorf("unknown evidence store %q", cfg.EvidenceStore)
	}
}
