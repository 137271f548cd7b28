package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/alanyang/annotation-desk/internal/adapter/fs/imageset"
	"github.com/alanyang/annotation-desk/internal/adapter/fs/statefile"
	fsstorage "github.com/alanyang/annotation-desk/internal/adapter/fs/storage"
	"github.com/alanyang/annotation-desk/internal/adapter/memory"
	"github.com/alanyang/annotation-desk/internal/config"

	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"

	"github.com/alanyang/annotation-desk/internal/transport"
	mcptransport "github.com/alanyang/annotation-desk/internal/transport/mcp"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Config        *config.Config
	Server        *http.Server
	AssignmentSvc *assignmentsvc.Service
	ArtifactSvc   *artifactsvc.Service
	MCPServer     *mcptransport.Server
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies. The assignment table is loaded or created here, once.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if info, err := os.Stat(cfg.Storage.ImagesDir); err != nil || !info.IsDir() {
		slog.Warn("image directory missing, starting with an empty image set", "dir", cfg.Storage.ImagesDir)
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	lister := imageset.New(cfg.Storage.ImagesDir)
	stateStore := statefile.New(cfg.Storage.AssignmentsFile)
	storage := fsstorage.New(cfg.Storage.ImagesDir)
	renderCache := memory.NewCache(cfg.Render.CacheMaxEntries)
	idempotencyCache := memory.NewCache(memory.DefaultMaxEntries)
	eventBus := memory.NewEventBus()

	// ── Services ─────────────────────────────────────────────────────────────
	assignmentSvcInstance := assignmentsvc.NewService(lister, stateStore, eventBus, cfg.Workers, cfg.Shuffler())
	if _, err := assignmentSvcInstance.LoadOrCreate(ctx); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	artifactSvcInstance := artifactsvc.NewService(assignmentSvcInstance, storage, renderCache, cfg.CacheTTL(), eventBus)

	mcpServer := mcptransport.New(mcptransport.NewSessionRegistry(), assignmentSvcInstance, artifactSvcInstance)

	// ── Transport ─────────────────────────────────────────────────────────────
	router := transport.NewRouter(
		ctx,
		transport.RouterConfig{
			MaxUploadBytes: cfg.MaxUploadBytes(),
			Idempotency:    idempotencyCache,
			IdempotencyTTL: cfg.IdempotencyTTL(),
		},
		assignmentSvcInstance,
		artifactSvcInstance,
		mcpServer,
		eventBus,
	)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	slog.Info("application wired",
		"addr", server.Addr,
		"images_dir", cfg.Storage.ImagesDir,
		"assignments_file", stateStore.Path(),
		"workers", len(cfg.Workers),
		"shuffle", cfg.Assignment.Shuffle,
	)

	return &App{
		Config:        cfg,
		Server:        server,
		AssignmentSvc: assignmentSvcInstance,
		ArtifactSvc:   artifactSvcInstance,
		MCPServer:     mcpServer,
	}, nil
}
