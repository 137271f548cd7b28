package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	portcache "github.com/alanyang/annotation-desk/internal/port/cache"
	porteventbus "github.com/alanyang/annotation-desk/internal/port/eventbus"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"

	artifacthandler "github.com/alanyang/annotation-desk/internal/transport/artifact"
	mcptransport "github.com/alanyang/annotation-desk/internal/transport/mcp"
	workerhandler "github.com/alanyang/annotation-desk/internal/transport/worker"
	wshandler "github.com/alanyang/annotation-desk/internal/transport/ws"
)

// RouterConfig carries transport-level limits. A nil Idempotency store
// disables upload replay.
type RouterConfig struct {
	MaxUploadBytes int64
	Idempotency    portcache.Cache
	IdempotencyTTL time.Duration
}

func NewRouter(
	ctx context.Context,
	cfg RouterConfig,
	assignmentSvc *assignmentsvc.Service,
	artifactSvc *artifactsvc.Service,
	mcpServer *mcptransport.Server,
	eventBus porteventbus.EventBus,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())
	r.Use(IdempotencyMiddleware(cfg.Idempotency, cfg.IdempotencyTTL))

	api := r.Group("/api")

	workers := api.Group("/workers")
	workerhandler.Register(workers, assignmentSvc, artifactSvc)
	artifacthandler.Register(workers.Group("/:worker/images/:filename"), artifactSvc, cfg.MaxUploadBytes)

	hub := wshandler.NewHub()
	hub.Register(api.Group("/ws"))
	if _, err := hub.Subscribe(ctx, eventBus); err != nil {
		slog.Error("failed to subscribe WS hub to event bus", "error", err)
	}

	if mcpServer != nil {
		if _, err := mcpServer.Subscribe(ctx, eventBus); err != nil {
			slog.Error("failed to subscribe MCP notifications to event bus", "error", err)
		}
		r.Any("/mcp", gin.WrapH(mcpServer.Handler()))
	}

	return r
}
