package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/annotation-desk/internal/domain/event"
	porteventbus "github.com/alanyang/annotation-desk/internal/port/eventbus"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"
)

const (
	serverName    = "annotation-desk"
	serverVersion = "1.0.0"
)

// Server wraps the mark3labs/mcp-go MCPServer and its StreamableHTTPServer.
// Tools are registered in tools.go, watch state lives in registry.go.
type Server struct {
	mcpSrv  *mcpserver.MCPServer
	httpSrv *mcpserver.StreamableHTTPServer
	reg     *SessionRegistry
}

// New creates the MCP transport server.
func New(reg *SessionRegistry, assignments *assignmentsvc.Service, artifacts *artifactsvc.Service) *Server {
	s := &Server{reg: reg}

	hooks := &mcpserver.Hooks{}
	hooks.OnUnregisterSession = append(hooks.OnUnregisterSession, s.onSessionClose)

	s.mcpSrv = mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithHooks(hooks),
	)
	reg.SetMCPServer(s.mcpSrv)

	RegisterTools(s.mcpSrv, reg, assignments, artifacts)

	s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpSrv)
	return s
}

// Handler returns an http.Handler that serves the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpSrv
}

func (s *Server) Registry() *SessionRegistry {
	return s.reg
}

// Subscribe relays artifact events to sessions watching the affected
// worker, and assignment rebuilds to every watching session.
func (s *Server) Subscribe(ctx context.Context, bus porteventbus.EventBus) (porteventbus.Subscription, error) {
	return bus.Subscribe(ctx, func(ctx context.Context, e event.Event) {
		var err error
		switch e.Type {
		case event.TypeArtifactUploaded:
			err = s.reg.NotifyWorker(ctx, e.Worker, e)
		default:
			err = s.reg.NotifyAll(ctx, e)
		}
		if err != nil {
			slog.WarnContext(ctx, "mcp: notification failed", "type", e.Type, "worker", e.Worker, "error", err)
		}
	})
}

func (s *Server) onSessionClose(ctx context.Context, session mcpserver.ClientSession) {
	if s.reg.Unregister(session.SessionID()) {
		slog.InfoContext(ctx, "mcp: session closed, watches dropped", "session_id", session.SessionID())
	}
}
