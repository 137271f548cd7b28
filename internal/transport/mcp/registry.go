package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

const notificationMethod = "notifications/message"

// SessionRegistry records which workers each MCP session is watching and
// pushes change notifications to those sessions.
type SessionRegistry struct {
	mu      sync.RWMutex
	watches map[string]map[string]struct{} // sessionID → worker set

	// mcpSrv is set after the MCP server is constructed.
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		watches: make(map[string]map[string]struct{}),
	}
}

func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// Watch subscribes sessionID to changes for worker.
func (r *SessionRegistry) Watch(sessionID, worker string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.watches[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.watches[sessionID] = set
	}
	set[worker] = struct{}{}
}

// Unregister drops every watch held by sessionID. It reports whether the
// session had any.
func (r *SessionRegistry) Unregister(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.watches[sessionID]
	delete(r.watches, sessionID)
	return ok
}

// Watchers lists sessions watching worker, sorted.
func (r *SessionRegistry) Watchers(worker string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for sessionID, set := range r.watches {
		if _, ok := set[worker]; ok {
			out = append(out, sessionID)
		}
	}
	slices.Sort(out)
	return out
}

func (r *SessionRegistry) sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.watches))
	for sessionID := range r.watches {
		out = append(out, sessionID)
	}
	return out
}

// NotifyWorker sends payload to every session watching worker.
func (r *SessionRegistry) NotifyWorker(_ context.Context, worker string, payload any) error {
	return r.send(r.Watchers(worker), payload)
}

// NotifyAll sends payload to every session with at least one watch.
func (r *SessionRegistry) NotifyAll(_ context.Context, payload any) error {
	return r.send(r.sessions(), payload)
}

func (r *SessionRegistry) send(targets []string, payload any) error {
	if len(targets) == 0 {
		return nil
	}

	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()
	if srv == nil {
		return fmt.Errorf("mcp server not initialized")
	}

	params, err := toParams(payload)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}

	var lastErr error
	for _, sessionID := range targets {
		if err := srv.SendNotificationToSpecificClient(sessionID, notificationMethod, params); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func toParams(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": payload}, nil
	}
	return params, nil
}
