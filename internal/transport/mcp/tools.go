package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainartifact "github.com/alanyang/annotation-desk/internal/domain/artifact"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"
)

// RegisterTools registers all MCP tools on the server. Every tool is
// read-only except watch_worker, which only changes notification routing.
func RegisterTools(
	s *mcpserver.MCPServer,
	reg *SessionRegistry,
	assignments *assignmentsvc.Service,
	artifacts *artifactsvc.Service,
) {
	s.AddTool(mcpmcp.NewTool("list_workers",
		mcpmcp.WithDescription("List every worker with its quota and completion counts: completed, edit_only, mask_only and pending."),
	), listWorkersHandler(assignments, artifacts))

	s.AddTool(mcpmcp.NewTool("worker_status",
		mcpmcp.WithDescription("Per-image status for one worker in assignment order: whether the edit file and mask exist for each assigned image."),
		mcpmcp.WithString("worker", mcpmcp.Required(), mcpmcp.Description("Worker name as configured")),
	), workerStatusHandler(artifacts))

	s.AddTool(mcpmcp.NewTool("image_status",
		mcpmcp.WithDescription("Status of one assigned image. Fails if the image is not assigned to the worker."),
		mcpmcp.WithString("worker", mcpmcp.Required(), mcpmcp.Description("Worker name as configured")),
		mcpmcp.WithString("filename", mcpmcp.Required(), mcpmcp.Description("Original image filename, e.g. scan_001.png")),
	), imageStatusHandler(artifacts))

	s.AddTool(mcpmcp.NewTool("watch_worker",
		mcpmcp.WithDescription("Receive a notifications/message on this session whenever the worker uploads an edit file or mask."),
		mcpmcp.WithString("worker", mcpmcp.Required(), mcpmcp.Description("Worker name as configured")),
	), watchWorkerHandler(reg, assignments))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

type workerSummary struct {
	Name    string                 `json:"name"`
	Quota   int                    `json:"quota"`
	Summary domainartifact.Summary `json:"summary"`
}

func listWorkersHandler(assignments *assignmentsvc.Service, artifacts *artifactsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		workers := assignments.Workers()
		out := make([]workerSummary, 0, len(workers))
		for _, w := range workers {
			sum, err := artifacts.Aggregate(ctx, w.Name)
			if err != nil {
				return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
			}
			out = append(out, workerSummary{Name: w.Name, Quota: w.Quota, Summary: sum})
		}
		return jsonResult(out)
	}
}

func workerStatusHandler(artifacts *artifactsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		worker := mcpmcp.ParseString(req, "worker", "")
		if worker == "" {
			return mcpmcp.NewToolResultText("error: worker is required"), nil
		}

		statuses, err := artifacts.Statuses(ctx, worker)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(map[string]any{
			"worker":  worker,
			"summary": domainartifact.Summarize(statuses),
			"images":  statuses,
		})
	}
}

func imageStatusHandler(artifacts *artifactsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		worker := mcpmcp.ParseString(req, "worker", "")
		filename := mcpmcp.ParseString(req, "filename", "")
		if worker == "" || filename == "" {
			return mcpmcp.NewToolResultText("error: worker and filename are required"), nil
		}

		st, err := artifacts.Status(ctx, worker, filename)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(map[string]any{
			"status": st,
			"bucket": st.Bucket(),
		})
	}
}

func watchWorkerHandler(reg *SessionRegistry, assignments *assignmentsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		worker := mcpmcp.ParseString(req, "worker", "")
		if _, err := assignments.Assigned(worker); err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		session := mcpserver.ClientSessionFromContext(ctx)
		if session == nil {
			return mcpmcp.NewToolResultText("error: watch_worker requires a session"), nil
		}
		reg.Watch(session.SessionID(), worker)
		return jsonResult(map[string]string{"watching": worker})
	}
}

func jsonResult(v any) (*mcpmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
	}
	return mcpmcp.NewToolResultText(string(data)), nil
}
