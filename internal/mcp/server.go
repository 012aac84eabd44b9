// Package mcp exposes the checklist engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
)

// Checklists is the subset of the control plane the tools drive.
type Checklists interface {
	DealTypes() []models.DealType
	PreviewTemplate(dt models.DealType) (*catalog.Preview, error)
	Instantiate(ctx context.Context, dealID string, dt models.DealType) (int, error)
	Progress(ctx context.Context, dealID string, dt models.DealType) (*models.DealProgress, error)
	ListTasks(ctx context.Context, dealID string, f checklist.TaskFilter) ([]models.TaskRecord, error)
	Overdue(ctx context.Context, dealID string) ([]checklist.OverdueTask, error)
	Workstreams(ctx context.Context, dealID string) ([]models.WorkstreamStats, error)
	TransitionTask(ctx context.Context, id string, status models.TaskStatus, version int64) (*models.TaskRecord, error)
}

// NewServer registers the dealflow tools on a new MCP server.
func NewServer(svc Checklists, version string) *server.MCPServer {
	s := server.NewMCPServer("dealflow", version)

	s.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the deal types with a checklist template, with phase and task counts."),
	), listTemplatesHandler(svc))

	s.AddTool(mcp.NewTool("instantiate_checklist",
		mcp.WithDescription("Create a deal's checklist from its template. Fails if the deal already has one."),
		mcp.WithString("deal_id", mcp.Description("Deal identifier"), mcp.Required()),
		mcp.WithString("deal_type", mcp.Description("Deal type"), mcp.Enum("compra", "venta"), mcp.Required()),
	), instantiateHandler(svc))

	s.AddTool(mcp.NewTool("deal_progress",
		mcp.WithDescription("Per-phase and overall completion for a deal."),
		mcp.WithString("deal_id", mcp.Description("Deal identifier"), mcp.Required()),
		mcp.WithString("deal_type", mcp.Description("Deal type (defaults to the instantiated template)")),
	), progressHandler(svc))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List a deal's tasks with optional filters."),
		mcp.WithString("deal_id", mcp.Description("Deal identifier"), mcp.Required()),
		mcp.WithString("phase", mcp.Description("Filter by phase name")),
		mcp.WithString("workstream", mcp.Description("Filter by workstream")),
		mcp.WithString("status", mcp.Description("Filter by status (pending|in_progress|complete)")),
		mcp.WithBoolean("overdue", mcp.Description("Only overdue tasks")),
	), listTasksHandler(svc))

	s.AddTool(mcp.NewTool("overdue_tasks",
		mcp.WithDescription("Overdue tasks for a deal, most overdue first."),
		mcp.WithString("deal_id", mcp.Description("Deal identifier"), mcp.Required()),
	), overdueHandler(svc))

	s.AddTool(mcp.NewTool("workstreams",
		mcp.WithDescription("Task counts and completion per due-diligence workstream."),
		mcp.WithString("deal_id", mcp.Description("Deal identifier"), mcp.Required()),
	), workstreamsHandler(svc))

	s.AddTool(mcp.NewTool("transition_task",
		mcp.WithDescription("Move a task to a new status."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status"), mcp.Enum("pending", "in_progress", "complete"), mcp.Required()),
		mcp.WithNumber("version", mcp.Description("Expected version; 0 or omitted overwrites")),
	), transitionHandler(svc))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func optionalDealType(request mcp.CallToolRequest) (models.DealType, error) {
	raw := mcp.ParseString(request, "deal_type", "")
	if raw == "" {
		return "", nil
	}
	return models.ParseDealType(raw)
}

func listTemplatesHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		previews := make([]*catalog.Preview, 0)
		for _, dt := range svc.DealTypes() {
			p, err := svc.PreviewTemplate(dt)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			previews = append(previews, p)
		}
		return jsonResult(map[string]any{"templates": previews})
	}
}

func instantiateHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dealID := mcp.ParseString(request, "deal_id", "")
		dt, err := models.ParseDealType(mcp.ParseString(request, "deal_type", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		n, err := svc.Instantiate(ctx, dealID, dt)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Created %d tasks for deal '%s' from the %s template.", n, dealID, dt)), nil
	}
}

func progressHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dt, err := optionalDealType(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p, err := svc.Progress(ctx, mcp.ParseString(request, "deal_id", ""), dt)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(p)
	}
}

func listTasksHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := checklist.TaskFilter{
			Phase:       mcp.ParseString(request, "phase", ""),
			OverdueOnly: mcp.ParseBoolean(request, "overdue", false),
		}
		if raw := mcp.ParseString(request, "workstream", ""); raw != "" {
			ws, err := models.ParseWorkstream(raw)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			f.Workstream = ws
		}
		if raw := mcp.ParseString(request, "status", ""); raw != "" {
			st := models.TaskStatus(raw)
			if !st.Valid() {
				return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", raw)), nil
			}
			f.Status = st
		}

		tasks, err := svc.ListTasks(ctx, mcp.ParseString(request, "deal_id", ""), f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func overdueHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := svc.Overdue(ctx, mcp.ParseString(request, "deal_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"overdue": tasks})
	}
}

func workstreamsHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := svc.Workstreams(ctx, mcp.ParseString(request, "deal_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"workstreams": stats})
	}
}

func transitionHandler(svc Checklists) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "task_id", "")
		status := models.TaskStatus(mcp.ParseString(request, "status", ""))
		version := int64(mcp.ParseInt(request, "version", 0))

		t, err := svc.TransitionTask(ctx, id, status, version)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}
