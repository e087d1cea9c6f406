package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

const statusHelp = "Status (draft|pending|in_progress|in_review|completed|blocked)"

type Option func(*handlers)

// WithClock overrides the time source used for completion dates.
func WithClock(now func() time.Time) Option {
	return func(h *handlers) { h.now = now }
}

type handlers struct {
	db      *db.DB
	columns board.Columns
	now     func() time.Time
}

// NewServer creates the MCP server exposing the boards to agents.
func NewServer(database *db.DB, opts ...Option) *server.MCPServer {
	h := &handlers{db: database, columns: board.DefaultColumns(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}

	s := server.NewMCPServer("Trellis", "0.1.0")

	// Browsing
	s.AddTool(mcp.NewTool("list_organizations",
		mcp.WithDescription("List all organizations."),
	), h.listOrganizations)

	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List projects, optionally within one organization."),
		mcp.WithString("organization_id", mcp.Description("Filter by organization ID")),
	), h.listProjects)

	s.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("List modules, optionally within one project."),
		mcp.WithString("project_id", mcp.Description("Filter by project ID")),
	), h.listModules)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters."),
		mcp.WithString("module_id", mcp.Description("Filter by module ID")),
		mcp.WithString("status", mcp.Description("Filter by status")),
	), h.listTasks)

	// Creation
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in a module. New tasks start in the first column unless a status is given."),
		mcp.WithString("module_id", mcp.Description("Module ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high|urgent)")),
		mcp.WithString("deadline", mcp.Description("Deadline (YYYY-MM-DD)")),
		mcp.WithString("status", mcp.Description(statusHelp)),
	), h.createTask)

	s.AddTool(mcp.NewTool("create_module",
		mcp.WithDescription("Create a module in a project."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Module name"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Module description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high|urgent)")),
		mcp.WithString("deadline", mcp.Description("Deadline (YYYY-MM-DD)")),
	), h.createModule)

	// Board moves
	s.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move a task to another column of its board. Moving to completed sets progress to 100."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description(statusHelp), mcp.Required()),
	), h.moveTask)

	s.AddTool(mcp.NewTool("move_module",
		mcp.WithDescription("Move a module to another column of its board. Moving to completed sets progress to 100 and stamps today's date."),
		mcp.WithString("id", mcp.Description("Module ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description(statusHelp), mcp.Required()),
	), h.moveModule)

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func optionalString(request mcp.CallToolRequest, key string) *string {
	args, _ := request.Params.Arguments.(map[string]any)
	if v, ok := args[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func (h *handlers) listOrganizations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgs, err := h.db.ListOrganizations(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"organizations": orgs})
}

func (h *handlers) listProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := h.db.ListProjects(ctx, optionalString(request, "organization_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"projects": projects})
}

func (h *handlers) listModules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modules, err := h.db.ListModules(ctx, optionalString(request, "project_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"modules": modules})
}

func (h *handlers) listTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status *models.Status
	if s := optionalString(request, "status"); s != nil {
		st := models.Status(*s)
		if !st.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", *s)), nil
		}
		status = &st
	}

	tasks, err := h.db.ListTasks(ctx, optionalString(request, "module_id"), status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"tasks": tasks})
}

func (h *handlers) createTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t := &models.Task{
		ModuleID:    mcp.ParseString(request, "module_id", ""),
		Title:       mcp.ParseString(request, "title", ""),
		Description: mcp.ParseString(request, "description", ""),
		Priority:    models.Priority(mcp.ParseString(request, "priority", "")),
		Status:      models.Status(mcp.ParseString(request, "status", string(h.columns.Initial()))),
		Deadline:    optionalString(request, "deadline"),
	}
	if t.Title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if !h.columns.Valid(t.Status) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", t.Status)), nil
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown priority %q", t.Priority)), nil
	}

	if err := h.db.CreateTask(ctx, t); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func (h *handlers) createModule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := &models.Module{
		ProjectID:   mcp.ParseString(request, "project_id", ""),
		Name:        mcp.ParseString(request, "name", ""),
		Description: mcp.ParseString(request, "description", ""),
		Priority:    models.Priority(mcp.ParseString(request, "priority", "")),
		Status:      h.columns.Initial(),
		Deadline:    optionalString(request, "deadline"),
	}
	if m.Name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if m.Priority != "" && !m.Priority.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown priority %q", m.Priority)), nil
	}

	if err := h.db.CreateModule(ctx, m); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (h *handlers) moveTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "id", "")
	target := models.Status(mcp.ParseString(request, "status", ""))

	t, err := h.db.GetTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if t == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found", id)), nil
	}

	return h.move(board.FromTask(t), target, func(u models.StatusUpdate) error {
		_, err := h.db.UpdateTaskStatus(ctx, id, u)
		return err
	})
}

func (h *handlers) moveModule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "id", "")
	target := models.Status(mcp.ParseString(request, "status", ""))

	m, err := h.db.GetModule(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if m == nil {
		return mcp.NewToolResultError(fmt.Sprintf("module %q not found", id)), nil
	}

	return h.move(board.FromModule(m), target, func(u models.StatusUpdate) error {
		_, err := h.db.UpdateModuleStatus(ctx, id, u)
		return err
	})
}

// move applies the same rules as a drop on the board: unknown columns are
// refused, a move to the current column changes nothing, and the payload is
// built the way the board builds it.
func (h *handlers) move(card board.Card, target models.Status, apply func(models.StatusUpdate) error) (*mcp.CallToolResult, error) {
	if !h.columns.Valid(target) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", target)), nil
	}
	if target == card.Status {
		return mcp.NewToolResultText(fmt.Sprintf("%s is already in %s", card.Kind.Noun(), h.columns.Label(target))), nil
	}

	if err := apply(board.BuildPayload(card, target, h.now())); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s moved to %s", card.Kind.Noun(), h.columns.Label(target))), nil
}
