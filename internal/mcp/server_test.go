package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

type fixture struct {
	db      *db.DB
	server  *server.MCPServer
	project *models.Project
	module  *models.Module
	task    *models.Task
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	org := &models.Organization{Name: "Acme"}
	if err := database.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("Failed to create organization: %v", err)
	}
	project := &models.Project{OrganizationID: org.ID, Name: "Website"}
	if err := database.CreateProject(ctx, project); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	module := &models.Module{ProjectID: project.ID, Name: "Checkout", Status: models.StatusInReview, Progress: 80}
	if err := database.CreateModule(ctx, module); err != nil {
		t.Fatalf("Failed to create module: %v", err)
	}
	task := &models.Task{ModuleID: module.ID, Title: "Payment form", Status: models.StatusPending, Progress: 40}
	if err := database.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	clock := func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return fixture{
		db:      database,
		server:  NewServer(database, WithClock(clock)),
		project: project,
		module:  module,
		task:    task,
	}
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func text(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	f := newFixture(t)
	stdio := server.NewStdioServer(f.server)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() {
		_ = stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test-client", Version: "1.0.0"}

	data, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	time.Sleep(200 * time.Millisecond)

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "Trellis" {
		t.Errorf("Expected server name Trellis, got %v", resp.Result.ServerInfo.Name)
	}
}

func TestListTools(t *testing.T) {
	f := newFixture(t)

	t.Run("list_organizations", func(t *testing.T) {
		result := call(t, f.server, "list_organizations", map[string]any{})
		var resp struct {
			Organizations []models.Organization `json:"organizations"`
		}
		if err := json.Unmarshal([]byte(text(result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Organizations) != 1 || resp.Organizations[0].Name != "Acme" {
			t.Errorf("unexpected organizations %+v", resp.Organizations)
		}
	})

	t.Run("list_modules", func(t *testing.T) {
		result := call(t, f.server, "list_modules", map[string]any{"project_id": f.project.ID})
		var resp struct {
			Modules []models.Module `json:"modules"`
		}
		if err := json.Unmarshal([]byte(text(result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Modules) != 1 || resp.Modules[0].ID != f.module.ID {
			t.Errorf("unexpected modules %+v", resp.Modules)
		}
	})

	t.Run("list_tasks by status", func(t *testing.T) {
		result := call(t, f.server, "list_tasks", map[string]any{"module_id": f.module.ID, "status": "in_progress"})
		var resp struct {
			Tasks []models.Task `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(text(result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Tasks) != 0 {
			t.Errorf("expected no in_progress tasks, got %d", len(resp.Tasks))
		}
	})

	t.Run("list_tasks unknown status", func(t *testing.T) {
		if result := call(t, f.server, "list_tasks", map[string]any{"status": "archived"}); !result.IsError {
			t.Errorf("expected an error for an unknown status")
		}
	})
}

func TestCreateTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := call(t, f.server, "create_task", map[string]any{
		"module_id": f.module.ID,
		"title":     "Receipts",
		"priority":  "high",
		"deadline":  "2026-12-01",
	})
	if result.IsError {
		t.Fatalf("create_task returned error: %s", text(result))
	}
	var created models.Task
	if err := json.Unmarshal([]byte(text(result)), &created); err != nil {
		t.Fatalf("Failed to unmarshal task: %v", err)
	}
	got, err := f.db.GetTask(ctx, created.ID)
	if err != nil || got == nil {
		t.Fatalf("task not stored: %v", err)
	}
	if got.Status != models.StatusDraft || got.Priority != models.PriorityHigh {
		t.Errorf("unexpected task %+v", got)
	}

	if result := call(t, f.server, "create_task", map[string]any{"module_id": f.module.ID, "title": "x", "status": "archived"}); !result.IsError {
		t.Errorf("expected an error for an unknown status")
	}
	if result := call(t, f.server, "create_task", map[string]any{"module_id": f.module.ID, "title": "x", "deadline": "soon"}); !result.IsError {
		t.Errorf("expected an error for a malformed deadline")
	}

	result = call(t, f.server, "create_module", map[string]any{"project_id": f.project.ID, "name": "Search"})
	if result.IsError {
		t.Fatalf("create_module returned error: %s", text(result))
	}
	modules, _ := f.db.ListModules(ctx, &f.project.ID)
	if len(modules) != 2 {
		t.Errorf("expected 2 modules, got %d", len(modules))
	}
}

func TestMoveTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := call(t, f.server, "move_task", map[string]any{"id": f.task.ID, "status": "in_progress"})
	if result.IsError || text(result) != "Task moved to In Progress" {
		t.Fatalf("unexpected result %q", text(result))
	}
	task, _ := f.db.GetTask(ctx, f.task.ID)
	if task.Status != models.StatusInProgress || task.Progress != 40 {
		t.Errorf("expected in_progress/40, got %s/%d", task.Status, task.Progress)
	}

	result = call(t, f.server, "move_task", map[string]any{"id": f.task.ID, "status": "completed"})
	if result.IsError {
		t.Fatalf("move to completed failed: %s", text(result))
	}
	task, _ = f.db.GetTask(ctx, f.task.ID)
	if task.Progress != 100 {
		t.Errorf("expected progress forced to 100, got %d", task.Progress)
	}

	result = call(t, f.server, "move_module", map[string]any{"id": f.module.ID, "status": "completed"})
	if result.IsError || text(result) != "Module moved to Completed" {
		t.Fatalf("unexpected result %q", text(result))
	}
	module, _ := f.db.GetModule(ctx, f.module.ID)
	if module.CompletedAt == nil || *module.CompletedAt != "2026-10-16" {
		t.Errorf("expected completed_at 2026-10-16, got %v", module.CompletedAt)
	}
}

func TestMoveToolsWithoutTransition(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		isError bool
		want    string
	}{
		{"same column", "move_task", map[string]any{"id": f.task.ID, "status": "pending"}, false, "already in Pending"},
		{"unknown status", "move_task", map[string]any{"id": f.task.ID, "status": "archived"}, true, "unknown status"},
		{"missing task", "move_task", map[string]any{"id": "nope", "status": "blocked"}, true, "not found"},
		{"missing module", "move_module", map[string]any{"id": "nope", "status": "blocked"}, true, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, f.server, tt.tool, tt.args)
			if result.IsError != tt.isError {
				t.Errorf("IsError = %v, want %v (%s)", result.IsError, tt.isError, text(result))
			}
			if !strings.Contains(text(result), tt.want) {
				t.Errorf("expected %q in %q", tt.want, text(result))
			}
		})
	}

	task, _ := f.db.GetTask(context.Background(), f.task.ID)
	if task.Status != models.StatusPending {
		t.Errorf("task must not have moved, got %s", task.Status)
	}
}
