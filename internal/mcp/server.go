// Package mcp exposes the task board to coding agents as MCP tools, so an
// agent can pick up work and learn which directory to operate in.
package mcp

import (
	"context"
	"encoding/json"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/mschirtzinger/taskboard/internal/lifecycle"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// Server wraps the lifecycle service and exposes it as MCP tools.
type Server struct {
	server *gomcp.Server
	svc    *lifecycle.Service
	logger zerolog.Logger
}

// NewServer creates a new MCP server over svc.
func NewServer(svc *lifecycle.Service, version string, logger zerolog.Logger) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		svc:    svc,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "taskboard", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority,omitempty"`
	DueDate        string   `json:"due_date,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	BlockedReason  string   `json:"blocked_reason,omitempty"`
	AssignedToType string   `json:"assigned_to_type,omitempty"`
	AssignedToID   string   `json:"assigned_to_id,omitempty"`
	NonAgent       bool     `json:"non_agent"`
	Anchor         string   `json:"anchor,omitempty"`
	Position       int64    `json:"position"`
	ProjectID      int64    `json:"project_id,omitempty"`
	ResolvedAnchor string   `json:"resolved_anchor,omitempty"`
	AnchorSource   string   `json:"anchor_source,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	CompletedAt    string   `json:"completed_at,omitempty"`
}

type listTasksInput struct {
	Status         string `json:"status,omitempty" jsonschema:"filter by status: backlog, in_progress, review or done"`
	AssignedToType string `json:"assigned_to_type,omitempty" jsonschema:"filter by assignee type: agent or human"`
	AssignedToID   string `json:"assigned_to_id,omitempty" jsonschema:"filter by assignee id"`
	ProjectID      int64  `json:"project_id,omitempty" jsonschema:"filter by project id"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type getTaskInput struct {
	ID int64 `json:"id" jsonschema:"the numeric task id"`
}

type createTaskInput struct {
	Title          string   `json:"title" jsonschema:"task title"`
	Description    string   `json:"description,omitempty" jsonschema:"longer description in markdown"`
	Status         string   `json:"status,omitempty" jsonschema:"initial status, backlog when omitted"`
	Priority       string   `json:"priority,omitempty" jsonschema:"low, medium, high or urgent"`
	DueDate        string   `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
	Tags           []string `json:"tags,omitempty" jsonschema:"free-form tags"`
	Anchor         string   `json:"anchor,omitempty" jsonschema:"explicit working directory; may use ~ and $VAR"`
	ProjectID      int64    `json:"project_id,omitempty" jsonschema:"project the task belongs to"`
	AssignedToType string   `json:"assigned_to_type,omitempty" jsonschema:"agent or human"`
	AssignedToID   string   `json:"assigned_to_id,omitempty" jsonschema:"assignee id"`
}

type updateTaskStatusInput struct {
	ID     int64  `json:"id" jsonschema:"the numeric task id"`
	Status string `json:"status" jsonschema:"the new status: backlog, in_progress, review or done"`
}

type resolveAnchorOutput struct {
	ID             int64  `json:"id"`
	ResolvedAnchor string `json:"resolved_anchor,omitempty"`
	AnchorSource   string `json:"anchor_source,omitempty"`
	Resolved       bool   `json:"resolved"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List non-archived tasks in board order, each with its resolved working directory.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task by id, including its resolved working directory.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task. Only title is required.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Move a task to another status column. Moving to done records the completion time.",
	}, s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_anchor",
		Description: "Resolve the directory an agent should work in for a task, and which rule produced it.",
	}, s.handleResolveAnchor)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	var filter types.TaskFilter
	if input.Status != "" {
		status, err := types.ParseStatus(input.Status)
		if err != nil {
			return s.errorResult(err), listTasksOutput{}, nil
		}
		filter.Status = status
	}
	if input.AssignedToType != "" {
		typ, err := types.ParseAssigneeType(input.AssignedToType)
		if err != nil {
			return s.errorResult(err), listTasksOutput{}, nil
		}
		filter.AssignedToType = typ
	}
	filter.AssignedToID = input.AssignedToID
	if input.ProjectID > 0 {
		filter.ProjectID = &input.ProjectID
	}

	tasks, err := s.svc.ListTasks(ctx, filter, true)
	if err != nil {
		return s.errorResult(err), listTasksOutput{}, nil
	}

	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i, task := range tasks {
		out.Tasks[i] = taskToOutput(task)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.svc.GetTask(ctx, input.ID, true)
	if err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	in := &types.TaskInput{
		Title:          input.Title,
		Status:         types.Status(input.Status),
		Description:    optional[string](input.Description),
		Priority:       optional[types.Priority](input.Priority),
		DueDate:        optional[string](input.DueDate),
		Anchor:         optional[string](input.Anchor),
		AssignedToType: optional[types.AssigneeType](input.AssignedToType),
		AssignedToID:   optional[string](input.AssignedToID),
	}
	if len(input.Tags) > 0 {
		raw, err := json.Marshal(input.Tags)
		if err != nil {
			return s.errorResult(err), taskOutput{}, nil
		}
		in.Tags = raw
	}
	if input.ProjectID > 0 {
		in.ProjectID = &input.ProjectID
	}

	task, err := s.svc.CreateTask(ctx, in)
	if err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}
	if task, err = s.svc.Enrich(ctx, task); err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, taskOutput, error) {
	status, err := types.ParseStatus(input.Status)
	if err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}

	task, err := s.svc.UpdateTask(ctx, input.ID, &types.TaskPatch{Status: types.Some(status)})
	if err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}
	if task, err = s.svc.Enrich(ctx, task); err != nil {
		return s.errorResult(err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleResolveAnchor(ctx context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, resolveAnchorOutput, error) {
	task, err := s.svc.GetTask(ctx, input.ID, true)
	if err != nil {
		return s.errorResult(err), resolveAnchorOutput{}, nil
	}

	out := resolveAnchorOutput{ID: task.ID}
	if task.ResolvedAnchor != nil {
		out.ResolvedAnchor = *task.ResolvedAnchor
		out.AnchorSource = string(*task.AnchorSource)
		out.Resolved = true
	}
	return nil, out, nil
}

// --- Helpers ---

// errorResult reports client errors verbatim. Storage faults were already
// logged by the service and are reported generically.
func (s *Server) errorResult(err error) *gomcp.CallToolResult {
	msg := "internal error"
	if types.IsClientError(err) {
		msg = err.Error()
		s.logger.Debug().Err(err).Msg("tool call rejected")
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func optional[T ~string](s string) *T {
	if s == "" {
		return nil
	}
	v := T(s)
	return &v
}

func deref[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func taskToOutput(t *types.Task) taskOutput {
	out := taskOutput{
		ID:             t.ID,
		Title:          t.Title,
		Description:    deref(t.Description),
		Status:         string(t.Status),
		Priority:       deref(t.Priority),
		DueDate:        deref(t.DueDate),
		Tags:           t.Tags,
		BlockedReason:  deref(t.BlockedReason),
		AssignedToType: deref(t.AssignedToType),
		AssignedToID:   deref(t.AssignedToID),
		NonAgent:       t.NonAgent,
		Anchor:         deref(t.Anchor),
		Position:       t.Position,
		ResolvedAnchor: deref(t.ResolvedAnchor),
		AnchorSource:   deref(t.AnchorSource),
		CreatedAt:      formatTime(&t.CreatedAt),
		UpdatedAt:      formatTime(&t.UpdatedAt),
		CompletedAt:    formatTime(t.CompletedAt),
	}
	if t.ProjectID != nil {
		out.ProjectID = *t.ProjectID
	}
	return out
}
