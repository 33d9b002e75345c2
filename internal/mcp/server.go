// Package mcp exposes the task store as MCP (Model Context Protocol) tools so
// AI assistants can read and manage the signed-in user's tasks.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/observability"
	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// Server wraps a task store and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	store       *core.Store
	metricsCalc observability.MetricsCalculator
	now         func() time.Time

	// bulk tools drive the store's selection, which is shared state.
	bulkMu sync.Mutex
}

// NewServer creates an MCP server over store. metricsCalc may be nil when
// the event log is unavailable.
func NewServer(store *core.Store, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:       store,
		metricsCalc: metricsCalc,
		now:         time.Now,
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "taskdeck", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date,omitempty"`
	Overdue     bool     `json:"overdue"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"the task id"`
}

type listTasksInput struct {
	Query    string   `json:"query,omitempty" jsonschema:"case-insensitive text matched against title, description and tags"`
	Status   []string `json:"status,omitempty" jsonschema:"keep tasks with any of these statuses (pending, in_progress, completed)"`
	Priority []string `json:"priority,omitempty" jsonschema:"keep tasks with any of these priorities (low, medium, high, urgent)"`
	Tags     []string `json:"tags,omitempty" jsonschema:"keep tasks carrying any of these tags"`
	Overdue  *bool    `json:"overdue,omitempty" jsonschema:"true for overdue tasks only, false to exclude them"`
	SortBy   string   `json:"sort_by,omitempty" jsonschema:"title, dueDate, priority, status or createdAt (default createdAt)"`
	Order    string   `json:"order,omitempty" jsonschema:"asc or desc (default desc)"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title       string   `json:"title" jsonschema:"task title, at most 200 characters"`
	Description string   `json:"description,omitempty" jsonschema:"free-form description"`
	Priority    string   `json:"priority,omitempty" jsonschema:"low, medium, high or urgent (default medium)"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD or RFC 3339; not in the past"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags, normalized to lowercase"`
}

type updateTaskInput struct {
	TaskID       string   `json:"task_id" jsonschema:"the task id"`
	Title        *string  `json:"title,omitempty" jsonschema:"new title"`
	Description  *string  `json:"description,omitempty" jsonschema:"new description"`
	Status       string   `json:"status,omitempty" jsonschema:"pending, in_progress or completed"`
	Priority     string   `json:"priority,omitempty" jsonschema:"low, medium, high or urgent"`
	DueDate      string   `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD or RFC 3339"`
	ClearDueDate bool     `json:"clear_due_date,omitempty" jsonschema:"remove the due date"`
	Tags         []string `json:"tags,omitempty" jsonschema:"replacement tag list"`
}

type deleteTaskOutput struct {
	Message string `json:"message"`
}

type bulkUpdateStatusInput struct {
	TaskIDs []string `json:"task_ids" jsonschema:"ids of the tasks to update"`
	Status  string   `json:"status" jsonschema:"pending, in_progress or completed"`
}

type bulkUpdateStatusOutput struct {
	Updated int `json:"updated"`
}

type reorderTasksInput struct {
	TaskID string `json:"task_id" jsonschema:"the task to move"`
	OverID string `json:"over_id" jsonschema:"the task whose position it takes"`
}

type getStatsInput struct{}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated      int            `json:"tasks_created"`
	TasksCompleted    int            `json:"tasks_completed"`
	TasksUpdated      int            `json:"tasks_updated"`
	TasksDeleted      int            `json:"tasks_deleted"`
	StatusTransitions map[string]int `json:"status_transitions"`
	CreatedByPriority map[string]int `json:"created_by_priority"`
	Reorders          int            `json:"reorders"`
	Restores          int            `json:"restores"`
	EventCount        int            `json:"event_count"`
	OldestEvent       string         `json:"oldest_event,omitempty"`
	NewestEvent       string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "Search, filter and sort the signed-in user's tasks. Filters combine with AND; values within one filter combine with OR.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task by id.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task. New tasks start as pending.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Change any subset of a task's fields.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "toggle_task_status",
		Description: "Advance a task's status: pending to in_progress to completed and back to pending.",
	}, s.handleToggleTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task by id.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bulk_update_status",
		Description: "Set the same status on several tasks in one write.",
	}, s.handleBulkUpdateStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "reorder_tasks",
		Description: "Move a task to another task's position in the stored order.",
	}, s.handleReorderTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_stats",
		Description: "Count tasks by status and priority, plus overdue, due today and due this week.",
	}, s.handleGetStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get activity metrics from the event log: tasks created, completed, updated and deleted, and status transitions.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	params, err := paramsFromInput(input)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}

	tasks := s.store.Query(params)
	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i, t := range tasks {
		out.Tasks[i] = s.taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, ok := s.store.Find(input.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), taskOutput{}, nil
	}
	return nil, s.taskToOutput(task), nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	draft := models.TaskDraft{
		Title:       input.Title,
		Description: input.Description,
		Priority:    models.Priority(input.Priority),
		Tags:        input.Tags,
	}
	if input.DueDate != "" {
		due, err := core.ParseDate(input.DueDate, nil)
		if err != nil {
			return errorResult(err.Error()), taskOutput{}, nil
		}
		draft.DueDate = &due
	}

	task, err := s.store.AddTask(ctx, draft)
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", core.Describe(err))), taskOutput{}, nil
	}
	return nil, s.taskToOutput(task), nil
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	patch := models.TaskPatch{
		Title:        input.Title,
		Description:  input.Description,
		ClearDueDate: input.ClearDueDate,
		Tags:         input.Tags,
	}
	if input.Status != "" {
		st := models.TaskStatus(input.Status)
		patch.Status = &st
	}
	if input.Priority != "" {
		p := models.Priority(input.Priority)
		patch.Priority = &p
	}
	if input.DueDate != "" {
		due, err := core.ParseDate(input.DueDate, nil)
		if err != nil {
			return errorResult(err.Error()), taskOutput{}, nil
		}
		patch.DueDate = &due
	}
	if patch.IsEmpty() {
		return errorResult("nothing to update"), taskOutput{}, nil
	}

	task, err := s.store.UpdateTask(ctx, input.TaskID, patch)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s: %s", input.TaskID, core.Describe(err))), taskOutput{}, nil
	}
	return nil, s.taskToOutput(task), nil
}

func (s *Server) handleToggleTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, err := s.store.ToggleStatus(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("toggling task %s: %s", input.TaskID, core.Describe(err))), taskOutput{}, nil
	}
	return nil, s.taskToOutput(task), nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, deleteTaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), deleteTaskOutput{}, nil
	}
	if err := s.store.DeleteTask(ctx, input.TaskID); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, core.Describe(err))), deleteTaskOutput{}, nil
	}
	return nil, deleteTaskOutput{Message: fmt.Sprintf("task %s deleted", input.TaskID)}, nil
}

func (s *Server) handleBulkUpdateStatus(ctx context.Context, _ *gomcp.CallToolRequest, input bulkUpdateStatusInput) (*gomcp.CallToolResult, bulkUpdateStatusOutput, error) {
	status := models.TaskStatus(input.Status)
	if !status.Valid() {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of pending, in_progress, completed", input.Status)), bulkUpdateStatusOutput{}, nil
	}
	if len(input.TaskIDs) == 0 {
		return errorResult("task_ids is required"), bulkUpdateStatusOutput{}, nil
	}

	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	s.store.SetSelection(input.TaskIDs)
	n, err := s.store.BulkUpdateStatus(ctx, status)
	if err != nil {
		s.store.ClearSelection()
		return errorResult(fmt.Sprintf("updating tasks: %s", core.Describe(err))), bulkUpdateStatusOutput{}, nil
	}
	return nil, bulkUpdateStatusOutput{Updated: n}, nil
}

func (s *Server) handleReorderTasks(ctx context.Context, _ *gomcp.CallToolRequest, input reorderTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.TaskID == "" || input.OverID == "" {
		return errorResult("task_id and over_id are required"), listTasksOutput{}, nil
	}
	if err := s.store.Reorder(ctx, input.TaskID, input.OverID); err != nil {
		return errorResult(fmt.Sprintf("reordering tasks: %s", core.Describe(err))), listTasksOutput{}, nil
	}

	tasks := s.store.Tasks()
	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i, t := range tasks {
		out.Tasks[i] = s.taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *gomcp.CallToolRequest, _ getStatsInput) (*gomcp.CallToolResult, core.TaskStats, error) {
	return nil, s.store.Stats(), nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr, s.now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.metricsCalc.Calculate(s.store.Identity().OwnerID, sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:      m.TasksCreated,
		TasksCompleted:    m.TasksCompleted,
		TasksUpdated:      m.TasksUpdated,
		TasksDeleted:      m.TasksDeleted,
		StatusTransitions: m.StatusTransitions,
		CreatedByPriority: m.CreatedByPriority,
		Reorders:          m.Reorders,
		Restores:          m.Restores,
		EventCount:        m.EventCount,
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

// --- Helpers ---

func paramsFromInput(in listTasksInput) (models.SearchParams, error) {
	p := models.SearchParams{Query: in.Query, Sort: models.DefaultSort()}
	for _, v := range in.Status {
		st := models.TaskStatus(v)
		if !st.Valid() {
			return p, fmt.Errorf("invalid status %q", v)
		}
		p.Filters.Status = append(p.Filters.Status, st)
	}
	for _, v := range in.Priority {
		pr := models.Priority(v)
		if !pr.Valid() {
			return p, fmt.Errorf("invalid priority %q", v)
		}
		p.Filters.Priority = append(p.Filters.Priority, pr)
	}
	p.Filters.Tags = in.Tags
	p.Filters.IsOverdue = in.Overdue

	if in.SortBy != "" {
		p.Sort.By = models.SortField(in.SortBy)
		if !p.Sort.By.Valid() {
			return p, fmt.Errorf("invalid sort field %q", in.SortBy)
		}
	}
	switch models.SortOrder(in.Order) {
	case "":
	case models.SortAsc, models.SortDesc:
		p.Sort.Order = models.SortOrder(in.Order)
	default:
		return p, fmt.Errorf("invalid order %q: use asc or desc", in.Order)
	}
	return p, nil
}

func (s *Server) taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Overdue:     core.IsOverdue(t.DueDate, s.now()),
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.Format(time.RFC3339)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		StatusTransitions: make(map[string]int),
		CreatedByPriority: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince turns "7d" or "24h" into the instant that long before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
