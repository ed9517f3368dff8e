// Package mcpapi exposes the week planner task store as stateless MCP streamable-HTTP tools.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// inboxContainer names the undated container in tool arguments.
const inboxContainer = "inbox"

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
	SundayFirst   bool
	Now           func() time.Time
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds the MCP adapter with the week planner tools over store.
func NewHandler(cfg Config, store app.TaskStore) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	tools := &toolSet{store: store, cfg: cfg}
	tools.registerReadTools(mcpSrv)
	tools.registerWriteTools(mcpSrv)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "weekplan"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// taskView is the tool-facing task shape.
type taskView struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	DueDate            string `json:"due_date,omitempty"`
	Completed          bool   `json:"completed"`
	Order              int    `json:"order"`
	Color              string `json:"color,omitempty"`
	Description        string `json:"description,omitempty"`
	RecurrenceRule     string `json:"recurrence_rule,omitempty"`
	RecurrenceInterval int    `json:"recurrence_interval"`
	Checklist          string `json:"checklist,omitempty"`
	Link               string `json:"link"`
}

func viewOf(task domain.Task) taskView {
	out := taskView{
		ID:                 task.ID,
		Title:              task.Title,
		Completed:          task.Completed,
		Order:              task.Order,
		Color:              string(task.Color),
		Description:        task.Description,
		RecurrenceRule:     string(task.RecurrenceRule),
		RecurrenceInterval: max(1, task.RecurrenceInterval),
		Checklist:          task.Checklist().Badge(),
		Link:               domain.TaskLink(task.ID),
	}
	if !task.InInbox() {
		out.DueDate = task.DueDate.String()
	}
	return out
}

func viewsOf(tasks []domain.Task) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, viewOf(task))
	}
	return out
}

// dayView is one day column of a week listing.
type dayView struct {
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Tasks   []taskView `json:"tasks"`
}

// weekView is the week_tasks result.
type weekView struct {
	WeekStart  string     `json:"week_start"`
	Days       []dayView  `json:"days"`
	InboxTitle string     `json:"inbox_title"`
	Inbox      []taskView `json:"inbox"`
}

// toolSet holds the store shared by every tool handler.
type toolSet struct {
	store app.TaskStore
	cfg   Config
}

func (s *toolSet) firstWeekday() time.Weekday {
	if s.cfg.SundayFirst {
		return time.Sunday
	}
	return time.Monday
}

// registerReadTools registers the listing and lookup tools.
func (s *toolSet) registerReadTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"weekplan.week_tasks",
			mcp.WithDescription("List the tasks of one week, day by day, plus the inbox."),
			mcp.WithString("date", mcp.Description("Any date inside the week, YYYY-MM-DD (defaults to today)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			anchor := domain.Today(s.cfg.Now())
			if raw := strings.TrimSpace(req.GetString("date", "")); raw != "" {
				parsed, err := domain.ParseDate(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				anchor = parsed
			}
			week, err := s.week(ctx, anchor.WeekStart(s.firstWeekday()))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("week_tasks", week)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.get_task",
			mcp.WithDescription("Return one task by id or #task/<id> link."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id or deep link")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, result := requireTaskID(req)
			if result != nil {
				return result, nil
			}
			task, err := s.store.FetchTaskDetails(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", viewOf(task))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.search_tasks",
			mcp.WithDescription("Full-text search across all tasks, nearest due date first."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
			mcp.WithNumber("page", mcp.Description("1-based page"), mcp.Min(1)),
			mcp.WithNumber("page_size", mcp.Description("Results per page"), mcp.Min(1), mcp.Max(app.MaxSearchPageSize)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			query, err := req.RequireString("query")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			page := max(1, req.GetInt("page", 1))
			pageSize := min(max(1, req.GetInt("page_size", app.DefaultSearchPageSize)), app.MaxSearchPageSize)
			tasks, err := s.store.SearchTasks(ctx, query, page, pageSize)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("search_tasks", map[string]any{"tasks": viewsOf(tasks)})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.inbox_title",
			mcp.WithDescription("Return the inbox title, renaming it first when title is given."),
			mcp.WithString("title", mcp.Description("New inbox title")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if title := strings.TrimSpace(req.GetString("title", "")); title != "" {
				if err := s.store.SetInboxTitle(ctx, title); err != nil {
					return toolResultFromError(err), nil
				}
			}
			title, err := s.store.InboxTitle(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("inbox_title", map[string]any{"inbox_title": title})
		},
	)
}

// registerWriteTools registers the mutating tools.
func (s *toolSet) registerWriteTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"weekplan.create_task",
			mcp.WithDescription("Create a task at the end of a day or of the inbox."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("container", mcp.Description("Due date YYYY-MM-DD or \"inbox\" (default)")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("color", mcp.Description("Card color"), mcp.Enum(colorNames()...)),
			mcp.WithString("recurrence_rule", mcp.Description("Repeat rule"), mcp.Enum("daily", "weekly", "monthly", "yearly")),
			mcp.WithNumber("recurrence_interval", mcp.Description("Repeat every N periods"), mcp.Min(1)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			key, err := parseContainer(req.GetString("container", inboxContainer))
			if err != nil {
				return toolResultFromError(err), nil
			}
			siblings, err := s.containerTasks(ctx, key)
			if err != nil {
				return toolResultFromError(err), nil
			}
			task, err := domain.NewTask(domain.TaskInput{
				Title:              title,
				Description:        req.GetString("description", ""),
				DueDate:            key.DueDate(),
				Order:              len(siblings),
				Color:              domain.Color(req.GetString("color", "")),
				RecurrenceRule:     domain.RecurrenceRule(req.GetString("recurrence_rule", "")),
				RecurrenceInterval: req.GetInt("recurrence_interval", 1),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			created, err := s.store.CreateTask(ctx, task)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", viewOf(created))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.update_task",
			mcp.WithDescription("Update task fields; omitted fields are left unchanged."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id or deep link")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New markdown description")),
			mcp.WithString("color", mcp.Description("Card color"), mcp.Enum(colorNames()...)),
			mcp.WithBoolean("completed", mcp.Description("Completion flag")),
			mcp.WithString("recurrence_rule", mcp.Description("Repeat rule, empty to stop repeating"), mcp.Enum("", "daily", "weekly", "monthly", "yearly")),
			mcp.WithNumber("recurrence_interval", mcp.Description("Repeat every N periods"), mcp.Min(1)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, result := requireTaskID(req)
			if result != nil {
				return result, nil
			}
			patch := patchFromArguments(req)
			if err := s.store.UpdateTask(ctx, id, patch); err != nil {
				return toolResultFromError(err), nil
			}
			task, err := s.store.FetchTaskDetails(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", viewOf(task))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.move_task",
			mcp.WithDescription("Move a task into a day or the inbox at a position, renumbering both containers."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id or deep link")),
			mcp.WithString("container", mcp.Required(), mcp.Description("Target due date YYYY-MM-DD or \"inbox\"")),
			mcp.WithNumber("index", mcp.Description("0-based position in the target (defaults to the end)"), mcp.Min(0)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, result := requireTaskID(req)
			if result != nil {
				return result, nil
			}
			raw, err := req.RequireString("container")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			key, err := parseContainer(raw)
			if err != nil {
				return toolResultFromError(err), nil
			}
			moved, err := s.move(ctx, id, key, req.GetInt("index", -1))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", viewOf(moved))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.delete_task",
			mcp.WithDescription("Delete one task permanently."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id or deep link")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, result := requireTaskID(req)
			if result != nil {
				return result, nil
			}
			if err := s.store.DeleteTask(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_task", map[string]any{"deleted": id})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekplan.check_recurring_tasks",
			mcp.WithDescription("Roll overdue recurring tasks forward to their next occurrence."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := s.store.CheckRecurringTasks(ctx); err != nil {
				return toolResultFromError(err), nil
			}
			return mcp.NewToolResultText("recurring tasks checked"), nil
		},
	)
}

// week loads the seven days starting at start and the inbox.
func (s *toolSet) week(ctx context.Context, start domain.Date) (weekView, error) {
	end := start.AddDays(6)
	tasks, err := s.store.FetchTasksForRange(ctx, start, end)
	if err != nil {
		return weekView{}, err
	}
	inbox, err := s.store.FetchInboxTasks(ctx)
	if err != nil {
		return weekView{}, err
	}
	title, err := s.store.InboxTitle(ctx)
	if err != nil {
		return weekView{}, err
	}

	board := app.NewBoard(start)
	board.Rebuild(start, tasks, inbox)
	out := weekView{WeekStart: start.String(), InboxTitle: title}
	for _, day := range board.Days() {
		c, _ := board.Container(domain.DayKey(day))
		out.Days = append(out.Days, dayView{
			Date:    day.String(),
			Weekday: day.Weekday().String(),
			Tasks:   viewsOf(c.Tasks()),
		})
	}
	inboxC, _ := board.Container(domain.InboxKey())
	out.Inbox = viewsOf(inboxC.Tasks())
	return out, nil
}

// containerTasks fetches the tasks of one day or of the inbox.
func (s *toolSet) containerTasks(ctx context.Context, key domain.ContainerKey) ([]domain.Task, error) {
	if day, ok := key.Date(); ok {
		return s.store.FetchTasksForRange(ctx, day, day)
	}
	return s.store.FetchInboxTasks(ctx)
}

// move writes the due date change first, then the renumbered orders of target and source.
func (s *toolSet) move(ctx context.Context, id int, target domain.ContainerKey, index int) (domain.Task, error) {
	task, err := s.store.FetchTaskDetails(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	source := task.Container()
	targetTasks, err := s.containerTasks(ctx, target)
	if err != nil {
		return domain.Task{}, err
	}
	targetC := app.NewOrderedContainer(target, targetTasks)
	sourceC := targetC
	if source != target {
		sourceTasks, err := s.containerTasks(ctx, source)
		if err != nil {
			return domain.Task{}, err
		}
		sourceC = app.NewOrderedContainer(source, sourceTasks)

		patch := domain.PatchForContainer(target)
		if err := s.store.UpdateTask(ctx, id, patch); err != nil {
			return domain.Task{}, err
		}
		if err := task.Apply(patch); err != nil {
			return domain.Task{}, err
		}
	}

	sourceC.Remove(id)
	if index < 0 {
		index = targetC.Len()
	}
	targetC.Insert(index, task)
	updates := targetC.Reindex()
	if sourceC != targetC {
		updates = append(updates, sourceC.Reindex()...)
	}
	if err := s.store.BulkUpdateOrder(ctx, updates); err != nil {
		return domain.Task{}, fmt.Errorf("persist order after moving task %d: %w", id, err)
	}
	return s.store.FetchTaskDetails(ctx, id)
}

// patchFromArguments maps the arguments present in req onto a task patch.
func patchFromArguments(req mcp.CallToolRequest) domain.TaskPatch {
	args := req.GetArguments()
	has := func(name string) bool {
		_, ok := args[name]
		return ok
	}
	var patch domain.TaskPatch
	if has("title") {
		title := req.GetString("title", "")
		patch.Title = &title
	}
	if has("description") {
		description := req.GetString("description", "")
		patch.Description = &description
	}
	if has("color") {
		color := domain.Color(req.GetString("color", ""))
		patch.Color = &color
	}
	if has("completed") {
		completed := req.GetBool("completed", false)
		patch.Completed = &completed
	}
	if has("recurrence_rule") {
		rule := domain.RecurrenceRule(req.GetString("recurrence_rule", ""))
		patch.RecurrenceRule = &rule
	}
	if has("recurrence_interval") {
		interval := req.GetInt("recurrence_interval", 1)
		patch.RecurrenceInterval = &interval
	}
	return patch
}

// requireTaskID reads the id argument as a number or a #task/<id> link.
func requireTaskID(req mcp.CallToolRequest) (int, *mcp.CallToolResult) {
	raw, err := req.RequireString("id")
	if err != nil {
		return 0, mcp.NewToolResultError(err.Error())
	}
	raw = strings.TrimSpace(raw)
	id, err := strconv.Atoi(raw)
	if err != nil {
		var ok bool
		if id, ok = domain.ParseTaskLink(raw); !ok {
			id = 0
		}
	}
	if id <= 0 {
		return 0, toolResultFromError(fmt.Errorf("task id %q: %w", raw, domain.ErrInvalidID))
	}
	return id, nil
}

// parseContainer reads "inbox" or a YYYY-MM-DD day.
func parseContainer(raw string) (domain.ContainerKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, inboxContainer) {
		return domain.InboxKey(), nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return domain.ContainerKey{}, err
	}
	return domain.DayKey(day), nil
}

func colorNames() []string {
	names := make([]string, 0, len(domain.Colors()))
	for _, c := range domain.Colors() {
		names = append(names, string(c))
	}
	return names
}

func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps store errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrValidation), domain.IsInvalid(err):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, app.ErrNetwork):
		return mcp.NewToolResultError("backend_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
