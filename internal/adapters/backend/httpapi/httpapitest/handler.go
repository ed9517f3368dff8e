// Package httpapitest provides an in-process reference backend speaking the REST and event-stream
// protocol that httpapi.Client consumes. It serves a task store for contract and wiring tests.
package httpapitest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/adapters/backend/httpapi"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/gin-gonic/gin"
)

// DefaultDayCheckInterval is how often an open event stream looks for a calendar day change.
const DefaultDayCheckInterval = time.Minute

// maxRequestBodyBytes limits decoded JSON payload size.
const maxRequestBodyBytes int64 = 1 << 20

// APIPrefix is the path every REST route is served under.
const APIPrefix = "/api"

// Handler serves the backend REST protocol rooted at /api.
type Handler struct {
	store    app.TaskStore
	log      app.Logger
	now      func() time.Time
	dayCheck time.Duration
	engine   *gin.Engine
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the request and failure logger.
func WithHandlerLogger(log app.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHandlerClock sets the clock used to detect day changes.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithDayCheckInterval sets how often event streams poll the clock.
func WithDayCheckInterval(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.dayCheck = d
		}
	}
}

// NewHandler builds the REST handler over store.
func NewHandler(store app.TaskStore, opts ...HandlerOption) (*Handler, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	h := &Handler{
		store:    store,
		log:      nopLogger{},
		now:      time.Now,
		dayCheck: DefaultDayCheckInterval,
	}
	for _, opt := range opts {
		opt(h)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(h.log))
	h.registerRoutes(engine)
	h.engine = engine
	return h, nil
}

func (h *Handler) registerRoutes(r *gin.Engine) {
	api := r.Group(APIPrefix)
	api.GET("/tasks", h.listTasks)
	api.POST("/tasks", h.createTask)
	api.POST("/tasks/bulk_update_order", h.bulkUpdateOrder)
	api.GET("/tasks/:id", h.getTask)
	api.PUT("/tasks/:id", h.updateTask)
	api.DELETE("/tasks/:id", h.deleteTask)
	api.GET("/inbox_title", h.getInboxTitle)
	api.PUT("/inbox_title", h.putInboxTitle)
	api.GET("/search_tasks", h.searchTasks)
	api.POST("/check_recurring_tasks", h.checkRecurringTasks)
	api.GET("/events", h.events)
}

// ServeHTTP routes one request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

// listTasks serves GET /tasks?start_date&end_date, ?date=inbox and ?date=YYYY-MM-DD.
func (h *Handler) listTasks(c *gin.Context) {
	ctx := c.Request.Context()
	date := strings.TrimSpace(c.Query("date"))
	var (
		tasks []domain.Task
		err   error
	)
	switch {
	case date == "inbox":
		tasks, err = h.store.FetchInboxTasks(ctx)
	case date != "":
		var day domain.Date
		if day, err = domain.ParseDate(date); err == nil {
			tasks, err = h.store.FetchTasksForRange(ctx, day, day)
		}
	case c.Query("start_date") != "" && c.Query("end_date") != "":
		var start, end domain.Date
		if start, err = domain.ParseDate(c.Query("start_date")); err == nil {
			if end, err = domain.ParseDate(c.Query("end_date")); err == nil {
				tasks, err = h.store.FetchTasksForRange(ctx, start, end)
			}
		}
	default:
		err = fmt.Errorf("%w: date or start_date and end_date are required", app.ErrValidation)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJSONList(tasks))
}

// createRequest is the POST /tasks body.
type createRequest struct {
	Title              string  `json:"title" binding:"required"`
	DueDate            *string `json:"due_date"`
	Order              int     `json:"order" binding:"min=0"`
	Color              string  `json:"color"`
	Description        string  `json:"description"`
	RecurrenceRule     string  `json:"recurrence_rule"`
	RecurrenceInterval int     `json:"recurrence_interval" binding:"min=0"`
}

func (h *Handler) createTask(c *gin.Context) {
	var req createRequest
	if err := h.bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	in := domain.TaskInput{
		Title:              req.Title,
		Description:        req.Description,
		Order:              req.Order,
		Color:              domain.Color(strings.ToLower(strings.TrimSpace(req.Color))),
		RecurrenceRule:     domain.RecurrenceRule(strings.TrimSpace(req.RecurrenceRule)),
		RecurrenceInterval: req.RecurrenceInterval,
	}
	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		due, err := domain.ParseDate(*req.DueDate)
		if err != nil {
			h.writeError(c, err)
			return
		}
		in.DueDate = &due
	}
	task, err := domain.NewTask(in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	created, err := h.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJSON(created))
}

func (h *Handler) getTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	task, err := h.store.FetchTaskDetails(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJSON(task))
}

func (h *Handler) updateTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	var patch domain.TaskPatch
	if err := h.bindJSON(c, &patch); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.store.UpdateTask(c.Request.Context(), id, patch); err != nil {
		h.writeError(c, err)
		return
	}
	task, err := h.store.FetchTaskDetails(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJSON(task))
}

func (h *Handler) deleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteTask(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bulkUpdateOrder(c *gin.Context) {
	var updates []domain.OrderUpdate
	if err := h.bindJSON(c, &updates); err != nil {
		h.writeError(c, err)
		return
	}
	for _, update := range updates {
		if update.ID <= 0 {
			h.writeError(c, domain.ErrInvalidID)
			return
		}
	}
	if err := h.store.BulkUpdateOrder(c.Request.Context(), updates); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getInboxTitle(c *gin.Context) {
	title, err := h.store.InboxTitle(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inboxTitleJSON{InboxTitle: title})
}

func (h *Handler) putInboxTitle(c *gin.Context) {
	var body struct {
		InboxTitle *string `json:"inbox_title" binding:"required"`
	}
	if err := h.bindJSON(c, &body); err != nil {
		h.writeError(c, err)
		return
	}
	title := strings.TrimSpace(*body.InboxTitle)
	if title == "" {
		h.writeError(c, domain.ErrInvalidTitle)
		return
	}
	if err := h.store.SetInboxTitle(c.Request.Context(), title); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inboxTitleJSON{InboxTitle: title})
}

func (h *Handler) searchTasks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		h.writeError(c, fmt.Errorf("%w: query is required", app.ErrValidation))
		return
	}
	page, err := queryInt(c, "page", 1, 1, 0)
	if err != nil {
		h.writeError(c, err)
		return
	}
	pageSize, err := queryInt(c, "pageSize", app.DefaultSearchPageSize, 1, app.MaxSearchPageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	tasks, err := h.store.SearchTasks(c.Request.Context(), query, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJSONList(tasks))
}

func (h *Handler) checkRecurringTasks(c *gin.Context) {
	if err := h.store.CheckRecurringTasks(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recurring tasks checked"})
}

// events streams a date-change event each time the local calendar day rolls over.
func (h *Handler) events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.dayCheck)
	defer ticker.Stop()
	day := domain.Today(h.now())
	h.log.Info("event stream opened", "remote", c.ClientIP())
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		today := domain.Today(h.now())
		if today == day {
			return true
		}
		day = today
		c.SSEvent(httpapi.EventDateChange, today.String())
		return true
	})
	h.log.Info("event stream closed", "remote", c.ClientIP())
}

func (h *Handler) taskID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.writeError(c, fmt.Errorf("task id %q: %w", c.Param("id"), domain.ErrInvalidID))
		return 0, false
	}
	return id, true
}

// bindJSON decodes a size-limited JSON body; any decode failure is a validation error.
func (h *Handler) bindJSON(c *gin.Context, out any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes)
	if err := c.ShouldBindJSON(out); err != nil {
		return fmt.Errorf("decode request body: %w: %w", app.ErrValidation, err)
	}
	return nil
}

// queryInt parses an optional positive query parameter. A zero limit means unbounded.
func queryInt(c *gin.Context, name string, fallback, lowest, limit int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lowest || (limit > 0 && v > limit) {
		return 0, fmt.Errorf("%w: invalid %s %q", app.ErrValidation, name, raw)
	}
	return v, nil
}

// writeError maps store and validation failures onto {code, message} responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, errorJSON{Code: status, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrValidation), domain.IsInvalid(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func toJSONList(tasks []domain.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toJSON(task))
	}
	return out
}

// requestLogger logs one line per request at a level chosen by status.
func requestLogger(log app.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		path := c.Request.URL.Path
		c.Next()

		keyvals := []any{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency", time.Since(started),
		}
		if len(c.Errors) > 0 {
			keyvals = append(keyvals, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("http request", keyvals...)
			return
		}
		log.Debug("http request", keyvals...)
	}
}

// taskJSON is the wire task. Inbox tasks carry a null due_date and completion is 0 or 1.
type taskJSON struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	DueDate            *string `json:"due_date"`
	Completed          int     `json:"completed"`
	Order              int     `json:"order"`
	Color              string  `json:"color"`
	Description        string  `json:"description"`
	RecurrenceRule     string  `json:"recurrence_rule"`
	RecurrenceInterval int     `json:"recurrence_interval"`
}

func toJSON(task domain.Task) taskJSON {
	out := taskJSON{
		ID:                 task.ID,
		Title:              task.Title,
		Order:              task.Order,
		Color:              string(task.Color),
		Description:        task.Description,
		RecurrenceRule:     string(task.RecurrenceRule),
		RecurrenceInterval: max(task.RecurrenceInterval, 1),
	}
	if task.Completed {
		out.Completed = 1
	}
	if !task.InInbox() {
		due := task.DueDate.String()
		out.DueDate = &due
	}
	return out
}

type inboxTitleJSON struct {
	InboxTitle string `json:"inbox_title"`
}

// errorJSON is the flat error body.
type errorJSON struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
