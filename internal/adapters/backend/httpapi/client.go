// Package httpapi is the client for the week planner backend REST protocol and its
// date-change event stream.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
)

// defaultTimeout bounds one request when the caller does not supply an http.Client.
const defaultTimeout = 10 * time.Second

// maxErrorBodyBytes limits how much of a failed response body is kept for error text.
const maxErrorBodyBytes int64 = 4 << 10

// Client talks to the backend under <base>/api.
type Client struct {
	base   *url.URL
	http   *http.Client
	events *http.Client
	log    app.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the request client. The event stream reuses its transport without a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log app.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/api"
	c := &Client{
		base: base,
		http: &http.Client{Timeout: defaultTimeout},
		log:  discard{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = &http.Client{Transport: c.http.Transport}
	return c, nil
}

// taskDTO is the backend task shape. Inbox tasks carry an empty or null due_date.
type taskDTO struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	DueDate            *string `json:"due_date"`
	Completed          intBool `json:"completed"`
	Order              int     `json:"order"`
	Color              string  `json:"color"`
	Description        string  `json:"description"`
	RecurrenceRule     string  `json:"recurrence_rule"`
	RecurrenceInterval int     `json:"recurrence_interval"`
}

// intBool decodes the backend's 0/1 completion flag and also accepts JSON booleans.
type intBool bool

func (b *intBool) UnmarshalJSON(raw []byte) error {
	switch strings.TrimSpace(string(raw)) {
	case "1", "true":
		*b = true
	case "0", "false", "null":
		*b = false
	default:
		return fmt.Errorf("completed flag %s", raw)
	}
	return nil
}

func (b intBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (d taskDTO) toDomain() (domain.Task, error) {
	task := domain.Task{
		ID:                 d.ID,
		Title:              d.Title,
		Completed:          bool(d.Completed),
		Order:              d.Order,
		Color:              domain.Color(d.Color),
		Description:        d.Description,
		RecurrenceRule:     domain.RecurrenceRule(d.RecurrenceRule),
		RecurrenceInterval: max(d.RecurrenceInterval, 1),
	}
	if d.DueDate != nil && strings.TrimSpace(*d.DueDate) != "" {
		due, err := domain.ParseDate(*d.DueDate)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %d: %w: %w", d.ID, app.ErrValidation, err)
		}
		task.DueDate = &due
	}
	if task.InInbox() {
		task.RecurrenceRule = domain.RecurrenceNone
	}
	return task, nil
}

func fromDomain(task domain.Task) taskDTO {
	due := ""
	if !task.InInbox() {
		due = task.DueDate.String()
	}
	return taskDTO{
		ID:                 task.ID,
		Title:              task.Title,
		DueDate:            &due,
		Completed:          intBool(task.Completed),
		Order:              task.Order,
		Color:              string(task.Color),
		Description:        task.Description,
		RecurrenceRule:     string(task.RecurrenceRule),
		RecurrenceInterval: max(task.RecurrenceInterval, 1),
	}
}

func mapTasks(dtos []taskDTO) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0, len(dtos))
	for _, dto := range dtos {
		task, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// FetchTaskDetails returns one task.
func (c *Client) FetchTaskDetails(ctx context.Context, id int) (domain.Task, error) {
	var dto taskDTO
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &dto); err != nil {
		return domain.Task{}, err
	}
	return dto.toDomain()
}

// UpdateTask sends the set fields of patch.
func (c *Client) UpdateTask(ctx context.Context, id int, patch domain.TaskPatch) error {
	return c.do(ctx, http.MethodPut, taskPath(id), nil, patch, nil)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

// BulkUpdateOrder writes every order in one request.
func (c *Client) BulkUpdateOrder(ctx context.Context, updates []domain.OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "tasks/bulk_update_order", nil, updates, nil)
}

// FetchTasksForRange returns dated tasks due between start and end inclusive.
func (c *Client) FetchTasksForRange(ctx context.Context, start, end domain.Date) ([]domain.Task, error) {
	query := url.Values{}
	query.Set("start_date", start.String())
	query.Set("end_date", end.String())
	var dtos []taskDTO
	if err := c.do(ctx, http.MethodGet, "tasks", query, nil, &dtos); err != nil {
		return nil, err
	}
	return mapTasks(dtos)
}

// FetchInboxTasks returns the undated tasks.
func (c *Client) FetchInboxTasks(ctx context.Context) ([]domain.Task, error) {
	query := url.Values{}
	query.Set("date", "inbox")
	var dtos []taskDTO
	if err := c.do(ctx, http.MethodGet, "tasks", query, nil, &dtos); err != nil {
		return nil, err
	}
	return mapTasks(dtos)
}

// CreateTask posts a new task and returns the stored copy.
func (c *Client) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	body := fromDomain(task)
	var dto taskDTO
	if err := c.do(ctx, http.MethodPost, "tasks", nil, createBody(body), &dto); err != nil {
		return domain.Task{}, err
	}
	return dto.toDomain()
}

// createBody drops the fields the create endpoint does not accept.
func createBody(dto taskDTO) map[string]any {
	return map[string]any{
		"title":               dto.Title,
		"due_date":            *dto.DueDate,
		"order":               dto.Order,
		"color":               dto.Color,
		"description":         dto.Description,
		"recurrence_rule":     dto.RecurrenceRule,
		"recurrence_interval": dto.RecurrenceInterval,
	}
}

// SearchTasks runs the backend full-text search.
func (c *Client) SearchTasks(ctx context.Context, query string, page, pageSize int) ([]domain.Task, error) {
	values := url.Values{}
	values.Set("query", query)
	values.Set("page", strconv.Itoa(max(page, 1)))
	values.Set("pageSize", strconv.Itoa(min(max(pageSize, 1), app.MaxSearchPageSize)))
	var dtos []taskDTO
	if err := c.do(ctx, http.MethodGet, "search_tasks", values, nil, &dtos); err != nil {
		return nil, err
	}
	return mapTasks(dtos)
}

// CheckRecurringTasks asks the backend to roll overdue recurring tasks forward.
func (c *Client) CheckRecurringTasks(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "check_recurring_tasks", nil, nil, nil)
}

type inboxTitleBody struct {
	InboxTitle string `json:"inbox_title"`
}

// InboxTitle returns the stored inbox title.
func (c *Client) InboxTitle(ctx context.Context) (string, error) {
	var body inboxTitleBody
	if err := c.do(ctx, http.MethodGet, "inbox_title", nil, nil, &body); err != nil {
		return "", err
	}
	if strings.TrimSpace(body.InboxTitle) == "" {
		return app.DefaultInboxTitle, nil
	}
	return body.InboxTitle, nil
}

// SetInboxTitle stores the inbox title.
func (c *Client) SetInboxTitle(ctx context.Context, title string) error {
	return c.do(ctx, http.MethodPut, "inbox_title", nil, inboxTitleBody{InboxTitle: title}, nil)
}

func taskPath(id int) string {
	return "tasks/" + strconv.Itoa(id)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, app.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.log.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w: %w", method, path, app.ErrNetwork, err)
	}
	return nil
}

// apiError is the backend error body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusError maps a non-2xx response onto the failure taxonomy.
func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message := strings.TrimSpace(string(raw))
	var decoded apiError
	if json.Unmarshal(raw, &decoded) == nil && decoded.Message != "" {
		message = decoded.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = app.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = app.ErrValidation
	default:
		kind = app.ErrNetwork
	}
	return fmt.Errorf("%s %s: status %d: %w: %s", method, path, resp.StatusCode, kind, message)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
