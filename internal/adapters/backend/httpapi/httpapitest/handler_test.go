package httpapitest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/weekplan/internal/adapters/backend/httpapi"
	"github.com/evanschultz/weekplan/internal/adapters/storage/sqlite"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ app.TaskStore = (*sqlite.Repository)(nil)
	_ app.TaskStore = (*httpapi.Client)(nil)
)

func init() {
	gin.SetMode(gin.TestMode)
}

// movableClock is a clock tests can move forward while streams read it.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newServedStore(t *testing.T, opts ...HandlerOption) (*sqlite.Repository, *httptest.Server, *httpapi.Client) {
	t.Helper()
	now := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.Local)
	repo, err := sqlite.OpenInMemory(sqlite.WithClock(func() time.Time { return now }))
	require.NoError(t, err, "OpenInMemory()")
	t.Cleanup(func() { _ = repo.Close() })

	handler, err := NewHandler(repo, opts...)
	require.NoError(t, err, "NewHandler()")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := httpapi.New(srv.URL, httpapi.WithHTTPClient(srv.Client()))
	require.NoError(t, err, "New()")
	return repo, srv, client
}

func TestNewHandlerRequiresStore(t *testing.T) {
	_, err := NewHandler(nil)
	assert.Error(t, err)
}

func TestClientRoundTripThroughHandler(t *testing.T) {
	_, _, client := newServedStore(t)
	ctx := context.Background()
	monday := domain.NewDate(2024, time.June, 10)
	tuesday := monday.AddDays(1)

	first, err := client.CreateTask(ctx, domain.Task{Title: "Book dentist", DueDate: &monday, Color: domain.ColorBlue})
	require.NoError(t, err, "CreateTask()")
	second, err := client.CreateTask(ctx, domain.Task{Title: "Water plants", DueDate: &monday, Order: 1})
	require.NoError(t, err, "CreateTask()")
	assert.NotZero(t, first.ID)
	assert.Equal(t, domain.ColorBlue, first.Color)

	week, err := client.FetchTasksForRange(ctx, monday, monday.AddDays(6))
	require.NoError(t, err, "FetchTasksForRange()")
	require.Len(t, week, 2)
	assert.Equal(t, []string{"Book dentist", "Water plants"}, []string{week[0].Title, week[1].Title})

	require.NoError(t, client.UpdateTask(ctx, first.ID, domain.PatchForContainer(domain.DayKey(tuesday))), "UpdateTask()")
	require.NoError(t, client.BulkUpdateOrder(ctx, []domain.OrderUpdate{{ID: second.ID, Order: 0}}), "BulkUpdateOrder()")
	moved, err := client.FetchTaskDetails(ctx, first.ID)
	require.NoError(t, err, "FetchTaskDetails()")
	require.NotNil(t, moved.DueDate)
	assert.Equal(t, tuesday, *moved.DueDate)

	require.NoError(t, client.UpdateTask(ctx, second.ID, domain.PatchForContainer(domain.InboxKey())), "UpdateTask()")
	inbox, err := client.FetchInboxTasks(ctx)
	require.NoError(t, err, "FetchInboxTasks()")
	require.Len(t, inbox, 1)
	assert.Equal(t, second.ID, inbox[0].ID)
	assert.True(t, inbox[0].InInbox())

	done := true
	require.NoError(t, client.UpdateTask(ctx, first.ID, domain.TaskPatch{Completed: &done}), "UpdateTask()")
	completed, err := client.FetchTaskDetails(ctx, first.ID)
	require.NoError(t, err, "FetchTaskDetails()")
	assert.True(t, completed.Completed)

	results, err := client.SearchTasks(ctx, "dentist", 1, 10)
	require.NoError(t, err, "SearchTasks()")
	require.Len(t, results, 1)
	assert.Equal(t, first.ID, results[0].ID)

	title, err := client.InboxTitle(ctx)
	require.NoError(t, err, "InboxTitle()")
	assert.Equal(t, app.DefaultInboxTitle, title)
	require.NoError(t, client.SetInboxTitle(ctx, "Someday"), "SetInboxTitle()")
	title, err = client.InboxTitle(ctx)
	require.NoError(t, err, "InboxTitle()")
	assert.Equal(t, "Someday", title)

	require.NoError(t, client.CheckRecurringTasks(ctx), "CheckRecurringTasks()")

	require.NoError(t, client.DeleteTask(ctx, first.ID), "DeleteTask()")
	_, err = client.FetchTaskDetails(ctx, first.ID)
	assert.ErrorIs(t, err, app.ErrNotFound)
	assert.ErrorIs(t, client.DeleteTask(ctx, first.ID), app.ErrNotFound)
	assert.ErrorIs(t, client.UpdateTask(ctx, second.ID, domain.TaskPatch{}), app.ErrValidation)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	_, srv, client := newServedStore(t)
	ctx := context.Background()
	monday := domain.NewDate(2024, time.June, 10)
	task, err := client.CreateTask(ctx, domain.Task{Title: "Stretch", DueDate: &monday})
	require.NoError(t, err, "CreateTask()")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "missing range", method: http.MethodGet, path: "/api/tasks", status: http.StatusBadRequest},
		{name: "bad range date", method: http.MethodGet, path: "/api/tasks?start_date=2024-13-01&end_date=2024-06-16", status: http.StatusBadRequest},
		{name: "bad id", method: http.MethodGet, path: "/api/tasks/abc", status: http.StatusBadRequest},
		{name: "unknown task", method: http.MethodGet, path: "/api/tasks/999", status: http.StatusNotFound},
		{name: "unknown patch field", method: http.MethodPut, path: "/api/tasks/" + strconv.Itoa(task.ID), body: `{"owner":"me"}`, status: http.StatusBadRequest},
		{name: "invalid color", method: http.MethodPut, path: "/api/tasks/" + strconv.Itoa(task.ID), body: `{"color":"purple"}`, status: http.StatusBadRequest},
		{name: "create without title", method: http.MethodPost, path: "/api/tasks", body: `{"due_date":"2024-06-10"}`, status: http.StatusBadRequest},
		{name: "create bad recurrence", method: http.MethodPost, path: "/api/tasks", body: `{"title":"x","recurrence_rule":"hourly"}`, status: http.StatusBadRequest},
		{name: "empty inbox title", method: http.MethodPut, path: "/api/inbox_title", body: `{"inbox_title":"  "}`, status: http.StatusBadRequest},
		{name: "search without query", method: http.MethodGet, path: "/api/search_tasks", status: http.StatusBadRequest},
		{name: "search page size too large", method: http.MethodGet, path: "/api/search_tasks?query=x&pageSize=101", status: http.StatusBadRequest},
		{name: "bulk order bad id", method: http.MethodPost, path: "/api/tasks/bulk_update_order", body: `[{"id":0,"order":1}]`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(ctx, tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tc.status, resp.StatusCode)
			var decoded errorJSON
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
			assert.Equal(t, tc.status, decoded.Code)
			assert.NotEmpty(t, decoded.Message)
		})
	}
}

func TestHandlerListsSingleDay(t *testing.T) {
	_, srv, client := newServedStore(t)
	ctx := context.Background()
	monday := domain.NewDate(2024, time.June, 10)
	tuesday := monday.AddDays(1)
	_, err := client.CreateTask(ctx, domain.Task{Title: "Monday", DueDate: &monday})
	require.NoError(t, err)
	_, err = client.CreateTask(ctx, domain.Task{Title: "Tuesday", DueDate: &tuesday})
	require.NoError(t, err)

	resp, err := srv.Client().Get(srv.URL + "/api/tasks?date=2024-06-11")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dtos []taskJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "Tuesday", dtos[0].Title)
	require.NotNil(t, dtos[0].DueDate)
	assert.Equal(t, "2024-06-11", *dtos[0].DueDate)
}

func TestHandlerStreamsDateChange(t *testing.T) {
	clock := &movableClock{now: time.Date(2024, time.June, 12, 23, 59, 0, 0, time.Local)}
	log := openedLogger{opened: make(chan struct{}, 1)}
	_, _, client := newServedStore(t, WithHandlerClock(clock.Now), WithDayCheckInterval(5*time.Millisecond), WithHandlerLogger(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.SubscribeDateChanges(ctx, 10*time.Millisecond, func() {
			changes <- struct{}{}
		})
	}()

	select {
	case <-log.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream was not opened")
	}
	select {
	case <-changes:
		t.Fatal("date-change before the day rolled over")
	case <-time.After(30 * time.Millisecond):
	}
	clock.Advance(2 * time.Minute)

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a date-change event")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

// openedLogger signals when an event stream is opened.
type openedLogger struct {
	nopLogger
	opened chan struct{}
}

func (l openedLogger) Info(msg string, _ ...any) {
	if msg != "event stream opened" {
		return
	}
	select {
	case l.opened <- struct{}{}:
	default:
	}
}
