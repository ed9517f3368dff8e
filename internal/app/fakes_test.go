package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
)

// fakeAPI is an in-memory TaskAPI that records every call into a shared event log.
type fakeAPI struct {
	tasks        map[int]domain.Task
	nextID       int
	events       *[]string
	orderBatches [][]domain.OrderUpdate
	deleted      []int
	inboxTitle   string

	failUpdate error
	failOrder  error
	failDelete error
	failFetch  error
}

func newFakeAPI(events *[]string, tasks ...domain.Task) *fakeAPI {
	if events == nil {
		events = &[]string{}
	}
	f := &fakeAPI{tasks: map[int]domain.Task{}, nextID: 100, events: events}
	for _, task := range tasks {
		f.tasks[task.ID] = task.Clone()
	}
	return f
}

func (f *fakeAPI) record(format string, args ...any) {
	*f.events = append(*f.events, fmt.Sprintf(format, args...))
}

func (f *fakeAPI) countCalls(prefix string) int {
	count := 0
	for _, event := range *f.events {
		if strings.HasPrefix(event, prefix) {
			count++
		}
	}
	return count
}

func (f *fakeAPI) FetchTaskDetails(_ context.Context, id int) (domain.Task, error) {
	f.record("fetch:%d", id)
	if f.failFetch != nil {
		return domain.Task{}, f.failFetch
	}
	task, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return task.Clone(), nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int, patch domain.TaskPatch) error {
	f.record("update:%d", id)
	if f.failUpdate != nil {
		return f.failUpdate
	}
	task, ok := f.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if err := task.Apply(patch); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	f.tasks[id] = task
	return nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int) error {
	f.record("delete:%d", id)
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) BulkUpdateOrder(_ context.Context, updates []domain.OrderUpdate) error {
	f.record("order:%d", len(updates))
	if f.failOrder != nil {
		return f.failOrder
	}
	f.orderBatches = append(f.orderBatches, slices.Clone(updates))
	for _, update := range updates {
		task, ok := f.tasks[update.ID]
		if !ok {
			continue
		}
		task.Order = update.Order
		f.tasks[update.ID] = task
	}
	return nil
}

func (f *fakeAPI) FetchTasksForRange(_ context.Context, start, end domain.Date) ([]domain.Task, error) {
	f.record("range:%s:%s", start, end)
	out := []domain.Task{}
	for _, task := range f.tasks {
		if task.InInbox() || task.DueDate.Before(start) || task.DueDate.After(end) {
			continue
		}
		out = append(out, task.Clone())
	}
	return out, nil
}

func (f *fakeAPI) FetchInboxTasks(context.Context) ([]domain.Task, error) {
	f.record("inbox")
	out := []domain.Task{}
	for _, task := range f.tasks {
		if task.InInbox() {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateTask(_ context.Context, task domain.Task) (domain.Task, error) {
	f.record("create")
	f.nextID++
	task.ID = f.nextID
	f.tasks[task.ID] = task.Clone()
	return task, nil
}

func (f *fakeAPI) InboxTitle(context.Context) (string, error) {
	if f.inboxTitle == "" {
		return DefaultInboxTitle, nil
	}
	return f.inboxTitle, nil
}

func (f *fakeAPI) SetInboxTitle(_ context.Context, title string) error {
	f.inboxTitle = title
	return nil
}

type note struct {
	message string
	isError bool
}

// fakeView records render and notification requests.
type fakeView struct {
	events  *[]string
	renders []domain.ContainerKey
	notes   []note
	cleared []int
}

func newFakeView(events *[]string) *fakeView {
	if events == nil {
		events = &[]string{}
	}
	return &fakeView{events: events}
}

func (v *fakeView) RenderContainer(key domain.ContainerKey) {
	v.renders = append(v.renders, key)
	*v.events = append(*v.events, "render:"+key.String())
}

func (v *fakeView) Notify(message string, isError bool) {
	v.notes = append(v.notes, note{message: message, isError: isError})
}

func (v *fakeView) ClearRecurrenceUI(taskID int) {
	v.cleared = append(v.cleared, taskID)
}

func (v *fakeView) hasNote(message string) bool {
	return slices.ContainsFunc(v.notes, func(n note) bool { return n.message == message })
}

func (v *fakeView) countNotes(message string) int {
	count := 0
	for _, n := range v.notes {
		if n.message == message {
			count++
		}
	}
	return count
}

func (v *fakeView) rendered(key domain.ContainerKey) bool {
	return slices.Contains(v.renders, key)
}

func mustDate(t *testing.T, raw string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", raw, err)
	}
	return d
}

func datePtr(t *testing.T, raw string) *domain.Date {
	t.Helper()
	d := mustDate(t, raw)
	return &d
}

// fixedNow is Monday 2024-06-10 at noon local time.
func fixedNow() time.Time {
	return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.Local)
}

type plannerHarness struct {
	api     *fakeAPI
	view    *fakeView
	sched   *FakeScheduler
	planner *Planner
	events  *[]string
}

func newHarness(t *testing.T, tasks ...domain.Task) *plannerHarness {
	t.Helper()
	events := &[]string{}
	h := &plannerHarness{
		api:    newFakeAPI(events, tasks...),
		view:   newFakeView(events),
		sched:  NewFakeScheduler(),
		events: events,
	}
	h.planner = NewPlanner(h.api, h.view, h.sched, fixedNow, PlannerConfig{})
	if err := h.planner.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return h
}

func (h *plannerHarness) ids(t *testing.T, key domain.ContainerKey) []int {
	t.Helper()
	c, ok := h.planner.Snapshot().Board.Container(key)
	if !ok {
		t.Fatalf("container %s not displayed", key)
	}
	out := []int{}
	for _, task := range c.Tasks() {
		out = append(out, task.ID)
	}
	return out
}

func (h *plannerHarness) assertDense(t *testing.T, key domain.ContainerKey) {
	t.Helper()
	c, _ := h.planner.Snapshot().Board.Container(key)
	for i, task := range c.Tasks() {
		if task.Order != i {
			t.Fatalf("%s task %d order = %d, want %d", key, task.ID, task.Order, i)
		}
		if stored := h.api.tasks[task.ID]; stored.Order != i {
			t.Fatalf("%s stored task %d order = %d, want %d", key, task.ID, stored.Order, i)
		}
	}
}

func dayTask(t *testing.T, id int, due string, order int) domain.Task {
	t.Helper()
	return domain.Task{ID: id, Title: fmt.Sprintf("task %d", id), DueDate: datePtr(t, due), Order: order, RecurrenceInterval: 1}
}

func inboxTask(id, order int) domain.Task {
	return domain.Task{ID: id, Title: fmt.Sprintf("inbox %d", id), Order: order, RecurrenceInterval: 1}
}
