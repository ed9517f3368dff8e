package app

import (
	"context"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
)

// TaskAPI is the task-data collaborator consumed by the planner core.
type TaskAPI interface {
	FetchTaskDetails(context.Context, int) (domain.Task, error)
	UpdateTask(context.Context, int, domain.TaskPatch) error
	DeleteTask(context.Context, int) error
	BulkUpdateOrder(context.Context, []domain.OrderUpdate) error
	FetchTasksForRange(ctx context.Context, start, end domain.Date) ([]domain.Task, error)
	FetchInboxTasks(context.Context) ([]domain.Task, error)
}

// TaskCreator is implemented by backends that can create tasks.
type TaskCreator interface {
	CreateTask(context.Context, domain.Task) (domain.Task, error)
}

// TaskSearcher is implemented by backends with full-text search.
type TaskSearcher interface {
	SearchTasks(ctx context.Context, query string, page, pageSize int) ([]domain.Task, error)
}

// RecurringChecker is implemented by backends that roll recurring tasks forward.
type RecurringChecker interface {
	CheckRecurringTasks(context.Context) error
}

// InboxTitleStore is implemented by backends that persist the inbox title.
type InboxTitleStore interface {
	InboxTitle(context.Context) (string, error)
	SetInboxTitle(context.Context, string) error
}

// TaskStore is a backend with every optional capability; the local sqlite store is one.
type TaskStore interface {
	TaskAPI
	TaskCreator
	TaskSearcher
	RecurringChecker
	InboxTitleStore
}

// View receives re-render and notification requests from the core.
type View interface {
	RenderContainer(domain.ContainerKey)
	Notify(message string, isError bool)
	ClearRecurrenceUI(taskID int)
}

// Logger is the structured logger used by the core.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Clock returns the current time.
type Clock func() time.Time

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopView struct{}

func (nopView) RenderContainer(domain.ContainerKey) {}
func (nopView) Notify(string, bool)                 {}
func (nopView) ClearRecurrenceUI(int)               {}
