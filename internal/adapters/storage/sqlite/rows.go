package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/jmoiron/sqlx"
)

const selectTaskColumns = `
	SELECT id, title, description, due_date, completed, task_order, color,
	       recurrence_rule, recurrence_interval, created_at, updated_at
	FROM tasks`

// taskRow is the storage shape of one task.
type taskRow struct {
	ID                 int            `db:"id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	DueDate            sql.NullString `db:"due_date"`
	Completed          int            `db:"completed"`
	TaskOrder          int            `db:"task_order"`
	Color              string         `db:"color"`
	RecurrenceRule     string         `db:"recurrence_rule"`
	RecurrenceInterval int            `db:"recurrence_interval"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

var (
	_ queryer = (*sqlx.DB)(nil)
	_ queryer = (*sqlx.Tx)(nil)
)

func getTaskByID(ctx context.Context, q queryer, id int) (domain.Task, error) {
	var row taskRow
	if err := q.GetContext(ctx, &row, selectTaskColumns+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, fmt.Errorf("task %d: %w", id, app.ErrNotFound)
		}
		return domain.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return row.toDomain()
}

func insertTask(ctx context.Context, q queryer, task domain.Task, now time.Time) (domain.Task, error) {
	row := toTaskRow(task, now)
	row.CreatedAt = row.UpdatedAt
	res, err := q.NamedExecContext(ctx, `
		INSERT INTO tasks (title, description, due_date, completed, task_order, color,
		                   recurrence_rule, recurrence_interval, created_at, updated_at)
		VALUES (:title, :description, :due_date, :completed, :task_order, :color,
		        :recurrence_rule, :recurrence_interval, :created_at, :updated_at)`, row)
	if err != nil {
		return domain.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, err
	}
	row.ID = int(id)
	return row.toDomain()
}

func toTaskRow(task domain.Task, now time.Time) taskRow {
	row := taskRow{
		ID:                 task.ID,
		Title:              task.Title,
		Description:        task.Description,
		TaskOrder:          task.Order,
		Color:              string(task.Color),
		RecurrenceRule:     string(task.RecurrenceRule),
		RecurrenceInterval: max(task.RecurrenceInterval, 1),
		UpdatedAt:          ts(now),
	}
	if !task.InInbox() {
		row.DueDate = sql.NullString{String: task.DueDate.String(), Valid: true}
	} else {
		row.RecurrenceRule = ""
		row.RecurrenceInterval = 1
	}
	if task.Completed {
		row.Completed = 1
	}
	return row
}

func (row taskRow) toDomain() (domain.Task, error) {
	task := domain.Task{
		ID:                 row.ID,
		Title:              row.Title,
		Description:        row.Description,
		Order:              row.TaskOrder,
		Color:              domain.Color(row.Color),
		Completed:          row.Completed != 0,
		RecurrenceRule:     domain.RecurrenceRule(row.RecurrenceRule),
		RecurrenceInterval: max(row.RecurrenceInterval, 1),
	}
	if row.DueDate.Valid && row.DueDate.String != "" {
		due, err := domain.ParseDate(row.DueDate.String)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %d due date: %w", row.ID, err)
		}
		task.DueDate = &due
	}
	if task.InInbox() {
		task.RecurrenceRule = domain.RecurrenceNone
		task.RecurrenceInterval = 1
	}
	return task, nil
}

func mapTaskRows(rows []taskRow) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		task, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
