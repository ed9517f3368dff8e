package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// driverName defines the database/sql driver registered by modernc.
const driverName = "sqlite"

// Search page defaults match the HTTP backend.
const (
	defaultSearchPageSize = 10
	maxSearchPageSize     = 100
)

// Repository is the local task and preferences store.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
	fts bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the clock used for recurring roll-forward and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// Open opens or creates the database file at path and migrates it.
func Open(path string, opts ...Option) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db, opts)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory(opts ...Option) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db, opts)
}

func newRepository(db *sqlx.DB, opts []Option) (*Repository, error) {
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date TEXT,
			completed INTEGER NOT NULL DEFAULT 0,
			task_order INTEGER NOT NULL DEFAULT 0,
			color TEXT NOT NULL DEFAULT '',
			recurrence_rule TEXT NOT NULL DEFAULT '',
			recurrence_interval INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due_order ON tasks(due_date, task_order);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_title_due ON tasks(title, due_date);`,
		`INSERT OR IGNORE INTO settings(key, value) VALUES ('inbox_title', '` + app.DefaultInboxTitle + `');`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	r.fts = r.migrateSearchIndex(ctx) == nil
	return nil
}

// migrateSearchIndex creates the FTS5 index and its sync triggers. Builds without FTS5 fall back
// to LIKE matching.
func (r *Repository) migrateSearchIndex(ctx context.Context) error {
	var existing int
	if err := r.db.GetContext(ctx, &existing, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'tasks_fts'`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(title, description, content='tasks', content_rowid='id');`,
		`CREATE TRIGGER IF NOT EXISTS tasks_ai AFTER INSERT ON tasks BEGIN
			INSERT INTO tasks_fts(rowid, title, description) VALUES (new.id, new.title, new.description);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS tasks_ad AFTER DELETE ON tasks BEGIN
			INSERT INTO tasks_fts(tasks_fts, rowid, title, description) VALUES ('delete', old.id, old.title, old.description);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS tasks_au AFTER UPDATE OF title, description ON tasks BEGIN
			INSERT INTO tasks_fts(tasks_fts, rowid, title, description) VALUES ('delete', old.id, old.title, old.description);
			INSERT INTO tasks_fts(rowid, title, description) VALUES (new.id, new.title, new.description);
		END;`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite search index: %w", err)
		}
	}
	if existing == 0 {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO tasks_fts(tasks_fts) VALUES ('rebuild')`); err != nil {
			return fmt.Errorf("rebuild sqlite search index: %w", err)
		}
	}
	return nil
}

// FetchTaskDetails returns one task.
func (r *Repository) FetchTaskDetails(ctx context.Context, id int) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// FetchTasksForRange returns dated tasks due between start and end inclusive.
func (r *Repository) FetchTasksForRange(ctx context.Context, start, end domain.Date) ([]domain.Task, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: range %s..%s", app.ErrValidation, start, end)
	}
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, selectTaskColumns+`
		WHERE due_date IS NOT NULL AND due_date >= ? AND due_date <= ?
		ORDER BY due_date, task_order, id`, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("fetch tasks for range: %w", err)
	}
	return mapTaskRows(rows)
}

// FetchInboxTasks returns the undated tasks.
func (r *Repository) FetchInboxTasks(ctx context.Context) ([]domain.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, selectTaskColumns+` WHERE due_date IS NULL ORDER BY task_order, id`)
	if err != nil {
		return nil, fmt.Errorf("fetch inbox tasks: %w", err)
	}
	return mapTaskRows(rows)
}

// CreateTask inserts task and returns it with its new id.
func (r *Repository) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return domain.Task{}, fmt.Errorf("%w: %w", app.ErrValidation, domain.ErrInvalidTitle)
	}
	created, err := insertTask(ctx, r.db, task, r.now())
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// UpdateTask applies patch. Completing a recurring task schedules its next occurrence.
func (r *Repository) UpdateTask(ctx context.Context, id int, patch domain.TaskPatch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", app.ErrValidation, err)
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := getTaskByID(ctx, tx, id)
		if err != nil {
			return err
		}
		wasCompleted := task.Completed
		if err := task.Apply(patch); err != nil {
			return fmt.Errorf("%w: %w", app.ErrValidation, err)
		}
		row := toTaskRow(task, r.now())
		res, err := tx.NamedExecContext(ctx, `
			UPDATE tasks
			SET title = :title, description = :description, due_date = :due_date, completed = :completed,
			    task_order = :task_order, color = :color, recurrence_rule = :recurrence_rule,
			    recurrence_interval = :recurrence_interval, updated_at = :updated_at
			WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		if task.Completed && !wasCompleted && task.IsRecurring() {
			return r.scheduleNextOccurrence(ctx, tx, task)
		}
		return nil
	})
}

func (r *Repository) scheduleNextOccurrence(ctx context.Context, tx *sqlx.Tx, task domain.Task) error {
	next, err := domain.NextDueDate(*task.DueDate, task.RecurrenceRule, task.RecurrenceInterval)
	if err != nil {
		return fmt.Errorf("next occurrence of task %d: %w", task.ID, err)
	}
	if _, err := insertTask(ctx, tx, nextOccurrence(task, next), r.now()); err != nil {
		return fmt.Errorf("create next occurrence of task %d: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return translateNoRows(res)
}

// BulkUpdateOrder writes every order in one transaction.
func (r *Repository) BulkUpdateOrder(ctx context.Context, updates []domain.OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		stamp := ts(r.now())
		for _, update := range updates {
			if update.Order < 0 {
				return fmt.Errorf("%w: %w", app.ErrValidation, domain.ErrInvalidOrder)
			}
			res, err := tx.ExecContext(ctx, `UPDATE tasks SET task_order = ?, updated_at = ? WHERE id = ?`, update.Order, stamp, update.ID)
			if err != nil {
				return fmt.Errorf("update order of task %d: %w", update.ID, err)
			}
			if err := translateNoRows(res); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckRecurringTasks rolls every overdue, uncompleted recurring task forward to its first
// occurrence on or after today. The overdue task stops recurring so the roll happens once.
func (r *Repository) CheckRecurringTasks(ctx context.Context) error {
	today := domain.Today(r.now())
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var rows []taskRow
		err := tx.SelectContext(ctx, &rows, selectTaskColumns+`
			WHERE recurrence_rule != '' AND completed = 0 AND due_date IS NOT NULL AND due_date < ?
			ORDER BY id`, today.String())
		if err != nil {
			return fmt.Errorf("find overdue recurring tasks: %w", err)
		}
		tasks, err := mapTaskRows(rows)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			next, err := domain.NextOccurrenceOnOrAfter(*task.DueDate, task.RecurrenceRule, task.RecurrenceInterval, today)
			if err != nil {
				return fmt.Errorf("roll task %d forward: %w", task.ID, err)
			}
			if _, err := insertTask(ctx, tx, nextOccurrence(task, next), r.now()); err != nil {
				return fmt.Errorf("create occurrence of task %d: %w", task.ID, err)
			}
			_, err = tx.ExecContext(ctx, `UPDATE tasks SET recurrence_rule = '', recurrence_interval = 1, updated_at = ? WHERE id = ?`, ts(r.now()), task.ID)
			if err != nil {
				return fmt.Errorf("stop recurrence of task %d: %w", task.ID, err)
			}
		}
		return nil
	})
}

// nextOccurrence copies the recurring fields of task onto a new, uncompleted task due on due.
func nextOccurrence(task domain.Task, due domain.Date) domain.Task {
	return domain.Task{
		Title:              task.Title,
		Description:        task.Description,
		Color:              task.Color,
		DueDate:            &due,
		RecurrenceRule:     task.RecurrenceRule,
		RecurrenceInterval: task.RecurrenceInterval,
	}
}

// SearchTasks returns tasks matching query, best match first.
func (r *Repository) SearchTasks(ctx context.Context, query string, page, pageSize int) ([]domain.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Task{}, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSearchPageSize
	}
	pageSize = min(pageSize, maxSearchPageSize)
	offset := (page - 1) * pageSize
	today := domain.Today(r.now()).String()

	var rows []taskRow
	var err error
	if r.fts {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT t.id, t.title, t.description, t.due_date, t.completed, t.task_order, t.color,
			       t.recurrence_rule, t.recurrence_interval, t.created_at, t.updated_at
			FROM tasks_fts
			JOIN tasks t ON tasks_fts.rowid = t.id
			WHERE tasks_fts MATCH ?
			ORDER BY
				CASE WHEN t.title LIKE ? ESCAPE '\' THEN 1 ELSE 0 END DESC,
				CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END,
				ABS(JULIANDAY(?) - JULIANDAY(t.due_date)),
				tasks_fts.rank,
				t.id
			LIMIT ? OFFSET ?`, ftsQuery(query), likePrefix(query), today, pageSize, offset)
	} else {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		err = r.db.SelectContext(ctx, &rows, selectTaskColumns+`
			WHERE lower(title) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\'
			ORDER BY
				CASE WHEN title LIKE ? ESCAPE '\' THEN 1 ELSE 0 END DESC,
				CASE WHEN due_date IS NULL THEN 1 ELSE 0 END,
				ABS(JULIANDAY(?) - JULIANDAY(due_date)),
				id
			LIMIT ? OFFSET ?`, pattern, pattern, likePrefix(query), today, pageSize, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("search tasks %q: %w", query, err)
	}
	return mapTaskRows(rows)
}

// InboxTitle returns the stored inbox title.
func (r *Repository) InboxTitle(ctx context.Context) (string, error) {
	title, err := r.setting(ctx, settingInboxTitle)
	if errors.Is(err, app.ErrNotFound) {
		return app.DefaultInboxTitle, nil
	}
	return title, err
}

// SetInboxTitle stores the inbox title.
func (r *Repository) SetInboxTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty inbox title", app.ErrValidation)
	}
	return r.setSettings(ctx, map[string]string{settingInboxTitle: title})
}

func (r *Repository) inTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func ftsQuery(query string) string {
	escaped := strings.ReplaceAll(query, `"`, `""`)
	return `"` + escaped + `"*`
}

func likePrefix(query string) string {
	return escapeLike(query) + "%"
}

func escapeLike(raw string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(raw)
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
