package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
)

// Search page size limits.
const (
	DefaultSearchPageSize = 10
	MaxSearchPageSize     = 100
	DefaultCommitTimeout  = 10 * time.Second
)

// PlannerConfig holds configuration for the planner.
type PlannerConfig struct {
	DeleteUndoWindow     time.Duration
	RecurrenceUndoWindow time.Duration
	SundayFirst          bool
	SearchPageSize       int
	CommitTimeout        time.Duration
	Logger               Logger
	Messages             Messages
}

// PendingUndo describes one armed undoable action.
type PendingUndo struct {
	Kind      UndoKind
	TaskID    int
	Title     string
	ExpiresAt time.Time
}

// DragView is a read-only copy of the drag session.
type DragView struct {
	State     DragState
	Task      domain.Task
	Source    domain.ContainerKey
	Indicator *DropIndicator
}

// Snapshot is a consistent copy of planner state for rendering.
type Snapshot struct {
	Board            *Board
	Today            domain.Date
	TodayTasks       []domain.Task
	ViewedTaskID     int
	RecurrenceUIOpen bool
	InboxTitle       string
	Drag             DragView
	Pending          []PendingUndo
}

// Planner is the client application service. Every entry point, including undo timer
// callbacks, runs under one lock so state transitions never interleave.
type Planner struct {
	mu         sync.Mutex
	env        *environment
	cfg        PlannerConfig
	drag       *DragSession
	move       *MoveCommand
	deletes    *UndoableAction
	recurrence *UndoableAction

	// hiddenAfter is the task displayed just before the pending delete; 0 means it was first.
	hiddenAfter int
	hiddenShown bool
}

// NewPlanner constructs a planner; nil collaborators fall back to no-op or wall-clock defaults.
func NewPlanner(api TaskAPI, view View, sched Scheduler, clock Clock, cfg PlannerConfig) *Planner {
	if view == nil {
		view = nopView{}
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DeleteUndoWindow <= 0 {
		cfg.DeleteUndoWindow = DefaultDeleteUndoWindow
	}
	if cfg.RecurrenceUndoWindow <= 0 {
		cfg.RecurrenceUndoWindow = DefaultRecurrenceUndoWindow
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = DefaultSearchPageSize
	}
	cfg.SearchPageSize = min(cfg.SearchPageSize, MaxSearchPageSize)
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.Messages == nil {
		cfg.Messages = englishMessages{}
	}

	today := domain.Today(clock())
	p := &Planner{cfg: cfg}
	p.env = &environment{
		api:   api,
		view:  view,
		clock: clock,
		log:   cfg.Logger,
		text:  cfg.Messages,
		board: NewBoard(today.WeekStart(p.firstWeekday())),
		state: NewAppState(today),
	}
	p.env.resync = p.resyncLocked
	p.drag = NewDragSession(p.env.board)
	p.move = newMoveCommand(p.env)
	p.deletes = NewUndoableAction(UndoDelete, sched, clock, p.locked)
	p.recurrence = NewUndoableAction(UndoRecurrenceClear, sched, clock, p.locked)
	return p
}

func (p *Planner) locked(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *Planner) firstWeekday() time.Weekday {
	if p.cfg.SundayFirst {
		return time.Sunday
	}
	return time.Monday
}

func (p *Planner) commitContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.cfg.CommitTimeout)
}

// Load rolls recurring tasks forward, then loads the inbox title, the current week and today.
func (p *Planner) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	today := domain.Today(p.env.clock())
	p.checkRecurringLocked(ctx)
	p.loadInboxTitleLocked(ctx)
	err := p.loadWeekLocked(ctx, today.WeekStart(p.firstWeekday()))
	if todayErr := p.refreshTodayLocked(ctx, today); err == nil {
		err = todayErr
	}
	return err
}

// Reload re-fetches the displayed week, the inbox and today.
func (p *Planner) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.loadWeekLocked(ctx, p.env.board.WeekStart())
	if todayErr := p.refreshTodayLocked(ctx, domain.Today(p.env.clock())); err == nil {
		err = todayErr
	}
	return err
}

// ShowWeek moves the board by offset weeks.
func (p *Planner) ShowWeek(ctx context.Context, offset int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadWeekLocked(ctx, p.env.board.WeekStart().AddDays(offset*DaysPerWeek))
}

// GoToday shows the week containing today.
func (p *Planner) GoToday(ctx context.Context) error {
	return p.ShowDate(ctx, domain.Today(p.env.clock()))
}

// ShowDate shows the week containing d.
func (p *Planner) ShowDate(ctx context.Context, d domain.Date) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadWeekLocked(ctx, d.WeekStart(p.firstWeekday()))
}

// RefreshToday re-fetches the cached tasks due today.
func (p *Planner) RefreshToday(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshTodayLocked(ctx, domain.Today(p.env.clock()))
}

// HandleDateChange reacts to an external date-change push.
func (p *Planner) HandleDateChange(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.env.log.Info("date change received", "today", domain.Today(p.env.clock()).String())
	p.checkRecurringLocked(ctx)
	err := p.loadWeekLocked(ctx, p.env.board.WeekStart())
	if todayErr := p.refreshTodayLocked(ctx, domain.Today(p.env.clock())); err == nil {
		err = todayErr
	}
	return err
}

func (p *Planner) checkRecurringLocked(ctx context.Context) {
	checker, ok := p.env.api.(RecurringChecker)
	if !ok {
		return
	}
	if err := checker.CheckRecurringTasks(ctx); err != nil {
		p.env.log.Warn("recurring task check failed", "err", err)
	}
}

func (p *Planner) loadInboxTitleLocked(ctx context.Context) {
	store, ok := p.env.api.(InboxTitleStore)
	if !ok {
		return
	}
	title, err := store.InboxTitle(ctx)
	if err != nil {
		p.env.log.Warn("inbox title load failed", "err", err)
		return
	}
	p.env.state.SetInboxTitle(title)
}

func (p *Planner) loadWeekLocked(ctx context.Context, weekStart domain.Date) error {
	env := p.env
	week, err := env.api.FetchTasksForRange(ctx, weekStart, weekStart.AddDays(DaysPerWeek-1))
	if err != nil {
		env.log.Error("week load failed", "week_start", weekStart.String(), "err", err)
		env.notify(MsgLoadFailed, true)
		return fmt.Errorf("load week %s: %w", weekStart, err)
	}
	inbox, err := env.api.FetchInboxTasks(ctx)
	if err != nil {
		env.log.Error("inbox load failed", "err", err)
		env.notify(MsgLoadFailed, true)
		return fmt.Errorf("load inbox: %w", err)
	}
	env.board.Rebuild(weekStart, week, inbox)
	p.overlayPendingLocked()
	if task, dragging := p.drag.Task(); dragging {
		if _, ok := env.board.Task(task.ID); !ok {
			p.drag.SourceRemoved(task.ID)
		}
	}
	env.log.Debug("week loaded", "week_start", weekStart.String(), "tasks", len(week), "inbox", len(inbox))
	env.renderAll()
	return nil
}

func (p *Planner) refreshTodayLocked(ctx context.Context, today domain.Date) error {
	tasks, err := p.env.api.FetchTasksForRange(ctx, today, today)
	if err != nil {
		p.env.log.Warn("today refresh failed", "today", today.String(), "err", err)
		return fmt.Errorf("refresh today: %w", err)
	}
	p.env.state.SetToday(today, tasks)
	p.overlayPendingLocked()
	return nil
}

// resyncLocked reloads the displayed week, the inbox and today from backend truth.
func (p *Planner) resyncLocked(ctx context.Context) {
	_ = p.loadWeekLocked(ctx, p.env.board.WeekStart())
	_ = p.refreshTodayLocked(ctx, domain.Today(p.env.clock()))
}

// overlayPendingLocked re-applies armed optimistic changes to freshly loaded data.
func (p *Planner) overlayPendingLocked() {
	if snapshot, ok := p.deletes.Snapshot(); ok {
		p.hideTaskLocked(snapshot.ID)
	}
	if snapshot, ok := p.recurrence.Snapshot(); ok {
		current, found := p.env.board.Task(snapshot.ID)
		if !found {
			for _, task := range p.env.state.TodayTasks() {
				if task.ID == snapshot.ID {
					current, found = task, true
				}
			}
		}
		if found {
			_ = current.Apply(domain.ClearRecurrencePatch())
			p.storeTaskLocked(current)
		}
	}
}

// taskLocked returns the freshest local copy of id, fetching it when it is not displayed.
func (p *Planner) taskLocked(ctx context.Context, id int) (domain.Task, error) {
	if task, ok := p.env.board.Task(id); ok {
		return task, nil
	}
	for _, task := range p.env.state.TodayTasks() {
		if task.ID == id {
			return task, nil
		}
	}
	task, err := p.env.api.FetchTaskDetails(ctx, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("fetch task %d: %w", id, err)
	}
	return task, nil
}

// storeTaskLocked writes task into its board container and the today cache.
func (p *Planner) storeTaskLocked(task domain.Task) {
	if c, _, ok := p.env.board.Locate(task.ID); ok {
		c.Replace(task)
	}
	if p.env.state.InToday(task.ID) || task.DueOn(p.env.state.Today()) {
		p.env.state.UpsertToday(task)
	}
}

// hideTaskLocked removes id from the board without reindexing, leaving an order gap for undo.
// It remembers the preceding card so undo can put the task back between the same neighbours.
func (p *Planner) hideTaskLocked(id int) {
	p.hiddenAfter, p.hiddenShown = 0, false
	if c, idx, ok := p.env.board.Locate(id); ok {
		if prev, ok := c.Task(idx - 1); ok {
			p.hiddenAfter = prev.ID
		}
		p.hiddenShown = true
		c.Remove(id)
	}
	p.env.state.RemoveToday(id)
	p.drag.SourceRemoved(id)
}

// StartDrag begins dragging a displayed task.
func (p *Planner) StartDrag(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.env.board.Task(id)
	if !ok {
		return false
	}
	p.drag.Start(task, task.Container())
	p.env.log.Debug("drag started", "task_id", id, "source", task.Container().String())
	return true
}

// SetLayout records measured card spans for one container.
func (p *Planner) SetLayout(key domain.ContainerKey, spans map[int]Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.env.board.Container(key); ok {
		c.SetLayout(spans)
	}
}

// DragOver updates the drop indicator for a pointer over key.
func (p *Planner) DragOver(key domain.ContainerKey, pointerY float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drag.Over(key, pointerY)
}

// DragLeave clears the indicator when the pointer leaves every container.
func (p *Planner) DragLeave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drag.Leave()
}

// MoveIndicator positions the indicator directly for keyboard drags.
func (p *Planner) MoveIndicator(key domain.ContainerKey, index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drag.MoveIndicator(key, index)
}

// CancelDrag abandons the active drag.
func (p *Planner) CancelDrag() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drag.Cancel()
}

// Drop ends the drag over key and runs the move. Drops outside a container cancel.
func (p *Planner) Drop(ctx context.Context, key domain.ContainerKey, pointerY float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.drag.Drop(key, pointerY)
	if !ok {
		return nil
	}
	return p.move.Execute(ctx, req.Task, req.Target, req.Index)
}

// DropAtIndicator drops at the current indicator.
func (p *Planner) DropAtIndicator(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.drag.DropAtIndicator()
	if !ok {
		return nil
	}
	return p.move.Execute(ctx, req.Task, req.Target, req.Index)
}

// MoveTask moves a displayed task without a drag session.
func (p *Planner) MoveTask(ctx context.Context, id int, target domain.ContainerKey, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.env.board.Task(id)
	if !ok {
		return fmt.Errorf("move task %d: %w", id, ErrTaskNotVisible)
	}
	return p.move.Execute(ctx, task, target, index)
}

// OpenTaskDetails opens the popup for id. Pending undoable actions of any other task are
// committed first.
func (p *Planner) OpenTaskDetails(ctx context.Context, id int) (domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openTaskDetailsLocked(ctx, id)
}

func (p *Planner) openTaskDetailsLocked(ctx context.Context, id int) (domain.Task, error) {
	env := p.env
	p.preemptLocked(id)
	task, err := env.api.FetchTaskDetails(ctx, id)
	if err != nil {
		env.log.Warn("task details fetch failed", "task_id", id, "err", err)
		if errors.Is(err, ErrNotFound) {
			env.notify(MsgTaskNotFound, true)
			p.resyncLocked(ctx)
		} else {
			env.notify(MsgLoadFailed, true)
		}
		return domain.Task{}, fmt.Errorf("open task %d: %w", id, err)
	}
	if pendingID, ok := p.recurrence.TaskID(); ok && pendingID == id {
		_ = task.Apply(domain.ClearRecurrencePatch())
	}
	env.state.SetViewedTask(id, task.IsRecurring())
	if c, _, ok := env.board.Locate(id); ok {
		c.Replace(task)
		env.view.RenderContainer(c.Key())
	}
	return task, nil
}

// preemptLocked commits every armed action that belongs to a task other than id.
func (p *Planner) preemptLocked(id int) {
	for _, action := range []*UndoableAction{p.deletes, p.recurrence} {
		if pendingID, ok := action.TaskID(); ok && pendingID != id {
			p.env.log.Info("committing pending action on task switch", "kind", string(action.Kind()), "task_id", pendingID, "opened", id)
			action.Commit()
		}
	}
}

// CloseTaskDetails closes the popup.
func (p *Planner) CloseTaskDetails() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.env.state.ClearViewedTask()
}

// DeleteTask hides id now and deletes it on the backend when the undo window expires.
func (p *Planner) DeleteTask(ctx context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	task, err := p.taskLocked(ctx, id)
	if err != nil {
		env.notifyFailure(MsgDeleteFailed, err)
		return err
	}
	p.deletes.Arm(task, UndoHandlers{
		Apply: func(snapshot domain.Task) {
			p.hideTaskLocked(snapshot.ID)
			if env.state.IsViewing(snapshot.ID) {
				env.state.ClearViewedTask()
			}
			env.renderTask(snapshot)
		},
		Commit: func(snapshot domain.Task) error {
			return p.commitDeleteLocked(snapshot)
		},
		Revert: func(snapshot domain.Task) {
			p.restoreTaskLocked(snapshot)
			env.log.Info("task delete undone", "task_id", snapshot.ID)
			env.notify(MsgDeleteUndone, false)
		},
		Failed: func(snapshot domain.Task, err error) {
			env.log.Error("task delete failed", "task_id", snapshot.ID, "err", err)
			env.notifyFailure(MsgDeleteFailed, err)
			ctx, cancel := p.commitContext()
			defer cancel()
			p.resyncLocked(ctx)
		},
	}, p.cfg.DeleteUndoWindow)
	env.log.Info("task delete armed", "task_id", id, "window", p.cfg.DeleteUndoWindow)
	env.notify(MsgTaskDeleted, false)
	return nil
}

func (p *Planner) commitDeleteLocked(snapshot domain.Task) error {
	env := p.env
	ctx, cancel := p.commitContext()
	defer cancel()
	if err := env.api.DeleteTask(ctx, snapshot.ID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		env.log.Debug("deleted task already gone", "task_id", snapshot.ID)
	}
	env.log.Info("task deleted", "task_id", snapshot.ID)
	c, ok := env.board.Container(snapshot.Container())
	if !ok {
		return nil
	}
	if updates := c.Reindex(); len(updates) > 0 {
		if err := env.api.BulkUpdateOrder(ctx, updates); err != nil {
			env.log.Warn("order update after delete failed", "task_id", snapshot.ID, "err", err)
			env.notify(MsgOrderFailed, true)
		}
	}
	env.view.RenderContainer(c.Key())
	return nil
}

// restoreTaskLocked puts a hidden task back after the card it followed, then renumbers its
// container so orders taken by moves made while the delete was pending stay unique.
func (p *Planner) restoreTaskLocked(snapshot domain.Task) {
	env := p.env
	key := snapshot.Container()
	ctx, cancel := p.commitContext()
	defer cancel()

	c, displayed := env.board.Container(key)
	if !displayed {
		tasks, err := p.fetchContainerLocked(ctx, key)
		if err != nil {
			env.log.Warn("order check after undo failed", "task_id", snapshot.ID, "err", err)
			env.state.UpsertToday(snapshot)
			return
		}
		c = NewOrderedContainer(key, tasks)
	}
	if c.IndexOf(snapshot.ID) < 0 {
		switch after := c.IndexOf(p.hiddenAfter); {
		case p.hiddenShown && p.hiddenAfter == 0:
			c.Insert(0, snapshot)
		case p.hiddenShown && after >= 0:
			c.Insert(after+1, snapshot)
		default:
			c.InsertByOrder(snapshot)
		}
	}
	p.hiddenAfter, p.hiddenShown = 0, false

	if updates := c.Reindex(); len(updates) > 0 {
		if err := env.api.BulkUpdateOrder(ctx, updates); err != nil {
			env.log.Warn("order update after undo failed", "task_id", snapshot.ID, "err", err)
			env.notifyFailure(MsgOrderFailed, err)
			p.resyncLocked(ctx)
			return
		}
	}
	if restored, ok := c.Task(c.IndexOf(snapshot.ID)); ok {
		snapshot = restored
	}
	if displayed {
		env.view.RenderContainer(key)
	}
	env.state.UpsertToday(snapshot)
}

// fetchContainerLocked loads one container from the backend.
func (p *Planner) fetchContainerLocked(ctx context.Context, key domain.ContainerKey) ([]domain.Task, error) {
	if key.IsInbox() {
		return p.env.api.FetchInboxTasks(ctx)
	}
	day, ok := key.Date()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchContainer, key)
	}
	return p.env.api.FetchTasksForRange(ctx, day, day)
}

// UndoDelete reverts the pending delete, if any.
func (p *Planner) UndoDelete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deletes.Undo()
}

// ClearRecurrence removes id's recurrence now and persists it when the undo window expires.
func (p *Planner) ClearRecurrence(ctx context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	task, err := p.taskLocked(ctx, id)
	if err != nil {
		env.notifyFailure(MsgRecurrenceClearFailed, err)
		return err
	}
	if !task.IsRecurring() {
		return fmt.Errorf("clear recurrence of task %d: %w", id, ErrNotRecurring)
	}
	p.recurrence.Arm(task, UndoHandlers{
		Apply: func(snapshot domain.Task) {
			cleared := snapshot.Clone()
			_ = cleared.Apply(domain.ClearRecurrencePatch())
			p.storeTaskLocked(cleared)
			if env.state.IsViewing(snapshot.ID) {
				env.state.SetRecurrenceUIOpen(false)
				env.view.ClearRecurrenceUI(snapshot.ID)
			}
			env.renderTask(snapshot)
		},
		Commit: func(snapshot domain.Task) error {
			ctx, cancel := p.commitContext()
			defer cancel()
			if err := env.api.UpdateTask(ctx, snapshot.ID, domain.ClearRecurrencePatch()); err != nil {
				return err
			}
			env.log.Info("recurrence cleared", "task_id", snapshot.ID)
			return nil
		},
		Revert: func(snapshot domain.Task) {
			current, ok := env.board.Task(snapshot.ID)
			if !ok {
				current = snapshot
			}
			_ = current.Apply(domain.RecurrencePatch(snapshot))
			p.storeTaskLocked(current)
			if env.state.IsViewing(snapshot.ID) {
				env.state.SetRecurrenceUIOpen(current.IsRecurring())
			}
			env.renderTask(current)
			env.log.Info("recurrence clear undone", "task_id", snapshot.ID)
			env.notify(MsgRecurrenceUndone, false)
		},
		Failed: func(snapshot domain.Task, err error) {
			env.log.Error("recurrence clear failed", "task_id", snapshot.ID, "err", err)
			env.notifyFailure(MsgRecurrenceClearFailed, err)
			ctx, cancel := p.commitContext()
			defer cancel()
			p.resyncLocked(ctx)
		},
	}, p.cfg.RecurrenceUndoWindow)
	env.log.Info("recurrence clear armed", "task_id", id, "window", p.cfg.RecurrenceUndoWindow)
	env.notify(MsgRecurrenceCleared, false)
	return nil
}

// UndoRecurrenceClear reverts the pending recurrence clear, if any.
func (p *Planner) UndoRecurrenceClear() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recurrence.Undo()
}

// UndoLatest reverts the pending action that expires last.
func (p *Planner) UndoLatest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	first, second := p.deletes, p.recurrence
	if first.Armed() && second.Armed() && second.ExpiresAt().After(first.ExpiresAt()) {
		first, second = second, first
	}
	if first.Undo() {
		return true
	}
	return second.Undo()
}

// CommitPending commits every armed action now.
func (p *Planner) CommitPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes.Commit()
	p.recurrence.Commit()
}

// ToggleComplete flips the completed flag of id.
func (p *Planner) ToggleComplete(ctx context.Context, id int) (domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	task, err := p.taskLocked(ctx, id)
	if err != nil {
		env.notifyFailure(MsgUpdateFailed, err)
		return domain.Task{}, err
	}
	completed := !task.Completed
	patch := domain.TaskPatch{Completed: &completed}
	if err := env.api.UpdateTask(ctx, id, patch); err != nil {
		env.log.Error("toggle complete failed", "task_id", id, "err", err)
		env.notifyFailure(MsgUpdateFailed, err)
		p.resyncLocked(ctx)
		return domain.Task{}, fmt.Errorf("toggle task %d: %w", id, err)
	}
	_ = task.Apply(patch)
	p.storeTaskLocked(task)
	env.renderTask(task)
	if completed && task.IsRecurring() {
		// the backend schedules the next occurrence on completion
		p.resyncLocked(ctx)
	}
	return task, nil
}

// UpdateTask applies an edit from the details popup.
func (p *Planner) UpdateTask(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	if err := patch.Validate(); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	task, err := p.taskLocked(ctx, id)
	if err != nil {
		env.notifyFailure(MsgUpdateFailed, err)
		return domain.Task{}, err
	}
	if err := env.api.UpdateTask(ctx, id, patch); err != nil {
		env.log.Error("task update failed", "task_id", id, "err", err)
		env.notifyFailure(MsgUpdateFailed, err)
		p.resyncLocked(ctx)
		return domain.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	local := task.Clone()
	_ = local.Apply(patch)
	fresh, err := env.api.FetchTaskDetails(ctx, id)
	if err != nil {
		env.log.Warn("task refresh after update failed", "task_id", id, "err", err)
		fresh = local
	}

	if fresh.Container() != task.Container() {
		p.resyncLocked(ctx)
	} else {
		p.storeTaskLocked(fresh)
		env.renderTask(fresh)
	}
	env.state.UpsertToday(fresh)
	if env.state.IsViewing(id) {
		env.state.SetRecurrenceUIOpen(fresh.IsRecurring())
		if !fresh.IsRecurring() && task.IsRecurring() {
			env.view.ClearRecurrenceUI(id)
		}
	}
	return fresh, nil
}

// CreateTask creates a task at the end of its container.
func (p *Planner) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.env
	creator, ok := env.api.(TaskCreator)
	if !ok {
		return domain.Task{}, ErrUnsupported
	}
	c, displayed := env.board.Container(domain.ContainerFor(in.DueDate))
	if displayed {
		// a pending delete leaves a gap, so Len can collide with a live order
		in.Order = 0
		if last, ok := c.Task(c.Len() - 1); ok {
			in.Order = last.Order + 1
		}
	}
	task, err := domain.NewTask(in)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	created, err := creator.CreateTask(ctx, task)
	if err != nil {
		env.log.Error("task create failed", "err", err)
		env.notifyFailure(MsgCreateFailed, err)
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	if displayed {
		c.Insert(c.Len(), created)
		env.view.RenderContainer(c.Key())
	}
	env.state.UpsertToday(created)
	env.log.Info("task created", "task_id", created.ID, "container", created.Container().String())
	return created, nil
}

// Search returns tasks matching query, best match first.
func (p *Planner) Search(ctx context.Context, query string) ([]domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if searcher, ok := p.env.api.(TaskSearcher); ok {
		results, err := searcher.SearchTasks(ctx, query, 1, p.cfg.SearchPageSize)
		if err != nil {
			p.env.log.Warn("search failed", "query", query, "err", err)
			p.env.notifyFailure(MsgSearchFailed, err)
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		return rankTasks(query, results, true), nil
	}
	return rankTasks(query, p.localTasksLocked(), false), nil
}

func (p *Planner) localTasksLocked() []domain.Task {
	seen := map[int]struct{}{}
	out := []domain.Task{}
	for _, key := range p.env.board.Keys() {
		c, _ := p.env.board.Container(key)
		for _, task := range c.Tasks() {
			seen[task.ID] = struct{}{}
			out = append(out, task)
		}
	}
	for _, task := range p.env.state.TodayTasks() {
		if _, ok := seen[task.ID]; !ok {
			out = append(out, task)
		}
	}
	return out
}

// InboxTitle returns the current inbox title.
func (p *Planner) InboxTitle() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.env.state.InboxTitle()
}

// SetInboxTitle renames the inbox.
func (p *Planner) SetInboxTitle(ctx context.Context, title string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty inbox title", ErrValidation)
	}
	p.env.state.SetInboxTitle(title)
	p.env.view.RenderContainer(domain.InboxKey())
	store, ok := p.env.api.(InboxTitleStore)
	if !ok {
		return nil
	}
	if err := store.SetInboxTitle(ctx, title); err != nil {
		p.env.log.Error("inbox title save failed", "err", err)
		p.env.notifyFailure(MsgInboxTitleFailed, err)
		return fmt.Errorf("save inbox title: %w", err)
	}
	return nil
}

// ResolveDeepLink opens the task named by a "#task/<id>" link and shows its week.
func (p *Planner) ResolveDeepLink(ctx context.Context, link string) (domain.Task, error) {
	id, ok := domain.ParseTaskLink(link)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: bad task link %q", ErrValidation, link)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	task, err := p.openTaskDetailsLocked(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if key := task.Container(); !p.env.board.Displays(key) {
		if d, dated := key.Date(); dated {
			if err := p.loadWeekLocked(ctx, d.WeekStart(p.firstWeekday())); err != nil {
				return task, err
			}
		}
	}
	return task, nil
}

// Pending lists the armed undoable actions.
func (p *Planner) Pending() []PendingUndo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingLocked()
}

func (p *Planner) pendingLocked() []PendingUndo {
	out := []PendingUndo{}
	for _, action := range []*UndoableAction{p.deletes, p.recurrence} {
		snapshot, ok := action.Snapshot()
		if !ok {
			continue
		}
		out = append(out, PendingUndo{
			Kind:      action.Kind(),
			TaskID:    snapshot.ID,
			Title:     snapshot.Title,
			ExpiresAt: action.ExpiresAt(),
		})
	}
	return out
}

// Snapshot returns a consistent copy of the planner state.
func (p *Planner) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	viewed, _ := p.env.state.ViewedTask()
	snap := Snapshot{
		Board:            p.env.board.Clone(),
		Today:            p.env.state.Today(),
		TodayTasks:       p.env.state.TodayTasks(),
		ViewedTaskID:     viewed,
		RecurrenceUIOpen: p.env.state.RecurrenceUIOpen(),
		InboxTitle:       p.env.state.InboxTitle(),
		Drag:             DragView{State: p.drag.State()},
		Pending:          p.pendingLocked(),
	}
	if task, ok := p.drag.Task(); ok {
		snap.Drag.Task = task
		snap.Drag.Source, _ = p.drag.Source()
	}
	if indicator, ok := p.drag.Indicator(); ok {
		snap.Drag.Indicator = &indicator
	}
	return snap
}
