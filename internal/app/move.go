package app

import (
	"context"
	"fmt"

	"github.com/evanschultz/weekplan/internal/domain"
)

// MoveCommand persists a drop: due date first, then the reindexed ordinals.
type MoveCommand struct {
	env *environment
}

func newMoveCommand(env *environment) *MoveCommand {
	return &MoveCommand{env: env}
}

// Execute moves task into target at index. Backend failures are reported through the view and
// followed by a resync; the returned error is informational.
func (m *MoveCommand) Execute(ctx context.Context, task domain.Task, target domain.ContainerKey, index int) error {
	env := m.env
	targetC, ok := env.board.Container(target)
	if !ok {
		return fmt.Errorf("move task %d to %s: %w", task.ID, target, ErrNoSuchContainer)
	}
	if current, found := env.board.Task(task.ID); found {
		task = current
	}
	source := task.Container()
	today := domain.Today(env.clock())
	wasToday := task.DueOn(today)

	patch := domain.PatchForContainer(target)
	env.log.Debug("moving task", "task_id", task.ID, "from", source.String(), "to", target.String(), "index", index)
	if err := env.api.UpdateTask(ctx, task.ID, patch); err != nil {
		env.log.Error("move task update failed", "task_id", task.ID, "to", target.String(), "err", err)
		env.notifyFailure(MsgMoveFailed, err)
		env.resync(ctx)
		return fmt.Errorf("move task %d: %w", task.ID, err)
	}

	moved := task.Clone()
	if err := moved.Apply(patch); err != nil {
		return fmt.Errorf("apply move patch: %w", err)
	}

	sourceC, _, found := env.board.Locate(task.ID)
	if found {
		sourceC.Remove(task.ID)
	}
	targetC.Insert(index, moved)
	updates := targetC.Reindex()
	if found && sourceC != targetC {
		updates = append(updates, sourceC.Reindex()...)
	}

	var orderErr error
	if len(updates) > 0 {
		if err := env.api.BulkUpdateOrder(ctx, updates); err != nil {
			env.log.Error("bulk order update failed", "task_id", task.ID, "count", len(updates), "err", err)
			orderErr = fmt.Errorf("persist order after moving task %d: %w", task.ID, err)
		}
	}

	env.view.RenderContainer(target)
	if found && sourceC != targetC {
		env.view.RenderContainer(sourceC.Key())
	}

	m.updateTodayCache(ctx, moved, wasToday, today)

	if patch.ClearsRecurrence() && env.state.IsViewing(task.ID) {
		env.state.SetRecurrenceUIOpen(false)
		env.view.ClearRecurrenceUI(task.ID)
	}

	if orderErr != nil {
		env.notifyFailure(MsgOrderFailed, orderErr)
		env.resync(ctx)
		return orderErr
	}
	env.log.Info("task moved", "task_id", task.ID, "to", target.String(), "reordered", len(updates))
	return nil
}

// updateTodayCache drops a task that left today and refreshes one that entered or stayed.
func (m *MoveCommand) updateTodayCache(ctx context.Context, moved domain.Task, wasToday bool, today domain.Date) {
	env := m.env
	isToday := moved.DueOn(today)
	switch {
	case wasToday && !isToday:
		env.state.RemoveToday(moved.ID)
	case isToday:
		fresh, err := env.api.FetchTaskDetails(ctx, moved.ID)
		if err != nil {
			env.log.Warn("today cache refresh failed", "task_id", moved.ID, "err", err)
			fresh = moved
		}
		env.state.UpsertToday(fresh)
	}
}
