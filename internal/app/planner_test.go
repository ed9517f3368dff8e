package app

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/evanschultz/weekplan/internal/domain"
)

// TestMoveWithinDayKeepsOrdersDense verifies a same-container drop reorders and persists 0..n-1.
func TestMoveWithinDayKeepsOrdersDense(t *testing.T) {
	h := newHarness(t,
		dayTask(t, 1, "2024-06-10", 0),
		dayTask(t, 2, "2024-06-10", 1),
		dayTask(t, 3, "2024-06-10", 2),
		dayTask(t, 4, "2024-06-10", 3),
	)
	day := domain.DayKey(mustDate(t, "2024-06-10"))
	ctx := context.Background()

	if !h.planner.StartDrag(4) {
		t.Fatal("StartDrag(4) = false, want true")
	}
	if err := h.planner.Drop(ctx, day, 0.2); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if got, want := h.ids(t, day), []int{4, 1, 2, 3}; !slices.Equal(got, want) {
		t.Fatalf("day ids = %v, want %v", got, want)
	}
	h.assertDense(t, day)
	if state := h.planner.Snapshot().Drag.State; state != DragIdle {
		t.Fatalf("drag state = %s, want idle", state)
	}
}

// TestMoveAcrossDaysReindexesBothContainers verifies source and target stay dense.
func TestMoveAcrossDaysReindexesBothContainers(t *testing.T) {
	h := newHarness(t,
		dayTask(t, 1, "2024-06-10", 0),
		dayTask(t, 2, "2024-06-10", 1),
		dayTask(t, 3, "2024-06-10", 2),
		dayTask(t, 4, "2024-06-11", 0),
		dayTask(t, 5, "2024-06-11", 1),
	)
	monday := domain.DayKey(mustDate(t, "2024-06-10"))
	tuesday := domain.DayKey(mustDate(t, "2024-06-11"))

	if err := h.planner.MoveTask(context.Background(), 2, tuesday, 1); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if got, want := h.ids(t, monday), []int{1, 3}; !slices.Equal(got, want) {
		t.Fatalf("monday ids = %v, want %v", got, want)
	}
	if got, want := h.ids(t, tuesday), []int{4, 2, 5}; !slices.Equal(got, want) {
		t.Fatalf("tuesday ids = %v, want %v", got, want)
	}
	h.assertDense(t, monday)
	h.assertDense(t, tuesday)
	if due := h.api.tasks[2].DueDate; due == nil || due.String() != "2024-06-11" {
		t.Fatalf("stored due date = %v, want 2024-06-11", due)
	}
	if len(h.api.orderBatches) != 1 {
		t.Fatalf("order batches = %d, want 1", len(h.api.orderBatches))
	}
}

// TestMoveUpdatesDueDateBeforeOrder verifies the call sequence of a cross-container move.
func TestMoveUpdatesDueDateBeforeOrder(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 2, "2024-06-11", 0))
	*h.events = nil

	if err := h.planner.MoveTask(context.Background(), 1, domain.DayKey(mustDate(t, "2024-06-11")), 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	update := slices.Index(*h.events, "update:1")
	order := slices.Index(*h.events, "order:1")
	if update < 0 || order < 0 || update > order {
		t.Fatalf("events = %v, want update:1 before order:1", *h.events)
	}
}

// TestMoveToInboxClearsRecurrence verifies the inbox invariant on the backend and in the details popup.
func TestMoveToInboxClearsRecurrence(t *testing.T) {
	recurring := dayTask(t, 7, "2024-06-11", 0)
	recurring.RecurrenceRule = domain.RecurrenceWeekly
	recurring.RecurrenceInterval = 2
	h := newHarness(t, recurring, inboxTask(8, 0))
	ctx := context.Background()

	if _, err := h.planner.OpenTaskDetails(ctx, 7); err != nil {
		t.Fatalf("OpenTaskDetails() error = %v", err)
	}
	if !h.planner.Snapshot().RecurrenceUIOpen {
		t.Fatal("RecurrenceUIOpen = false before move, want true")
	}
	if err := h.planner.MoveTask(ctx, 7, domain.InboxKey(), 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}

	fetched, err := h.api.FetchTaskDetails(ctx, 7)
	if err != nil {
		t.Fatalf("FetchTaskDetails() error = %v", err)
	}
	if fetched.DueDate != nil || fetched.RecurrenceRule != domain.RecurrenceNone || fetched.RecurrenceInterval != 1 {
		t.Fatalf("fetched = %+v, want null due date, no rule, interval 1", fetched)
	}
	if got, want := h.ids(t, domain.InboxKey()), []int{7, 8}; !slices.Equal(got, want) {
		t.Fatalf("inbox ids = %v, want %v", got, want)
	}
	snap := h.planner.Snapshot()
	if snap.RecurrenceUIOpen {
		t.Fatal("RecurrenceUIOpen = true after inbox move, want false")
	}
	if !slices.Contains(h.view.cleared, 7) {
		t.Fatalf("cleared recurrence UI = %v, want 7", h.view.cleared)
	}
	h.assertDense(t, domain.InboxKey())
}

// TestMoveUpdateFailureLeavesMembership verifies a failed due-date update rolls nothing forward.
func TestMoveUpdateFailureLeavesMembership(t *testing.T) {
	h := newHarness(t,
		dayTask(t, 1, "2024-06-10", 0),
		dayTask(t, 2, "2024-06-10", 1),
		inboxTask(3, 0),
	)
	monday := domain.DayKey(mustDate(t, "2024-06-10"))
	h.api.failUpdate = ErrNetwork
	h.view.renders = nil

	err := h.planner.MoveTask(context.Background(), 1, domain.InboxKey(), 0)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("MoveTask() error = %v, want ErrNetwork", err)
	}
	if got, want := h.ids(t, monday), []int{1, 2}; !slices.Equal(got, want) {
		t.Fatalf("monday ids = %v, want %v", got, want)
	}
	if got, want := h.ids(t, domain.InboxKey()), []int{3}; !slices.Equal(got, want) {
		t.Fatalf("inbox ids = %v, want %v", got, want)
	}
	if !h.view.hasNote("Could not move task") {
		t.Fatalf("notes = %+v, want move failure", h.view.notes)
	}
	for _, key := range h.planner.Snapshot().Board.Keys() {
		if !h.view.rendered(key) {
			t.Fatalf("container %s not re-rendered after failure", key)
		}
	}
	if h.api.countCalls("order:") != 0 {
		t.Fatalf("events = %v, want no order update", *h.events)
	}
}

// TestMoveOrderFailureKeepsDueDate verifies an order failure notifies but keeps the new due date.
func TestMoveOrderFailureKeepsDueDate(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 2, "2024-06-10", 1))
	h.api.failOrder = ErrNetwork

	err := h.planner.MoveTask(context.Background(), 2, domain.DayKey(mustDate(t, "2024-06-12")), 0)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("MoveTask() error = %v, want ErrNetwork", err)
	}
	if due := h.api.tasks[2].DueDate; due == nil || due.String() != "2024-06-12" {
		t.Fatalf("stored due date = %v, want 2024-06-12", due)
	}
	if !h.view.hasNote("Could not save task order") {
		t.Fatalf("notes = %+v, want order failure", h.view.notes)
	}
}

// TestDropOutsideContainerCancels verifies drops off the board make no backend calls.
func TestDropOutsideContainerCancels(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0))
	*h.events = nil

	if !h.planner.StartDrag(1) {
		t.Fatal("StartDrag(1) = false, want true")
	}
	if err := h.planner.Drop(context.Background(), domain.DayKey(mustDate(t, "2024-07-01")), 0); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if h.api.countCalls("update:") != 0 {
		t.Fatalf("events = %v, want no update", *h.events)
	}
	if state := h.planner.Snapshot().Drag.State; state != DragIdle {
		t.Fatalf("drag state = %s, want idle", state)
	}
	if h.planner.StartDrag(99) {
		t.Fatal("StartDrag(99) = true, want false")
	}
}

// TestDragIndicatorThenDrop verifies the keyboard-style indicator path.
func TestDragIndicatorThenDrop(t *testing.T) {
	h := newHarness(t,
		dayTask(t, 1, "2024-06-10", 0),
		dayTask(t, 2, "2024-06-10", 1),
		dayTask(t, 3, "2024-06-10", 2),
	)
	day := domain.DayKey(mustDate(t, "2024-06-10"))
	ctx := context.Background()

	h.planner.StartDrag(1)
	if !h.planner.DragOver(day, 1.7) {
		t.Fatal("DragOver() = false, want true")
	}
	indicator := h.planner.Snapshot().Drag.Indicator
	if indicator == nil || indicator.Index != 1 || indicator.Container != day {
		t.Fatalf("indicator = %+v, want index 1 in %s", indicator, day)
	}
	h.planner.DragLeave()
	if h.planner.Snapshot().Drag.Indicator != nil {
		t.Fatal("indicator still set after DragLeave")
	}
	if !h.planner.MoveIndicator(day, 1) {
		t.Fatal("MoveIndicator() = false, want true")
	}
	if err := h.planner.DropAtIndicator(ctx); err != nil {
		t.Fatalf("DropAtIndicator() error = %v", err)
	}
	if got, want := h.ids(t, day), []int{2, 1, 3}; !slices.Equal(got, want) {
		t.Fatalf("day ids = %v, want %v", got, want)
	}
	h.assertDense(t, day)
}

func deleteHarness(t *testing.T) *plannerHarness {
	t.Helper()
	return newHarness(t,
		dayTask(t, 1, "2024-06-10", 0),
		dayTask(t, 2, "2024-06-10", 1),
		dayTask(t, 5, "2024-06-10", 2),
		dayTask(t, 6, "2024-06-10", 3),
		dayTask(t, 9, "2024-06-11", 0),
	)
}

// TestDeleteUndoRestoresPosition verifies undo puts the task back with its due date and order.
func TestDeleteUndoRestoresPosition(t *testing.T) {
	h := deleteHarness(t)
	day := domain.DayKey(mustDate(t, "2024-06-10"))

	if err := h.planner.DeleteTask(context.Background(), 5); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if got, want := h.ids(t, day), []int{1, 2, 6}; !slices.Equal(got, want) {
		t.Fatalf("ids after delete = %v, want %v", got, want)
	}
	if slices.ContainsFunc(h.planner.Snapshot().TodayTasks, func(task domain.Task) bool { return task.ID == 5 }) {
		t.Fatal("deleted task still in today cache")
	}
	if !h.planner.UndoDelete() {
		t.Fatal("UndoDelete() = false, want true")
	}
	if got, want := h.ids(t, day), []int{1, 2, 5, 6}; !slices.Equal(got, want) {
		t.Fatalf("ids after undo = %v, want %v", got, want)
	}
	restored, ok := h.planner.Snapshot().Board.Task(5)
	if !ok || restored.Order != 2 || restored.DueDate == nil || restored.DueDate.String() != "2024-06-10" {
		t.Fatalf("restored = %+v, want due 2024-06-10 order 2", restored)
	}

	h.sched.Advance(2 * DefaultDeleteUndoWindow)
	if h.api.countCalls("delete:") != 0 {
		t.Fatalf("events = %v, want no delete after undo", *h.events)
	}
}

// TestDoubleUndoIsNoop verifies the second undo has no effect.
func TestDoubleUndoIsNoop(t *testing.T) {
	h := deleteHarness(t)
	_ = h.planner.DeleteTask(context.Background(), 5)

	if !h.planner.UndoDelete() {
		t.Fatal("first UndoDelete() = false, want true")
	}
	if h.planner.UndoDelete() {
		t.Fatal("second UndoDelete() = true, want false")
	}
	if got := h.view.countNotes("Task restored"); got != 1 {
		t.Fatalf("restore notes = %d, want 1", got)
	}
	if got, want := h.ids(t, domain.DayKey(mustDate(t, "2024-06-10"))), []int{1, 2, 5, 6}; !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

// TestDeleteCommitsAfterWindow verifies expiry deletes and closes the order gap.
func TestDeleteCommitsAfterWindow(t *testing.T) {
	h := deleteHarness(t)
	day := domain.DayKey(mustDate(t, "2024-06-10"))
	_ = h.planner.DeleteTask(context.Background(), 5)

	h.sched.Advance(DefaultDeleteUndoWindow - 1)
	if len(h.api.deleted) != 0 {
		t.Fatalf("deleted = %v before expiry, want none", h.api.deleted)
	}
	h.sched.Advance(1)
	if !slices.Equal(h.api.deleted, []int{5}) {
		t.Fatalf("deleted = %v, want [5]", h.api.deleted)
	}
	if got, want := h.ids(t, day), []int{1, 2, 6}; !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	h.assertDense(t, day)
	if pending := h.planner.Pending(); len(pending) != 0 {
		t.Fatalf("pending = %+v, want none", pending)
	}
	if h.planner.UndoDelete() {
		t.Fatal("UndoDelete() after commit = true, want false")
	}
}

// TestArmingSecondDeleteCommitsFirst verifies A is deleted before B is hidden.
func TestArmingSecondDeleteCommitsFirst(t *testing.T) {
	h := deleteHarness(t)
	ctx := context.Background()
	_ = h.planner.DeleteTask(ctx, 1)
	*h.events = nil

	if err := h.planner.DeleteTask(ctx, 9); err != nil {
		t.Fatalf("DeleteTask(9) error = %v", err)
	}
	if !slices.Equal(h.api.deleted, []int{1}) {
		t.Fatalf("deleted = %v, want [1]", h.api.deleted)
	}
	commit := slices.Index(*h.events, "delete:1")
	hide := slices.Index(*h.events, "render:2024-06-11")
	if commit < 0 || hide < 0 || commit > hide {
		t.Fatalf("events = %v, want delete:1 before hiding task 9", *h.events)
	}
	pending := h.planner.Pending()
	if len(pending) != 1 || pending[0].TaskID != 9 || pending[0].Kind != UndoDelete {
		t.Fatalf("pending = %+v, want delete of 9", pending)
	}
	if _, ok := h.planner.Snapshot().Board.Task(9); ok {
		t.Fatal("task 9 still displayed")
	}
}

// TestDeleteCommitFailureNotifiesAndResyncs verifies a failed commit reports and reloads truth.
func TestDeleteCommitFailureNotifiesAndResyncs(t *testing.T) {
	h := deleteHarness(t)
	h.api.failDelete = ErrNetwork
	_ = h.planner.DeleteTask(context.Background(), 5)

	h.sched.Advance(DefaultDeleteUndoWindow)
	if !h.view.hasNote("Could not delete task") {
		t.Fatalf("notes = %+v, want delete failure", h.view.notes)
	}
	if _, ok := h.planner.Snapshot().Board.Task(5); !ok {
		t.Fatal("task 5 missing after resync, want backend copy back")
	}
}

// TestPendingDeleteSurvivesReload verifies a resync keeps the hidden task hidden.
func TestPendingDeleteSurvivesReload(t *testing.T) {
	h := deleteHarness(t)
	ctx := context.Background()
	_ = h.planner.DeleteTask(ctx, 5)

	if err := h.planner.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, ok := h.planner.Snapshot().Board.Task(5); ok {
		t.Fatal("pending delete reappeared after reload")
	}
	if !h.planner.UndoDelete() {
		t.Fatal("UndoDelete() = false, want true")
	}
	if got, want := h.ids(t, domain.DayKey(mustDate(t, "2024-06-10"))), []int{1, 2, 5, 6}; !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

// TestUndoAfterReorderKeepsOrdersUnique verifies undo renumbers a day reordered while the delete was pending.
func TestUndoAfterReorderKeepsOrdersUnique(t *testing.T) {
	h := deleteHarness(t)
	ctx := context.Background()
	day := domain.DayKey(mustDate(t, "2024-06-10"))

	_ = h.planner.DeleteTask(ctx, 5)
	if err := h.planner.MoveTask(ctx, 6, day, 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if !h.planner.UndoDelete() {
		t.Fatal("UndoDelete() = false, want true")
	}
	if got, want := h.ids(t, day), []int{6, 1, 2, 5}; !slices.Equal(got, want) {
		t.Fatalf("ids after undo = %v, want %v", got, want)
	}
	h.assertDense(t, day)
}

// TestUndoRenumbersDayOutsideDisplayedWeek verifies undo fixes backend orders after navigating away.
func TestUndoRenumbersDayOutsideDisplayedWeek(t *testing.T) {
	h := deleteHarness(t)
	ctx := context.Background()
	day := domain.DayKey(mustDate(t, "2024-06-10"))

	_ = h.planner.DeleteTask(ctx, 5)
	if err := h.planner.MoveTask(ctx, 6, day, 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if err := h.planner.ShowWeek(ctx, 1); err != nil {
		t.Fatalf("ShowWeek() error = %v", err)
	}
	if !h.planner.UndoDelete() {
		t.Fatal("UndoDelete() = false, want true")
	}
	want := map[int]int{6: 0, 1: 1, 2: 2, 5: 3}
	for id, order := range want {
		if got := h.api.tasks[id].Order; got != order {
			t.Fatalf("stored task %d order = %d, want %d", id, got, order)
		}
	}
}

// TestCreateDuringPendingDeleteSkipsHiddenOrder verifies a new card never reuses the hidden task's slot.
func TestCreateDuringPendingDeleteSkipsHiddenOrder(t *testing.T) {
	h := deleteHarness(t)
	ctx := context.Background()
	day := domain.DayKey(mustDate(t, "2024-06-10"))

	_ = h.planner.DeleteTask(ctx, 5)
	created, err := h.planner.CreateTask(ctx, domain.TaskInput{Title: "Water plants", DueDate: datePtr(t, "2024-06-10")})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.Order != 4 {
		t.Fatalf("created order = %d, want 4", created.Order)
	}
	if !h.planner.UndoDelete() {
		t.Fatal("UndoDelete() = false, want true")
	}
	if got, want := h.ids(t, day), []int{1, 2, 5, 6, created.ID}; !slices.Equal(got, want) {
		t.Fatalf("ids after undo = %v, want %v", got, want)
	}
	h.assertDense(t, day)
}

func recurringHarness(t *testing.T) *plannerHarness {
	t.Helper()
	recurring := dayTask(t, 7, "2024-06-12", 0)
	recurring.RecurrenceRule = domain.RecurrenceWeekly
	return newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 2, "2024-06-10", 1), recurring)
}

// TestRecurrenceClearUndo verifies the optimistic clear and its revert.
func TestRecurrenceClearUndo(t *testing.T) {
	h := recurringHarness(t)
	ctx := context.Background()
	if _, err := h.planner.OpenTaskDetails(ctx, 7); err != nil {
		t.Fatalf("OpenTaskDetails() error = %v", err)
	}

	if err := h.planner.ClearRecurrence(ctx, 7); err != nil {
		t.Fatalf("ClearRecurrence() error = %v", err)
	}
	task, _ := h.planner.Snapshot().Board.Task(7)
	if task.IsRecurring() {
		t.Fatalf("task = %+v, want recurrence cleared", task)
	}
	if h.planner.Snapshot().RecurrenceUIOpen || !slices.Contains(h.view.cleared, 7) {
		t.Fatal("recurrence UI still open after clear")
	}

	if !h.planner.UndoRecurrenceClear() {
		t.Fatal("UndoRecurrenceClear() = false, want true")
	}
	task, _ = h.planner.Snapshot().Board.Task(7)
	if task.RecurrenceRule != domain.RecurrenceWeekly {
		t.Fatalf("rule = %q, want weekly", task.RecurrenceRule)
	}
	if !h.planner.Snapshot().RecurrenceUIOpen {
		t.Fatal("recurrence UI closed after undo, want open")
	}
	h.sched.Advance(2 * DefaultRecurrenceUndoWindow)
	if h.api.countCalls("update:7") != 0 {
		t.Fatalf("events = %v, want no update after undo", *h.events)
	}
}

// TestRecurrenceClearCommits verifies expiry persists the clear.
func TestRecurrenceClearCommits(t *testing.T) {
	h := recurringHarness(t)
	if err := h.planner.ClearRecurrence(context.Background(), 7); err != nil {
		t.Fatalf("ClearRecurrence() error = %v", err)
	}
	h.sched.Advance(DefaultRecurrenceUndoWindow)
	if stored := h.api.tasks[7]; stored.RecurrenceRule != domain.RecurrenceNone || stored.RecurrenceInterval != 1 {
		t.Fatalf("stored = %+v, want recurrence cleared", stored)
	}
	if err := h.planner.ClearRecurrence(context.Background(), 1); !errors.Is(err, ErrNotRecurring) {
		t.Fatalf("ClearRecurrence(1) error = %v, want ErrNotRecurring", err)
	}
}

// TestOpenDetailsCommitsOtherTasksPending verifies switching tasks commits pending actions.
func TestOpenDetailsCommitsOtherTasksPending(t *testing.T) {
	h := recurringHarness(t)
	ctx := context.Background()
	_ = h.planner.DeleteTask(ctx, 1)
	_ = h.planner.ClearRecurrence(ctx, 7)

	opened, err := h.planner.OpenTaskDetails(ctx, 7)
	if err != nil {
		t.Fatalf("OpenTaskDetails(7) error = %v", err)
	}
	if !slices.Equal(h.api.deleted, []int{1}) {
		t.Fatalf("deleted = %v, want [1]", h.api.deleted)
	}
	if opened.IsRecurring() {
		t.Fatalf("opened = %+v, want pending clear overlaid", opened)
	}
	pending := h.planner.Pending()
	if len(pending) != 1 || pending[0].Kind != UndoRecurrenceClear {
		t.Fatalf("pending = %+v, want recurrence clear of 7", pending)
	}

	if _, err := h.planner.OpenTaskDetails(ctx, 2); err != nil {
		t.Fatalf("OpenTaskDetails(2) error = %v", err)
	}
	if len(h.planner.Pending()) != 0 {
		t.Fatalf("pending = %+v, want none", h.planner.Pending())
	}
	if h.api.tasks[7].IsRecurring() {
		t.Fatal("recurrence clear not committed on task switch")
	}
}

// TestOpenMissingTaskNotifies verifies a vanished task reports not found.
func TestOpenMissingTaskNotifies(t *testing.T) {
	h := recurringHarness(t)
	_, err := h.planner.OpenTaskDetails(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("OpenTaskDetails() error = %v, want ErrNotFound", err)
	}
	if !h.view.hasNote("Task no longer exists") {
		t.Fatalf("notes = %+v, want not found", h.view.notes)
	}
}

// TestTodayCacheFollowsMoves verifies tasks leave and re-enter the today cache.
func TestTodayCacheFollowsMoves(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 2, "2024-06-11", 0))
	ctx := context.Background()
	inToday := func(id int) bool {
		return slices.ContainsFunc(h.planner.Snapshot().TodayTasks, func(task domain.Task) bool { return task.ID == id })
	}
	if !inToday(1) || inToday(2) {
		t.Fatalf("today = %+v, want only task 1", h.planner.Snapshot().TodayTasks)
	}
	if err := h.planner.MoveTask(ctx, 1, domain.DayKey(mustDate(t, "2024-06-11")), 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if inToday(1) {
		t.Fatal("task 1 still cached as today after leaving")
	}
	if err := h.planner.MoveTask(ctx, 2, domain.DayKey(mustDate(t, "2024-06-10")), 0); err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if !inToday(2) {
		t.Fatal("task 2 not cached as today after entering")
	}
}

// TestWeekNavigationAndDeepLink verifies week paging and link resolution.
func TestWeekNavigationAndDeepLink(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 9, "2024-07-03", 0))
	ctx := context.Background()

	if err := h.planner.ShowWeek(ctx, 1); err != nil {
		t.Fatalf("ShowWeek() error = %v", err)
	}
	if got := h.planner.Snapshot().Board.WeekStart().String(); got != "2024-06-17" {
		t.Fatalf("week start = %s, want 2024-06-17", got)
	}
	task, err := h.planner.ResolveDeepLink(ctx, "https://plan.local/#task/9")
	if err != nil {
		t.Fatalf("ResolveDeepLink() error = %v", err)
	}
	snap := h.planner.Snapshot()
	if task.ID != 9 || snap.ViewedTaskID != 9 || snap.Board.WeekStart().String() != "2024-07-01" {
		t.Fatalf("task %d viewed %d week %s, want 9/9/2024-07-01", task.ID, snap.ViewedTaskID, snap.Board.WeekStart())
	}
	if _, err := h.planner.ResolveDeepLink(ctx, "#task/abc"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ResolveDeepLink(bad) error = %v, want ErrValidation", err)
	}
	if err := h.planner.GoToday(ctx); err != nil {
		t.Fatalf("GoToday() error = %v", err)
	}
	if got := h.planner.Snapshot().Board.WeekStart().String(); got != "2024-06-10" {
		t.Fatalf("week start = %s, want 2024-06-10", got)
	}
}

// TestCreateToggleAndSearch covers the popup editing operations.
func TestCreateToggleAndSearch(t *testing.T) {
	first := dayTask(t, 1, "2024-06-10", 0)
	first.Title = "Buy milk"
	second := dayTask(t, 2, "2024-06-10", 1)
	second.Title = "Call the plumber"
	h := newHarness(t, first, second)
	ctx := context.Background()
	day := domain.DayKey(mustDate(t, "2024-06-10"))

	created, err := h.planner.CreateTask(ctx, domain.TaskInput{Title: "Water plants", DueDate: datePtr(t, "2024-06-10")})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if got, want := h.ids(t, day), []int{1, 2, created.ID}; !slices.Equal(got, want) {
		t.Fatalf("day ids = %v, want %v", got, want)
	}
	h.assertDense(t, day)

	toggled, err := h.planner.ToggleComplete(ctx, 1)
	if err != nil {
		t.Fatalf("ToggleComplete() error = %v", err)
	}
	if !toggled.Completed || !h.api.tasks[1].Completed {
		t.Fatal("task 1 not completed after toggle")
	}

	results, err := h.planner.Search(ctx, "plmbr")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 || results[0].ID != 2 {
		t.Fatalf("results = %+v, want task 2 first", results)
	}
	if results, _ := h.planner.Search(ctx, "   "); len(results) != 0 {
		t.Fatalf("blank search results = %+v, want none", results)
	}

	if err := h.planner.SetInboxTitle(ctx, "Someday"); err != nil {
		t.Fatalf("SetInboxTitle() error = %v", err)
	}
	if h.planner.InboxTitle() != "Someday" || h.api.inboxTitle != "Someday" {
		t.Fatalf("inbox title = %q / %q, want Someday", h.planner.InboxTitle(), h.api.inboxTitle)
	}
}

// TestUpdateTaskMovesDateAndRefreshes verifies popup edits of the due date resync the board.
func TestUpdateTaskMovesDateAndRefreshes(t *testing.T) {
	h := newHarness(t, dayTask(t, 1, "2024-06-10", 0), dayTask(t, 2, "2024-06-10", 1))
	ctx := context.Background()
	title := "renamed"
	due := mustDate(t, "2024-06-13")

	updated, err := h.planner.UpdateTask(ctx, 1, domain.TaskPatch{Title: &title, DueDate: &due})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Title != "renamed" || updated.DueDate.String() != "2024-06-13" {
		t.Fatalf("updated = %+v", updated)
	}
	if got, want := h.ids(t, domain.DayKey(due)), []int{1}; !slices.Equal(got, want) {
		t.Fatalf("thursday ids = %v, want %v", got, want)
	}
	if _, err := h.planner.UpdateTask(ctx, 1, domain.TaskPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("UpdateTask(empty) error = %v, want ErrValidation", err)
	}
}

// TestCommitPendingFlushesBoth verifies quitting commits every armed action.
func TestCommitPendingFlushesBoth(t *testing.T) {
	h := recurringHarness(t)
	ctx := context.Background()
	_ = h.planner.DeleteTask(ctx, 1)
	_ = h.planner.ClearRecurrence(ctx, 7)

	h.planner.CommitPending()
	if !slices.Equal(h.api.deleted, []int{1}) || h.api.tasks[7].IsRecurring() {
		t.Fatalf("deleted = %v stored 7 = %+v, want both committed", h.api.deleted, h.api.tasks[7])
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0", h.sched.Pending())
	}
}
