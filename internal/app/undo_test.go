package app

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
)

func titled(id int, title string) domain.Task {
	return domain.Task{ID: id, Title: title, RecurrenceInterval: 1}
}

type undoRecorder struct {
	calls []string
}

func (r *undoRecorder) handlers(commitErr error) UndoHandlers {
	return UndoHandlers{
		Apply:  func(s domain.Task) { r.calls = append(r.calls, "apply:"+s.Title) },
		Commit: func(s domain.Task) error { r.calls = append(r.calls, "commit:"+s.Title); return commitErr },
		Revert: func(s domain.Task) { r.calls = append(r.calls, "revert:"+s.Title) },
		Failed: func(s domain.Task, _ error) { r.calls = append(r.calls, "failed:"+s.Title) },
	}
}

// TestUndoableActionLifecycle covers arm, undo and timer expiry.
func TestUndoableActionLifecycle(t *testing.T) {
	sched := NewFakeScheduler()
	action := NewUndoableAction(UndoDelete, sched, fixedNow, nil)
	rec := &undoRecorder{}

	action.Arm(titled(1, "a"), rec.handlers(nil), 5*time.Second)
	if !action.Armed() || action.State() != UndoArmed {
		t.Fatalf("state = %s, want armed", action.State())
	}
	if got := action.ExpiresAt(); !got.Equal(fixedNow().Add(5 * time.Second)) {
		t.Fatalf("ExpiresAt() = %v", got)
	}
	if !action.Undo() {
		t.Fatal("Undo() = false, want true")
	}
	if action.Undo() {
		t.Fatal("second Undo() = true, want false")
	}
	sched.Advance(10 * time.Second)
	if want := []string{"apply:a", "revert:a"}; !slices.Equal(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if action.LastOutcome() != UndoReverted {
		t.Fatalf("LastOutcome() = %s, want reverted", action.LastOutcome())
	}

	action.Arm(titled(2, "b"), rec.handlers(nil), 5*time.Second)
	sched.Advance(5 * time.Second)
	if want := []string{"apply:a", "revert:a", "apply:b", "commit:b"}; !slices.Equal(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if action.LastOutcome() != UndoCommitted || action.Armed() {
		t.Fatalf("state = %s last = %s, want idle after commit", action.State(), action.LastOutcome())
	}
}

// TestUndoableActionRearmCommitsPrevious verifies the previous action commits before the new apply.
func TestUndoableActionRearmCommitsPrevious(t *testing.T) {
	sched := NewFakeScheduler()
	action := NewUndoableAction(UndoRecurrenceClear, sched, fixedNow, nil)
	rec := &undoRecorder{}

	action.Arm(titled(1, "a"), rec.handlers(nil), time.Second)
	action.Arm(titled(2, "b"), rec.handlers(nil), time.Second)
	if want := []string{"apply:a", "commit:a", "apply:b"}; !slices.Equal(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if id, ok := action.TaskID(); !ok || id != 2 {
		t.Fatalf("TaskID() = %d, %v, want 2", id, ok)
	}
	if sched.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", sched.Pending())
	}
}

// TestUndoableActionIgnoresStaleFire verifies a timer from an earlier arm cannot commit a later one.
func TestUndoableActionIgnoresStaleFire(t *testing.T) {
	action := NewUndoableAction(UndoDelete, NewFakeScheduler(), fixedNow, nil)
	rec := &undoRecorder{}
	action.Arm(titled(1, "a"), rec.handlers(nil), time.Second)

	action.fire("stale-token")
	if !action.Armed() {
		t.Fatal("stale fire settled the action")
	}
}

// TestUndoableActionCommitFailure verifies Failed receives commit errors.
func TestUndoableActionCommitFailure(t *testing.T) {
	action := NewUndoableAction(UndoDelete, NewFakeScheduler(), fixedNow, nil)
	rec := &undoRecorder{}
	action.Arm(titled(1, "a"), rec.handlers(errors.New("boom")), time.Second)

	if !action.Commit() {
		t.Fatal("Commit() = false, want true")
	}
	if want := []string{"apply:a", "commit:a", "failed:a"}; !slices.Equal(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if action.Commit() {
		t.Fatal("Commit() on idle action = true, want false")
	}
}

// TestUndoableActionGuardWrapsTimer verifies timer callbacks run inside the guard.
func TestUndoableActionGuardWrapsTimer(t *testing.T) {
	sched := NewFakeScheduler()
	guarded := 0
	action := NewUndoableAction(UndoDelete, sched, fixedNow, func(fn func()) {
		guarded++
		fn()
	})
	action.Arm(inboxTask(1, 0), UndoHandlers{}, time.Second)
	sched.Advance(time.Second)
	if guarded != 1 || action.Armed() {
		t.Fatalf("guarded = %d armed = %v, want 1/false", guarded, action.Armed())
	}
}
