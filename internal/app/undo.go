package app

import (
	"time"

	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/google/uuid"
)

// UndoKind names an undoable destructive action.
type UndoKind string

const (
	UndoDelete          UndoKind = "delete"
	UndoRecurrenceClear UndoKind = "recurrence-clear"
)

// Default undo windows.
const (
	DefaultDeleteUndoWindow     = 7 * time.Second
	DefaultRecurrenceUndoWindow = 7 * time.Second
)

// UndoState is the lifecycle state of an undoable action.
type UndoState int

const (
	UndoNone UndoState = iota
	UndoArmed
	UndoCommitted
	UndoReverted
)

func (s UndoState) String() string {
	switch s {
	case UndoNone:
		return "none"
	case UndoArmed:
		return "armed"
	case UndoCommitted:
		return "committed"
	case UndoReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// UndoHandlers are the callbacks of one armed action. Apply runs at arm time; exactly one of
// Commit or Revert runs later. Failed receives Commit errors; the optimistic state is kept.
type UndoHandlers struct {
	Apply  func(snapshot domain.Task)
	Commit func(snapshot domain.Task) error
	Revert func(snapshot domain.Task)
	Failed func(snapshot domain.Task, err error)
}

// UndoableAction is a timed optimistic action for one kind.
type UndoableAction struct {
	kind      UndoKind
	sched     Scheduler
	clock     Clock
	guard     func(func())
	state     UndoState
	last      UndoState
	snapshot  domain.Task
	handlers  UndoHandlers
	timer     Timer
	token     string
	expiresAt time.Time
}

// NewUndoableAction constructs an idle action. guard wraps timer callbacks, usually to take
// the owner's lock; nil runs them directly.
func NewUndoableAction(kind UndoKind, sched Scheduler, clock Clock, guard func(func())) *UndoableAction {
	if sched == nil {
		sched = RealScheduler{}
	}
	if clock == nil {
		clock = time.Now
	}
	if guard == nil {
		guard = func(fn func()) { fn() }
	}
	return &UndoableAction{kind: kind, sched: sched, clock: clock, guard: guard}
}

// Arm applies the action optimistically and starts the commit timer. An action already armed
// is committed first, before the new optimistic change is applied.
func (a *UndoableAction) Arm(snapshot domain.Task, handlers UndoHandlers, d time.Duration) {
	if a.state == UndoArmed {
		a.Commit()
	}
	token := uuid.NewString()
	a.state = UndoArmed
	a.snapshot = snapshot.Clone()
	a.handlers = handlers
	a.token = token
	a.expiresAt = a.clock().Add(d)
	if handlers.Apply != nil {
		handlers.Apply(a.snapshot.Clone())
	}
	a.timer = a.sched.AfterFunc(d, func() {
		a.guard(func() { a.fire(token) })
	})
}

// Undo cancels the timer and reverts. Only the first call after Arm has any effect.
func (a *UndoableAction) Undo() bool {
	if a.state != UndoArmed {
		return false
	}
	snapshot, handlers := a.settle(UndoReverted)
	if handlers.Revert != nil {
		handlers.Revert(snapshot)
	}
	return true
}

// Commit performs the permanent action now instead of waiting for the timer.
func (a *UndoableAction) Commit() bool {
	if a.state != UndoArmed {
		return false
	}
	snapshot, handlers := a.settle(UndoCommitted)
	if handlers.Commit == nil {
		return true
	}
	if err := handlers.Commit(snapshot); err != nil && handlers.Failed != nil {
		handlers.Failed(snapshot, err)
	}
	return true
}

// fire commits on timer expiry; fires from a superseded arm are ignored.
func (a *UndoableAction) fire(token string) {
	if a.state != UndoArmed || a.token != token {
		return
	}
	a.Commit()
}

// settle clears armed state before the outcome callback runs, so callbacks may re-arm.
func (a *UndoableAction) settle(outcome UndoState) (domain.Task, UndoHandlers) {
	if a.timer != nil {
		a.timer.Stop()
	}
	snapshot, handlers := a.snapshot, a.handlers
	a.state = UndoNone
	a.last = outcome
	a.snapshot = domain.Task{}
	a.handlers = UndoHandlers{}
	a.timer = nil
	a.token = ""
	a.expiresAt = time.Time{}
	return snapshot, handlers
}

func (a *UndoableAction) Kind() UndoKind {
	return a.kind
}

func (a *UndoableAction) State() UndoState {
	return a.state
}

// LastOutcome returns how the previous arm ended.
func (a *UndoableAction) LastOutcome() UndoState {
	return a.last
}

// Armed reports whether an action is pending.
func (a *UndoableAction) Armed() bool {
	return a.state == UndoArmed
}

// TaskID returns the id of the pending action's task.
func (a *UndoableAction) TaskID() (int, bool) {
	if a.state != UndoArmed {
		return 0, false
	}
	return a.snapshot.ID, true
}

// Snapshot returns the pre-action copy of the pending task.
func (a *UndoableAction) Snapshot() (domain.Task, bool) {
	if a.state != UndoArmed {
		return domain.Task{}, false
	}
	return a.snapshot.Clone(), true
}

// ExpiresAt returns when the pending action commits.
func (a *UndoableAction) ExpiresAt() time.Time {
	return a.expiresAt
}
