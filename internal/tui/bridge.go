package tui

import (
	"sync"

	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
)

// refreshMsg asks the model to re-read the planner snapshot.
type refreshMsg struct {
	keys []domain.ContainerKey
}

// notifyMsg carries a planner notification.
type notifyMsg struct {
	text    string
	isError bool
}

// clearRecurrenceMsg tells an open details popup that its recurrence was removed.
type clearRecurrenceMsg struct {
	taskID int
}

// Sender delivers messages to a running program.
type Sender interface {
	Send(tea.Msg)
}

// Bridge implements app.View for the terminal UI. Planner callbacks arrive while the planner
// lock is held, so they are queued and delivered from a separate goroutine.
type Bridge struct {
	mu      sync.Mutex
	queue   []tea.Msg
	sender  Sender
	wake    chan struct{}
	done    chan struct{}
	running bool
}

var _ app.View = (*Bridge)(nil)

// NewBridge constructs an unattached bridge. Messages queue until Attach.
func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// Attach starts delivering queued and future messages to sender.
func (b *Bridge) Attach(sender Sender) {
	b.mu.Lock()
	b.sender = sender
	start := !b.running && sender != nil
	b.running = b.running || start
	b.mu.Unlock()
	if start {
		go b.loop()
	}
	b.signal()
}

// Close stops delivery. Pending messages are dropped.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

// RenderContainer implements app.View.
func (b *Bridge) RenderContainer(key domain.ContainerKey) {
	b.push(refreshMsg{keys: []domain.ContainerKey{key}})
}

// Notify implements app.View.
func (b *Bridge) Notify(message string, isError bool) {
	b.push(notifyMsg{text: message, isError: isError})
}

// ClearRecurrenceUI implements app.View.
func (b *Bridge) ClearRecurrenceUI(taskID int) {
	b.push(clearRecurrenceMsg{taskID: taskID})
}

// Drain removes and returns every queued message. Consecutive refreshes are merged.
func (b *Bridge) Drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.takeLocked()
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) takeLocked() []tea.Msg {
	if len(b.queue) == 0 {
		return nil
	}
	out := make([]tea.Msg, 0, len(b.queue))
	for _, msg := range b.queue {
		if refresh, ok := msg.(refreshMsg); ok && len(out) > 0 {
			if last, ok := out[len(out)-1].(refreshMsg); ok {
				last.keys = append(last.keys, refresh.keys...)
				out[len(out)-1] = last
				continue
			}
		}
		out = append(out, msg)
	}
	b.queue = nil
	return out
}

func (b *Bridge) loop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		b.mu.Lock()
		sender := b.sender
		msgs := b.takeLocked()
		b.mu.Unlock()
		for _, msg := range msgs {
			sender.Send(msg)
		}
	}
}
