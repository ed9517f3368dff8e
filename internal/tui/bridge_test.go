package tui

import (
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/weekplan/internal/domain"
)

// chanSender records delivered messages.
type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) {
	c <- msg
}

func receive(t *testing.T, ch chanSender) tea.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridge delivery")
		return nil
	}
}

func TestBridgeDrainMergesRefreshes(t *testing.T) {
	b := NewBridge()
	wed := domain.DayKey(wednesday)
	b.RenderContainer(wed)
	b.RenderContainer(domain.InboxKey())
	b.Notify("Task deleted", false)
	b.RenderContainer(wed)

	msgs := b.Drain()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %#v", len(msgs), msgs)
	}
	refresh, ok := msgs[0].(refreshMsg)
	if !ok || len(refresh.keys) != 2 || refresh.keys[1] != domain.InboxKey() {
		t.Fatalf("expected merged refresh, got %#v", msgs[0])
	}
	if note, ok := msgs[1].(notifyMsg); !ok || note.text != "Task deleted" || note.isError {
		t.Fatalf("expected notification, got %#v", msgs[1])
	}
	if b.Drain() != nil {
		t.Fatal("expected empty queue after drain")
	}
}

func TestBridgeDeliversQueuedMessagesAfterAttach(t *testing.T) {
	b := NewBridge()
	t.Cleanup(b.Close)
	b.Notify("Could not move task", true)

	ch := make(chanSender, 8)
	b.Attach(ch)
	if note, ok := receive(t, ch).(notifyMsg); !ok || !note.isError {
		t.Fatalf("expected queued error notification, got %#v", note)
	}

	b.ClearRecurrenceUI(7)
	if msg, ok := receive(t, ch).(clearRecurrenceMsg); !ok || msg.taskID != 7 {
		t.Fatalf("expected recurrence message, got %#v", msg)
	}
}

func TestModelShowsBridgeNotifications(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	m = applyMsg(t, m, notifyMsg{text: "Could not save task order", isError: true})
	if !m.statusErr || m.status != "Could not save task order" {
		t.Fatalf("expected error status, got %q", m.status)
	}

	a := f.create(t, domain.TaskInput{Title: "Alpha", DueDate: dateRef(wednesday)})
	if err := f.planner.Reload(t.Context()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	m = applyMsg(t, m, refreshMsg{keys: []domain.ContainerKey{domain.DayKey(wednesday)}})
	if _, ok := m.snap.Board.Task(a.ID); !ok {
		t.Fatal("expected refresh to pick up the reloaded board")
	}
}
