package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/weekplan/internal/app"
)

// EventDateChange is pushed by the backend when the calendar day rolls over.
const EventDateChange = "date-change"

// DefaultReconnectDelay is the wait before re-opening a dropped event stream.
const DefaultReconnectDelay = 5 * time.Second

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
	ID   string
}

// Subscribe streams events from /api/events until ctx is done, re-opening the stream after
// reconnect whenever it drops. handle runs on the subscriber goroutine.
func (c *Client) Subscribe(ctx context.Context, reconnect time.Duration, handle func(Event)) error {
	if handle == nil {
		return errors.New("event handler is required")
	}
	if reconnect <= 0 {
		reconnect = DefaultReconnectDelay
	}
	lastID := ""
	for {
		err := c.stream(ctx, &lastID, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event stream dropped", "err", err, "retry_in", reconnect)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnect):
		}
	}
}

// SubscribeDateChanges calls onChange for every date-change event.
func (c *Client) SubscribeDateChanges(ctx context.Context, reconnect time.Duration, onChange func()) error {
	return c.Subscribe(ctx, reconnect, func(ev Event) {
		if ev.Name == EventDateChange {
			onChange()
		}
	})
}

func (c *Client) stream(ctx context.Context, lastID *string, handle func(Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("events", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}
	resp, err := c.events.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w: %w", app.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return statusError(http.MethodGet, "events", resp)
	}
	c.log.Info("event stream connected")
	return readEvents(resp, lastID, handle)
}

// readEvents parses the text/event-stream framing: fields accumulate until a blank line.
func readEvents(resp *http.Response, lastID *string, handle func(Event)) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	var ev Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 || ev.Name != "" {
				ev.Data = strings.Join(data, "\n")
				if ev.Name == "" {
					ev.Name = "message"
				}
				if ev.ID != "" {
					*lastID = ev.ID
				}
				handle(ev)
			}
			ev, data = Event{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w: %w", app.ErrNetwork, err)
	}
	return fmt.Errorf("event stream closed: %w", app.ErrNetwork)
}
