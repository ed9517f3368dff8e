package app

import "github.com/evanschultz/weekplan/internal/domain"

// DragState is the lifecycle state of a drag session.
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragDropped
	DragCancelled
)

func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	case DragCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// DropIndicator is the single insertion marker shown while dragging.
type DropIndicator struct {
	Container domain.ContainerKey
	Index     int
}

// MoveRequest is handed to MoveCommand when a drag is dropped.
type MoveRequest struct {
	Task          domain.Task
	Source        domain.ContainerKey
	OriginalDue   *domain.Date
	OriginalOrder int
	Target        domain.ContainerKey
	Index         int
}

// CrossContainer reports whether the drop changes the task's container.
func (r MoveRequest) CrossContainer() bool {
	return r.Source != r.Target
}

// containerResolver looks up drop targets by key.
type containerResolver interface {
	Container(domain.ContainerKey) (*OrderedContainer, bool)
}

// DragSession tracks the one task being dragged and its drop indicator.
type DragSession struct {
	targets   containerResolver
	state     DragState
	last      DragState
	task      domain.Task
	source    domain.ContainerKey
	indicator *DropIndicator
}

func NewDragSession(targets containerResolver) *DragSession {
	return &DragSession{targets: targets}
}

// Start begins dragging task out of source. Any dangling session is cleared first.
func (d *DragSession) Start(task domain.Task, source domain.ContainerKey) {
	if d.state == DragDragging {
		d.finish(DragCancelled)
	}
	d.state = DragDragging
	d.task = task.Clone()
	d.source = source
	d.indicator = nil
}

// Over recomputes the indicator for a pointer over key; pointers over unknown targets clear it.
func (d *DragSession) Over(key domain.ContainerKey, pointerY float64) bool {
	if d.state != DragDragging {
		return false
	}
	c, ok := d.targets.Container(key)
	if !ok {
		d.indicator = nil
		return false
	}
	d.indicator = &DropIndicator{Container: key, Index: c.InsertionIndex(pointerY, d.task.ID)}
	return true
}

// Leave removes the indicator when the pointer is outside every container.
func (d *DragSession) Leave() {
	d.indicator = nil
}

// Drop ends the session over key. A drop outside a valid container cancels.
func (d *DragSession) Drop(key domain.ContainerKey, pointerY float64) (MoveRequest, bool) {
	if d.state != DragDragging {
		return MoveRequest{}, false
	}
	c, ok := d.targets.Container(key)
	if !ok {
		d.finish(DragCancelled)
		return MoveRequest{}, false
	}
	req := MoveRequest{
		Task:          d.task.Clone(),
		Source:        d.source,
		OriginalDue:   d.task.Clone().DueDate,
		OriginalOrder: d.task.Order,
		Target:        key,
		Index:         c.InsertionIndex(pointerY, d.task.ID),
	}
	d.finish(DragDropped)
	return req, true
}

// DropAtIndicator drops at the current indicator, cancelling when there is none.
func (d *DragSession) DropAtIndicator() (MoveRequest, bool) {
	if d.state != DragDragging {
		return MoveRequest{}, false
	}
	if d.indicator == nil {
		d.finish(DragCancelled)
		return MoveRequest{}, false
	}
	req := MoveRequest{
		Task:          d.task.Clone(),
		Source:        d.source,
		OriginalDue:   d.task.Clone().DueDate,
		OriginalOrder: d.task.Order,
		Target:        d.indicator.Container,
		Index:         d.indicator.Index,
	}
	d.finish(DragDropped)
	return req, true
}

// MoveIndicator sets the indicator directly, for keyboard-driven drags.
func (d *DragSession) MoveIndicator(key domain.ContainerKey, index int) bool {
	if d.state != DragDragging {
		return false
	}
	c, ok := d.targets.Container(key)
	if !ok {
		return false
	}
	limit := c.Len()
	if c.IndexOf(d.task.ID) >= 0 {
		limit--
	}
	d.indicator = &DropIndicator{Container: key, Index: max(0, min(index, limit))}
	return true
}

// Cancel abandons the session without any backend call.
func (d *DragSession) Cancel() bool {
	if d.state != DragDragging {
		return false
	}
	d.finish(DragCancelled)
	return true
}

// SourceRemoved cancels the session if the dragged task disappeared.
func (d *DragSession) SourceRemoved(id int) {
	if d.state == DragDragging && d.task.ID == id {
		d.finish(DragCancelled)
	}
}

func (d *DragSession) finish(outcome DragState) {
	d.last = outcome
	d.state = DragIdle
	d.task = domain.Task{}
	d.source = domain.ContainerKey{}
	d.indicator = nil
}

func (d *DragSession) State() DragState {
	return d.state
}

// LastOutcome returns how the previous session ended.
func (d *DragSession) LastOutcome() DragState {
	return d.last
}

// Task returns the dragged task.
func (d *DragSession) Task() (domain.Task, bool) {
	if d.state != DragDragging {
		return domain.Task{}, false
	}
	return d.task.Clone(), true
}

// Source returns the container the drag started from.
func (d *DragSession) Source() (domain.ContainerKey, bool) {
	if d.state != DragDragging {
		return domain.ContainerKey{}, false
	}
	return d.source, true
}

func (d *DragSession) Indicator() (DropIndicator, bool) {
	if d.indicator == nil {
		return DropIndicator{}, false
	}
	return *d.indicator, true
}
