package app

import (
	"context"
	"errors"

	"github.com/evanschultz/weekplan/internal/domain"
)

// environment is the state and collaborators shared by the core components of one Planner.
type environment struct {
	api    TaskAPI
	view   View
	clock  Clock
	log    Logger
	text   Messages
	board  *Board
	state  *AppState
	resync func(context.Context)
}

func (e *environment) notify(id string, isError bool) {
	e.view.Notify(e.text.Text(id, nil), isError)
}

// notifyFailure reports err under id, preferring the not-found message when the task vanished.
func (e *environment) notifyFailure(id string, err error) {
	if errors.Is(err, ErrNotFound) {
		id = MsgTaskNotFound
	}
	e.notify(id, true)
}

// renderAll re-renders every displayed container.
func (e *environment) renderAll() {
	for _, key := range e.board.Keys() {
		e.view.RenderContainer(key)
	}
}

// renderTask re-renders the container holding a task with the given due date, if displayed.
func (e *environment) renderTask(task domain.Task) {
	key := task.Container()
	if e.board.Displays(key) {
		e.view.RenderContainer(key)
	}
}
