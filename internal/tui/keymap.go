package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveLeft     key.Binding
	moveRight    key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	prevWeek     key.Binding
	nextWeek     key.Binding
	today        key.Binding
	openTask     key.Binding
	addTask      key.Binding
	grabTask     key.Binding
	reorderUp    key.Binding
	reorderDown  key.Binding
	moveTaskPrev key.Binding
	moveTaskNext key.Binding
	toggleDone   key.Binding
	deleteTask   key.Binding
	undo         key.Binding
	search       key.Binding
	settings     key.Binding
	renameInbox  key.Binding
}

// newKeyMap builds the bindings with help text resolved through label.
func newKeyMap(label func(string) string) keyMap {
	if label == nil {
		label = func(id string) string { return id }
	}
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", label("key_quit"))),
		reload:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", label("key_reload"))),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", label("key_help"))),
		moveLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", label("key_left"))),
		moveRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", label("key_right"))),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", label("key_up"))),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", label("key_down"))),
		prevWeek:     key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", label("key_prev_week"))),
		nextWeek:     key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", label("key_next_week"))),
		today:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", label("key_today"))),
		openTask:     key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", label("key_open"))),
		addTask:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", label("key_new"))),
		grabTask:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", label("key_grab"))),
		reorderUp:    key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", label("key_reorder_up"))),
		reorderDown:  key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", label("key_reorder_down"))),
		moveTaskPrev: key.NewBinding(key.WithKeys("["), key.WithHelp("[", label("key_move_prev"))),
		moveTaskNext: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", label("key_move_next"))),
		toggleDone:   key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", label("key_toggle"))),
		deleteTask:   key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", label("key_delete"))),
		undo:         key.NewBinding(key.WithKeys("u", "ctrl+z"), key.WithHelp("u", label("key_undo"))),
		search:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", label("key_search"))),
		settings:     key.NewBinding(key.WithKeys(","), key.WithHelp(",", label("key_settings"))),
		renameInbox:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", label("key_rename_inbox"))),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.openTask, k.addTask, k.grabTask, k.toggleDone, k.deleteTask, k.undo, k.search, k.toggleHelp, k.quit,
	}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.prevWeek, k.nextWeek, k.today},
		{k.openTask, k.addTask, k.toggleDone, k.deleteTask, k.undo, k.search},
		{k.grabTask, k.reorderUp, k.reorderDown, k.moveTaskPrev, k.moveTaskNext},
		{k.renameInbox, k.settings, k.reload, k.toggleHelp, k.quit},
	}
}
