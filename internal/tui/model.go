package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
	"github.com/evanschultz/weekplan/internal/locale"
)

// Planner is the application service driven by the board.
type Planner interface {
	Load(context.Context) error
	Reload(context.Context) error
	ShowWeek(context.Context, int) error
	GoToday(context.Context) error
	ShowDate(context.Context, domain.Date) error
	Snapshot() app.Snapshot
	StartDrag(int) bool
	SetLayout(domain.ContainerKey, map[int]app.Span)
	DragOver(domain.ContainerKey, float64) bool
	DragLeave()
	MoveIndicator(domain.ContainerKey, int) bool
	CancelDrag() bool
	Drop(context.Context, domain.ContainerKey, float64) error
	DropAtIndicator(context.Context) error
	MoveTask(context.Context, int, domain.ContainerKey, int) error
	OpenTaskDetails(context.Context, int) (domain.Task, error)
	CloseTaskDetails()
	DeleteTask(context.Context, int) error
	ClearRecurrence(context.Context, int) error
	UndoLatest() bool
	ToggleComplete(context.Context, int) (domain.Task, error)
	UpdateTask(context.Context, int, domain.TaskPatch) (domain.Task, error)
	CreateTask(context.Context, domain.TaskInput) (domain.Task, error)
	Search(context.Context, string) ([]domain.Task, error)
	SetInboxTitle(context.Context, string) error
	ResolveDeepLink(context.Context, string) (domain.Task, error)
}

// inputMode is the active interaction layer.
type inputMode int

const (
	modeNone inputMode = iota
	modeGrab
	modeDetails
	modeEditTitle
	modeEditDescription
	modeNewTask
	modeSearch
	modeSearchResults
	modeRenameInbox
	modeSettings
)

// Model is the week board.
type Model struct {
	planner Planner
	bridge  *Bridge
	text    *locale.Catalog

	ready  bool
	loaded bool
	width  int
	height int
	err    error

	status    string
	statusErr bool

	help help.Model
	keys keyMap
	md   *markdownRenderer

	prefs          domain.Preferences
	prefsStore     PreferencesStore
	darkBackground bool
	copyText       ClipboardWriter
	deepLink       string
	tickEvery      time.Duration
	ticking        bool
	now            func() time.Time

	snap app.Snapshot
	col  int
	row  int

	mode       inputMode
	details    domain.Task
	input      textinput.Model
	editor     textarea.Model
	results    []domain.Task
	resultIdx  int
	settingIdx int

	pressID  int
	dragging bool
	grabCol  int
	grabIdx  int
}

// loadedMsg carries the result of the initial load.
type loadedMsg struct {
	snap app.Snapshot
	err  error
}

// actionMsg carries the result of one planner call.
type actionMsg struct {
	snap         app.Snapshot
	err          error
	task         *domain.Task
	openDetails  bool
	closeDetails bool
	focusID      int
}

// searchResultsMsg carries search matches.
type searchResultsMsg struct {
	results []domain.Task
	err     error
}

// clipboardMsg reports a copied deep link.
type clipboardMsg struct {
	link string
	err  error
}

// prefsSavedMsg reports a persisted settings change.
type prefsSavedMsg struct {
	err error
}

// tickMsg refreshes the undo countdown.
type tickMsg struct{}

// NewModel constructs the board over planner.
func NewModel(planner Planner, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		planner:   planner,
		help:      h,
		md:        &markdownRenderer{},
		prefs:     domain.DefaultPreferences(),
		copyText:  clipboard.WriteAll,
		tickEvery: time.Second,
		now:       time.Now,
		row:       -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if m.text == nil {
		m.text, _ = locale.New(m.prefs.Language)
	} else {
		m.text.SetLanguage(m.prefs.Language)
	}
	m.keys = newKeyMap(m.label)
	m.status = m.label("loading")
	return m
}

// Init loads the current week.
func (m Model) Init() tea.Cmd {
	return m.loadCmd
}

func (m Model) loadCmd() tea.Msg {
	err := m.planner.Load(context.Background())
	return loadedMsg{snap: m.planner.Snapshot(), err: err}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		if m.dragging {
			m.publishLayout()
		}
		return m, nil

	case loadedMsg:
		m.snap = msg.snap
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.clampSelection()
		if m.status == m.label("loading") {
			m.status = ""
		}
		if link := m.deepLink; link != "" {
			m.deepLink = ""
			return m, m.openLinkCmd(link)
		}
		return m, nil

	case actionMsg:
		return m.applyAction(msg)

	case refreshMsg:
		return m, m.snapshotCmd()

	case notifyMsg:
		m.status = msg.text
		m.statusErr = msg.isError
		return m, nil

	case clearRecurrenceMsg:
		if m.detailsOpen() && m.details.ID == msg.taskID {
			_ = m.details.Apply(domain.ClearRecurrencePatch())
		}
		return m, nil

	case searchResultsMsg:
		if msg.err != nil {
			m.mode = modeNone
			return m, nil
		}
		m.results = msg.results
		m.resultIdx = 0
		m.mode = modeSearchResults
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.setStatus(m.label("copy_failed"), true)
			return m, nil
		}
		m.setStatus(m.labelf("link_copied", map[string]any{"Link": msg.link}), false)
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.setStatus(m.label("prefs_failed"), true)
		}
		return m, nil

	case tickMsg:
		m.ticking = false
		return m, m.snapshotCmd()

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m.updateFocusedInput(msg)
	}
}

// applyAction folds a planner result into the model.
func (m Model) applyAction(msg actionMsg) (tea.Model, tea.Cmd) {
	m.snap = msg.snap
	if msg.err != nil && silentFailure(msg.err) {
		m.setStatus(msg.err.Error(), true)
	}
	if msg.focusID != 0 {
		m.focusTask(msg.focusID)
	}
	m.clampSelection()
	switch {
	case msg.closeDetails:
		if m.detailsOpen() {
			m.mode = modeNone
		}
	case msg.openDetails && msg.task != nil:
		m.details = *msg.task
		m.mode = modeDetails
		m.focusTask(msg.task.ID)
	case msg.task != nil && m.detailsOpen() && m.details.ID == msg.task.ID:
		m.details = *msg.task
	}
	if m.detailsOpen() && msg.task == nil && m.snap.Board != nil {
		if fresh, ok := m.snap.Board.Task(m.details.ID); ok {
			m.details = fresh
		}
	}
	cmd := m.ensureTick()
	return m, cmd
}

// silentFailure reports errors the planner does not announce itself.
func silentFailure(err error) bool {
	for _, target := range []error{app.ErrValidation, app.ErrUnsupported, app.ErrNotRecurring, app.ErrTaskNotVisible, app.ErrNoSuchContainer} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m Model) snapshotCmd() tea.Cmd {
	planner := m.planner
	return func() tea.Msg {
		return actionMsg{snap: planner.Snapshot()}
	}
}

// run executes fn against the planner and returns the refreshed snapshot.
func (m Model) run(fn func(context.Context) error) tea.Cmd {
	planner := m.planner
	return func() tea.Msg {
		err := fn(context.Background())
		return actionMsg{snap: planner.Snapshot(), err: err}
	}
}

// runTask is run for calls that return the touched task.
func (m Model) runTask(fn func(context.Context) (domain.Task, error), open bool) tea.Cmd {
	planner := m.planner
	return func() tea.Msg {
		task, err := fn(context.Background())
		msg := actionMsg{snap: planner.Snapshot(), err: err}
		if err == nil {
			msg.task = &task
			msg.openDetails = open
			msg.focusID = task.ID
		}
		return msg
	}
}

func (m Model) openLinkCmd(link string) tea.Cmd {
	planner := m.planner
	return m.runTask(func(ctx context.Context) (domain.Task, error) {
		return planner.ResolveDeepLink(ctx, link)
	}, true)
}

// ensureTick schedules the undo countdown while actions are pending.
func (m *Model) ensureTick() tea.Cmd {
	if m.ticking || m.tickEvery <= 0 || len(m.snap.Pending) == 0 {
		return nil
	}
	m.ticking = true
	return tea.Tick(m.tickEvery, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// handleKey routes a key press to the active mode.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.err != nil {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case msg.String() == "r" || key.Matches(msg, m.keys.reload):
			m.err = nil
			return m, m.loadCmd
		}
		return m, nil
	}
	if !m.loaded {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.help.ShowAll {
		if key.Matches(msg, m.keys.toggleHelp) || msg.String() == "esc" {
			m.help.ShowAll = false
		}
		return m, nil
	}
	if m.dragging {
		if msg.String() == "esc" {
			m.planner.CancelDrag()
			m.dragging = false
			m.pressID = 0
			m.snap = m.planner.Snapshot()
		}
		return m, nil
	}
	switch m.mode {
	case modeGrab:
		return m.handleGrabKey(msg)
	case modeDetails:
		return m.handleDetailsKey(msg)
	case modeEditTitle, modeNewTask, modeRenameInbox, modeSearch:
		return m.handleInputKey(msg)
	case modeEditDescription:
		return m.handleEditorKey(msg)
	case modeSearchResults:
		return m.handleResultsKey(msg)
	case modeSettings:
		return m.handleSettingsKey(msg)
	}
	return m.handleBoardKey(msg)
}

// handleBoardKey handles keys while no overlay is open.
func (m Model) handleBoardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	planner := m.planner
	task, hasTask := m.selectedTask()
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = true
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.run(planner.Reload)
	case key.Matches(msg, m.keys.moveLeft):
		m.selectColumn(m.col - 1)
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectColumn(m.col + 1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.row = max(0, m.row-1)
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.row++
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.prevWeek):
		return m, m.run(func(ctx context.Context) error { return planner.ShowWeek(ctx, -1) })
	case key.Matches(msg, m.keys.nextWeek):
		return m, m.run(func(ctx context.Context) error { return planner.ShowWeek(ctx, 1) })
	case key.Matches(msg, m.keys.today):
		return m, m.run(planner.GoToday)
	case key.Matches(msg, m.keys.undo):
		return m, m.run(func(context.Context) error {
			planner.UndoLatest()
			return nil
		})
	case key.Matches(msg, m.keys.addTask):
		m.mode = modeNewTask
		m.input = m.newModalInput(m.label("new_task_prompt"), m.label("new_task_placeholder"), "", 200)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.input = m.newModalInput(m.label("search_prompt"), m.label("search_placeholder"), "", 120)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.settings):
		m.mode = modeSettings
		m.settingIdx = 0
		return m, nil
	case key.Matches(msg, m.keys.renameInbox):
		m.mode = modeRenameInbox
		m.input = m.newModalInput(m.label("inbox_title_prompt"), "", m.snap.InboxTitle, 80)
		return m, m.input.Focus()
	}
	if !hasTask {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.openTask):
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			return planner.OpenTaskDetails(ctx, task.ID)
		}, true)
	case key.Matches(msg, m.keys.toggleDone):
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			return planner.ToggleComplete(ctx, task.ID)
		}, false)
	case key.Matches(msg, m.keys.deleteTask):
		return m, m.run(func(ctx context.Context) error { return planner.DeleteTask(ctx, task.ID) })
	case key.Matches(msg, m.keys.grabTask):
		return m.startGrab(task)
	case key.Matches(msg, m.keys.reorderUp):
		if m.row == 0 {
			return m, nil
		}
		return m, m.moveCmd(task.ID, m.currentKey(), m.row-1)
	case key.Matches(msg, m.keys.reorderDown):
		if m.row >= m.columnLen(m.col)-1 {
			return m, nil
		}
		return m, m.moveCmd(task.ID, m.currentKey(), m.row+1)
	case key.Matches(msg, m.keys.moveTaskPrev):
		return m.moveToColumn(task, m.col-1)
	case key.Matches(msg, m.keys.moveTaskNext):
		return m.moveToColumn(task, m.col+1)
	}
	return m, nil
}

func (m Model) moveToColumn(task domain.Task, col int) (tea.Model, tea.Cmd) {
	keys := m.boardKeys()
	if col < 0 || col >= len(keys) {
		return m, nil
	}
	return m, m.moveCmd(task.ID, keys[col], m.columnLen(col))
}

// moveCmd moves id into key at index and keeps it selected.
func (m Model) moveCmd(id int, target domain.ContainerKey, index int) tea.Cmd {
	planner := m.planner
	return func() tea.Msg {
		err := planner.MoveTask(context.Background(), id, target, index)
		return actionMsg{snap: planner.Snapshot(), err: err, focusID: id}
	}
}

// handleInputKey handles the single-line input modes.
func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		if m.mode == modeEditTitle {
			m.mode = modeDetails
		} else {
			m.mode = modeNone
		}
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput runs the action of the current input mode.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	planner := m.planner
	value := strings.TrimSpace(m.input.Value())
	m.input.Blur()
	switch m.mode {
	case modeNewTask:
		m.mode = modeNone
		if value == "" {
			return m, nil
		}
		in := domain.TaskInput{Title: value, DueDate: m.currentKey().DueDate()}
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			return planner.CreateTask(ctx, in)
		}, false)
	case modeSearch:
		if value == "" {
			m.mode = modeNone
			return m, nil
		}
		return m, func() tea.Msg {
			results, err := planner.Search(context.Background(), value)
			return searchResultsMsg{results: results, err: err}
		}
	case modeRenameInbox:
		m.mode = modeNone
		if value == "" || value == m.snap.InboxTitle {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error { return planner.SetInboxTitle(ctx, value) })
	case modeEditTitle:
		m.mode = modeDetails
		if value == "" || value == m.details.Title {
			return m, nil
		}
		return m, m.updateDetailsCmd(domain.TaskPatch{Title: &value})
	}
	m.mode = modeNone
	return m, nil
}

// updateFocusedInput forwards non-key messages such as cursor blinks to the active input.
func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case modeEditTitle, modeNewTask, modeRenameInbox, modeSearch:
		m.input, cmd = m.input.Update(msg)
	case modeEditDescription:
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

// selectedTask returns the task under the cursor.
func (m Model) selectedTask() (domain.Task, bool) {
	c, ok := m.currentContainer()
	if !ok {
		return domain.Task{}, false
	}
	return c.Task(m.row)
}

func (m Model) currentContainer() (*app.OrderedContainer, bool) {
	if m.snap.Board == nil {
		return nil, false
	}
	keys := m.snap.Board.Keys()
	if m.col < 0 || m.col >= len(keys) {
		return nil, false
	}
	return m.snap.Board.Container(keys[m.col])
}

func (m Model) currentKey() domain.ContainerKey {
	keys := m.boardKeys()
	if len(keys) == 0 {
		return domain.InboxKey()
	}
	return keys[clamp(m.col, 0, len(keys)-1)]
}

func (m Model) boardKeys() []domain.ContainerKey {
	if m.snap.Board == nil {
		return nil
	}
	return m.snap.Board.Keys()
}

func (m Model) columnLen(col int) int {
	keys := m.boardKeys()
	if col < 0 || col >= len(keys) {
		return 0
	}
	c, ok := m.snap.Board.Container(keys[col])
	if !ok {
		return 0
	}
	return c.Len()
}

func (m *Model) selectColumn(col int) {
	m.col = clamp(col, 0, max(0, len(m.boardKeys())-1))
	m.clampSelection()
}

// clampSelection keeps the cursor on an existing card, or -1 in an empty column.
func (m *Model) clampSelection() {
	keys := m.boardKeys()
	if len(keys) == 0 {
		m.col, m.row = 0, -1
		return
	}
	m.col = clamp(m.col, 0, len(keys)-1)
	n := m.columnLen(m.col)
	if n == 0 {
		m.row = -1
		return
	}
	m.row = clamp(m.row, 0, n-1)
}

// focusTask moves the cursor to id when it is on the board.
func (m *Model) focusTask(id int) {
	for col, key := range m.boardKeys() {
		c, _ := m.snap.Board.Container(key)
		if idx := c.IndexOf(id); idx >= 0 {
			m.col, m.row = col, idx
			return
		}
	}
}

func (m Model) detailsOpen() bool {
	switch m.mode {
	case modeDetails, modeEditTitle, modeEditDescription:
		return true
	}
	return false
}

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusErr = isError
}

func (m Model) label(id string) string {
	return m.text.Text(id, nil)
}

func (m Model) labelf(id string, data map[string]any) string {
	return m.text.Text(id, data)
}

func (m Model) palette() palette {
	return paletteFor(m.prefs.Theme, m.darkBackground)
}

// newModalInput constructs a focused-ready single-line input with a steady cursor.
func (m Model) newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	styles := textinput.DefaultStyles(m.palette().dark)
	styles.Cursor.Blink = false
	in.SetStyles(styles)
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
		in.CursorEnd()
	}
	return in
}

// clamp bounds v to [minV, maxV].
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
