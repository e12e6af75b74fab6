package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/server"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/theme"
	"github.com/lotas/tabrefresh/internal/types"
)

// toastTTL is how long a notification stays on the bottom line.
const toastTTL = 3 * time.Second

// Controller is the part of the refresh controller the UI drives.
type Controller interface {
	Start()
	Stop()
	Running() bool
	State() types.RunState
	SetHooks(types.Hooks)
}

// Themes switches and reports the colour scheme.
type Themes interface {
	Toggle() (types.Theme, error)
	Current() types.Theme
	SetHooks(types.Hooks)
}

// Options wires the model to the application.
type Options struct {
	Store     *targets.Store
	Ctrl      Controller
	Themes    Themes
	Server    *server.Server // set for the bridge backend
	Backend   types.Backend
	Autostart bool
}

type toast struct {
	text     string
	severity types.Severity
	at       time.Time
}

// --- Model ---

type Model struct {
	store     *targets.Store
	ctrl      Controller
	themes    Themes
	backend   types.Backend
	autostart bool
	events    events

	list      TargetList
	selected  types.Target
	state     types.RunState
	connected bool
	palette   theme.Palette

	form        AddForm
	showForm    bool
	confirm     ConfirmDialog
	showConfirm bool

	toast  toast
	width  int
	height int
}

// NewModel builds the UI and routes the store, controller and theme
// notifications into it.
func NewModel(opts Options) Model {
	ev := newEvents()
	h := ev.hooks()
	opts.Store.SetHooks(h)
	opts.Ctrl.SetHooks(h)
	opts.Themes.SetHooks(h)
	if opts.Server != nil {
		opts.Server.OnConnectionChange(func(c bool) { ev.post(connMsg{connected: c}) })
	}

	m := Model{
		store:     opts.Store,
		ctrl:      opts.Ctrl,
		themes:    opts.Themes,
		backend:   opts.Backend,
		autostart: opts.Autostart,
		events:    ev,
	}
	if opts.Server != nil {
		m.connected = opts.Server.Connected()
	}
	m.reload()
	m.list.MoveTo(m.selected.URL)
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{listen(m.events), clock()}
	if m.autostart {
		cmds = append(cmds, run(m.ctrl.Start))
	}
	return tea.Batch(cmds...)
}

// reload re-reads everything the view shows.
func (m *Model) reload() {
	m.list.SetItems(m.store.Targets())
	m.selected = m.store.Selected()
	m.state = m.ctrl.State()
	m.palette = theme.PaletteFor(m.themes.Current())
}

func (m *Model) setToast(text string, sev types.Severity, now time.Time) {
	m.toast = toast{text: text, severity: sev, at: now}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.Width = m.width - 4
		m.list.Height = m.height - 4 // bars + border
		return m, nil

	case statusMsg:
		m.state = msg.state
		m.reload()
		return m, listen(m.events)

	case notifyMsg:
		m.setToast(msg.text, msg.severity, time.Now())
		m.reload()
		return m, listen(m.events)

	case connMsg:
		m.connected = msg.connected
		return m, listen(m.events)

	case reloadMsg:
		m.reload()
		return m, nil

	case addDoneMsg:
		m.form.pending = false
		m.reload()
		if msg.err == nil {
			m.showForm = false
			m.list.MoveTo(m.selected.URL)
		}
		return m, nil

	case clockMsg:
		if m.toast.text != "" && time.Time(msg).Sub(m.toast.at) >= toastTTL {
			m.toast = toast{}
		}
		m.state = m.ctrl.State()
		return m, clock()

	case tea.KeyMsg:
		if m.showForm {
			return m.updateForm(msg)
		}
		if m.showConfirm {
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}

	if m.showForm {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.list.MoveUp()
	case "down", "j":
		m.list.MoveDown()
	case "enter":
		if t, ok := m.list.Current(); ok {
			store := m.store
			return m, run(func() { store.Select(t.URL) })
		}
	case "s":
		ctrl := m.ctrl
		if ctrl.Running() {
			return m, run(ctrl.Stop)
		}
		return m, run(ctrl.Start)
	case "a":
		m.form = NewAddForm(m.width)
		m.showForm = true
		return m, textinput.Blink
	case "d":
		t, ok := m.list.Current()
		if !ok {
			return m, nil
		}
		store := m.store
		if store.CheckRemovable(t.URL) != nil {
			// Let the store report why.
			return m, run(func() { store.Remove(t.URL) })
		}
		m.confirm = ConfirmDialog{Target: t}
		m.showConfirm = true
	case "t":
		themes := m.themes
		return m, run(func() { themes.Toggle() })
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.pending {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.showForm = false
		return m, nil
	case "tab", "shift+tab":
		m.form.SwitchField()
		return m, nil
	case "enter":
		if !m.form.OnNameField() {
			m.form.SwitchField()
			return m, nil
		}
		m.form.pending = true
		url, name := m.form.Values()
		store := m.store
		return m, func() tea.Msg {
			return addDoneMsg{err: store.Add(url, name)}
		}
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "y", "Y":
		m.showConfirm = false
		store, url := m.store, m.confirm.Target.URL
		return m, run(func() { store.Remove(url) })
	case "n", "N", "esc", "enter", "q":
		m.showConfirm = false
		m.setToast("Removal cancelled", types.SeverityWarning, time.Now())
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	p := m.palette

	topBar := renderStatusBar(statusInfo{
		state:     m.state,
		backend:   m.backend,
		connected: m.connected,
		selected:  m.selected,
	}, p, m.width)

	var body string
	switch {
	case m.showForm:
		body = lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, m.form.View(p))
	case m.showConfirm:
		body = lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, m.confirm.View(p))
	default:
		listBorder := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Width(m.width - 2).
			Height(m.height - 4)
		body = listBorder.Render(m.list.View(m.selected.URL, p))
	}

	bottomStyle := lipgloss.NewStyle().Padding(0, 1)
	var bottom string
	if m.toast.text != "" {
		bottom = bottomStyle.Foreground(p.SeverityColor(m.toast.severity)).
			Render(m.toast.severity.Symbol() + " " + m.toast.text)
	} else {
		action := "s start"
		if m.state == types.Running {
			action = "s stop"
		}
		bottom = bottomStyle.Foreground(p.Dim).Render(
			"↑↓/jk navigate · enter select · " + action +
				" · a add · d remove · t theme · q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, topBar, body, bottom)
}
