package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/types"
)

// --- Messages ---

type statusMsg struct{ state types.RunState }

type notifyMsg struct {
	text     string
	severity types.Severity
}

type connMsg struct{ connected bool }

// reloadMsg asks the model to re-read the store after a command ran.
type reloadMsg struct{}

type addDoneMsg struct{ err error }

type clockMsg time.Time

// events carries hook callbacks, which fire on command and timer
// goroutines, into the Bubble Tea loop.
type events chan tea.Msg

func newEvents() events {
	return make(events, 64)
}

func (e events) post(msg tea.Msg) {
	select {
	case e <- msg:
	default:
		applog.Info("tui.event.dropped")
	}
}

func (e events) hooks() types.Hooks {
	return types.Hooks{
		OnStatusChange: func(s types.RunState) { e.post(statusMsg{state: s}) },
		OnNotify: func(text string, sev types.Severity) {
			e.post(notifyMsg{text: text, severity: sev})
		},
	}
}

// listen waits for the next hook event. Update re-arms it after each one.
func listen(e events) tea.Cmd {
	return func() tea.Msg {
		return <-e
	}
}

// run executes a store or controller command off the UI goroutine. Results
// arrive through the hooks, so only a reload is returned.
func run(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return reloadMsg{}
	}
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}
