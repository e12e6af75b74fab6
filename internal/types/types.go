package types

import "strings"

// Target is a named URL the refresher can point the browser tab at.
type Target struct {
	URL         string
	DisplayName string
	Protected   bool // cannot be removed
}

// SameURL reports whether t points at url, ignoring case.
func (t Target) SameURL(url string) bool {
	return strings.EqualFold(t.URL, url)
}

// RunState is the refresh controller state.
type RunState int

const (
	Stopped RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Severity classifies a user-visible notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Symbol is the one-character prefix shown before a notification.
func (s Severity) Symbol() string {
	switch s {
	case SeverityError:
		return "✗"
	case SeverityWarning:
		return "!"
	default:
		return "✓"
	}
}

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Backend selects how the browser tab is driven.
type Backend string

const (
	BackendBridge     Backend = "bridge"     // companion extension over WebSocket
	BackendPlaywright Backend = "playwright" // browser launched by playwright
)

// Hooks are the rendering callbacks invoked after every command.
// Nil fields are ignored.
type Hooks struct {
	OnStatusChange func(RunState)
	OnNotify       func(message string, severity Severity)
}

// StatusChanged calls OnStatusChange if set.
func (h Hooks) StatusChanged(s RunState) {
	if h.OnStatusChange != nil {
		h.OnStatusChange(s)
	}
}

// Notify calls OnNotify if set.
func (h Hooks) Notify(message string, severity Severity) {
	if h.OnNotify != nil {
		h.OnNotify(message, severity)
	}
}
