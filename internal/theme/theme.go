package theme

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/types"
)

// KeyTheme is the persisted key holding the current theme.
const KeyTheme = "theme"

// Mirror is the durable key-value store the theme is saved in.
type Mirror interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Manager tracks the current theme and persists changes.
type Manager struct {
	mu     sync.Mutex
	mirror Mirror
	cur    types.Theme
	hooks  types.Hooks
}

// New creates a Manager starting in the light theme. Call Load to restore
// the saved one.
func New(mirror Mirror) *Manager {
	return &Manager{mirror: mirror, cur: types.ThemeLight}
}

// SetHooks replaces the notification callbacks.
func (m *Manager) SetHooks(h types.Hooks) {
	m.mu.Lock()
	m.hooks = h
	m.mu.Unlock()
}

// Load restores the saved theme. Unknown values fall back to light.
func (m *Manager) Load() error {
	v, ok, err := m.mirror.Get(KeyTheme)
	if err != nil {
		return fmt.Errorf("load theme: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok && types.Theme(v) == types.ThemeDark {
		m.cur = types.ThemeDark
	} else {
		m.cur = types.ThemeLight
	}
	return nil
}

// Current returns the active theme.
func (m *Manager) Current() types.Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Toggle switches between light and dark and persists the result.
func (m *Manager) Toggle() (types.Theme, error) {
	m.mu.Lock()
	next := types.ThemeDark
	if m.cur == types.ThemeDark {
		next = types.ThemeLight
	}
	m.cur = next
	hooks := m.hooks
	m.mu.Unlock()

	applog.Info("theme.toggle", "theme", next)
	if err := m.mirror.Set(KeyTheme, string(next)); err != nil {
		err = fmt.Errorf("persist theme: %w", err)
		hooks.Notify(err.Error(), types.SeverityError)
		return next, err
	}
	hooks.Notify(fmt.Sprintf("Switched to %s theme", next), types.SeveritySuccess)
	return next, nil
}

// Palette holds the colours the UI renders with.
type Palette struct {
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Dim     lipgloss.Color
	Border  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Cursor  lipgloss.Color
}

var (
	light = Palette{
		Accent:  lipgloss.Color("25"),
		Text:    lipgloss.Color("235"),
		Dim:     lipgloss.Color("244"),
		Border:  lipgloss.Color("250"),
		Success: lipgloss.Color("28"),
		Error:   lipgloss.Color("160"),
		Warning: lipgloss.Color("130"),
		Cursor:  lipgloss.Color("153"),
	}
	dark = Palette{
		Accent:  lipgloss.Color("62"),
		Text:    lipgloss.Color("252"),
		Dim:     lipgloss.Color("240"),
		Border:  lipgloss.Color("238"),
		Success: lipgloss.Color("42"),
		Error:   lipgloss.Color("196"),
		Warning: lipgloss.Color("214"),
		Cursor:  lipgloss.Color("237"),
	}
)

// PaletteFor returns the colours for t.
func PaletteFor(t types.Theme) Palette {
	if t == types.ThemeDark {
		return dark
	}
	return light
}

// SeverityColor picks the colour for a notification.
func (p Palette) SeverityColor(s types.Severity) lipgloss.Color {
	switch s {
	case types.SeverityError:
		return p.Error
	case types.SeverityWarning:
		return p.Warning
	default:
		return p.Success
	}
}
