package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/theme"
	"github.com/lotas/tabrefresh/internal/types"
)

// statusInfo is what the top bar shows.
type statusInfo struct {
	state     types.RunState
	backend   types.Backend
	connected bool
	selected  types.Target
}

func renderStatusBar(s statusInfo, p theme.Palette, width int) string {
	runStyle := lipgloss.NewStyle().Bold(true).Foreground(p.Success)
	stopStyle := lipgloss.NewStyle().Bold(true).Foreground(p.Dim)
	dimStyle := lipgloss.NewStyle().Foreground(p.Dim)
	warnStyle := lipgloss.NewStyle().Foreground(p.Warning)
	targetStyle := lipgloss.NewStyle().Foreground(p.Accent)

	var state string
	if s.state == types.Running {
		state = runStyle.Render("● running")
	} else {
		state = stopStyle.Render("○ stopped")
	}

	backend := dimStyle.Render(string(s.backend))
	if s.backend == types.BackendBridge {
		if s.connected {
			backend += dimStyle.Render(" · extension connected")
		} else {
			backend += warnStyle.Render(" · waiting for extension")
		}
	}

	left := " " + state + "  " + backend
	target := targetStyle.Render(s.selected.DisplayName) + dimStyle.Render(" "+s.selected.URL)
	gap := width - lipgloss.Width(left) - lipgloss.Width(target) - 2
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + target + " "
}
