package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/theme"
	"github.com/lotas/tabrefresh/internal/types"
)

// ConfirmDialog asks y/N before removing a target.
type ConfirmDialog struct {
	Target types.Target
}

func (d ConfirmDialog) View(p theme.Palette) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(p.Warning).Padding(0, 1)
	textStyle := lipgloss.NewStyle().Foreground(p.Text).Padding(0, 1)
	hintStyle := lipgloss.NewStyle().Foreground(p.Dim).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Warning).
		Padding(1, 2)

	body := titleStyle.Render(fmt.Sprintf("Remove %q?", d.Target.DisplayName)) + "\n" +
		textStyle.Render(d.Target.URL) + "\n\n" +
		hintStyle.Render("y remove · n/esc keep")
	return boxStyle.Render(body)
}
