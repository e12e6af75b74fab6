package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/theme"
	"github.com/lotas/tabrefresh/internal/types"
)

// TargetList renders the saved targets with a cursor.
type TargetList struct {
	Items  []types.Target
	Cursor int
	Width  int
	Height int
}

// SetItems replaces the list, keeping the cursor in range.
func (l *TargetList) SetItems(items []types.Target) {
	l.Items = items
	if l.Cursor >= len(items) {
		l.Cursor = len(items) - 1
	}
	if l.Cursor < 0 {
		l.Cursor = 0
	}
}

// MoveTo puts the cursor on url if present.
func (l *TargetList) MoveTo(url string) {
	for i, t := range l.Items {
		if t.SameURL(url) {
			l.Cursor = i
			return
		}
	}
}

func (l *TargetList) MoveUp() {
	if l.Cursor > 0 {
		l.Cursor--
	}
}

func (l *TargetList) MoveDown() {
	if l.Cursor < len(l.Items)-1 {
		l.Cursor++
	}
}

// Current returns the target under the cursor.
func (l TargetList) Current() (types.Target, bool) {
	if l.Cursor < 0 || l.Cursor >= len(l.Items) {
		return types.Target{}, false
	}
	return l.Items[l.Cursor], true
}

func (l TargetList) View(selected string, p theme.Palette) string {
	cursorStyle := lipgloss.NewStyle().Bold(true).Background(p.Cursor).Foreground(p.Text)
	nameStyle := lipgloss.NewStyle().Foreground(p.Text)
	activeStyle := lipgloss.NewStyle().Foreground(p.Accent).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(p.Dim)

	// Scroll so the cursor stays visible.
	start := 0
	if l.Height > 0 && l.Cursor >= l.Height {
		start = l.Cursor - l.Height + 1
	}

	var b strings.Builder
	for i := start; i < len(l.Items); i++ {
		if l.Height > 0 && i-start >= l.Height {
			break
		}
		t := l.Items[i]
		marker := "  "
		style := nameStyle
		if t.SameURL(selected) {
			marker = "▶ "
			style = activeStyle
		}
		line := marker + style.Render(t.DisplayName) + "  " + dimStyle.Render(t.URL)
		if t.Protected {
			line += dimStyle.Render("  (default)")
		}
		if i == l.Cursor {
			line = cursorStyle.Render(lipgloss.NewStyle().Width(l.Width).Render(line))
		}
		b.WriteString(line)
		if i < len(l.Items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
