package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabrefresh/internal/theme"
)

// AddForm is the two-field overlay for adding a target.
type AddForm struct {
	url     textinput.Model
	name    textinput.Model
	focus   int // 0 url, 1 name
	pending bool
}

func NewAddForm(width int) AddForm {
	u := textinput.New()
	u.Placeholder = "https://example.com"
	u.Prompt = "URL:  "
	u.CharLimit = 2048
	u.Focus()

	n := textinput.New()
	n.Placeholder = "Display name"
	n.Prompt = "Name: "
	n.CharLimit = 120

	if w := width/2 - 10; w > 20 {
		u.Width = w
		n.Width = w
	}
	return AddForm{url: u, name: n}
}

// Values returns the raw field contents.
func (f AddForm) Values() (url, name string) {
	return f.url.Value(), f.name.Value()
}

// OnNameField reports whether the second field has focus.
func (f AddForm) OnNameField() bool {
	return f.focus == 1
}

func (f *AddForm) SwitchField() {
	if f.focus == 0 {
		f.focus = 1
		f.url.Blur()
		f.name.Focus()
	} else {
		f.focus = 0
		f.name.Blur()
		f.url.Focus()
	}
}

// Update forwards typing to the focused field.
func (f AddForm) Update(msg tea.Msg) (AddForm, tea.Cmd) {
	var cmd tea.Cmd
	if f.focus == 0 {
		f.url, cmd = f.url.Update(msg)
	} else {
		f.name, cmd = f.name.Update(msg)
	}
	return f, cmd
}

func (f AddForm) View(p theme.Palette) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Padding(0, 1)
	hintStyle := lipgloss.NewStyle().Foreground(p.Dim).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Add target") + "\n\n")
	b.WriteString(" " + f.url.View() + "\n")
	b.WriteString(" " + f.name.View() + "\n\n")
	hint := "tab switch field · enter next · esc cancel"
	if f.pending {
		hint = "saving..."
	} else if f.focus == 1 {
		hint = "tab switch field · enter save · esc cancel"
	}
	b.WriteString(hintStyle.Render(hint))
	return boxStyle.Render(b.String())
}
