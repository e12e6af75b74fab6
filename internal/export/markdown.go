package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/tabrefresh/internal/types"
)

// Markdown formats the target list as a markdown bookmark list.
func Markdown(targets []types.Target, selected string, now time.Time) string {
	var b strings.Builder

	n := len(targets)
	noun := "targets"
	if n == 1 {
		noun = "target"
	}
	fmt.Fprintf(&b, "# Refresh targets (%d %s)\n", n, noun)
	fmt.Fprintf(&b, "> Exported %s\n\n", now.Format("2006-01-02 15:04"))

	for _, t := range targets {
		name := t.DisplayName
		if name == "" {
			name = t.URL
		}
		var tags []string
		if t.SameURL(selected) {
			tags = append(tags, "selected")
		}
		if t.Protected {
			tags = append(tags, "default")
		}
		fmt.Fprintf(&b, "- [%s](%s)", escape(name), t.URL)
		if len(tags) > 0 {
			fmt.Fprintf(&b, " _(%s)_", strings.Join(tags, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

var linkText = strings.NewReplacer(`[`, `\[`, `]`, `\]`)

func escape(s string) string {
	return linkText.Replace(s)
}
