package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/tabrefresh/internal/types"
)

type jsonExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Selected   string       `json:"selected"`
	Targets    []jsonTarget `json:"targets"`
}

type jsonTarget struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Protected bool   `json:"protected,omitempty"`
	Selected  bool   `json:"selected,omitempty"`
}

// JSON formats the target list as a JSON document.
func JSON(targets []types.Target, selected string, now time.Time) (string, error) {
	out := jsonExport{
		ExportedAt: now.UTC(),
		Selected:   selected,
		Targets:    make([]jsonTarget, 0, len(targets)),
	}
	for _, t := range targets {
		out.Targets = append(out.Targets, jsonTarget{
			Name:      t.DisplayName,
			URL:       t.URL,
			Domain:    extractDomain(t.URL),
			Protected: t.Protected,
			Selected:  t.SameURL(selected),
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
