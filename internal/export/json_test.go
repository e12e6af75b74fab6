package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lotas/tabrefresh/internal/types"
)

var fixture = []types.Target{
	{URL: "https://www.google.com", DisplayName: "Google", Protected: true},
	{URL: "https://go.dev/doc", DisplayName: "Go docs"},
	{URL: "http://localhost:8080/status", DisplayName: "Local"},
}

func TestJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := JSON(fixture, "https://GO.dev/doc", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}

	if !parsed.ExportedAt.Equal(now) {
		t.Errorf("exported_at = %v", parsed.ExportedAt)
	}
	if len(parsed.Targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(parsed.Targets))
	}
	if !parsed.Targets[0].Protected || parsed.Targets[1].Protected {
		t.Errorf("protected flags wrong: %+v", parsed.Targets)
	}
	if !parsed.Targets[1].Selected || parsed.Targets[0].Selected {
		t.Errorf("selected flag should match case-insensitively: %+v", parsed.Targets)
	}
	if parsed.Targets[1].Domain != "go.dev" {
		t.Errorf("domain = %q", parsed.Targets[1].Domain)
	}
	if parsed.Targets[2].Domain != "localhost" {
		t.Errorf("domain should drop the port, got %q", parsed.Targets[2].Domain)
	}
}

func TestJSON_Empty(t *testing.T) {
	result, err := JSON(nil, "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	list, ok := parsed["targets"].([]any)
	if !ok || len(list) != 0 {
		t.Errorf("targets should be an empty array, got %v", parsed["targets"])
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/a?b=c", "example.com"},
		{"http://127.0.0.1:9000", "127.0.0.1"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.in); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
