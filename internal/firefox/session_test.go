package firefox

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabrefresh/internal/storage"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/types"
	"github.com/pierrec/lz4/v4"
)

// mozlz4 wraps raw JSON the way Firefox writes session files.
func mozlz4(t *testing.T, raw []byte) []byte {
	t.Helper()
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out := make([]byte, 0, 12+n)
	out = append(out, mozLz4Magic...)
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(raw)))
	out = append(out, size...)
	return append(out, compressed[:n]...)
}

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)

		// Compress with lz4 block compression.
		dst := make([]byte, lz4.CompressBlockBound(len(original)))
		n, err := lz4.CompressBlock(original, dst, nil)
		if err != nil {
			t.Fatalf("lz4.CompressBlock failed: %v", err)
		}
		compressed := dst[:n]

		// Build mozlz4 payload: 8-byte magic + 4-byte LE uint32 size + compressed data.
		magic := []byte("mozLz40\x00")
		sizeBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBytes, uint32(len(original)))

		payload := make([]byte, 0, len(magic)+len(sizeBytes)+len(compressed))
		payload = append(payload, magic...)
		payload = append(payload, sizeBytes...)
		payload = append(payload, compressed...)

		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		// Wrong magic bytes.
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		_, err := DecompressMozLz4(bad)
		if err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		short := []byte("mozLz40")
		_, err := DecompressMozLz4(short)
		if err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	// Tab 1 has history; index=2 makes entries[1] the current page.
	session := map[string]interface{}{
		"windows": []map[string]interface{}{
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://example.com", "title": "Example"},
						},
						"index":        1,
						"lastAccessed": 1707654321000,
						"pinned":       true,
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index":        2,
						"lastAccessed": 1707654999000,
					},
					{"entries": []map[string]interface{}{}},
				},
			},
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "about:config", "title": "Config"},
						},
						"index": 9,
					},
				},
			},
		},
	}
	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	tabs, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}
	if len(tabs) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(tabs))
	}
	if tabs[0].URL != "https://example.com" || tabs[0].Title != "Example" || !tabs[0].Pinned {
		t.Errorf("tab0 = %+v", tabs[0])
	}
	if tabs[0].LastAccessed.UnixMilli() != 1707654321000 {
		t.Errorf("tab0 LastAccessed = %d", tabs[0].LastAccessed.UnixMilli())
	}
	if tabs[1].URL != "https://current.com" || tabs[1].Title != "Current Page" {
		t.Errorf("tab1 = %+v, want current page", tabs[1])
	}
	// Out-of-range index falls back to the last entry.
	if tabs[2].URL != "about:config" {
		t.Errorf("tab2 URL = %q", tabs[2].URL)
	}
}

func TestParseSessionInvalidJSON(t *testing.T) {
	if _, err := ParseSession([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestCandidates(t *testing.T) {
	tabs := []SessionTab{
		{URL: "https://example.com/a", Title: "  Example\n  A  "},
		{URL: "about:newtab", Title: "New Tab"},
		{URL: "file:///etc/hosts", Title: "hosts"},
		{URL: "HTTPS://EXAMPLE.COM/A", Title: "dup"},
		{URL: "http://plain.test/", Title: ""},
		{URL: "https://long.test/", Title: "This title is far too long to be shown in the target list without being cut down"},
		{URL: "https://", Title: "no host"},
	}

	got := Candidates(tabs)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://example.com/a" || got[0].DisplayName != "Example A" {
		t.Errorf("candidate 0 = %+v", got[0])
	}
	if got[1].DisplayName != "plain.test" {
		t.Errorf("empty title should fall back to host, got %q", got[1].DisplayName)
	}
	if r := []rune(got[2].DisplayName); len(r) != maxNameLen || r[len(r)-1] != '…' {
		t.Errorf("long title not truncated: %q", got[2].DisplayName)
	}
	for _, c := range got {
		if c.Protected {
			t.Errorf("imported target %q should not be protected", c.URL)
		}
	}
}

func TestImportFromSessionFile(t *testing.T) {
	profileDir := t.TempDir()
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	os.MkdirAll(backupDir, 0755)

	sessionJSON := `{
		"windows": [{
			"tabs": [
				{"entries": [{"url": "https://example.com", "title": "Example"}], "index": 1},
				{"entries": [{"url": "https://example.com", "title": "Example Dup"}], "index": 1},
				{"entries": [{"url": "about:blank", "title": ""}], "index": 1},
				{"entries": [{"url": "https://other.com/page", "title": "Other"}], "index": 1}
			]
		}]
	}`
	// Only previous.jsonlz4 exists: the fallback file must be used.
	os.WriteFile(filepath.Join(backupDir, "previous.jsonlz4"), mozlz4(t, []byte(sessionJSON)), 0644)

	tabs, err := ReadSessionFile(profileDir)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()
	store := targets.New(storage.NewKV(db))
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	added, err := store.Import(Candidates(tabs))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 imported targets, got %d", added)
	}
	list := store.Targets()
	if len(list) != 3 {
		t.Fatalf("expected default + 2 targets, got %d", len(list))
	}
	if list[1] != (types.Target{URL: "https://example.com", DisplayName: "Example"}) {
		t.Errorf("list[1] = %+v", list[1])
	}
}

func TestReadSessionFileMissing(t *testing.T) {
	if _, err := ReadSessionFile(t.TempDir()); err == nil {
		t.Fatal("expected error for profile without session files")
	}
}
