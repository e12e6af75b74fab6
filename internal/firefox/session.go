package firefox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lotas/tabrefresh/internal/types"
	"github.com/pierrec/lz4/v4"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// sessionFiles are tried in order: the live session, then the last closed one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// maxNameLen caps display names taken from page titles.
const maxNameLen = 60

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format:
// magic, 4-byte LE uncompressed size, then a raw lz4 block.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(mozLz4Magic)], mozLz4Magic) {
		return nil, errors.New("mozlz4: invalid header magic")
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// SessionTab is the current page of one open tab.
type SessionTab struct {
	URL          string
	Title        string
	LastAccessed time.Time
	Pinned       bool
}

type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries      []rawEntry `json:"entries"`
	Index        int        `json:"index"`
	LastAccessed int64      `json:"lastAccessed"`
	Pinned       bool       `json:"pinned"`
}

type rawWindow struct {
	Tabs []rawTab `json:"tabs"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession returns the open tabs of every window in session order.
func ParseSession(data []byte) ([]SessionTab, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	var tabs []SessionTab
	for _, window := range raw.Windows {
		for _, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}
			// index is 1-based; current page is entries[index-1].
			i := rt.Index - 1
			if i < 0 || i >= len(rt.Entries) {
				i = len(rt.Entries) - 1
			}
			e := rt.Entries[i]
			tabs = append(tabs, SessionTab{
				URL:          e.URL,
				Title:        e.Title,
				LastAccessed: time.UnixMilli(rt.LastAccessed),
				Pinned:       rt.Pinned,
			})
		}
	}
	return tabs, nil
}

// ReadSessionFile reads the tabs from the session files of a profile.
func ReadSessionFile(profileDir string) ([]SessionTab, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	var data []byte
	var err error
	for _, name := range sessionFiles {
		data, err = os.ReadFile(filepath.Join(backupDir, name))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no session file found in %s", backupDir)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}
	return ParseSession(decompressed)
}

// Candidates turns session tabs into targets worth importing: http(s)
// pages only, first occurrence of each URL wins.
func Candidates(tabs []SessionTab) []types.Target {
	seen := make(map[string]bool)
	var out []types.Target
	for _, tab := range tabs {
		u, err := url.Parse(tab.URL)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		key := strings.ToLower(tab.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.Target{
			URL:         tab.URL,
			DisplayName: displayName(tab.Title, u.Host),
		})
	}
	return out
}

func displayName(title, host string) string {
	name := strings.Join(strings.Fields(title), " ")
	if name == "" {
		return host
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen-1]) + "…"
	}
	return name
}
