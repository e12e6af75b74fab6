package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	fileName     = "tabrefresh.log"
	maxFileSize  = 5 << 20 // 5 MB
	maxValueLen  = 200
	truncSuffix  = "…"
	timestampFmt = "2006-01-02T15:04:05.000Z"
	missingValue = "<missing>"
)

var (
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
)

// Init opens <dir>/tabrefresh.log for appending. Call once at startup.
// If the file exceeds 5 MB, it is rotated (renamed to .log.1) before opening.
// Safe to skip: log calls are no-ops until Init succeeds.
func Init(dir string) error {
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxFileSize {
		os.Rename(path, path+".1")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	mu.Lock()
	if closer != nil {
		closer.Close()
	}
	out, closer = f, f
	mu.Unlock()
	return nil
}

// SetOutput directs log lines to w. Passing nil disables logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	closer = nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	out, closer = nil, nil
}

// Info logs a structured event line. The part of event before the first
// dot is the component and gets its own column:
//
//	applog.Info("refresh.start", "url", url)
//	2026-03-01T12:00:00.000Z INFO  refresh  start url=https://example.com
func Info(event string, kv ...any) {
	write("INFO", event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("refresh.tick.reopen", err, "url", url)
func Error(event string, err error, kv ...any) {
	write("ERROR", event, err, kv)
}

// componentWidth pads the component column so actions line up.
const componentWidth = 8

func split(event string) (component, action string) {
	component, action, ok := strings.Cut(event, ".")
	if !ok {
		return "app", event
	}
	return component, action
}

func format(now time.Time, level, event string, err error, kv []any) string {
	component, action := split(event)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %-*s %s", now.UTC().Format(timestampFmt), level, componentWidth, component, action)
	if err != nil {
		b.WriteString(" err=")
		b.WriteString(quote(err.Error()))
	}
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		if i+1 < len(kv) {
			b.WriteString(quote(fmt.Sprint(kv[i+1])))
		} else {
			b.WriteString(missingValue)
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func write(level, event string, err error, kv []any) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	io.WriteString(out, format(time.Now(), level, event, err, kv))
}

// quote shortens long values on a rune boundary and quotes values that
// would not survive a split on spaces.
func quote(s string) string {
	if r := []rune(s); len(r) > maxValueLen {
		s = string(r[:maxValueLen]) + truncSuffix
	}
	if s == "" || strings.ContainsAny(s, " \t\n\r\"=") {
		return strconv.Quote(s)
	}
	return s
}
