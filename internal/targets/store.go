package targets

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/types"
)

// Keys of the persisted mirror.
const (
	KeySavedURLs   = "savedUrls"
	KeySelectedURL = "selectedUrl"
)

// DefaultTarget is seeded on first run.
var DefaultTarget = types.Target{
	URL:         "https://github.com/rksingh1713",
	DisplayName: "Default",
	Protected:   true,
}

// Mirror is the durable key-value copy of the list.
type Mirror interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// batchMirror is implemented by mirrors that can write several keys atomically.
type batchMirror interface {
	SetMany(pairs map[string]string) error
}

// Retargeter is the part of the refresh controller the store drives.
type Retargeter interface {
	Running() bool
	Retarget(url string)
	Stop()
}

// ConfirmFunc asks the user to confirm removing t.
type ConfirmFunc func(t types.Target) bool

// savedEntry is the persisted shape of a target.
type savedEntry struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Store owns the ordered target list and the current selection.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	mirror   Mirror
	list     []types.Target
	selected string
	def      types.Target

	ctrl    Retargeter
	confirm ConfirmFunc
	hooks   types.Hooks
}

// Option configures a Store.
type Option func(*Store)

// WithDefault overrides the seeded default target. It is always protected.
func WithDefault(t types.Target) Option {
	return func(s *Store) {
		t.Protected = true
		s.def = t
	}
}

// WithController lets selection changes restart a running controller.
func WithController(c Retargeter) Option {
	return func(s *Store) { s.ctrl = c }
}

// WithConfirm sets the removal confirmation prompt. Without one, removals
// are confirmed automatically.
func WithConfirm(f ConfirmFunc) Option {
	return func(s *Store) { s.confirm = f }
}

// WithHooks sets the notification callbacks.
func WithHooks(h types.Hooks) Option {
	return func(s *Store) { s.hooks = h }
}

// New creates an empty store. Call Load before use.
func New(mirror Mirror, opts ...Option) *Store {
	s := &Store{
		mirror: mirror,
		def:    DefaultTarget,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetController attaches the controller after construction; the controller
// and the store reference each other, so one side is wired late.
func (s *Store) SetController(c Retargeter) {
	s.mu.Lock()
	s.ctrl = c
	s.mu.Unlock()
}

// SetHooks replaces the notification callbacks.
func (s *Store) SetHooks(h types.Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

// Load restores the list and selection from the mirror. If nothing usable
// is stored, the default target is seeded and persisted. A restored list
// that lacks the default gets it prepended.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.mirror.Get(KeySavedURLs)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}

	var list []types.Target
	if ok && raw != "" {
		var entries []savedEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			applog.Error("targets.load.parse", err)
		} else {
			list = s.sanitize(entries)
		}
	}

	if len(list) == 0 {
		s.list = []types.Target{s.def}
		s.selected = s.def.URL
		applog.Info("targets.seed", "url", s.def.URL)
		return s.persistLocked()
	}

	// The configured default may have changed since the list was saved.
	inserted := false
	if !containsURL(list, s.def.URL) {
		list = append([]types.Target{s.def}, list...)
		inserted = true
		applog.Info("targets.load.default", "url", s.def.URL)
	}

	s.list = list
	s.selected = list[0].URL
	sel, ok, err := s.mirror.Get(KeySelectedURL)
	if err != nil {
		return fmt.Errorf("load selection: %w", err)
	}
	if ok {
		if i := s.indexLocked(sel); i >= 0 {
			s.selected = s.list[i].URL
		}
	}
	applog.Info("targets.load", "count", len(s.list), "selected", s.selected)
	if inserted {
		return s.persistLocked()
	}
	return nil
}

func containsURL(list []types.Target, u string) bool {
	for _, t := range list {
		if t.SameURL(u) {
			return true
		}
	}
	return false
}

// sanitize converts persisted entries, dropping invalid and duplicate ones.
func (s *Store) sanitize(entries []savedEntry) []types.Target {
	var list []types.Target
	seen := make(map[string]bool)
	for _, e := range entries {
		u, name := strings.TrimSpace(e.Value), strings.TrimSpace(e.Text)
		if name == "" {
			name = u
		}
		if validate(u, name) != nil {
			applog.Info("targets.load.skip", "url", u)
			continue
		}
		key := strings.ToLower(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, types.Target{
			URL:         u,
			DisplayName: name,
			Protected:   strings.EqualFold(u, s.def.URL),
		})
	}
	return list
}

// Persist writes the list and selection to the mirror.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	entries := make([]savedEntry, len(s.list))
	for i, t := range s.list {
		entries[i] = savedEntry{Value: t.URL, Text: t.DisplayName}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}

	if b, ok := s.mirror.(batchMirror); ok {
		err = b.SetMany(map[string]string{
			KeySavedURLs:   string(data),
			KeySelectedURL: s.selected,
		})
	} else {
		err = s.mirror.Set(KeySavedURLs, string(data))
		if err == nil {
			err = s.mirror.Set(KeySelectedURL, s.selected)
		}
	}
	if err != nil {
		return fmt.Errorf("persist targets: %w", err)
	}
	return nil
}

// Select makes the target with this URL current. A running controller is
// restarted against it.
func (s *Store) Select(rawURL string) error {
	s.mu.Lock()
	i := s.indexLocked(strings.TrimSpace(rawURL))
	if i < 0 {
		s.mu.Unlock()
		err := &NotFoundError{URL: rawURL}
		s.notifyErr(err)
		return err
	}
	t := s.list[i]
	s.selected = t.URL
	err := s.persistLocked()
	ctrl, hooks := s.ctrl, s.hooks
	s.mu.Unlock()

	applog.Info("targets.select", "url", t.URL)
	if err != nil {
		s.notifyErr(err)
		return err
	}
	hooks.Notify("Selected "+t.DisplayName, types.SeveritySuccess)
	if ctrl != nil && ctrl.Running() {
		ctrl.Retarget(t.URL)
	}
	return nil
}

// Add appends a new target and selects it.
func (s *Store) Add(rawURL, displayName string) error {
	u, name := strings.TrimSpace(rawURL), strings.TrimSpace(displayName)
	if err := validate(u, name); err != nil {
		s.notifyErr(err)
		return err
	}

	s.mu.Lock()
	if s.indexLocked(u) >= 0 {
		s.mu.Unlock()
		err := &DuplicateError{URL: u}
		s.notifyErr(err)
		return err
	}
	s.list = append(s.list, types.Target{URL: u, DisplayName: name})
	s.selected = u
	err := s.persistLocked()
	hooks := s.hooks
	s.mu.Unlock()

	applog.Info("targets.add", "url", u, "name", name)
	if err != nil {
		s.notifyErr(err)
		return err
	}
	hooks.Notify("Added "+name, types.SeveritySuccess)
	return nil
}

// Remove deletes the target with this URL after confirmation. If it was
// selected, the first remaining target becomes selected and a controller
// running for it is stopped.
func (s *Store) Remove(rawURL string) error {
	s.mu.Lock()
	i, err := s.removableLocked(rawURL)
	if err != nil {
		s.mu.Unlock()
		s.notifyErr(err)
		return err
	}
	t := s.list[i]
	confirm := s.confirm
	s.mu.Unlock()

	// The prompt may block on user input, so it runs without the lock.
	if confirm != nil && !confirm(t) {
		s.notify("Removal cancelled", types.SeverityWarning)
		return ErrCancelled
	}

	s.mu.Lock()
	// Re-resolve: the list may have changed while the prompt was open.
	i = s.indexLocked(t.URL)
	if i < 0 {
		s.mu.Unlock()
		err := &NotFoundError{URL: t.URL}
		s.notifyErr(err)
		return err
	}
	if len(s.list) == 1 {
		s.mu.Unlock()
		err := &MinimumCountError{URL: t.URL}
		s.notifyErr(err)
		return err
	}
	wasSelected := strings.EqualFold(s.selected, t.URL)
	s.list = append(s.list[:i:i], s.list[i+1:]...)
	if wasSelected {
		s.selected = s.list[0].URL
	}
	err = s.persistLocked()
	ctrl, hooks := s.ctrl, s.hooks
	s.mu.Unlock()

	applog.Info("targets.remove", "url", t.URL, "was_selected", wasSelected)
	if wasSelected && ctrl != nil && ctrl.Running() {
		ctrl.Stop()
	}
	if err != nil {
		s.notifyErr(err)
		return err
	}
	hooks.Notify("Removed "+t.DisplayName, types.SeveritySuccess)
	return nil
}

// CheckRemovable reports the error Remove would fail with before asking
// for confirmation, without notifying.
func (s *Store) CheckRemovable(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.removableLocked(rawURL)
	return err
}

func (s *Store) removableLocked(rawURL string) (int, error) {
	i := s.indexLocked(strings.TrimSpace(rawURL))
	switch {
	case i < 0:
		return i, &NotFoundError{URL: rawURL}
	case s.list[i].Protected:
		return i, &ProtectedError{URL: s.list[i].URL}
	case len(s.list) == 1:
		return i, &MinimumCountError{URL: s.list[i].URL}
	}
	return i, nil
}

// Import bulk-adds candidates, silently skipping invalid and duplicate
// entries. The selection is unchanged. It returns the number added.
func (s *Store) Import(candidates []types.Target) (int, error) {
	s.mu.Lock()
	added := 0
	for _, c := range candidates {
		u, name := strings.TrimSpace(c.URL), strings.TrimSpace(c.DisplayName)
		if name == "" {
			name = u
		}
		if validate(u, name) != nil || s.indexLocked(u) >= 0 {
			continue
		}
		s.list = append(s.list, types.Target{URL: u, DisplayName: name})
		added++
	}
	var err error
	if added > 0 {
		err = s.persistLocked()
	}
	hooks := s.hooks
	s.mu.Unlock()

	applog.Info("targets.import", "candidates", len(candidates), "added", added)
	if err != nil {
		s.notifyErr(err)
		return added, err
	}
	hooks.Notify(fmt.Sprintf("Imported %d of %d targets", added, len(candidates)), types.SeveritySuccess)
	return added, nil
}

// Targets returns a copy of the list in order.
func (s *Store) Targets() []types.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Target, len(s.list))
	copy(out, s.list)
	return out
}

// Selected returns the current target.
func (s *Store) Selected() types.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(s.selected); i >= 0 {
		return s.list[i]
	}
	return types.Target{}
}

// SelectedURL returns the current target's URL.
func (s *Store) SelectedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) indexLocked(u string) int {
	for i, t := range s.list {
		if t.SameURL(u) {
			return i
		}
	}
	return -1
}

func (s *Store) notify(msg string, sev types.Severity) {
	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()
	hooks.Notify(msg, sev)
}

func (s *Store) notifyErr(err error) {
	applog.Error("targets.command", err)
	s.notify(err.Error(), types.SeverityError)
}

// validate checks trimmed input for Add.
func validate(u, name string) error {
	if u == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return &ValidationError{Field: "url", Reason: "must start with http:// or https://"}
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return &ValidationError{Field: "url", Reason: "must include a host"}
	}
	return nil
}
