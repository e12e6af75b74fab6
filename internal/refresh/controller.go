package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/types"
	"github.com/lotas/tabrefresh/internal/viewport"
)

const (
	DefaultInterval  = time.Second
	DefaultGrace     = 500 * time.Millisecond
	DefaultOpTimeout = 5 * time.Second
)

// URLSource supplies the currently selected target URL.
type URLSource interface {
	SelectedURL() string
}

// Controller keeps one browser tab pointed at the selected target,
// re-navigating it every interval and reopening it when it disappears.
//
// All methods are safe for concurrent use. mu guards the session state and
// is never held across a backend call, so Running and State answer at once
// even while a browser is hanging. ops serializes the backend work of
// Start, ticks and deferred restarts. Every Start and Stop bumps gen; work
// begun under an older generation discards its result.
type Controller struct {
	src    URLSource
	opener viewport.Opener
	sched  Scheduler

	interval  time.Duration
	grace     time.Duration
	opTimeout time.Duration

	ops sync.Mutex

	mu          sync.Mutex
	hooks       types.Hooks
	running     bool
	vp          viewport.Viewport
	cancelTick  func()
	pending     func() // disarms a deferred retarget restart
	gen         uint64
	viewportURL string
	ticks       int
	reopens     int
}

// errStale reports that the session changed while a backend call ran.
var errStale = errors.New("superseded by a later start or stop")

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the refresh cadence.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithGrace sets the delay between stop and start on retarget.
func WithGrace(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithOpTimeout bounds each call into the viewport backend.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithHooks sets the status and notification callbacks.
func WithHooks(h types.Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// New creates a stopped controller.
func New(src URLSource, opener viewport.Opener, opts ...Option) *Controller {
	c := &Controller{
		src:       src,
		opener:    opener,
		sched:     RealTime{},
		interval:  DefaultInterval,
		grace:     DefaultGrace,
		opTimeout: DefaultOpTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetHooks replaces the status and notification callbacks.
func (c *Controller) SetHooks(h types.Hooks) {
	c.mu.Lock()
	c.hooks = h
	c.mu.Unlock()
}

// Start opens (or reuses) the tab at the selected URL and arms the
// periodic refresh. It is a no-op while running.
func (c *Controller) Start() {
	c.mu.Lock()
	c.cancelPendingLocked()
	if c.running {
		c.mu.Unlock()
		return
	}
	gen := c.armLocked()
	c.mu.Unlock()

	url, err := c.refresh(gen, false)
	c.announce(url, err, fmt.Sprintf("Refreshing %s every %s", url, c.interval))
}

// armLocked enters Running under a new generation and arms the ticker.
func (c *Controller) armLocked() uint64 {
	c.gen++
	gen := c.gen
	c.ticks = 0
	c.running = true
	c.cancelTick = c.sched.Every(c.interval, func() { c.tick(gen) })
	applog.Info("refresh.start", "interval", c.interval)
	return gen
}

// announce reports the outcome of the first open after Start or a restart.
// A start overtaken by Stop stays silent; Stop has already reported.
func (c *Controller) announce(url string, err error, success string) {
	if errors.Is(err, errStale) {
		return
	}
	hooks := c.currentHooks()
	hooks.StatusChanged(types.Running)
	if err != nil {
		hooks.Notify(fmt.Sprintf("Could not open %s, retrying: %v", url, err), types.SeverityWarning)
		return
	}
	hooks.Notify(success, types.SeveritySuccess)
}

// Stop disarms the refresh and closes the tab. It also cancels a pending
// retarget restart. It is a no-op while stopped. Stop does not wait for a
// backend call in flight; that call notices the new generation and cleans
// up after itself.
func (c *Controller) Stop() {
	c.mu.Lock()
	hadPending := c.cancelPendingLocked()
	if !c.running {
		c.mu.Unlock()
		if hadPending {
			applog.Info("refresh.restart.cancelled")
		}
		return
	}
	c.gen++
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
	vp := c.vp
	c.vp = nil
	c.running = false
	ticks, reopens := c.ticks, c.reopens
	hooks := c.hooks
	c.mu.Unlock()

	if vp != nil {
		if err := c.touch(vp.Close); err != nil {
			applog.Error("refresh.stop.close", err)
		}
	}
	applog.Info("refresh.stop", "ticks", ticks, "reopens", reopens)
	hooks.StatusChanged(types.Stopped)
	hooks.Notify("Stopped refreshing", types.SeveritySuccess)
}

// Retarget restarts a running controller against the newly selected URL
// after the grace delay. If stopped, it does nothing; the next Start
// uses the new selection.
func (c *Controller) Retarget(newURL string) {
	if !c.Running() {
		return
	}

	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gen
	c.pending = c.sched.After(c.grace, func() { c.restart(gen) })
	applog.Info("refresh.retarget", "url", newURL, "grace", c.grace)
}

// restart is the deferred half of Retarget. A Start or Stop issued in
// the meantime bumps gen and wins.
func (c *Controller) restart(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.running {
		c.mu.Unlock()
		applog.Info("refresh.restart.stale")
		return
	}
	c.pending = nil
	gen = c.armLocked()
	c.mu.Unlock()

	url, err := c.refresh(gen, false)
	c.announce(url, err, "Now refreshing "+url)
}

func (c *Controller) cancelPendingLocked() bool {
	if c.pending == nil {
		return false
	}
	c.pending()
	c.pending = nil
	c.gen++
	return true
}

// tick re-navigates a live tab or reopens a gone one. It never fails.
func (c *Controller) tick(gen uint64) {
	url, err := c.refresh(gen, true)
	if err != nil && !errors.Is(err, errStale) {
		applog.Error("refresh.tick.reopen", err, "url", url)
	}
}

// refresh points the tab at the selected URL, reopening it when it is gone
// or refuses. Backend calls run without mu; the generation is checked
// again before any result is stored.
func (c *Controller) refresh(gen uint64, counted bool) (string, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return "", errStale
	}
	if counted {
		c.ticks++
	}
	vp := c.vp
	c.mu.Unlock()

	url := c.src.SelectedURL()
	if vp != nil {
		err := c.touch(func(ctx context.Context) error {
			if !vp.Alive(ctx) {
				return viewport.ErrClosed
			}
			return vp.Navigate(ctx, url)
		})
		if err == nil {
			c.mu.Lock()
			if gen == c.gen {
				c.viewportURL = url
			}
			c.mu.Unlock()
			return url, nil
		}
		if !errors.Is(err, viewport.ErrClosed) {
			applog.Error("refresh.navigate", err, "url", url)
		}
		c.touch(vp.Close)

		c.mu.Lock()
		stale := !c.running || gen != c.gen
		if !stale && c.vp == vp {
			c.vp = nil
		}
		c.mu.Unlock()
		if stale {
			return url, errStale
		}
	}

	var fresh viewport.Viewport
	err := c.touch(func(ctx context.Context) error {
		var err error
		fresh, err = c.opener.Open(ctx, url)
		return err
	})
	if err == nil && fresh == nil {
		err = viewport.ErrClosed
	}
	if err != nil {
		return url, err
	}

	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		// Stopped while the tab was opening.
		c.touch(fresh.Close)
		applog.Info("refresh.open.stale", "url", url)
		return url, errStale
	}
	c.vp = fresh
	c.viewportURL = url
	c.reopens++
	c.mu.Unlock()

	applog.Info("refresh.open", "url", url)
	return url, nil
}

// touch calls into the backend with a timeout, converting panics into errors.
func (c *Controller) touch(fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("viewport panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (c *Controller) currentHooks() types.Hooks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hooks
}

// Running reports whether the refresh loop is armed.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// State returns the current run state.
func (c *Controller) State() types.RunState {
	if c.Running() {
		return types.Running
	}
	return types.Stopped
}

// HasViewport reports whether a tab handle is held.
func (c *Controller) HasViewport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp != nil
}

// ViewportURL is the URL the tab was last pointed at.
func (c *Controller) ViewportURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewportURL
}

// Ticks counts ticks since the last Start.
func (c *Controller) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reopens counts tabs opened over the controller's lifetime.
func (c *Controller) Reopens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reopens
}
