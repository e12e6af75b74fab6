package viewport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightOptions configures the launched browser.
type PlaywrightOptions struct {
	Headless bool
	Install  bool // download the browser driver on first use
}

// Playwright opens tabs in a Chromium instance it launches on first use.
// If the user quits the browser, the next Open relaunches it.
type Playwright struct {
	opts   PlaywrightOptions
	launch func(PlaywrightOptions) (*session, error)

	mu        sync.Mutex
	sess      *session
	launching *launchState
	closed    bool
}

// session is one launched browser.
type session struct {
	browser playwright.Browser
	bctx    playwright.BrowserContext
	stop    func() error
}

func (s *session) alive() bool {
	return s != nil && s.browser.IsConnected()
}

func (s *session) shutdown() {
	_ = s.bctx.Close()
	_ = s.browser.Close()
	if s.stop != nil {
		_ = s.stop()
	}
}

// launchState is a launch in progress. sess and err are set before done
// is closed.
type launchState struct {
	done chan struct{}
	sess *session
	err  error
}

// NewPlaywright creates a lazily started backend.
func NewPlaywright(opts PlaywrightOptions) *Playwright {
	return &Playwright{opts: opts, launch: launchChromium}
}

func launchChromium(opts PlaywrightOptions) (*session, error) {
	// Keep the driver quiet; its output would corrupt the TUI.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	bctx, err := browser.NewContext()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}
	applog.Info("playwright.launched", "headless", opts.Headless)
	return &session{browser: browser, bctx: bctx, stop: pw.Stop}, nil
}

// context returns a live browser context, launching a browser if needed.
// Installing and launching can take minutes and ignore cancellation, so
// the launch runs on its own goroutine and the caller only waits as long
// as ctx allows. A later call picks up the same launch.
func (p *Playwright) context(ctx context.Context) (playwright.BrowserContext, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.sess.alive() {
		bctx := p.sess.bctx
		p.mu.Unlock()
		return bctx, nil
	}
	if p.launching == nil {
		if p.sess != nil {
			p.sess.shutdown()
			p.sess = nil
		}
		l := &launchState{done: make(chan struct{})}
		p.launching = l
		go p.runLaunch(l)
	}
	l := p.launching
	p.mu.Unlock()

	select {
	case <-l.done:
		if l.err != nil {
			return nil, l.err
		}
		return l.sess.bctx, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser: %w", ctx.Err())
	}
}

func (p *Playwright) runLaunch(l *launchState) {
	sess, err := p.launch(p.opts)

	p.mu.Lock()
	p.launching = nil
	if err == nil && p.closed {
		err = ErrClosed
		sess.shutdown()
		sess = nil
	}
	if err == nil {
		p.sess = sess
	} else {
		applog.Error("playwright.launch", err)
	}
	p.mu.Unlock()

	l.sess, l.err = sess, err
	close(l.done)
}

// Open creates a page and navigates it to url.
func (p *Playwright) Open(ctx context.Context, url string) (Viewport, error) {
	bctx, err := p.context(ctx)
	if err != nil {
		return nil, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	tab := &playwrightTab{page: page}
	if err := tab.Navigate(ctx, url); err != nil {
		page.Close()
		return nil, err
	}
	return tab, nil
}

// Close shuts the browser down. A launch still running is torn down when
// it finishes.
func (p *Playwright) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.sess != nil {
		p.sess.shutdown()
		p.sess = nil
	}
	return nil
}

type playwrightTab struct {
	page playwright.Page
}

func (t *playwrightTab) Alive(ctx context.Context) bool {
	return !t.page.IsClosed()
}

func (t *playwrightTab) Navigate(ctx context.Context, url string) error {
	if t.page.IsClosed() {
		return ErrClosed
	}
	waitUntil := playwright.WaitUntilState("commit")
	opts := playwright.PageGotoOptions{WaitUntil: &waitUntil}
	if ms, ok := timeoutMillis(ctx); ok {
		opts.Timeout = &ms
	}
	if _, err := t.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (t *playwrightTab) Close(ctx context.Context) error {
	if t.page.IsClosed() {
		return nil
	}
	return t.page.Close()
}

// timeoutMillis converts the context deadline into a playwright timeout.
func timeoutMillis(ctx context.Context) (float64, bool) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, false
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return ms, true
}
