// Package viewport abstracts the browser tab the refresher drives.
//
// Two backends exist: Bridge talks to the companion browser extension over
// the local WebSocket server, Playwright drives a browser launched by
// playwright-go. Both report liveness on demand; there is no reliable
// "closed" event across origins, so callers poll Alive before each use.
package viewport

import (
	"context"
	"errors"
)

// ErrClosed is returned when operating on a viewport that is gone.
var ErrClosed = errors.New("viewport closed")

// Viewport is a handle to one browser tab.
type Viewport interface {
	// Alive reports whether the tab still exists and is reachable.
	Alive(ctx context.Context) bool
	// Navigate points the tab at url.
	Navigate(ctx context.Context, url string) error
	// Close closes the tab. Closing a gone tab is not an error.
	Close(ctx context.Context) error
}

// Opener opens new tabs.
type Opener interface {
	Open(ctx context.Context, url string) (Viewport, error)
}
