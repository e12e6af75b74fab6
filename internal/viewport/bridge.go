package viewport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/server"
)

// Bridge opens tabs through the companion browser extension.
type Bridge struct {
	srv *server.Server

	mu   sync.Mutex
	live map[int]bool // tabs opened here and not yet closed or removed
}

// NewBridge wraps a server. Call Run to consume extension events.
func NewBridge(srv *server.Server) *Bridge {
	return &Bridge{
		srv:  srv,
		live: make(map[int]bool),
	}
}

// Run consumes unsolicited extension events until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.srv.Messages():
			b.handle(msg)
		}
	}
}

func (b *Bridge) handle(msg server.IncomingMsg) {
	switch msg.Type {
	case server.EventTabRemoved:
		if b.forget(msg.TabID) {
			applog.Info("bridge.tab.removed", "tab", msg.TabID)
		}
	case server.EventHello:
		applog.Info("bridge.hello", "browser", msg.Browser)
	}
}

// forget drops a tab handle. It reports whether the tab was tracked;
// events for tabs opened elsewhere are ignored.
func (b *Bridge) forget(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.live[id] {
		return false
	}
	delete(b.live, id)
	return true
}

func (b *Bridge) isLive(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live[id]
}

// tracked is the number of live tab handles.
func (b *Bridge) tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Open asks the extension to create a tab at url.
func (b *Bridge) Open(ctx context.Context, url string) (Viewport, error) {
	resp, err := b.srv.Request(ctx, server.OutgoingMsg{
		Action: server.ActionOpen,
		URL:    url,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	if !resp.Succeeded() || resp.TabID == 0 {
		return nil, fmt.Errorf("open %s: %s", url, failure(resp))
	}
	b.mu.Lock()
	b.live[resp.TabID] = true
	b.mu.Unlock()
	return &bridgeTab{b: b, id: resp.TabID}, nil
}

type bridgeTab struct {
	b  *Bridge
	id int
}

func (t *bridgeTab) Alive(ctx context.Context) bool {
	if !t.b.isLive(t.id) {
		return false
	}
	resp, err := t.b.srv.Request(ctx, server.OutgoingMsg{
		Action: server.ActionTabStatus,
		TabID:  t.id,
	})
	return err == nil && resp.Succeeded()
}

func (t *bridgeTab) Navigate(ctx context.Context, url string) error {
	if !t.b.isLive(t.id) {
		return ErrClosed
	}
	resp, err := t.b.srv.Request(ctx, server.OutgoingMsg{
		Action: server.ActionNavigate,
		TabID:  t.id,
		URL:    url,
	})
	if err != nil {
		return fmt.Errorf("navigate tab %d: %w", t.id, err)
	}
	if !resp.Succeeded() {
		return fmt.Errorf("navigate tab %d: %s", t.id, failure(resp))
	}
	return nil
}

func (t *bridgeTab) Close(ctx context.Context) error {
	if !t.b.forget(t.id) {
		return nil
	}
	err := t.b.srv.Send(server.OutgoingMsg{
		Action: server.ActionClose,
		TabIDs: []int{t.id},
	})
	if errors.Is(err, server.ErrNotConnected) {
		return nil
	}
	return err
}

func failure(resp server.IncomingMsg) string {
	if resp.Error != "" {
		return resp.Error
	}
	return "rejected by extension"
}
