package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// dialTest starts srv behind httptest and connects a fake extension.
func dialTest(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	if err := srv.WaitConnected(ctx); err != nil {
		t.Fatalf("WaitConnected: %v", err)
	}
	return conn, ctx
}

func TestServerQueuesEvents(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	data, _ := json.Marshal(IncomingMsg{Type: EventTabRemoved, TabID: 42})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-srv.Messages():
		if msg.Type != EventTabRemoved || msg.TabID != 42 {
			t.Errorf("got %+v, want tab.removed 42", msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestServerSendsCommand(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	cmd := OutgoingMsg{ID: "cmd-1", Action: ActionClose, TabIDs: []int{42}}
	if err := srv.Send(cmd); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got OutgoingMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "cmd-1" || got.Action != ActionClose || len(got.TabIDs) != 1 {
		t.Errorf("got %+v, want cmd-1/close", got)
	}
}

func TestServerRequestRoundTrip(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	// Fake extension: answer one open command.
	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd OutgoingMsg
		json.Unmarshal(data, &cmd)
		ok := true
		resp, _ := json.Marshal(IncomingMsg{ID: cmd.ID, OK: &ok, TabID: 7, URL: cmd.URL})
		conn.Write(ctx, websocket.MessageText, resp)
	}()

	resp, err := srv.Request(ctx, OutgoingMsg{Action: ActionOpen, URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !resp.Succeeded() || resp.TabID != 7 {
		t.Errorf("got %+v, want ok tab 7", resp)
	}

	// Responses must not leak into the event channel.
	select {
	case msg := <-srv.Messages():
		t.Errorf("unexpected event %+v", msg)
	default:
	}
}

func TestServerRequestTimeout(t *testing.T) {
	srv := New(0)
	_, _ = dialTest(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := srv.Request(ctx, OutgoingMsg{Action: ActionTabStatus, TabID: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestServerNotConnected(t *testing.T) {
	srv := New(0)

	if err := srv.Send(OutgoingMsg{Action: ActionClose}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
	_, err := srv.Request(context.Background(), OutgoingMsg{Action: ActionOpen})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Request = %v, want ErrNotConnected", err)
	}
}

func TestServerConnectionCallback(t *testing.T) {
	srv := New(0)
	changes := make(chan bool, 2)
	srv.OnConnectionChange(func(c bool) { changes <- c })

	conn, _ := dialTest(t, srv)
	if got := <-changes; !got {
		t.Fatal("expected connected=true")
	}

	conn.Close(websocket.StatusNormalClosure, "")
	select {
	case got := <-changes:
		if got {
			t.Error("expected connected=false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect callback")
	}
}
