package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lotas/tabrefresh/internal/applog"
	"nhooyr.io/websocket"
)

// DefaultPort is where the companion extension looks for tabrefresh.
const DefaultPort = 19292

// ErrNotConnected is returned when no extension is connected.
var ErrNotConnected = errors.New("browser extension not connected")

// IncomingMsg is a message from the extension. Messages with an ID answer
// a Request; the rest are events such as "hello" or "tab.removed".
type IncomingMsg struct {
	Type    string `json:"type,omitempty"`
	ID      string `json:"id,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Error   string `json:"error,omitempty"`
	TabID   int    `json:"tabId,omitempty"`
	URL     string `json:"url,omitempty"`
	Browser string `json:"browser,omitempty"`
}

// Succeeded reports whether a response carried ok=true.
func (m IncomingMsg) Succeeded() bool {
	return m.OK != nil && *m.OK
}

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	TabID  int    `json:"tabId,omitempty"`
	TabIDs []int  `json:"tabIds,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	pending map[string]chan IncomingMsg
	onConn  func(connected bool)
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 64),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of unsolicited events from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// OnConnectionChange registers a callback invoked when the extension
// connects or disconnects.
func (s *Server) OnConnectionChange(fn func(connected bool)) {
	s.mu.Lock()
	s.onConn = fn
	s.mu.Unlock()
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// WaitConnected blocks until an extension connects or ctx is done.
func (s *Server) WaitConnected(ctx context.Context) error {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for !s.Connected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for extension: %w", ctx.Err())
		case <-t.C:
		}
	}
	return nil
}

// Send sends a command to the connected extension without waiting for
// a reply.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Request sends a command and waits for the response with the same ID.
// A response with ok=false is returned as-is; only transport failures
// and timeouts are errors.
func (s *Server) Request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ch := make(chan IncomingMsg, 1)

	s.mu.Lock()
	s.pending[msg.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(msg); err != nil {
		return IncomingMsg{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s %s: %w", msg.Action, msg.ID, ctx.Err())
	}
}

// dispatch routes a response to its waiting Request, or queues an event.
func (s *Server) dispatch(msg IncomingMsg) {
	if msg.ID != "" {
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		s.mu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
			return
		}
	}
	select {
	case s.msgs <- msg:
	default:
		applog.Info("ws.drop", "type", msg.Type)
	}
}

func (s *Server) notifyConn(connected bool) {
	s.mu.Lock()
	fn := s.onConn
	s.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(1 << 20)

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)
		s.notifyConn(true)

		defer func() {
			s.mu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
			if current {
				s.notifyConn(false)
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			s.dispatch(msg)
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
