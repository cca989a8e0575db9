package spectate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-client/internal/session"
)

const (
	Path         = "/spectate"
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Frame is the JSON message pushed to spectators.
type Frame struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id"`
	FEN        string   `json:"fen"`
	Turn       string   `json:"turn"`
	Status     string   `json:"status"`
	StatusText string   `json:"status_text"`
	LastMove   string   `json:"last_move,omitempty"`
	MovesSAN   []string `json:"moves_san"`
	Opening    string   `json:"opening,omitempty"`
	Pending    string   `json:"pending"`
	Version    uint64   `json:"version"`
}

func FrameFromState(s session.State) Frame {
	moves := append([]string{}, s.MovesSAN...)
	return Frame{
		Type:       "state",
		SessionID:  s.SessionID,
		FEN:        s.FEN,
		Turn:       string(s.Turn),
		Status:     string(s.Status),
		StatusText: s.StatusText,
		LastMove:   s.LastMove.SAN,
		MovesSAN:   moves,
		Opening:    s.Opening,
		Pending:    string(s.Pending),
		Version:    s.Version,
	}
}

type subscriber struct {
	ch chan Frame
}

// Hub fans session states out to WebSocket spectators. A spectator whose
// buffer is full is disconnected.
type Hub struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	latest *Frame
	closed bool
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[*subscriber]struct{})}
}

func (h *Hub) Observe(s session.State) {
	f := FrameFromState(s)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = &f
	for sub := range h.subs {
		select {
		case sub.ch <- f:
		default:
			delete(h.subs, sub)
			close(sub.ch)
			h.logger.Warn("spectator_dropped", zap.String("reason", "slow"))
		}
	}
}

// Count returns the number of connected spectators.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{ch: make(chan Frame, sendBuffer)}
	if h.latest != nil {
		sub.ch <- *h.latest
	}
	h.subs[sub] = struct{}{}
	return sub, true
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// ServeHTTP upgrades the request and streams frames until the spectator
// leaves. Spectators are read-only; a data frame from them ends the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Debug("spectator_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	sub, ok := h.subscribe()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unsubscribe(sub)
	h.logger.Debug("spectator_joined", zap.String("remote", r.RemoteAddr))

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case f, open := <-sub.ch:
			if !open {
				conn.Close(websocket.StatusPolicyViolation, "spectator too slow or feed closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, f)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Close disconnects every spectator.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Server serves a Hub at Path.
type Server struct {
	hub *Hub
	ln  net.Listener
	srv *http.Server
}

func Listen(addr string, hub *Hub) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(Path, hub)
	s := &Server{
		hub: hub,
		ln:  ln,
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hub.logger.Warn("spectate_serve_failed", zap.Error(err))
		}
	}()
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}
