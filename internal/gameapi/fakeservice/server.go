// Package fakeservice serves the game service contract from memory for tests.
package fakeservice

import (
	"encoding/json"
	"net"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-chess-client/internal/gameapi"
	"github.com/park285/cheese-chess-client/internal/rules"
)

// Server plays both sides of the contract: it validates human moves and
// answers AI requests from a scripted queue, falling back to the first legal
// move.
type Server struct {
	mu         sync.Mutex
	pos        *rules.Position
	resetFEN   string
	script     []string
	failures   map[string][]int
	calls      map[string]int
	bodies     map[string][]string
	gate       chan struct{}
	arrived    chan string
	reportMove bool

	ln  *fasthttputil.InmemoryListener
	srv *fasthttp.Server
}

func New() *Server {
	s := &Server{
		pos:        rules.MustParse(rules.StartFEN),
		resetFEN:   rules.StartFEN,
		failures:   make(map[string][]int),
		calls:      make(map[string]int),
		bodies:     make(map[string][]string),
		arrived:    make(chan string, 64),
		reportMove: true,
		ln:         fasthttputil.NewInmemoryListener(),
	}
	s.srv = &fasthttp.Server{Handler: s.handle}
	go func() { _ = s.srv.Serve(s.ln) }()
	return s
}

// BaseURL is the URL clients dialing through Dial should use.
const BaseURL = "http://chess.test"

// Dial connects to the in-memory listener regardless of addr.
func (s *Server) Dial(addr string) (net.Conn, error) { return s.ln.Dial() }

// Client returns a game api client wired to the in-memory listener.
func (s *Server) Client(opts ...gameapi.Option) *gameapi.Client {
	all := append([]gameapi.Option{gameapi.WithDial(s.Dial)}, opts...)
	return gameapi.NewClient(BaseURL, all...)
}

func (s *Server) Close() {
	s.Release()
	_ = s.srv.Shutdown()
	_ = s.ln.Close()
}

// SetPosition replaces the current server position.
func (s *Server) SetPosition(fen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = rules.MustParse(fen)
}

// SetResetFEN sets the position handed out by /reset.
func (s *Server) SetResetFEN(fen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetFEN = fen
}

// ScriptAI queues UCI moves for /ai_move.
func (s *Server) ScriptAI(moves ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, moves...)
}

// ReportMove controls whether /ai_move includes the SAN of its move.
func (s *Server) ReportMove(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportMove = on
}

// FailNext makes the next call to path answer with status.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], status)
}

// Hold blocks every request until Release is called.
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Arrived receives the path of every request as it enters the handler.
func (s *Server) Arrived() <-chan string { return s.arrived }

func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Bodies returns the raw request bodies seen on path.
func (s *Server) Bodies(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies[path]...)
}

func (s *Server) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.FEN()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	s.mu.Lock()
	s.calls[path]++
	s.bodies[path] = append(s.bodies[path], string(ctx.PostBody()))
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.arrived <- path:
	default:
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.failures[path]; len(q) > 0 {
		s.failures[path] = q[1:]
		writeJSON(ctx, q[0], gameapi.Response{Status: "error", Message: "injected failure"})
		return
	}

	switch path {
	case gameapi.DefaultResetPath:
		s.pos = rules.MustParse(s.resetFEN)
		writeJSON(ctx, fasthttp.StatusOK, gameapi.Response{Status: "success", FEN: s.pos.FEN()})
	case gameapi.DefaultMovePath:
		var req gameapi.MoveRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeJSON(ctx, fasthttp.StatusBadRequest, gameapi.Response{Status: "error", Message: "Invalid request"})
			return
		}
		mv, err := s.pos.PlaySAN(req.Move)
		if err != nil {
			writeJSON(ctx, fasthttp.StatusBadRequest, gameapi.Response{Status: "error", Message: "Invalid move"})
			return
		}
		s.pos = rules.MustParse(mv.FEN)
		writeJSON(ctx, fasthttp.StatusOK, gameapi.Response{Status: "success", FEN: s.pos.FEN()})
	case gameapi.DefaultAIPath:
		mv, ok := s.nextAIMove()
		if !ok {
			writeJSON(ctx, fasthttp.StatusBadRequest, gameapi.Response{Status: "error", Message: "Game is over"})
			return
		}
		s.pos = rules.MustParse(mv.FEN)
		resp := gameapi.Response{Status: "success", FEN: s.pos.FEN()}
		if s.reportMove {
			resp.Move = mv.SAN
		}
		writeJSON(ctx, fasthttp.StatusOK, resp)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) nextAIMove() (rules.Move, bool) {
	for len(s.script) > 0 {
		uci := strings.ToLower(strings.TrimSpace(s.script[0]))
		s.script = s.script[1:]
		if len(uci) < 4 {
			continue
		}
		if mv, err := s.pos.TryMove(uci[:2], uci[2:4], rules.NoKind); err == nil {
			return mv, true
		}
	}
	opt, err := nchess.FEN(s.pos.FEN())
	if err != nil {
		return rules.Move{}, false
	}
	legal := nchess.NewGame(opt).ValidMoves()
	if len(legal) == 0 {
		return rules.Move{}, false
	}
	mv, err := s.pos.TryMove(legal[0].S1().String(), legal[0].S2().String(), rules.NoKind)
	return mv, err == nil
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	b, _ := json.Marshal(body)
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}
