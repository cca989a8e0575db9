package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/park285/cheese-chess-client/internal/gameapi"
	"github.com/park285/cheese-chess-client/internal/gameapi/fakeservice"
	"github.com/park285/cheese-chess-client/internal/rules"
)

const (
	afterE4FEN   = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	foolsMateFEN = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	scholarFEN   = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4"
)

// scriptedRemote answers with fixed FENs and counts calls.
type scriptedRemote struct {
	mu       sync.Mutex
	resetFEN string
	resetErr error
	moveFEN  string
	moveErr  error
	aiFEN    string
	aiErr    error
	calls    map[string]int
	moves    []string
	levels   []string
}

func newScripted() *scriptedRemote {
	return &scriptedRemote{resetFEN: rules.StartFEN, moveFEN: afterE4FEN, calls: map[string]int{}}
}

func (r *scriptedRemote) Reset(ctx context.Context) (*gameapi.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["reset"]++
	if r.resetErr != nil {
		return nil, r.resetErr
	}
	return &gameapi.Response{FEN: r.resetFEN}, nil
}

func (r *scriptedRemote) MakeMove(ctx context.Context, san string) (*gameapi.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["move"]++
	r.moves = append(r.moves, san)
	if r.moveErr != nil {
		return nil, r.moveErr
	}
	return &gameapi.Response{FEN: r.moveFEN}, nil
}

func (r *scriptedRemote) AIMove(ctx context.Context, difficulty string) (*gameapi.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["ai"]++
	r.levels = append(r.levels, difficulty)
	if r.aiErr != nil {
		return nil, r.aiErr
	}
	return &gameapi.Response{FEN: r.aiFEN}, nil
}

func (r *scriptedRemote) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func newController(t *testing.T, remote Remote, cfg Config) *Controller {
	t.Helper()
	c, err := New(remote, cfg, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, c *Controller, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.State(); cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state=%+v", what, c.State())
	return State{}
}

func TestInitialState(t *testing.T) {
	c := newController(t, newScripted(), Config{})
	s := c.State()
	if s.FEN != "" || s.HasPosition() {
		t.Fatalf("expected no position, got %q", s.FEN)
	}
	if s.Turn != rules.White || s.StatusText != "Game in progress" || s.Pending != PendingNone {
		t.Fatalf("initial state = %+v", s)
	}
	if s.Difficulty != Medium || s.PlayerColor != rules.White {
		t.Fatalf("defaults = %s/%s", s.Difficulty, s.PlayerColor)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(newScripted(), Config{Difficulty: "brutal"}); !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(newScripted(), Config{PlayerColor: "green"}); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("nil remote accepted")
	}
}

func TestStartNewSession(t *testing.T) {
	c := newController(t, newScripted(), Config{})
	s, err := c.StartNewSession(context.Background())
	if err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if s.FEN != rules.StartFEN || s.Turn != rules.White || s.Status != StatusInProgress {
		t.Fatalf("state = %+v", s)
	}
	if s.SessionID == "" || s.Pending != PendingNone {
		t.Fatalf("session id %q pending %s", s.SessionID, s.Pending)
	}
	first := s.SessionID
	s, err = c.StartNewSession(context.Background())
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if s.SessionID == first {
		t.Fatalf("session id not regenerated")
	}
}

func TestStartFailureKeepsPosition(t *testing.T) {
	remote := newScripted()
	c := newController(t, remote, Config{})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	before := c.State()

	remote.mu.Lock()
	remote.resetErr = errors.New("connection refused")
	remote.mu.Unlock()
	s, err := c.StartNewSession(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if s.StatusText != "Failed to start new game" || s.Status != StatusError {
		t.Fatalf("status = %s %q", s.Status, s.StatusText)
	}
	if s.FEN != before.FEN || s.SessionID != before.SessionID || len(s.MovesSAN) != 1 {
		t.Fatalf("position changed on failed start: %+v", s)
	}
}

func TestStartFailureBeforeFirstSession(t *testing.T) {
	remote := newScripted()
	remote.resetErr = errors.New("down")
	c := newController(t, remote, Config{})
	s, err := c.StartNewSession(context.Background())
	if err == nil || s.StatusText != "Failed to start new game" || s.FEN != "" {
		t.Fatalf("state = %+v err = %v", s, err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("SubmitMove err = %v", err)
	}
}

func TestStartRejectsBadServerFEN(t *testing.T) {
	remote := newScripted()
	remote.resetFEN = "not a fen"
	c := newController(t, remote, Config{})
	s, err := c.StartNewSession(context.Background())
	if !errors.Is(err, rules.ErrInvalidFEN) {
		t.Fatalf("err = %v", err)
	}
	if s.FEN != "" || s.Status != StatusError {
		t.Fatalf("state = %+v", s)
	}
}

func TestSubmitMoveE4(t *testing.T) {
	remote := newScripted()
	c := newController(t, remote, Config{AIDelay: time.Hour})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	s, err := c.SubmitMove(context.Background(), "e2", "e4")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if s.FEN != afterE4FEN || s.Turn != rules.Black || s.StatusText != "Game in progress" {
		t.Fatalf("state = %+v", s)
	}
	if s.Pending != PendingAIScheduled {
		t.Fatalf("pending = %s", s.Pending)
	}
	if len(remote.moves) != 1 || remote.moves[0] != "e4" {
		t.Fatalf("sent moves = %v", remote.moves)
	}
	if len(s.MovesSAN) != 1 || s.LastMove != (LastMove{From: "e2", To: "e4", SAN: "e4"}) {
		t.Fatalf("history = %v last = %+v", s.MovesSAN, s.LastMove)
	}
}

func TestIllegalMoveMakesNoCall(t *testing.T) {
	remote := newScripted()
	c := newController(t, remote, Config{})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	before := c.State()
	s, err := c.SubmitMove(context.Background(), "e2", "e5")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v", err)
	}
	if remote.count("move") != 0 {
		t.Fatalf("illegal move reached the service")
	}
	if s.Version != before.Version || c.State().Version != before.Version {
		t.Fatalf("state published for illegal move")
	}
}

func TestNotYourTurn(t *testing.T) {
	remote := newScripted()
	c := newController(t, remote, Config{PlayerColor: rules.Black})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("err = %v", err)
	}
	if remote.count("move") != 0 {
		t.Fatalf("move reached the service")
	}
}

func TestServerCheckmateStopsAI(t *testing.T) {
	remote := newScripted()
	remote.moveFEN = foolsMateFEN
	c := newController(t, remote, Config{AIDelay: 10 * time.Millisecond})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	s, err := c.SubmitMove(context.Background(), "e2", "e4")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if s.StatusText != "Checkmate! Black wins!" || s.Winner != rules.Black || s.Status != StatusCheckmate {
		t.Fatalf("status = %+v", s)
	}
	if s.Pending != PendingNone {
		t.Fatalf("pending = %s", s.Pending)
	}
	time.Sleep(60 * time.Millisecond)
	if n := remote.count("ai"); n != 0 {
		t.Fatalf("ai calls = %d after checkmate", n)
	}
	if _, err := c.SubmitMove(context.Background(), "a2", "a3"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("move after mate err = %v", err)
	}
	if _, err := c.RequestAIMove(context.Background()); err != nil || remote.count("ai") != 0 {
		t.Fatalf("RequestAIMove after mate err = %v calls = %d", err, remote.count("ai"))
	}
}

func TestMoveFailureLeavesState(t *testing.T) {
	remote := newScripted()
	c := newController(t, remote, Config{AIDelay: 10 * time.Millisecond})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	before := c.State()
	remote.mu.Lock()
	remote.moveErr = &gameapi.APIError{StatusCode: 400, Message: "Invalid move"}
	remote.mu.Unlock()

	s, err := c.SubmitMove(context.Background(), "e2", "e4")
	var apiErr *gameapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if s.FEN != before.FEN || s.StatusText != before.StatusText || s.Pending != PendingNone {
		t.Fatalf("state changed: %+v", s)
	}
	time.Sleep(40 * time.Millisecond)
	if remote.count("ai") != 0 {
		t.Fatalf("ai scheduled after failed move")
	}
}

func TestBadServerFENOnMoveIgnored(t *testing.T) {
	remote := newScripted()
	remote.moveFEN = "garbage"
	c := newController(t, remote, Config{})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	s, err := c.SubmitMove(context.Background(), "e2", "e4")
	if !errors.Is(err, rules.ErrInvalidFEN) || s.FEN != rules.StartFEN {
		t.Fatalf("state = %+v err = %v", s, err)
	}
}

func TestAIFailureIsLoggedOnly(t *testing.T) {
	remote := newScripted()
	remote.aiErr = errors.New("ai down")
	c := newController(t, remote, Config{AIDelay: 5 * time.Millisecond})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	s := waitFor(t, c, "ai attempt", func(s State) bool {
		return remote.count("ai") == 1 && s.Pending == PendingNone
	})
	if s.FEN != afterE4FEN || s.Turn != rules.Black {
		t.Fatalf("state after ai failure = %+v", s)
	}
}

func TestManualAIMoveUsesDifficulty(t *testing.T) {
	remote := newScripted()
	remote.aiFEN = afterE4FEN
	c := newController(t, remote, Config{})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SetDifficulty("hard"); err != nil {
		t.Fatalf("SetDifficulty: %v", err)
	}
	s, err := c.RequestAIMove(context.Background())
	if err != nil {
		t.Fatalf("RequestAIMove: %v", err)
	}
	if s.FEN != afterE4FEN || s.LastMove.SAN != "e4" {
		t.Fatalf("state = %+v", s)
	}
	if len(remote.levels) != 1 || remote.levels[0] != "hard" {
		t.Fatalf("difficulties sent = %v", remote.levels)
	}
}

func TestSettersValidate(t *testing.T) {
	c := newController(t, newScripted(), Config{})
	if _, err := c.SetDifficulty("impossible"); !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.SetPlayerColor("purple"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("err = %v", err)
	}
	s, err := c.SetPlayerColor("black")
	if err != nil || s.PlayerColor != rules.Black {
		t.Fatalf("SetPlayerColor = %+v %v", s, err)
	}
	s, err = c.SetDifficulty("EASY")
	if err != nil || s.Difficulty != Easy {
		t.Fatalf("SetDifficulty = %+v %v", s, err)
	}
}

func TestObserversSeeOrderedTransitions(t *testing.T) {
	remote := newScripted()
	remote.aiFEN = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	c := newController(t, remote, Config{AIDelay: 5 * time.Millisecond})

	var mu sync.Mutex
	var seen []State
	done := make(chan struct{})
	id := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
		if s.Pending == PendingNone && len(s.MovesSAN) == 2 {
			close(done)
		}
	})
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("ai reply not observed; state=%+v", c.State())
	}
	c.Unsubscribe(id)

	mu.Lock()
	defer mu.Unlock()
	pendings := make([]Pending, 0, len(seen))
	for i, s := range seen {
		if i > 0 && s.Version != seen[i-1].Version+1 {
			t.Fatalf("versions out of order: %d after %d", s.Version, seen[i-1].Version)
		}
		pendings = append(pendings, s.Pending)
	}
	want := []Pending{PendingNewSession, PendingNone, PendingHumanMove, PendingAIScheduled, PendingAIMove, PendingNone}
	if len(pendings) != len(want) {
		t.Fatalf("pending sequence = %v", pendings)
	}
	for i := range want {
		if pendings[i] != want[i] {
			t.Fatalf("pending sequence = %v, want %v", pendings, want)
		}
	}
	if last := seen[len(seen)-1]; last.MovesSAN[1] != "e5" {
		t.Fatalf("history = %v", last.MovesSAN)
	}
}

func TestCustomMessages(t *testing.T) {
	remote := newScripted()
	remote.moveFEN = foolsMateFEN
	c, err := New(remote, Config{}, WithMessages(stubMessages{"status.checkmate": "Mat! {{.Winner}}"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	s, _ := c.SubmitMove(context.Background(), "e2", "e4")
	if s.StatusText != "Mat! Black" {
		t.Fatalf("text = %q", s.StatusText)
	}
	// keys the catalog lacks fall back to the built-in texts
	if s2, _ := c.StartNewSession(context.Background()); s2.StatusText != "Game in progress" {
		t.Fatalf("fallback text = %q", s2.StatusText)
	}
}

type stubMessages map[string]string

func (m stubMessages) Render(key string, data any) (string, error) {
	tpl, ok := m[key]
	if !ok {
		return "", errors.New("missing")
	}
	w, _ := data.(map[string]any)["Winner"].(string)
	return strings.ReplaceAll(tpl, "{{.Winner}}", w), nil
}

func TestCloseCancelsScheduledAI(t *testing.T) {
	remote := newScripted()
	c, err := New(remote, Config{AIDelay: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if _, err := c.SubmitMove(context.Background(), "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	c.Close()
	time.Sleep(80 * time.Millisecond)
	if remote.count("ai") != 0 {
		t.Fatalf("ai fired after Close")
	}
	if _, err := c.StartNewSession(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("start after close err = %v", err)
	}
}

func TestAgainstFakeService(t *testing.T) {
	srv := fakeservice.New()
	defer srv.Close()
	srv.SetResetFEN(scholarFEN)
	c := newController(t, srv.Client(), Config{AIDelay: 10 * time.Millisecond})

	if _, err := c.StartNewSession(context.Background()); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	s, err := c.SubmitMove(context.Background(), "h5", "f7")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if s.StatusText != "Checkmate! White wins!" || !strings.HasPrefix(s.LastMove.SAN, "Qxf7") {
		t.Fatalf("state = %+v", s)
	}
	time.Sleep(50 * time.Millisecond)
	if n := srv.Calls(gameapi.DefaultAIPath); n != 0 {
		t.Fatalf("ai calls = %d", n)
	}
}
