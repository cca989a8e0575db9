package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/gameapi"
	"github.com/park285/cheese-chess-client/internal/rules"
)

// Remote is the game service. *gameapi.Client satisfies it.
type Remote interface {
	Reset(ctx context.Context) (*gameapi.Response, error)
	MakeMove(ctx context.Context, san string) (*gameapi.Response, error)
	AIMove(ctx context.Context, difficulty string) (*gameapi.Response, error)
}

// Observer receives every published state in transition order. Observers run
// on the goroutine that caused the transition and must not call mutating
// Controller methods.
type Observer func(State)

type Config struct {
	Difficulty  Difficulty
	PlayerColor rules.Color
	// AIDelay is the pause before the automatic AI reply.
	AIDelay time.Duration
	// AITimeout bounds the automatic AI request.
	AITimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Difficulty == "" {
		c.Difficulty = Medium
	}
	if c.PlayerColor == "" {
		c.PlayerColor = rules.White
	}
	if c.AIDelay <= 0 {
		c.AIDelay = 500 * time.Millisecond
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 10 * time.Second
	}
	return c
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMessages(m Messages) Option {
	return func(c *Controller) { c.msgs = m }
}

// WithIDGenerator replaces uuid session ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// Controller is the game session controller. It is safe for concurrent use;
// at most one remote operation runs at a time.
type Controller struct {
	remote Remote
	msgs   Messages
	logger *zap.Logger
	newID  func() string
	cfg    Config

	state atomic.Pointer[State]

	mu     sync.Mutex
	busy   bool
	closed bool
	timer  *time.Timer
	gen    uint64
	replay *rules.Replay
	queue  []State
	obs    map[int]Observer
	nextID int
	wg     sync.WaitGroup

	notifyMu sync.Mutex
}

func New(remote Remote, cfg Config, opts ...Option) (*Controller, error) {
	if remote == nil {
		return nil, errors.New("session: remote is required")
	}
	cfg = cfg.withDefaults()
	if _, err := ParseDifficulty(string(cfg.Difficulty)); err != nil {
		return nil, err
	}
	if _, err := ParseColor(string(cfg.PlayerColor)); err != nil {
		return nil, err
	}
	c := &Controller{
		remote: remote,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		cfg:    cfg,
		obs:    make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(&State{
		Turn:        rules.White,
		Status:      StatusInProgress,
		StatusText:  statusText(c.msgs, StatusInProgress, ""),
		Difficulty:  cfg.Difficulty,
		PlayerColor: cfg.PlayerColor,
		Pending:     PendingNone,
	})
	return c, nil
}

// State returns the latest snapshot without locking.
func (c *Controller) State() State { return *c.state.Load() }

// Subscribe registers fn and returns an id for Unsubscribe.
func (c *Controller) Subscribe(fn Observer) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.obs[c.nextID] = fn
	return c.nextID
}

func (c *Controller) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.obs, id)
}

// StartNewSession requests a fresh game. On failure the previous position is
// kept and the status reports the failure.
func (c *Controller) StartNewSession(ctx context.Context) (State, error) {
	c.mu.Lock()
	if err := c.beginLocked(PendingNewSession); err != nil {
		cur := c.State()
		c.mu.Unlock()
		return cur, err
	}
	c.mu.Unlock()
	c.flush()

	resp, err := c.remote.Reset(ctx)
	var pos *rules.Position
	if err == nil {
		pos, err = rules.Parse(resp.FEN)
	}

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.logger.Warn("session_start_failed", zap.Error(err))
		next := c.State()
		next.Status = StatusError
		next.StatusText = statusText(c.msgs, StatusError, "")
		next.Winner = ""
		next.Pending = PendingNone
		out := c.publishLocked(next)
		c.mu.Unlock()
		c.flush()
		return out, fmt.Errorf("start new session: %w", err)
	}

	c.replay = rules.NewReplay(pos)
	next := c.State()
	next.SessionID = c.newID()
	next.MovesSAN = nil
	next.LastMove = LastMove{}
	next.StartFEN = pos.FEN()
	next.HistoryComplete = true
	next.Opening = ""
	c.applyPositionLocked(&next, pos)
	out := c.publishLocked(next)
	c.mu.Unlock()
	c.flush()

	c.logger.Info("session_started",
		zap.String("session_id", out.SessionID),
		zap.String("fen", out.FEN),
	)
	return out, nil
}

// SubmitMove validates from→to locally, forwards it as SAN and adopts the
// service position. Pawns reaching the last rank promote to a queen.
func (c *Controller) SubmitMove(ctx context.Context, from, to string) (State, error) {
	c.mu.Lock()
	cur := c.State()
	mv, err := c.checkMoveLocked(cur, from, to)
	if err != nil {
		c.mu.Unlock()
		return cur, err
	}
	if err := c.beginLocked(PendingHumanMove); err != nil {
		c.mu.Unlock()
		return c.State(), err
	}
	c.mu.Unlock()
	c.flush()

	resp, err := c.remote.MakeMove(ctx, mv.SAN)
	var pos *rules.Position
	if err == nil {
		pos, err = rules.Parse(resp.FEN)
	}

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.logger.Warn("move_submit_failed",
			zap.String("session_id", cur.SessionID),
			zap.String("san", mv.SAN),
			zap.Error(err),
		)
		out := c.clearPendingLocked()
		c.mu.Unlock()
		c.flush()
		return out, fmt.Errorf("submit move %s: %w", mv.SAN, err)
	}

	next := c.State()
	c.advanceLocked(&next, pos, mv.SAN)
	if !pos.IsGameOver() && pos.Turn() != next.PlayerColor && !c.closed {
		c.scheduleLocked()
		next.Pending = PendingAIScheduled
	}
	out := c.publishLocked(next)
	c.mu.Unlock()
	c.flush()

	c.logger.Info("human_move",
		zap.String("session_id", out.SessionID),
		zap.String("san", mv.SAN),
		zap.String("fen", out.FEN),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

func (c *Controller) checkMoveLocked(cur State, from, to string) (rules.Move, error) {
	switch {
	case c.closed:
		return rules.Move{}, ErrClosed
	case c.busy:
		return rules.Move{}, ErrBusy
	case cur.pos == nil:
		return rules.Move{}, ErrNoPosition
	case cur.pos.IsGameOver():
		return rules.Move{}, ErrGameOver
	case cur.pos.Turn() != cur.PlayerColor:
		return rules.Move{}, ErrNotYourTurn
	}
	mv, err := cur.pos.TryMove(from, to, rules.NoKind)
	if err != nil {
		return rules.Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return mv, nil
}

// RequestAIMove asks the service to play the side to move. It does nothing
// when the game is over.
func (c *Controller) RequestAIMove(ctx context.Context) (State, error) {
	c.mu.Lock()
	cur := c.State()
	var err error
	switch {
	case c.closed:
		err = ErrClosed
	case c.busy:
		err = ErrBusy
	case cur.pos == nil:
		err = ErrNoPosition
	case cur.pos.IsGameOver():
		c.mu.Unlock()
		return cur, nil
	default:
		err = c.beginLocked(PendingAIMove)
	}
	if err != nil {
		c.mu.Unlock()
		return cur, err
	}
	c.mu.Unlock()
	c.flush()

	return c.runAIMove(ctx, cur.Difficulty, "manual")
}

// runAIMove performs the remote call. The caller holds the busy flag.
func (c *Controller) runAIMove(ctx context.Context, d Difficulty, source string) (State, error) {
	resp, err := c.remote.AIMove(ctx, string(d))
	var pos *rules.Position
	if err == nil {
		pos, err = rules.Parse(resp.FEN)
	}

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.logger.Warn("ai_move_failed",
			zap.String("source", source),
			zap.String("difficulty", string(d)),
			zap.Error(err),
		)
		out := c.clearPendingLocked()
		c.mu.Unlock()
		c.flush()
		return out, fmt.Errorf("ai move: %w", err)
	}
	next := c.State()
	c.advanceLocked(&next, pos, resp.Move)
	out := c.publishLocked(next)
	c.mu.Unlock()
	c.flush()

	c.logger.Info("ai_move",
		zap.String("session_id", out.SessionID),
		zap.String("source", source),
		zap.String("san", out.LastMove.SAN),
		zap.String("fen", out.FEN),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

func (c *Controller) SetDifficulty(s string) (State, error) {
	d, err := ParseDifficulty(s)
	if err != nil {
		return c.State(), err
	}
	c.mu.Lock()
	next := c.State()
	next.Difficulty = d
	out := c.publishLocked(next)
	c.mu.Unlock()
	c.flush()
	return out, nil
}

// SetPlayerColor changes sides. A scheduled AI move is dropped.
func (c *Controller) SetPlayerColor(s string) (State, error) {
	color, err := ParseColor(s)
	if err != nil {
		return c.State(), err
	}
	c.mu.Lock()
	c.cancelScheduledLocked()
	next := c.State()
	next.PlayerColor = color
	if next.Pending == PendingAIScheduled {
		next.Pending = PendingNone
	}
	out := c.publishLocked(next)
	c.mu.Unlock()
	c.flush()
	return out, nil
}

// Close drops any scheduled AI move and waits for timer callbacks.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelScheduledLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) beginLocked(p Pending) error {
	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	c.cancelScheduledLocked()
	c.busy = true
	next := c.State()
	next.Pending = p
	c.publishLocked(next)
	return nil
}

func (c *Controller) scheduleLocked() {
	c.gen++
	gen := c.gen
	c.wg.Add(1)
	c.timer = time.AfterFunc(c.cfg.AIDelay, func() {
		defer c.wg.Done()
		c.fireScheduled(gen)
	})
}

func (c *Controller) cancelScheduledLocked() {
	c.gen++
	if c.timer != nil {
		if c.timer.Stop() {
			c.wg.Done()
		}
		c.timer = nil
	}
}

func (c *Controller) fireScheduled(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.busy {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	cur := c.State()
	if cur.pos == nil || cur.pos.IsGameOver() {
		c.clearPendingLocked()
		c.mu.Unlock()
		c.flush()
		return
	}
	c.busy = true
	next := cur
	next.Pending = PendingAIMove
	c.publishLocked(next)
	c.mu.Unlock()
	c.flush()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AITimeout)
	defer cancel()
	_, _ = c.runAIMove(ctx, cur.Difficulty, "scheduled")
}

func (c *Controller) advanceLocked(next *State, pos *rules.Position, sanHint string) {
	if c.replay == nil {
		c.replay = rules.NewReplay(pos)
		next.StartFEN = pos.FEN()
	}
	if mv, ok := c.replay.Advance(pos, sanHint); ok {
		next.MovesSAN = c.replay.SANs()
		next.LastMove = LastMove{From: mv.From, To: mv.To, SAN: mv.SAN}
	}
	next.HistoryComplete = c.replay.Complete()
	c.applyPositionLocked(next, pos)
}

func (c *Controller) applyPositionLocked(next *State, pos *rules.Position) {
	next.pos = pos
	next.FEN = pos.FEN()
	next.Turn = pos.Turn()
	next.Status, next.Winner = deriveStatus(pos)
	next.StatusText = statusText(c.msgs, next.Status, next.Winner)
	next.Opening = ""
	if c.replay != nil {
		if op, ok := c.replay.Opening(); ok {
			next.Opening = op.String()
		}
	}
	next.Pending = PendingNone
}

func (c *Controller) clearPendingLocked() State {
	next := c.State()
	next.Pending = PendingNone
	return c.publishLocked(next)
}

func (c *Controller) publishLocked(next State) State {
	next.Version = c.State().Version + 1
	c.state.Store(&next)
	c.queue = append(c.queue, next)
	return next
}

// flush delivers queued states. notifyMu keeps deliveries ordered across
// goroutines.
func (c *Controller) flush() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		batch := c.queue
		c.queue = nil
		observers := make([]Observer, 0, len(c.obs))
		for id := 1; id <= c.nextID; id++ {
			if fn, ok := c.obs[id]; ok {
				observers = append(observers, fn)
			}
		}
		c.mu.Unlock()
		for _, s := range batch {
			for _, fn := range observers {
				fn(s)
			}
		}
	}
}
