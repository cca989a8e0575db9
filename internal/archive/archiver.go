package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/rules"
	"github.com/park285/cheese-chess-client/internal/session"
)

const (
	ResultWhite = "1-0"
	ResultBlack = "0-1"
	ResultDraw  = "1/2-1/2"
)

// Saver persists finished sessions. *Repository satisfies it.
type Saver interface {
	Save(ctx context.Context, rec *Record) error
}

// RecordFromState builds the archive row for a finished session. ok is false
// while the game is still running.
func RecordFromState(s session.State, now time.Time) (*Record, bool) {
	pos := s.Position()
	if s.SessionID == "" || pos == nil || !pos.IsGameOver() {
		return nil, false
	}
	rec := &Record{
		SessionID:   s.SessionID,
		Termination: pos.Termination(),
		Difficulty:  string(s.Difficulty),
		PlayerColor: string(s.PlayerColor),
		FinalFEN:    s.FEN,
		MovesSAN:    append([]string(nil), s.MovesSAN...),
		Opening:     s.Opening,
		EndedAt:     now.UTC(),
	}
	switch {
	case !pos.IsCheckmate():
		rec.Result = ResultDraw
	case s.Winner == rules.White:
		rec.Result = ResultWhite
	default:
		rec.Result = ResultBlack
	}
	if pgn, err := BuildPGN(rec, s.StartFEN, s.HistoryComplete); err == nil {
		rec.PGN = pgn
	}
	return rec, true
}

// BuildPGN renders the game from startFEN. When the history has gaps or does
// not replay, the PGN starts from the final position instead.
func BuildPGN(rec *Record, startFEN string, complete bool) (string, error) {
	human := "Player"
	ai := "AI (" + rec.Difficulty + ")"
	white, black := human, ai
	if rec.PlayerColor == string(rules.Black) {
		white, black = ai, human
	}
	tags := map[string]string{
		"Event": "Casual game",
		"Site":  "chess-client",
		"Date":  rec.EndedAt.Format("2006.01.02"),
		"Round": "-",
		"White": white,
		"Black": black,
	}
	if rec.Opening != "" {
		tags["Opening"] = rec.Opening
	}

	if complete && startFEN != "" {
		if pgn, err := rules.PGN(startFEN, rec.MovesSAN, tags); err == nil {
			return pgn, nil
		}
	}
	return rules.PGN(rec.FinalFEN, nil, tags)
}

// Archiver saves each finished session once. Observe hands records to a
// background writer and never blocks the controller.
type Archiver struct {
	saver  Saver
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	seen   map[string]struct{}
	closed bool
	queue  chan *Record
	done   chan struct{}
}

func NewArchiver(saver Saver, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archiver{
		saver:  saver,
		logger: logger,
		now:    time.Now,
		seen:   make(map[string]struct{}),
		queue:  make(chan *Record, 16),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Archiver) Observe(s session.State) {
	if a == nil {
		return
	}
	rec, ok := RecordFromState(s, a.now())
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if _, dup := a.seen[rec.SessionID]; dup {
		return
	}
	a.seen[rec.SessionID] = struct{}{}
	select {
	case a.queue <- rec:
	default:
		a.logger.Warn("archive_queue_full", zap.String("session_id", rec.SessionID))
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for rec := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.saver.Save(ctx, rec)
		cancel()
		switch {
		case err == nil:
			a.logger.Info("session_archived",
				zap.String("session_id", rec.SessionID),
				zap.String("result", rec.Result),
				zap.String("termination", rec.Termination),
			)
		case errors.Is(err, ErrDuplicateSession):
			a.logger.Debug("session_already_archived", zap.String("session_id", rec.SessionID))
		default:
			a.logger.Warn("session_archive_failed", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}
}

// Close waits for queued records to be written.
func (a *Archiver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}
