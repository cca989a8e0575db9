package rules

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func bookECO() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// Opening is an ECO classification.
type Opening struct {
	Code  string
	Title string
}

func (o Opening) String() string {
	if o.Code == "" {
		return ""
	}
	return o.Code + " " + o.Title
}

// Replay follows a sequence of adopted positions and keeps the SAN history.
// Positions that cannot be linked by one legal move re-anchor the replay;
// the history is then marked incomplete and opening lookup stops.
// Replay is not safe for concurrent use.
type Replay struct {
	last   *Position
	game   *nchess.Game
	moves  []Move
	broken bool
}

func NewReplay(start *Position) *Replay {
	r := &Replay{last: start}
	if start != nil && start.Placement() == placementOf(StartFEN) && start.Turn() == White {
		if g, err := newGame(start.FEN()); err == nil {
			r.game = g
		}
	}
	return r
}

// Advance records the move leading to next. sanHint is used when the move
// cannot be inferred.
func (r *Replay) Advance(next *Position, sanHint string) (Move, bool) {
	if next == nil {
		return Move{}, false
	}
	if r.last != nil && r.last.FEN() == next.FEN() {
		return Move{}, false
	}
	mv, err := Infer(r.last, next)
	if err != nil {
		r.broken = true
		r.game = nil
		r.last = next
		if sanHint == "" {
			return Move{}, false
		}
		mv = Move{SAN: sanHint, FEN: next.FEN()}
		r.moves = append(r.moves, mv)
		return mv, true
	}
	if r.game != nil {
		if err := r.game.PushNotationMove(mv.UCI, nchess.UCINotation{}, nil); err != nil {
			r.game = nil
		}
	}
	r.last = next
	r.moves = append(r.moves, mv)
	return mv, true
}

// Complete is false once the history has gaps.
func (r *Replay) Complete() bool { return !r.broken }

func (r *Replay) Moves() []Move {
	out := make([]Move, len(r.moves))
	copy(out, r.moves)
	return out
}

func (r *Replay) SANs() []string {
	out := make([]string, 0, len(r.moves))
	for _, m := range r.moves {
		out = append(out, m.SAN)
	}
	return out
}

// Opening returns the deepest ECO entry matching the history.
func (r *Replay) Opening() (Opening, bool) {
	if r.game == nil || len(r.game.Moves()) == 0 {
		return Opening{}, false
	}
	book := bookECO()
	if book == nil {
		return Opening{}, false
	}
	eco := book.Find(r.game.Moves())
	if eco == nil {
		return Opening{}, false
	}
	return Opening{Code: eco.Code(), Title: eco.Title()}, true
}
