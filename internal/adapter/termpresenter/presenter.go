package termpresenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/cheese-chess-client/internal/render"
	"github.com/park285/cheese-chess-client/internal/session"
)

// Texts resolves message keys. *msgcat.Catalog satisfies it.
type Texts interface {
	Text(key string, data any, fallback string) string
}

// Presenter writes session transitions to a terminal. Observe is safe to
// register as a session.Observer.
type Presenter struct {
	mu    sync.Mutex
	out   io.Writer
	texts Texts
	color bool

	shownFEN     string
	shownStatus  session.Status
	shownVersion uint64
}

func New(out io.Writer, texts Texts, color bool) *Presenter {
	return &Presenter{out: out, texts: texts, color: color}
}

// Observe prints progress notices and redraws the board whenever the position
// or status changed since the last redraw.
func (p *Presenter) Observe(s session.State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Version != 0 && s.Version <= p.shownVersion {
		return
	}
	p.shownVersion = s.Version

	switch s.Pending {
	case session.PendingNewSession:
		p.line("term.starting", nil, "Starting a new game...")
	case session.PendingAIMove:
		p.line("term.thinking", nil, "AI is thinking...")
	}

	if s.FEN == p.shownFEN && s.Status == p.shownStatus {
		return
	}
	if s.FEN == "" && s.Status != session.StatusError {
		return
	}
	p.shownFEN = s.FEN
	p.shownStatus = s.Status
	p.board(s)
}

// Board redraws unconditionally.
func (p *Presenter) Board(s session.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board(s)
}

func (p *Presenter) board(s session.State) {
	if pos := s.Position(); pos != nil {
		fmt.Fprintln(p.out)
		fmt.Fprint(p.out, render.Text(pos.Board(), render.TextOptions{
			Orientation: s.PlayerColor,
			LastFrom:    s.LastMove.From,
			LastTo:      s.LastMove.To,
			Color:       p.color,
		}))
		turn := render.ColorForTurn(s.Turn, p.color)
		p.line("term.turn", map[string]any{"Turn": turn}, "Current turn: "+turn)
	}
	p.line("term.status", map[string]any{"Status": s.StatusText}, "Status: "+s.StatusText)
	if s.Opening != "" {
		p.line("term.opening", map[string]any{"Opening": s.Opening}, "Opening: "+s.Opening)
	}
}

// History prints the SAN list as numbered move pairs.
func (p *Presenter) History(s session.State, complete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(s.MovesSAN) == 0 {
		p.line("term.history_empty", nil, "No moves yet.")
		return
	}
	fmt.Fprintln(p.out, FormatMoves(s.MovesSAN))
	if !complete {
		p.line("term.history_partial", nil, "(history incomplete)")
	}
}

// Say prints one catalog message; fallback is printed verbatim when the key
// cannot be rendered.
func (p *Presenter) Say(key string, data any, fallback string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.line(key, data, fallback)
}

func (p *Presenter) line(key string, data any, fallback string) {
	text := fallback
	if p.texts != nil {
		text = p.texts.Text(key, data, fallback)
	}
	fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))
}

// FormatMoves renders "1. e4 e5 2. Nf3".
func FormatMoves(sans []string) string {
	var b strings.Builder
	for i, san := range sans {
		if i%2 == 0 {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d. ", i/2+1)
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(san)
	}
	return b.String()
}
