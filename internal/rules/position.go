package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrInvalidFEN  = errors.New("invalid fen")
	ErrIllegalMove = errors.New("illegal move")
	ErrNoLink      = errors.New("no single legal move links the positions")
)

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Title returns "White" or "Black".
func (c Color) Title() string {
	if c == White {
		return "White"
	}
	return "Black"
}

// ParseColor accepts white/black and the w/b shorthands.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

// Kind is a lowercase piece letter (p n b r q k). Zero means empty.
type Kind byte

const (
	NoKind Kind = 0
	Pawn   Kind = 'p'
	Knight Kind = 'n'
	Bishop Kind = 'b'
	Rook   Kind = 'r'
	Queen  Kind = 'q'
	King   Kind = 'k'
)

type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) Empty() bool { return p.Kind == NoKind }

// Letter returns the FEN letter: uppercase for white.
func (p Piece) Letter() string {
	if p.Empty() {
		return ""
	}
	if p.Color == White {
		return strings.ToUpper(string(rune(p.Kind)))
	}
	return string(rune(p.Kind))
}

// Grid is indexed [rank][file], rank 0 being rank 1 and file 0 file a.
type Grid [8][8]Piece

func (g Grid) At(sq string) Piece {
	f, r, ok := parseSquare(sq)
	if !ok {
		return Piece{}
	}
	return g[r][f]
}

// Position is an immutable, parsed chess position.
type Position struct {
	fen       string
	placement string
	turn      Color
	halfmove  int
	grid      Grid
	legal     int
	inCheck   bool
	checkmate bool
	stalemate bool
	draw      bool
	method    nchess.Method
}

// Parse validates fen with the rules library and derives the position facts.
func Parse(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFEN, fen)
	}
	game, err := newGame(fen)
	if err != nil {
		return nil, err
	}

	p := &Position{
		fen:       fen,
		placement: fields[0],
		halfmove:  fieldInt(fields, 4, 0),
	}
	pos := game.Position()
	if pos.Turn() == nchess.White {
		p.turn = White
	} else {
		p.turn = Black
	}
	p.grid = gridOf(pos.Board())
	p.legal = len(game.ValidMoves())
	p.inCheck = kingAttacked(&p.grid, p.turn)

	// Mate, stalemate, dead positions and the 75-move rule come from the
	// library. A half-move clock of 100 also ends the game.
	p.method = game.Method()
	if p.method == nchess.NoMethod && p.halfmove >= 100 {
		p.method = nchess.FiftyMoveRule
	}
	p.checkmate = p.method == nchess.Checkmate
	p.stalemate = p.method == nchess.Stalemate
	p.draw = !p.checkmate && (game.Outcome() == nchess.Draw || p.method == nchess.FiftyMoveRule)
	return p, nil
}

// MustParse panics on error. Intended for constants and tests.
func MustParse(fen string) *Position {
	p, err := Parse(fen)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Position) FEN() string { return p.fen }
func (p *Position) Placement() string { return p.placement }
func (p *Position) Turn() Color { return p.turn }
func (p *Position) InCheck() bool { return p.inCheck }
func (p *Position) IsCheckmate() bool { return p.checkmate }
func (p *Position) IsStalemate() bool { return p.stalemate }
func (p *Position) IsDraw() bool { return p.draw }
func (p *Position) IsGameOver() bool { return p.checkmate || p.draw }
func (p *Position) LegalMoveCount() int { return p.legal }
func (p *Position) Board() Grid { return p.grid }

// Termination names how the game ended, e.g. "checkmate", "stalemate",
// "insufficientmaterial" or "fiftymoverule". It is empty while the game runs.
func (p *Position) Termination() string { return methodName(p.method) }

func methodName(m nchess.Method) string {
	if m == nchess.NoMethod {
		return ""
	}
	return strings.ToLower(m.String())
}

// Move is a move applied to a position.
type Move struct {
	From      string
	To        string
	Promotion Kind
	SAN       string
	UCI       string
	FEN       string
}

// TryMove plays from→to on a private copy of the position. The receiver is
// never modified. A pawn reaching the last rank promotes to promo, or to a
// queen when promo is NoKind.
func (p *Position) TryMove(from, to string, promo Kind) (Move, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	ff, fr, ok1 := parseSquare(from)
	_, tr, ok2 := parseSquare(to)
	if !ok1 || !ok2 {
		return Move{}, fmt.Errorf("%w: bad square %q-%q", ErrIllegalMove, from, to)
	}
	mover := p.grid[fr][ff]
	if mover.Empty() || mover.Color != p.turn {
		return Move{}, fmt.Errorf("%w: no %s piece on %s", ErrIllegalMove, p.turn, from)
	}

	uci := from + to
	mv := Move{From: from, To: to}
	if mover.Kind == Pawn && (tr == 7 || tr == 0) {
		if promo == NoKind || promo == Pawn || promo == King {
			promo = Queen
		}
		uci += string(rune(promo))
		mv.Promotion = promo
	}

	game, err := newGame(p.fen)
	if err != nil {
		return Move{}, err
	}
	prev := game.Position()
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	moves := game.Moves()
	if len(moves) == 0 {
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	mv.UCI = uci
	mv.SAN = nchess.AlgebraicNotation{}.Encode(prev, moves[len(moves)-1])
	mv.FEN = game.FEN()
	return mv, nil
}

// PlaySAN applies a move written in standard algebraic notation.
func (p *Position) PlaySAN(san string) (Move, error) {
	game, err := newGame(p.fen)
	if err != nil {
		return Move{}, err
	}
	if err := game.PushNotationMove(strings.TrimSpace(san), nchess.AlgebraicNotation{}, nil); err != nil {
		return Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, san, err)
	}
	moves := game.Moves()
	last := moves[len(moves)-1]
	from, to := last.S1().String(), last.S2().String()
	mv, err := p.TryMove(from, to, kindOf(last.Promo()))
	if err != nil {
		return Move{}, err
	}
	return mv, nil
}

// Infer finds the move that turns prev into next by diffing the boards and
// replaying each candidate. The resulting placement and side to move must
// match next exactly.
func Infer(prev, next *Position) (Move, error) {
	if prev == nil || next == nil {
		return Move{}, ErrNoLink
	}
	if next.turn != prev.turn.Opposite() {
		return Move{}, fmt.Errorf("%w: side to move did not change", ErrNoLink)
	}
	mover := prev.turn
	var froms, tos []string
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			a, b := prev.grid[r][f], next.grid[r][f]
			if a == b {
				continue
			}
			sq := squareName(f, r)
			if !a.Empty() && a.Color == mover {
				froms = append(froms, sq)
			}
			if !b.Empty() && b.Color == mover {
				tos = append(tos, sq)
			}
		}
	}
	for _, from := range froms {
		for _, to := range tos {
			promo := NoKind
			if prev.grid.At(from).Kind == Pawn {
				promo = next.grid.At(to).Kind
			}
			mv, err := prev.TryMove(from, to, promo)
			if err != nil {
				continue
			}
			if placementOf(mv.FEN) == next.placement {
				return mv, nil
			}
		}
	}
	return Move{}, ErrNoLink
}

func newGame(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func gridOf(board *nchess.Board) Grid {
	var g Grid
	if board == nil {
		return g
	}
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			pc := board.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
			if pc == nchess.NoPiece {
				continue
			}
			color := White
			if pc.Color() == nchess.Black {
				color = Black
			}
			g[r][f] = Piece{Color: color, Kind: kindOf(pc.Type())}
		}
	}
	return g
}

func kindOf(pt nchess.PieceType) Kind {
	switch pt {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}

func fieldInt(fields []string, idx, def int) int {
	if idx >= len(fields) {
		return def
	}
	n, err := strconv.Atoi(fields[idx])
	if err != nil {
		return def
	}
	return n
}

func placementOf(fen string) string {
	if i := strings.IndexByte(fen, ' '); i >= 0 {
		return fen[:i]
	}
	return fen
}

// ParseSquare converts "e4" to zero-based file and rank.
func ParseSquare(sq string) (file, rank int, ok bool) {
	return parseSquare(strings.ToLower(strings.TrimSpace(sq)))
}

func parseSquare(sq string) (int, int, bool) {
	if len(sq) != 2 {
		return 0, 0, false
	}
	f := int(sq[0]) - 'a'
	r := int(sq[1]) - '1'
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return 0, 0, false
	}
	return f, r, true
}

func squareName(file, rank int) string {
	return string([]byte{byte('a' + file), byte('1' + rank)})
}

// SquareName is the inverse of ParseSquare.
func SquareName(file, rank int) string { return squareName(file, rank) }
