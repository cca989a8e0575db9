package session

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-chess-client/internal/rules"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
}

func ParseColor(s string) (rules.Color, error) {
	c, ok := rules.ParseColor(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCheck      Status = "check"
	StatusCheckmate  Status = "checkmate"
	StatusDraw       Status = "draw"
	StatusError      Status = "error"
)

// Pending names the operation the controller is waiting on.
type Pending string

const (
	PendingNone        Pending = "none"
	PendingNewSession  Pending = "new_session"
	PendingHumanMove   Pending = "human_move"
	PendingAIMove      Pending = "ai_move"
	PendingAIScheduled Pending = "ai_scheduled"
)

type LastMove struct {
	From string
	To   string
	SAN  string
}

// State is an immutable snapshot of the session. A new value is published on
// every transition; callers must not modify slices they receive.
type State struct {
	SessionID   string
	FEN         string
	Turn        rules.Color
	Status      Status
	StatusText  string
	Winner      rules.Color
	Difficulty  Difficulty
	PlayerColor rules.Color
	MovesSAN    []string
	LastMove    LastMove
	Opening     string
	Pending     Pending
	Version     uint64

	// StartFEN is the position the session began from.
	StartFEN string
	// HistoryComplete is false once a server position could not be linked
	// to the previous one by a single legal move.
	HistoryComplete bool

	pos *rules.Position
}

// Position returns the parsed position, nil before the first session.
func (s State) Position() *rules.Position { return s.pos }

func (s State) HasPosition() bool { return s.pos != nil }

func (s State) GameOver() bool { return s.pos != nil && s.pos.IsGameOver() }

// PlayerToMove reports whether the configured player has the move.
func (s State) PlayerToMove() bool { return s.pos != nil && s.Turn == s.PlayerColor }

func (s State) Busy() bool {
	return s.Pending == PendingNewSession || s.Pending == PendingHumanMove || s.Pending == PendingAIMove
}
