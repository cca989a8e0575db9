package session

import (
	"strings"

	"github.com/park285/cheese-chess-client/internal/rules"
)

// Message catalog keys.
const (
	KeyInProgress  = "status.in_progress"
	KeyCheck       = "status.check"
	KeyCheckmate   = "status.checkmate"
	KeyDraw        = "status.draw"
	KeyStartFailed = "status.start_failed"
)

var fallbackTexts = map[string]string{
	KeyInProgress:  "Game in progress",
	KeyCheck:       "Check!",
	KeyDraw:        "Game ended in draw!",
	KeyStartFailed: "Failed to start new game",
}

// Messages renders catalog templates. *msgcat.Catalog satisfies it.
type Messages interface {
	Render(key string, data any) (string, error)
}

// deriveStatus applies the fixed precedence checkmate, draw, check.
func deriveStatus(pos *rules.Position) (Status, rules.Color) {
	switch {
	case pos.IsCheckmate():
		return StatusCheckmate, pos.Turn().Opposite()
	case pos.IsDraw():
		return StatusDraw, ""
	case pos.InCheck():
		return StatusCheck, ""
	default:
		return StatusInProgress, ""
	}
}

func statusKey(s Status) string {
	switch s {
	case StatusCheckmate:
		return KeyCheckmate
	case StatusDraw:
		return KeyDraw
	case StatusCheck:
		return KeyCheck
	case StatusError:
		return KeyStartFailed
	default:
		return KeyInProgress
	}
}

func statusText(msgs Messages, s Status, winner rules.Color) string {
	key := statusKey(s)
	if msgs != nil {
		data := map[string]any{"Winner": winner.Title()}
		if out, err := msgs.Render(key, data); err == nil && strings.TrimSpace(out) != "" {
			return out
		}
	}
	if s == StatusCheckmate {
		return "Checkmate! " + winner.Title() + " wins!"
	}
	return fallbackTexts[key]
}
