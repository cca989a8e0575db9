package session

import "errors"

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrGameOver          = errors.New("game is over")
	ErrNoPosition        = errors.New("no game in progress")
	ErrBusy              = errors.New("another operation is in progress")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidColor      = errors.New("invalid player color")
	ErrClosed            = errors.New("session controller closed")
)
