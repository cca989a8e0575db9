package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// PGN replays sans from startFEN and returns the game in PGN. tags are added
// as given; Result, and SetUp/FEN for a non-standard start, come from the game.
// A final position with a half-move clock of 100 is recorded as drawn.
func PGN(startFEN string, sans []string, tags map[string]string) (string, error) {
	game, err := newGame(startFEN)
	if err != nil {
		return "", err
	}
	for i, san := range sans {
		if err := game.PushNotationMove(strings.TrimSpace(san), nchess.AlgebraicNotation{}, nil); err != nil {
			return "", fmt.Errorf("%w: move %d %q: %v", ErrIllegalMove, i+1, san, err)
		}
	}
	if game.Outcome() == nchess.NoOutcome {
		_ = game.Draw(nchess.FiftyMoveRule)
	}

	for k, v := range tags {
		game.AddTagPair(k, strings.ReplaceAll(v, `"`, `'`))
	}
	if fen := strings.TrimSpace(startFEN); fen != StartFEN {
		game.AddTagPair("SetUp", "1")
		game.AddTagPair("FEN", fen)
	}
	game.AddTagPair("Result", game.Outcome().String())
	if m := methodName(game.Method()); m != "" {
		game.AddTagPair("Termination", m)
	}
	return game.String(), nil
}
