package rules

var (
	knightJumps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// kingAttacked reports whether side's king is attacked. A board without
// that king is never in check.
func kingAttacked(g *Grid, side Color) bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if p := g[r][f]; p.Kind == King && p.Color == side {
				return squareAttacked(g, f, r, side.Opposite())
			}
		}
	}
	return false
}

func squareAttacked(g *Grid, file, rank int, by Color) bool {
	at := func(f, r int) (Piece, bool) {
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return Piece{}, false
		}
		return g[r][f], true
	}

	// a white pawn attacks upward, so look one rank below
	dir := -1
	if by == Black {
		dir = 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, ok := at(file+df, rank+dir); ok && p.Color == by && p.Kind == Pawn {
			return true
		}
	}
	for _, d := range knightJumps {
		if p, ok := at(file+d[0], rank+d[1]); ok && p.Color == by && p.Kind == Knight {
			return true
		}
	}
	for _, d := range kingSteps {
		if p, ok := at(file+d[0], rank+d[1]); ok && p.Color == by && p.Kind == King {
			return true
		}
	}
	if rayHits(g, file, rank, by, rookRays[:], Rook) {
		return true
	}
	return rayHits(g, file, rank, by, bishopRays[:], Bishop)
}

func rayHits(g *Grid, file, rank int, by Color, rays [][2]int, slider Kind) bool {
	for _, d := range rays {
		f, r := file+d[0], rank+d[1]
		for f >= 0 && f <= 7 && r >= 0 && r <= 7 {
			p := g[r][f]
			if !p.Empty() {
				if p.Color == by && (p.Kind == slider || p.Kind == Queen) {
					return true
				}
				break
			}
			f += d[0]
			r += d[1]
		}
	}
	return false
}
