package render

import (
	"strings"

	"github.com/park285/cheese-chess-client/internal/rules"
)

// Terminal color codes
const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Yellow      = "\033[33m"
	Blue        = "\033[34m"
	Magenta     = "\033[35m"
	Cyan        = "\033[36m"
	White       = "\033[37m"
	HighlightBG = "\033[43m"
)

type TextOptions struct {
	// Orientation is the side shown at the bottom.
	Orientation rules.Color
	// LastFrom and LastTo are highlighted when set.
	LastFrom string
	LastTo   string
	// Color enables ANSI escapes.
	Color bool
}

// Text draws the board as 8 lines of pieces framed by file letters and rank
// numbers. White pieces are uppercase.
func Text(board rules.Grid, opts TextOptions) string {
	files := []int{0, 1, 2, 3, 4, 5, 6, 7}
	ranks := []int{7, 6, 5, 4, 3, 2, 1, 0}
	if opts.Orientation == rules.Black {
		files = []int{7, 6, 5, 4, 3, 2, 1, 0}
		ranks = []int{0, 1, 2, 3, 4, 5, 6, 7}
	}

	var b strings.Builder
	header := func() {
		b.WriteString("   ")
		for _, f := range files {
			b.WriteByte(' ')
			b.WriteString(paint(opts.Color, Cyan, string(rune('a'+f))))
		}
		b.WriteByte('\n')
	}

	header()
	for _, r := range ranks {
		label := paint(opts.Color, Cyan, string(rune('1'+r)))
		b.WriteString(" ")
		b.WriteString(label)
		b.WriteByte(' ')
		for _, f := range files {
			b.WriteByte(' ')
			sq := rules.SquareName(f, r)
			b.WriteString(cell(board[r][f], opts.Color, sq == opts.LastFrom || sq == opts.LastTo))
		}
		b.WriteByte(' ')
		b.WriteString(label)
		b.WriteByte('\n')
	}
	header()
	return b.String()
}

func cell(p rules.Piece, color, highlight bool) string {
	glyph := "."
	tint := ""
	if !p.Empty() {
		glyph = p.Letter()
		tint = Red
		if p.Color == rules.White {
			tint = Blue
		}
	}
	if !color {
		return glyph
	}
	if highlight {
		return HighlightBG + tint + glyph + Reset
	}
	if tint == "" {
		return glyph
	}
	return tint + glyph + Reset
}

func paint(on bool, code, s string) string {
	if !on {
		return s
	}
	return code + s + Reset
}

// ColorForTurn returns a colored side name.
func ColorForTurn(c rules.Color, color bool) string {
	if !color {
		return c.Title()
	}
	if c == rules.White {
		return Blue + "White" + Reset
	}
	return Red + "Black" + Reset
}

// Prompt returns a colored prompt string
func Prompt(text string) string {
	return Yellow + text + " > " + Reset
}
