package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess-client/internal/rules"
)

type pieceCacheKey struct {
	piece rules.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceSVG describes a token: a filled disc, a second ring for the king and
// a smaller disc for pawns.
func pieceSVG(p rules.Piece) string {
	fill, stroke := "#f7f3ea", "#2b2b2b"
	if p.Color == rules.Black {
		fill, stroke = "#2f2b28", "#e6e0d4"
	}
	radius := 38
	if p.Kind == rules.Pawn {
		radius = 30
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">`)
	fmt.Fprintf(&b, `<circle cx="50" cy="53" r="%d" fill="#000000" fill-opacity="0.25"/>`, radius)
	fmt.Fprintf(&b, `<circle cx="50" cy="50" r="%d" fill="%s" stroke="%s" stroke-width="5"/>`, radius, fill, stroke)
	if p.Kind == rules.King {
		fmt.Fprintf(&b, `<circle cx="50" cy="50" r="%d" fill="none" stroke="%s" stroke-width="3"/>`, radius-9, stroke)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func renderPieceImage(p rules.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(strings.NewReader(pieceSVG(p)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	drawPieceLetter(img, p, size)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

// drawPieceLetter renders the letter with the 7x13 bitmap face and scales it
// up to about 40% of the square.
func drawPieceLetter(dst *image.RGBA, p rules.Piece, size int) {
	face := basicfont.Face7x13
	glyph := image.NewRGBA(image.Rect(0, 0, 7, 13))
	ink := color.RGBA{43, 43, 43, 255}
	if p.Color == rules.Black {
		ink = color.RGBA{230, 224, 212, 255}
	}
	d := &font.Drawer{Dst: glyph, Src: image.NewUniform(ink), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(strings.ToUpper(string(rune(p.Kind))))

	h := size * 2 / 5
	w := h * 7 / 13
	x := (size - w) / 2
	y := (size - h) / 2
	xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), glyph, glyph.Bounds(), xdraw.Over, nil)
}
