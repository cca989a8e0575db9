package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess-client/internal/rules"
)

type PNGOptions struct {
	Orientation rules.Color
	// LastFrom and LastTo draw a move arrow when both are valid squares.
	LastFrom string
	LastTo   string
	// Mover picks the arrow colour.
	Mover  rules.Color
	Header string
	Footer string
}

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 28
	topMargin    = 64
	bottomMargin = 52
	panelHeight  = 34
	panelRadius  = 10
)

var (
	lightSquare        = color.RGBA{233, 207, 163, 255}
	darkSquare         = color.RGBA{187, 136, 96, 255}
	backgroundColor    = color.RGBA{22, 24, 36, 255}
	whiteMoveFill      = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow     = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	whiteMoveArrow     = color.NRGBA{R: 255, G: 214, B: 90, A: 170}
	panelColor         = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	panelTextColor     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	footerTextColor    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	boardShadowColor   = color.NRGBA{0, 0, 0, 60}
	coordinateInkColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

type pointF struct {
	X float64
	Y float64
}

// PNG draws the board with a header panel, coordinates and the last move.
func PNG(ctx context.Context, board rules.Grid, opts PNGOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := boardSize + sideMargin*2
	height := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardSize, origin.Y+boardSize)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	drawHeader(img, opts.Header, boardRect)
	shadow := image.Rect(boardRect.Min.X+4, boardRect.Min.Y+6, boardRect.Max.X+8, boardRect.Max.Y+10)
	draw.Draw(img, shadow, image.NewUniform(boardShadowColor), image.Point{}, draw.Over)

	flip := opts.Orientation == rules.Black
	drawSquares(img, origin, flip)

	ff, fr, fromOK := rules.ParseSquare(opts.LastFrom)
	tf, tr, toOK := rules.ParseSquare(opts.LastTo)
	from, to := [2]int{ff, fr}, [2]int{tf, tr}
	if fromOK && toOK {
		drawSquareOverlay(img, squareRect(from, origin, flip), whiteMoveFill)
		drawSquareOverlay(img, squareRect(to, origin, flip), whiteMoveFill)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := drawPieces(img, board, origin, flip); err != nil {
		return nil, err
	}
	if fromOK && toOK {
		clr := whiteMoveArrow
		if opts.Mover == rules.Black {
			clr = blackMoveArrow
		}
		drawArrow(img, squareRect(from, origin, flip), squareRect(to, origin, flip), clr)
	}
	drawCoordinates(img, origin, flip)
	drawFooter(img, opts.Footer, boardRect)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(img *image.RGBA, origin image.Point, flip bool) {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			clr := lightSquare
			if (f+r)%2 == 0 {
				clr = darkSquare
			}
			draw.Draw(img, squareRect([2]int{f, r}, origin, flip), image.NewUniform(clr), image.Point{}, draw.Src)
		}
	}
}

func drawPieces(img *image.RGBA, board rules.Grid, origin image.Point, flip bool) error {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := board[r][f]
			if p.Empty() {
				continue
			}
			pieceImg, err := renderPieceImage(p, squareSize)
			if err != nil {
				return err
			}
			rect := squareRect([2]int{f, r}, origin, flip)
			draw.Draw(img, rect, pieceImg, image.Point{}, draw.Over)
		}
	}
	return nil
}

// squareRect maps a (file, rank) pair to its pixel rectangle.
func squareRect(sq [2]int, origin image.Point, flip bool) image.Rectangle {
	col, row := sq[0], 7-sq[1]
	if flip {
		col, row = 7-sq[0], sq[1]
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	draw.Draw(img, rect, image.NewUniform(clr), image.Point{}, draw.Over)
}

func drawCoordinates(img *image.RGBA, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateInkColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rank, file := 7-i, i
		if flip {
			rank, file = i, 7-i
		}
		rowCenter := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(d, string(rune('1'+rank)), origin.X-sideMargin/2, rowCenter+ascent/2)
		colCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(d, string(rune('a'+file)), colCenter, origin.Y+boardSize+ascent+4)
	}
}

func drawHeader(img *image.RGBA, text string, boardRect image.Rectangle) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	panel := image.Rect(boardRect.Min.X, (topMargin-panelHeight)/2, boardRect.Max.X, (topMargin+panelHeight)/2)
	drawRoundedPanel(img, panel, panelRadius, panelColor)
	d := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawCenteredString(d, panel, truncate(d, text, panel.Dx()-24), panelTextColor)
}

func drawFooter(img *image.RGBA, text string, boardRect image.Rectangle) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	band := image.Rect(boardRect.Min.X, boardRect.Max.Y+22, boardRect.Max.X, img.Bounds().Max.Y-4)
	d := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawCenteredString(d, band, truncate(d, text, band.Dx()), footerTextColor)
}

func truncate(d *font.Drawer, text string, maxWidth int) string {
	if d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if d.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ""
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	inner := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	draw.Draw(img, inner, image.NewUniform(clr), image.Point{}, draw.Over)
	sides := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius),
		image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius),
	}
	for _, s := range sides {
		draw.Draw(img, s, image.NewUniform(clr), image.Point{}, draw.Over)
	}
	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, clr, rect)
	}
}

// drawQuarterDisc fills the part of a disc that lies outside the already
// painted bands, clipped to rect.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, clr color.Color, clip image.Rectangle) {
	inner := image.Rect(clip.Min.X+radius, clip.Min.Y, clip.Max.X-radius, clip.Max.Y)
	band := image.Rect(clip.Min.X, clip.Min.Y+radius, clip.Max.X, clip.Max.Y-radius)
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > radius*radius {
				continue
			}
			p := image.Point{X: center.X + x, Y: center.Y + y}
			if !p.In(clip) || p.In(inner) || p.In(band) {
				continue
			}
			blendPixel(img, p.X, p.Y, clr)
		}
	}
}

func drawCenteredString(d *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	m := d.Face.Metrics()
	w := d.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-w)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

func drawCenteredText(d *font.Drawer, text string, centerX, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}

func drawArrow(img *image.RGBA, fromRect, toRect image.Rectangle, clr color.Color) {
	start := pointF{X: float64(fromRect.Min.X + squareSize/2), Y: float64(fromRect.Min.Y + squareSize/2)}
	end := pointF{X: float64(toRect.Min.X + squareSize/2), Y: float64(toRect.Min.Y + squareSize/2)}

	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	px, py := -uy, ux

	shaft := length - squareSize*0.45
	if shaft < squareSize*0.35 {
		shaft = length * 0.6
	}
	half := squareSize * 0.12
	head := squareSize * 0.26

	base := pointF{X: start.X + ux*shaft, Y: start.Y + uy*shaft}
	offset := func(p pointF, w float64) pointF { return pointF{X: p.X + px*w, Y: p.Y + py*w} }

	fillTriangle(img, offset(start, -half), offset(start, half), offset(base, half), clr)
	fillTriangle(img, offset(start, -half), offset(base, half), offset(base, -half), clr)
	fillTriangle(img, end, offset(base, -head), offset(base, head), clr)
}

func fillTriangle(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			alpha := ((b.Y-c.Y)*(fx-c.X) + (c.X-b.X)*(fy-c.Y)) / denom
			beta := ((c.Y-a.Y)*(fx-c.X) + (a.X-c.X)*(fy-c.Y)) / denom
			if alpha >= 0 && beta >= 0 && alpha+beta <= 1 {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

// blendPixel composites clr over the pixel at (x, y).
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	mix := func(s uint32, d uint8) uint8 {
		return uint8((s + uint32(d)*0x101*inv/0xffff) >> 8)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: mix(sa, dst.A),
	})
}

// PNGFromFEN is a convenience for callers that only hold a FEN.
func PNGFromFEN(ctx context.Context, fen string, opts PNGOptions) ([]byte, error) {
	pos, err := rules.Parse(fen)
	if err != nil {
		return nil, err
	}
	return PNG(ctx, pos.Board(), opts)
}
