package render

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/park285/cheese-chess-client/internal/rules"
)

func TestTextStartPositionWhite(t *testing.T) {
	out := Text(rules.MustParse(rules.StartFEN).Board(), TextOptions{Orientation: rules.White})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("lines = %d\n%s", len(lines), out)
	}
	if lines[0] != "    a b c d e f g h" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != " 8  r n b q k b n r 8" {
		t.Fatalf("rank 8 = %q", lines[1])
	}
	if lines[8] != " 1  R N B Q K B N R 1" {
		t.Fatalf("rank 1 = %q", lines[8])
	}
	if lines[4] != " 5  . . . . . . . . 5" {
		t.Fatalf("rank 5 = %q", lines[4])
	}
}

func TestTextFlippedForBlack(t *testing.T) {
	out := Text(rules.MustParse(rules.StartFEN).Board(), TextOptions{Orientation: rules.Black})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "    h g f e d c b a" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != " 1  R N B K Q B N R 1" {
		t.Fatalf("top rank = %q", lines[1])
	}
}

func TestTextColorHighlightsLastMove(t *testing.T) {
	pos := rules.MustParse("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	out := Text(pos.Board(), TextOptions{Orientation: rules.White, LastFrom: "e2", LastTo: "e4", Color: true})
	if !strings.Contains(out, HighlightBG+Blue+"P"+Reset) {
		t.Fatalf("e4 pawn not highlighted:\n%q", out)
	}
	if !strings.Contains(out, HighlightBG+"."+Reset) {
		t.Fatalf("e2 square not highlighted:\n%q", out)
	}
	if !strings.Contains(out, Red+"k"+Reset) {
		t.Fatalf("black king not red")
	}
}

func TestPrompt(t *testing.T) {
	if got := Prompt("white"); got != Yellow+"white > "+Reset {
		t.Fatalf("prompt = %q", got)
	}
	if got := ColorForTurn(rules.Black, false); got != "Black" {
		t.Fatalf("plain turn = %q", got)
	}
}

func TestPNGDecodes(t *testing.T) {
	data, err := PNGFromFEN(context.Background(), rules.StartFEN, PNGOptions{
		Header:   "Medium | You play White",
		Footer:   "White to move",
		LastFrom: "e2",
		LastTo:   "e4",
	})
	if err != nil {
		t.Fatalf("PNGFromFEN: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != boardSize+sideMargin*2 || b.Dy() != boardSize+topMargin+bottomMargin {
		t.Fatalf("bounds = %v", b)
	}
	// a8 corner (top-left for white) is light.
	r, g, bl, _ := img.At(sideMargin+2, topMargin+2).RGBA()
	if r>>8 != uint32(lightSquare.R) || g>>8 != uint32(lightSquare.G) || bl>>8 != uint32(lightSquare.B) {
		t.Fatalf("a8 colour = %d,%d,%d", r>>8, g>>8, bl>>8)
	}
}

func TestPNGRejectsBadInput(t *testing.T) {
	if _, err := PNGFromFEN(context.Background(), "not a fen", PNGOptions{}); err == nil {
		t.Fatalf("bad fen accepted")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := PNG(ctx, rules.MustParse(rules.StartFEN).Board(), PNGOptions{}); err == nil {
		t.Fatalf("canceled context ignored")
	}
}

func TestPieceImageCached(t *testing.T) {
	p := rules.Piece{Color: rules.White, Kind: rules.Knight}
	a, err := renderPieceImage(p, 48)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := renderPieceImage(p, 48)
	if a != b {
		t.Fatalf("cache miss for identical piece")
	}
}
