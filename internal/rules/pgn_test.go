package rules

import (
	"errors"
	"strings"
	"testing"
)

func TestPGNFoolsMate(t *testing.T) {
	got, err := PGN(StartFEN, []string{"f3", "e5", "g4", "Qh4#"}, map[string]string{
		"White": "Player",
		"Black": "AI (medium)",
	})
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	for _, want := range []string{
		`[Result "0-1"]`,
		`[Termination "checkmate"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in\n%s", want, got)
		}
	}
	if strings.Index(got, "[White") > strings.Index(got, "[Black") {
		t.Fatalf("roster order:\n%s", got)
	}
	if strings.Contains(got, "[FEN") {
		t.Fatalf("standard start carries FEN tag:\n%s", got)
	}
}

func TestPGNBlackToMoveStart(t *testing.T) {
	afterE4 := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	got, err := PGN(afterE4, []string{"c5", "Nf3"}, nil)
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	for _, want := range []string{
		`[SetUp "1"]`,
		`[FEN "` + afterE4 + `"]`,
		`[Result "*"]`,
		"1... c5 2. Nf3",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in\n%s", want, got)
		}
	}
}

func TestPGNFiftyMoveDraw(t *testing.T) {
	got, err := PGN("4k3/8/8/8/8/8/4P3/4K3 w - - 99 80", []string{"Kd1"}, nil)
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	if !strings.Contains(got, `[Termination "fiftymoverule"]`) || !strings.Contains(got, "80. Kd1") || !strings.HasSuffix(got, "1/2-1/2") {
		t.Fatalf("pgn:\n%s", got)
	}
}

func TestPGNFinalPositionOnly(t *testing.T) {
	got, err := PGN(foolsMateFEN, nil, map[string]string{"Event": "Casual game"})
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	if !strings.HasPrefix(got, `[Event "Casual game"]`) || !strings.HasSuffix(got, "\n0-1") {
		t.Fatalf("pgn:\n%s", got)
	}
}

func TestPGNRejectsBadInput(t *testing.T) {
	if _, err := PGN(StartFEN, []string{"e4", "e4"}, nil); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if _, err := PGN("junk", []string{"e4"}, nil); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("err = %v, want ErrInvalidFEN", err)
	}
}
