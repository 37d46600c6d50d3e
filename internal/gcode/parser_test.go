package gcode

import (
	"math"
	"testing"
)

func TestParse_CommentsOnly(t *testing.T) {
	code := "; a comment\n(parenthetical comment)\n\n(unterminated\n"
	if moves := Parse(code); len(moves) != 0 {
		t.Errorf("expected 0 moves for comments-only input, got %d", len(moves))
	}
}

func TestParse_ClassifiesMoves(t *testing.T) {
	code := `G90
G0 X1 Y1 ; position
G01 Z-0.25 F30
G1 X5 F100 (cut)
G1 Z0.1
G0 Z0.5
G00 X0 Y0
G28 X0 Y0
`
	moves := Parse(code)
	want := []MoveType{MoveRapid, MovePlunge, MoveFeed, MoveRetract, MoveRetract, MoveRapid}
	if len(moves) != len(want) {
		t.Fatalf("expected %d moves, got %d", len(want), len(moves))
	}
	for i, m := range moves {
		if m.Type != want[i] {
			t.Errorf("move %d: expected type %d, got %d", i, want[i], m.Type)
		}
	}

	cut := moves[2]
	if cut.FromX != 1 || cut.ToX != 5 || cut.ToY != 1 || cut.ToZ != -0.25 {
		t.Errorf("unexpected cut move %+v", cut)
	}
	if cut.FeedRate != 100 {
		t.Errorf("expected feed rate 100, got %.1f", cut.FeedRate)
	}
	if moves[1].FeedRate != 30 {
		t.Errorf("expected plunge feed 30, got %.1f", moves[1].FeedRate)
	}
}

func TestSummarize(t *testing.T) {
	code := "G0 X3 Y4\nG1 Z-1 F10\nG1 X6 Y8 F50\nG0 Z1\n"
	s := Summarize(code)

	if s.Moves != 4 {
		t.Errorf("expected 4 moves, got %d", s.Moves)
	}
	if math.Abs(s.RapidLength-7) > 1e-9 {
		t.Errorf("expected rapid length 7, got %f", s.RapidLength)
	}
	if math.Abs(s.CutLength-6) > 1e-9 {
		t.Errorf("expected cut length 6, got %f", s.CutLength)
	}
	if math.Abs(s.CutMinutes-(1.0/10+5.0/50)) > 1e-9 {
		t.Errorf("expected 0.2 cut minutes, got %f", s.CutMinutes)
	}
}

func TestSummarize_GeneratedProgram(t *testing.T) {
	gen := New(newTestSettings(), nil, nil)
	s := Summarize(gen.GenerateBin(newTestBin(), 1))

	// Three passes around a 4.5 x 2.5 tool path, each plunging from safe Z.
	want := 3*14 + 0.75 + 1.0 + 1.25
	if math.Abs(s.CutLength-want) > 1e-9 {
		t.Errorf("expected cut length %.3f, got %.3f", want, s.CutLength)
	}
}

func TestParse_ModalMotionAndPackedWords(t *testing.T) {
	moves := Parse("G1X2Y0F60\nX2 Y3\nG92 X0 Y0\nM5\n")
	if len(moves) != 2 {
		t.Fatalf("expected 2 moves, got %d", len(moves))
	}
	if moves[1].Type != MoveFeed || moves[1].FromY != 0 || moves[1].ToY != 3 {
		t.Errorf("expected modal feed to Y3, got %+v", moves[1])
	}
	if moves[1].FeedRate != 60 {
		t.Errorf("expected modal feed rate 60, got %.1f", moves[1].FeedRate)
	}
}
