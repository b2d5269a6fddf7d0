package score

import (
	"errors"
	"testing"
)

func TestApplyAccumulates(t *testing.T) {
	b := NewBoard("p1", "p2")

	got, dup, err := b.Apply(Gift{ID: "g1", SenderID: "u1", ParticipantID: "p1", ScoreValue: 10})
	if err != nil || dup {
		t.Fatalf("apply: err=%v dup=%v", err, dup)
	}
	if got != 10 {
		t.Fatalf("score = %d, want 10", got)
	}

	got, _, _ = b.Apply(Gift{ID: "g2", SenderID: "u2", ParticipantID: "p1", ScoreValue: 5})
	if got != 15 {
		t.Fatalf("score = %d, want 15", got)
	}
	if b.Score("p2") != 0 {
		t.Fatalf("p2 score = %d, want 0", b.Score("p2"))
	}
}

func TestApplyDuplicateIsNoop(t *testing.T) {
	b := NewBoard("p1", "p2")
	g := Gift{ID: "g1", SenderID: "u1", ParticipantID: "p1", ScoreValue: 10}

	if _, _, err := b.Apply(g); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, dup, err := b.Apply(g)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if !dup {
		t.Fatal("reapply must report duplicate")
	}
	if got != 10 {
		t.Fatalf("score after duplicate = %d, want 10", got)
	}
	if !b.Seen("g1") || b.Seen("g2") {
		t.Fatal("Seen must track applied gift IDs only")
	}
}

func TestApplyUnknownParticipant(t *testing.T) {
	b := NewBoard("p1", "p2")
	if _, _, err := b.Apply(Gift{ID: "g1", ParticipantID: "p3", ScoreValue: 1}); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("err = %v, want ErrUnknownParticipant", err)
	}
}

func TestWinner(t *testing.T) {
	b := NewBoard("p1", "p2")

	// Placar zerado é empate.
	if _, ok := b.Winner(); ok {
		t.Fatal("zeroed board must have no winner")
	}

	b.Apply(Gift{ID: "g1", ParticipantID: "p1", ScoreValue: 10})
	if id, ok := b.Winner(); !ok || id != "p1" {
		t.Fatalf("winner = %q ok=%v, want p1", id, ok)
	}

	// Empate de novo: pontuação estritamente maior é exigida.
	b.Apply(Gift{ID: "g2", ParticipantID: "p2", ScoreValue: 10})
	if _, ok := b.Winner(); ok {
		t.Fatal("tied board must have no winner")
	}
}

func TestTotalsIsACopy(t *testing.T) {
	b := NewBoard("p1", "p2")
	b.Apply(Gift{ID: "g1", ParticipantID: "p1", ScoreValue: 3})

	totals := b.Totals()
	totals["p1"] = 999

	if b.Score("p1") != 3 {
		t.Fatalf("board mutated through Totals copy: %d", b.Score("p1"))
	}
}
