package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/modules/tictactoe"
	"github.com/dorkfun/backend/internal/transcript"
)

var players = []string{"0xaaaa", "0xbbbb"}

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	orc, err := New("match-1", tictactoe.New(), players, "seed-1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return orc
}

func cell(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"cell":%d}`, n))
}

func TestTurnEnforcement(t *testing.T) {
	orc := newOrchestrator(t)

	if _, err := orc.SubmitAction(players[1], cell(0)); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
	if _, err := orc.SubmitAction(players[0], cell(0)); err != nil {
		t.Errorf("Legal move rejected: %v", err)
	}
	if orc.CurrentPlayer() != players[1] {
		t.Errorf("Turn did not pass to %s", players[1])
	}
}

func TestInvalidActionRejected(t *testing.T) {
	orc := newOrchestrator(t)

	if _, err := orc.SubmitAction(players[0], cell(99)); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction, got %v", err)
	}
	// Rejections must not advance the transcript
	if orc.MoveCount() != 0 {
		t.Errorf("Rejected action appended a transcript entry")
	}
}

func TestTranscriptGrowsWithPlay(t *testing.T) {
	orc := newOrchestrator(t)
	initialRoot := orc.Root()

	result, err := orc.SubmitAction(players[0], cell(4))
	if err != nil {
		t.Fatalf("SubmitAction failed: %v", err)
	}
	if result.Entry.Sequence != 0 {
		t.Errorf("Expected sequence 0, got %d", result.Entry.Sequence)
	}
	if result.Entry.PrevHash != initialRoot {
		t.Error("First entry should chain from the initial-state hash")
	}
	if result.Terminal {
		t.Error("One move should not be terminal")
	}
	if orc.Root() == initialRoot {
		t.Error("Root did not advance")
	}
}

func TestPlayedGameIsReplayable(t *testing.T) {
	orc := newOrchestrator(t)
	initialRoot := orc.Root()

	// X wins on the left column
	moves := []struct {
		player string
		cell   int
	}{
		{players[0], 0}, {players[1], 1},
		{players[0], 3}, {players[1], 2},
		{players[0], 6},
	}
	var last *StepResult
	for _, mv := range moves {
		result, err := orc.SubmitAction(mv.player, cell(mv.cell))
		if err != nil {
			t.Fatalf("SubmitAction(%s, %d) failed: %v", mv.player, mv.cell, err)
		}
		last = result
	}

	if !last.Terminal {
		t.Fatal("Winning move not reported terminal")
	}
	if last.Outcome.Winner != players[0] {
		t.Errorf("Expected winner %s, got %s", players[0], last.Outcome.Winner)
	}
	if !orc.IsOver() {
		t.Error("Orchestrator not over after terminal move")
	}

	root, err := transcript.VerifyChain(initialRoot, orc.Entries())
	if err != nil {
		t.Fatalf("VerifyChain failed on honest play: %v", err)
	}
	if root != orc.Root() {
		t.Errorf("Replayed root %s != live root %s", root, orc.Root())
	}
}

func TestNoMovesAfterGameOver(t *testing.T) {
	orc := newOrchestrator(t)
	for _, mv := range []struct {
		player string
		cell   int
	}{
		{players[0], 0}, {players[1], 3},
		{players[0], 1}, {players[1], 4},
		{players[0], 2},
	} {
		if _, err := orc.SubmitAction(mv.player, cell(mv.cell)); err != nil {
			t.Fatalf("SubmitAction failed: %v", err)
		}
	}

	if _, err := orc.SubmitAction(players[1], cell(5)); !errors.Is(err, ErrAlreadyOver) {
		t.Errorf("Expected ErrAlreadyOver, got %v", err)
	}
	if orc.CurrentPlayer() != "" {
		t.Error("Finished match still reports a player on turn")
	}
}

func TestForceOutcome(t *testing.T) {
	orc := newOrchestrator(t)
	orc.SubmitAction(players[0], cell(0))
	movesBefore := orc.MoveCount()

	forced := modules.Outcome{Winner: players[1], Reason: "forfeit"}
	if !orc.ForceOutcome(forced) {
		t.Fatal("ForceOutcome rejected on a live match")
	}
	if !orc.IsOver() {
		t.Error("Match not over after ForceOutcome")
	}
	if got := orc.Outcome(); got.Winner != players[1] || got.Reason != "forfeit" {
		t.Errorf("Unexpected forced outcome: %+v", got)
	}
	if orc.MoveCount() != movesBefore {
		t.Error("ForceOutcome appended a transcript entry")
	}

	// Forcing again is a no-op
	if orc.ForceOutcome(modules.Outcome{Draw: true, Reason: "stale"}) {
		t.Error("ForceOutcome succeeded twice")
	}
	if got := orc.Outcome(); got.Reason != "forfeit" {
		t.Errorf("Second ForceOutcome overwrote the first: %+v", got)
	}
}

func TestDeterministicInit(t *testing.T) {
	a, err := New("m", tictactoe.New(), players, "same-seed")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New("m", tictactoe.New(), players, "same-seed")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Root() != b.Root() {
		t.Error("Same seed and players produced different initial roots")
	}
}
