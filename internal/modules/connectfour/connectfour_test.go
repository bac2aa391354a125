package connectfour

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dorkfun/backend/internal/modules"
)

var players = []string{"0xaaaa", "0xbbbb"}

func mustInit(t *testing.T) modules.State {
	t.Helper()
	st, err := New().Init(modules.Config{GameID: "connectfour"}, players, "seed")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return st
}

func drop(col int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"col":%d}`, col))
}

func TestGravity(t *testing.T) {
	m := New()
	st := mustInit(t)

	// Two discs in the same column stack bottom-up
	st, err := m.ApplyAction(st, players[0], drop(3), nil)
	if err != nil {
		t.Fatalf("ApplyAction failed: %v", err)
	}
	st, err = m.ApplyAction(st, players[1], drop(3), nil)
	if err != nil {
		t.Fatalf("ApplyAction failed: %v", err)
	}

	board := st.(*state).Board
	if board[5*columns+3] != 1 {
		t.Errorf("First disc should rest on the bottom row, got %d", board[5*columns+3])
	}
	if board[4*columns+3] != 2 {
		t.Errorf("Second disc should stack on top, got %d", board[4*columns+3])
	}
}

func TestColumnFillsUp(t *testing.T) {
	m := New()
	st := mustInit(t)

	for i := 0; i < rows; i++ {
		next, err := m.ApplyAction(st, players[i%2], drop(0), nil)
		if err != nil {
			t.Fatalf("Drop %d into column 0 failed: %v", i, err)
		}
		st = next
	}

	if m.ValidateAction(st, st.CurrentPlayer(), drop(0)) {
		t.Error("Accepted a drop into a full column")
	}
	if n := len(m.LegalActions(st, st.CurrentPlayer())); n != columns-1 {
		t.Errorf("Expected %d legal columns, got %d", columns-1, n)
	}
}

func TestVerticalWin(t *testing.T) {
	m := New()
	st := mustInit(t)

	// P0 stacks column 2; P1 scatters
	sequence := []int{2, 0, 2, 1, 2, 3, 2}
	for i, col := range sequence {
		next, err := m.ApplyAction(st, players[i%2], drop(col), nil)
		if err != nil {
			t.Fatalf("Move %d failed: %v", i, err)
		}
		st = next
	}

	if !m.IsTerminal(st) {
		t.Fatal("Vertical four did not terminate the game")
	}
	out := m.Outcome(st)
	if out.Winner != players[0] || out.Reason != "four_in_a_row" {
		t.Errorf("Expected players[0] winning by four_in_a_row, got %+v", out)
	}
}

func TestHorizontalWin(t *testing.T) {
	m := New()
	st := mustInit(t)

	// P0 lays columns 0-3 on the bottom row; P1 stacks column 6
	sequence := []int{0, 6, 1, 6, 2, 6, 3}
	for i, col := range sequence {
		next, err := m.ApplyAction(st, players[i%2], drop(col), nil)
		if err != nil {
			t.Fatalf("Move %d failed: %v", i, err)
		}
		st = next
	}

	if !m.IsTerminal(st) {
		t.Fatal("Horizontal four did not terminate the game")
	}
	if out := m.Outcome(st); out.Winner != players[0] {
		t.Errorf("Expected players[0] to win, got %+v", out)
	}
}

func TestDiagonalWin(t *testing.T) {
	m := New()
	st := mustInit(t)

	// Staircase for P0 on columns 0..3 (heights 1,2,3,4)
	sequence := []int{0, 1, 1, 2, 2, 3, 2, 3, 3, 5, 3}
	for i, col := range sequence {
		next, err := m.ApplyAction(st, players[i%2], drop(col), nil)
		if err != nil {
			t.Fatalf("Move %d (col %d) failed: %v", i, col, err)
		}
		st = next
		if m.IsTerminal(st) && i < len(sequence)-1 {
			t.Fatalf("Game ended early at move %d: %+v", i, m.Outcome(st))
		}
	}

	if !m.IsTerminal(st) {
		t.Fatal("Diagonal four did not terminate the game")
	}
	if out := m.Outcome(st); out.Winner != players[0] {
		t.Errorf("Expected players[0] to win diagonally, got %+v", out)
	}
}

func TestTurnEnforcement(t *testing.T) {
	m := New()
	st := mustInit(t)

	if m.ValidateAction(st, players[1], drop(0)) {
		t.Error("Accepted a move out of turn")
	}
	if _, err := m.ApplyAction(st, players[1], drop(0), nil); err == nil {
		t.Error("ApplyAction accepted a move out of turn")
	}
}
