package tictactoe

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/dorkfun/backend/internal/modules"
)

// Module implements 3x3 tic-tac-toe. Player 0 is X and always moves first.
type Module struct{}

func New() *Module { return &Module{} }

const cells = 9

type state struct {
	Board   []int    `json:"board"`
	Players []string `json:"players"`
	Turn    int      `json:"turn"`
	Winner  int      `json:"winner"` // player index, -1 while undecided
	Draw    bool     `json:"draw"`
	Moves   int      `json:"moves"`
}

func (s *state) CurrentPlayer() string {
	if s.Winner >= 0 || s.Draw {
		return ""
	}
	return s.Players[s.Turn]
}

type action struct {
	Cell int `json:"cell"`
}

func (m *Module) Meta() modules.Meta {
	return modules.Meta{
		GameID:      "tictactoe",
		Name:        "Tic-Tac-Toe",
		Description: "Classic 3x3 grid. Three in a row wins.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (m *Module) Init(cfg modules.Config, players []string, seed string) (modules.State, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("tictactoe requires exactly 2 players, got %d", len(players))
	}
	return &state{
		Board:   make([]int, cells),
		Players: append([]string(nil), players...),
		Turn:    0,
		Winner:  -1,
	}, nil
}

func (m *Module) ValidateAction(st modules.State, player string, raw json.RawMessage) bool {
	s, ok := st.(*state)
	if !ok {
		return false
	}
	if s.CurrentPlayer() != player {
		return false
	}
	var a action
	if err := json.Unmarshal(raw, &a); err != nil {
		return false
	}
	return a.Cell >= 0 && a.Cell < cells && s.Board[a.Cell] == 0
}

func (m *Module) ApplyAction(st modules.State, player string, raw json.RawMessage, _ *rand.Rand) (modules.State, error) {
	s, ok := st.(*state)
	if !ok {
		return nil, fmt.Errorf("tictactoe: wrong state type %T", st)
	}
	var a action
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("tictactoe: bad action: %w", err)
	}
	if s.CurrentPlayer() != player || a.Cell < 0 || a.Cell >= cells || s.Board[a.Cell] != 0 {
		return nil, fmt.Errorf("tictactoe: precondition violated for cell %d", a.Cell)
	}

	next := &state{
		Board:   append([]int(nil), s.Board...),
		Players: s.Players,
		Turn:    s.Turn,
		Winner:  -1,
		Moves:   s.Moves + 1,
	}
	next.Board[a.Cell] = s.Turn + 1

	if wins(next.Board, s.Turn+1) {
		next.Winner = s.Turn
	} else if next.Moves == cells {
		next.Draw = true
	} else {
		next.Turn = 1 - s.Turn
	}
	return next, nil
}

func (m *Module) IsTerminal(st modules.State) bool {
	s := st.(*state)
	return s.Winner >= 0 || s.Draw
}

func (m *Module) Outcome(st modules.State) modules.Outcome {
	s := st.(*state)
	out := modules.Outcome{Scores: map[string]float64{s.Players[0]: 0, s.Players[1]: 0}}
	switch {
	case s.Winner >= 0:
		out.Winner = s.Players[s.Winner]
		out.Reason = "three_in_a_row"
		out.Scores[out.Winner] = 1
	case s.Draw:
		out.Draw = true
		out.Reason = "board_full"
		out.Scores[s.Players[0]] = 0.5
		out.Scores[s.Players[1]] = 0.5
	}
	return out
}

func (m *Module) Observation(st modules.State, player string) interface{} {
	s := st.(*state)
	return map[string]interface{}{
		"board":         s.Board,
		"players":       s.Players,
		"currentPlayer": s.CurrentPlayer(),
		"moves":         s.Moves,
	}
}

func (m *Module) LegalActions(st modules.State, player string) []json.RawMessage {
	s := st.(*state)
	if s.CurrentPlayer() != player {
		return nil
	}
	var out []json.RawMessage
	for i, v := range s.Board {
		if v == 0 {
			out = append(out, json.RawMessage(fmt.Sprintf(`{"cell":%d}`, i)))
		}
	}
	return out
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func wins(board []int, mark int) bool {
	for _, l := range lines {
		if board[l[0]] == mark && board[l[1]] == mark && board[l[2]] == mark {
			return true
		}
	}
	return false
}
