package connectfour

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/dorkfun/backend/internal/modules"
)

// Module implements 7x6 connect-four with gravity drops.
type Module struct{}

func New() *Module { return &Module{} }

const (
	columns = 7
	rows    = 6
	winLen  = 4
)

type state struct {
	// Board is row-major, row 0 at the top. 0 empty, 1/2 player index+1.
	Board   []int    `json:"board"`
	Players []string `json:"players"`
	Turn    int      `json:"turn"`
	Winner  int      `json:"winner"`
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
	Col int `json:"col"`
}

func (m *Module) Meta() modules.Meta {
	return modules.Meta{
		GameID:      "connectfour",
		Name:        "Connect Four",
		Description: "Drop discs into a 7x6 grid. Four in a row wins.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (m *Module) Init(cfg modules.Config, players []string, seed string) (modules.State, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("connectfour requires exactly 2 players, got %d", len(players))
	}
	return &state{
		Board:   make([]int, columns*rows),
		Players: append([]string(nil), players...),
		Winner:  -1,
	}, nil
}

// dropRow returns the landing row for a disc in col, or -1 if the column is full
func dropRow(board []int, col int) int {
	for r := rows - 1; r >= 0; r-- {
		if board[r*columns+col] == 0 {
			return r
		}
	}
	return -1
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
	return a.Col >= 0 && a.Col < columns && dropRow(s.Board, a.Col) >= 0
}

func (m *Module) ApplyAction(st modules.State, player string, raw json.RawMessage, _ *rand.Rand) (modules.State, error) {
	s, ok := st.(*state)
	if !ok {
		return nil, fmt.Errorf("connectfour: wrong state type %T", st)
	}
	var a action
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("connectfour: bad action: %w", err)
	}
	if s.CurrentPlayer() != player || a.Col < 0 || a.Col >= columns {
		return nil, fmt.Errorf("connectfour: precondition violated for col %d", a.Col)
	}
	row := dropRow(s.Board, a.Col)
	if row < 0 {
		return nil, fmt.Errorf("connectfour: column %d full", a.Col)
	}

	next := &state{
		Board:   append([]int(nil), s.Board...),
		Players: s.Players,
		Turn:    s.Turn,
		Winner:  -1,
		Moves:   s.Moves + 1,
	}
	next.Board[row*columns+a.Col] = s.Turn + 1

	if connects(next.Board, row, a.Col) {
		next.Winner = s.Turn
	} else if next.Moves == columns*rows {
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
		out.Reason = "four_in_a_row"
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
	for c := 0; c < columns; c++ {
		if dropRow(s.Board, c) >= 0 {
			out = append(out, json.RawMessage(fmt.Sprintf(`{"col":%d}`, c)))
		}
	}
	return out
}

// connects tests whether the disc just placed at (row,col) completes a
// four-in-a-row in any direction.
func connects(board []int, row, col int) bool {
	mark := board[row*columns+col]
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1

		// forward
		fr, fc := row+d[0], col+d[1]
		for fr >= 0 && fr < rows && fc >= 0 && fc < columns && board[fr*columns+fc] == mark {
			count++
			fr += d[0]
			fc += d[1]
		}

		// backward
		br, bc := row-d[0], col-d[1]
		for br >= 0 && br < rows && bc >= 0 && bc < columns && board[br*columns+bc] == mark {
			count++
			br -= d[0]
			bc -= d[1]
		}

		if count >= winLen {
			return true
		}
	}
	return false
}
