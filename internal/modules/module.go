package modules

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"math/rand"
)

// Config carries the per-match configuration handed to a module at init
type Config struct {
	GameID   string                 `json:"gameId"`
	Version  string                 `json:"version"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// Meta describes a registered module for listings and server-side policy
type Meta struct {
	GameID      string                 `json:"gameId"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	MinPlayers  int                    `json:"minPlayers"`
	MaxPlayers  int                    `json:"maxPlayers"`
	// MoveTimeoutMs overrides the server default per-move timeout.
	// nil = use server default, 0 = timeout disabled, >0 = override in ms.
	MoveTimeoutMs *int                   `json:"moveTimeoutMs,omitempty"`
	UISpec        map[string]interface{} `json:"uiSpec,omitempty"`
}

// Outcome is the terminal result reported by a module
type Outcome struct {
	Winner string             `json:"winner,omitempty"`
	Draw   bool               `json:"draw"`
	Scores map[string]float64 `json:"scores,omitempty"`
	Reason string             `json:"reason"`
}

// State is a module-owned game state. Implementations must be plain
// JSON-marshalable values so the transcript can hash them canonically.
type State interface {
	// CurrentPlayer returns the address whose turn it is, or "" when
	// the state is terminal.
	CurrentPlayer() string
}

// Module is the pluggable rule-engine contract. Implementations must be
// deterministic under equal inputs and must never mutate a passed-in state.
// Validators return false for invalid input instead of failing; ApplyAction
// may only fail when its (up-stack validated) preconditions are violated.
type Module interface {
	Meta() Meta
	Init(cfg Config, players []string, seed string) (State, error)
	ValidateAction(st State, player string, action json.RawMessage) bool
	ApplyAction(st State, player string, action json.RawMessage, rng *rand.Rand) (State, error)
	IsTerminal(st State) bool
	Outcome(st State) Outcome
	Observation(st State, player string) interface{}
	LegalActions(st State, player string) []json.RawMessage
}

// SeededRand derives a deterministic math/rand source from a string seed so
// replays reproduce every RNG draw bit-exactly.
func SeededRand(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	n := int64(binary.BigEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(n))
}
