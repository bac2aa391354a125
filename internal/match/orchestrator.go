package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/transcript"
)

var (
	ErrAlreadyOver   = errors.New("match_already_over")
	ErrNotYourTurn   = errors.New("match_not_your_turn")
	ErrInvalidAction = errors.New("match_invalid_action")
)

// Orchestrator wraps one game module for one match: it holds the current
// state, enforces turn ownership, and drives the transcript builder.
// It is not goroutine-safe; the Match Service serializes access per match.
type Orchestrator struct {
	MatchID string
	GameID  string
	Players []string
	Seed    string

	module     modules.Module
	state      modules.State
	rng        *rand.Rand
	transcript *transcript.Builder
	over       bool
	outcome    modules.Outcome
}

// StepResult is what a successful action application reports back
type StepResult struct {
	Entry       transcript.Entry
	Observation interface{}
	Terminal    bool
	Outcome     modules.Outcome
}

// New initializes the module state with the given seed and roots the
// transcript at the initial-state hash
func New(matchID string, module modules.Module, players []string, seed string) (*Orchestrator, error) {
	meta := module.Meta()
	cfg := modules.Config{GameID: meta.GameID, Version: "1"}

	state, err := module.Init(cfg, players, seed)
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", meta.GameID, err)
	}

	builder, err := transcript.NewBuilder(matchID, meta.GameID, state)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		MatchID:    matchID,
		GameID:     meta.GameID,
		Players:    append([]string(nil), players...),
		Seed:       seed,
		module:     module,
		state:      state,
		rng:        modules.SeededRand(seed),
		transcript: builder,
	}, nil
}

// SubmitAction validates and applies one action, appends the transcript
// entry, and reports the new observation plus terminality
func (o *Orchestrator) SubmitAction(player string, action json.RawMessage) (*StepResult, error) {
	if o.over || o.module.IsTerminal(o.state) {
		return nil, ErrAlreadyOver
	}
	if o.state.CurrentPlayer() != player {
		return nil, ErrNotYourTurn
	}
	if !o.module.ValidateAction(o.state, player, action) {
		return nil, ErrInvalidAction
	}

	next, err := o.module.ApplyAction(o.state, player, action, o.rng)
	if err != nil {
		// validated action failed to apply: module invariant breach
		return nil, fmt.Errorf("internal: apply action: %w", err)
	}

	entry, err := o.transcript.AddEntry(player, action, next)
	if err != nil {
		return nil, err
	}
	o.state = next

	result := &StepResult{
		Entry:       entry,
		Observation: o.module.Observation(next, player),
	}
	if o.module.IsTerminal(next) {
		o.over = true
		o.outcome = o.module.Outcome(next)
		result.Terminal = true
		result.Outcome = o.outcome
	}
	return result, nil
}

// ForceOutcome terminates the match with a synthetic outcome (forfeit,
// timeout, stale draw, emergency). The transcript is left untouched — only
// applied actions append entries. No-op if the match is already over.
func (o *Orchestrator) ForceOutcome(outcome modules.Outcome) bool {
	if o.over || o.module.IsTerminal(o.state) {
		return false
	}
	o.over = true
	o.outcome = outcome
	return true
}

// IsOver reports terminality, whether reached by play or forced
func (o *Orchestrator) IsOver() bool {
	return o.over || o.module.IsTerminal(o.state)
}

// Outcome returns the terminal outcome. Valid only when IsOver is true.
func (o *Orchestrator) Outcome() modules.Outcome {
	if !o.over && o.module.IsTerminal(o.state) {
		return o.module.Outcome(o.state)
	}
	return o.outcome
}

// CurrentPlayer returns the address to move, or "" when over
func (o *Orchestrator) CurrentPlayer() string {
	if o.over {
		return ""
	}
	return o.state.CurrentPlayer()
}

// Observation returns the player's view of the current state
func (o *Orchestrator) Observation(player string) interface{} {
	return o.module.Observation(o.state, player)
}

// LegalActions returns the player's currently playable actions
func (o *Orchestrator) LegalActions(player string) []json.RawMessage {
	if o.over {
		return nil
	}
	return o.module.LegalActions(o.state, player)
}

// Root returns the current transcript root hash
func (o *Orchestrator) Root() string {
	return o.transcript.Root()
}

// Entries returns the transcript entries recorded so far
func (o *Orchestrator) Entries() []transcript.Entry {
	return o.transcript.Entries()
}

// MoveCount returns the number of applied actions
func (o *Orchestrator) MoveCount() int {
	return o.transcript.Len()
}
