package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Match status lifecycle: WAITING -> ACTIVE -> COMPLETED -> (SETTLED | DISPUTED).
// CANCELLED marks matches dropped before activation (deposit window lapsed,
// opponent never arrived).
const (
	StatusWaiting   = "WAITING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusSettled   = "SETTLED"
	StatusDisputed  = "DISPUTED"
	StatusCancelled = "CANCELLED"
)

// Player represents a user identified by their EVM address (lowercase 0x-hex)
type Player struct {
	Address     string         `db:"address" json:"address"`
	DisplayName string         `db:"display_name" json:"display_name"`
	Rating      int            `db:"rating" json:"rating"`
	GamesPlayed int            `db:"games_played" json:"games_played"`
	GamesWon    int            `db:"games_won" json:"games_won"`
	GamesDrawn  int            `db:"games_drawn" json:"games_drawn"`
	EarningsWei string         `db:"earnings_wei" json:"earnings_wei"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	LastSeenAt  sql.NullTime   `db:"last_seen_at" json:"last_seen_at,omitempty"`
}

// PlayerGameStats holds a player's per-game rating and record
type PlayerGameStats struct {
	Address     string `db:"address" json:"address"`
	GameID      string `db:"game_id" json:"game_id"`
	Rating      int    `db:"rating" json:"rating"`
	GamesPlayed int    `db:"games_played" json:"games_played"`
	GamesWon    int    `db:"games_won" json:"games_won"`
	GamesDrawn  int    `db:"games_drawn" json:"games_drawn"`
}

// Match is the persisted record of a match
type Match struct {
	ID             string         `db:"id" json:"id"`
	GameID         string         `db:"game_id" json:"game_id"`
	Players        pq.StringArray `db:"players" json:"players"`
	Status         string         `db:"status" json:"status"`
	StakeWei       string         `db:"stake_wei" json:"stake_wei"`
	Winner         sql.NullString `db:"winner" json:"winner,omitempty"`
	Reason         string         `db:"reason" json:"reason,omitempty"`
	TranscriptRoot string         `db:"transcript_root" json:"transcript_root"`
	RNGSeed        string         `db:"rng_seed" json:"rng_seed"`
	SettlementTx   sql.NullString `db:"settlement_tx" json:"settlement_tx,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	CompletedAt    sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// MatchMove is one persisted transcript entry
type MatchMove struct {
	MatchID   string          `db:"match_id" json:"match_id"`
	Sequence  int             `db:"sequence" json:"sequence"`
	Player    string          `db:"player" json:"player"`
	Action    json.RawMessage `db:"action" json:"action"`
	StateHash string          `db:"state_hash" json:"state_hash"`
	PrevHash  string          `db:"prev_hash" json:"prev_hash"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ChatMessage is a persisted in-match chat line
type ChatMessage struct {
	ID        int       `db:"id" json:"id"`
	MatchID   string    `db:"match_id" json:"match_id"`
	Player    string    `db:"player" json:"player"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LeaderboardRow is one paginated ranking entry
type LeaderboardRow struct {
	Rank        int    `db:"rank" json:"rank"`
	Address     string `db:"address" json:"address"`
	DisplayName string `db:"display_name" json:"display_name"`
	Rating      int    `db:"rating" json:"rating"`
	GamesPlayed int    `db:"games_played" json:"games_played"`
	GamesWon    int    `db:"games_won" json:"games_won"`
	GamesDrawn  int    `db:"games_drawn" json:"games_drawn"`
	EarningsWei string `db:"earnings_wei" json:"earnings_wei,omitempty"`
}
