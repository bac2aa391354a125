package game

import (
	"context"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lib/pq"

	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/transcript"
)

// Persistence is best-effort: the in-memory match is authoritative while
// live, and a lost write must never take a running game down with it.

func (s *Service) persistMatch(lm *LiveMatch) {
	root := ""
	if lm.Orc != nil {
		root = lm.Orc.Root()
	}
	_, err := s.db.Exec(`
		INSERT INTO matches (id, game_id, players, status, stake_wei, rng_seed, transcript_root, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lm.ID, lm.GameID, pq.Array(lm.Players), lm.Status, lm.StakeWei.String(), lm.Seed, root, lm.CreatedAt)
	if err != nil {
		log.Printf("[DB] Failed to insert match %s: %v", lm.ID, err)
	}
}

func (s *Service) updateMatchStatus(matchID, status string) {
	if _, err := s.db.Exec(`UPDATE matches SET status = $2 WHERE id = $1`, matchID, status); err != nil {
		log.Printf("[DB] Failed to update status of %s: %v", matchID, err)
	}
}

func (s *Service) updateMatchPlayers(matchID string, players []string) {
	if _, err := s.db.Exec(`UPDATE matches SET players = $2 WHERE id = $1`, matchID, pq.Array(players)); err != nil {
		log.Printf("[DB] Failed to update players of %s: %v", matchID, err)
	}
}

func (s *Service) persistMove(matchID string, entry transcript.Entry) {
	_, err := s.db.Exec(`
		INSERT INTO match_moves (match_id, sequence, player, action, state_hash, prev_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, sequence) DO NOTHING`,
		matchID, entry.Sequence, entry.Player, []byte(entry.Action), entry.StateHash, entry.PrevHash,
		time.UnixMilli(entry.Timestamp))
	if err != nil {
		log.Printf("[DB] Failed to insert move %d of %s: %v", entry.Sequence, matchID, err)
	}
}

func (s *Service) persistChat(matchID, player, message string) {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (match_id, player, message) VALUES ($1, $2, $3)`,
		matchID, player, message)
	if err != nil {
		log.Printf("[DB] Failed to insert chat for %s: %v", matchID, err)
	}
}

func (s *Service) persistCompletion(rec *completionRecord) {
	var winner interface{}
	if rec.outcome.Winner != "" {
		winner = rec.outcome.Winner
	}
	_, err := s.db.Exec(`
		UPDATE matches
		SET status = $2, winner = $3, reason = $4, transcript_root = $5, completed_at = $6
		WHERE id = $1`,
		rec.matchID, models.StatusCompleted, winner, rec.outcome.Reason, rec.root, rec.completedAt)
	if err != nil {
		log.Printf("[DB] Failed to persist completion of %s: %v", rec.matchID, err)
	}
}

// applyRatings updates both the overall and per-game Elo records for a
// finished two-player match, plus the winner's earnings on staked matches
func (s *Service) applyRatings(rec *completionRecord) {
	if len(rec.players) != 2 {
		return
	}
	a, b := rec.players[0], rec.players[1]

	var scoreA float64
	switch {
	case rec.outcome.Draw:
		scoreA = 0.5
	case rec.outcome.Winner == a:
		scoreA = 1
	case rec.outcome.Winner == b:
		scoreA = 0
	default:
		// No winner and no draw (cancelled mid-flight): nothing to rate.
		return
	}

	overallA, overallB := s.overallRating(a), s.overallRating(b)
	gameA, gameB := s.gameRating(a, rec.gameID), s.gameRating(b, rec.gameID)

	s.upsertPlayer(a, applyFloor(overallA+eloDelta(overallA, overallB, scoreA)), scoreA)
	s.upsertPlayer(b, applyFloor(overallB+eloDelta(overallB, overallA, 1-scoreA)), 1-scoreA)
	s.upsertGameStats(a, rec.gameID, applyFloor(gameA+eloDelta(gameA, gameB, scoreA)), scoreA)
	s.upsertGameStats(b, rec.gameID, applyFloor(gameB+eloDelta(gameB, gameA, 1-scoreA)), 1-scoreA)

	if rec.staked && !rec.outcome.Draw && rec.outcome.Winner != "" {
		s.addEarnings(rec.outcome.Winner, rec.stakeWei)
	}
}

func (s *Service) overallRating(address string) int {
	rating := 1200
	if err := s.db.Get(&rating, `SELECT rating FROM players WHERE address = $1`, address); err != nil {
		return 1200
	}
	return rating
}

func (s *Service) gameRating(address, gameID string) int {
	rating := 1200
	if err := s.db.Get(&rating, `SELECT rating FROM player_game_stats WHERE address = $1 AND game_id = $2`, address, gameID); err != nil {
		return 1200
	}
	return rating
}

func (s *Service) upsertPlayer(address string, newRating int, score float64) {
	won, drawn := 0, 0
	switch score {
	case 1:
		won = 1
	case 0.5:
		drawn = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO players (address, rating, games_played, games_won, games_drawn, last_seen_at)
		VALUES ($1, $2, 1, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			rating = $2,
			games_played = players.games_played + 1,
			games_won = players.games_won + $3,
			games_drawn = players.games_drawn + $4,
			last_seen_at = NOW()`,
		address, newRating, won, drawn)
	if err != nil {
		log.Printf("[DB] Failed to upsert player %s: %v", address, err)
	}
}

func (s *Service) upsertGameStats(address, gameID string, newRating int, score float64) {
	won, drawn := 0, 0
	switch score {
	case 1:
		won = 1
	case 0.5:
		drawn = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO player_game_stats (address, game_id, rating, games_played, games_won, games_drawn)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (address, game_id) DO UPDATE SET
			rating = $3,
			games_played = player_game_stats.games_played + 1,
			games_won = player_game_stats.games_won + $4,
			games_drawn = player_game_stats.games_drawn + $5`,
		address, gameID, newRating, won, drawn)
	if err != nil {
		log.Printf("[DB] Failed to upsert game stats %s/%s: %v", address, gameID, err)
	}
}

func (s *Service) addEarnings(address, stakeWei string) {
	_, err := s.db.Exec(`
		UPDATE players SET earnings_wei = (earnings_wei::NUMERIC + $2::NUMERIC)::TEXT WHERE address = $1`,
		address, stakeWei)
	if err != nil {
		log.Printf("[DB] Failed to add earnings for %s: %v", address, err)
	}
}

// settleMatch submits the outcome on-chain and records the result. Runs in
// its own goroutine after completion; a failed submission parks the match
// DISPUTED for manual resolution.
func (s *Service) settleMatch(matchID string, outcome modules.Outcome, root string) {
	if !s.chain.SettlementEnabled() {
		log.Printf("[SETTLE] Settlement disabled, %s stays COMPLETED", matchID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var winner common.Address
	if !outcome.Draw && outcome.Winner != "" {
		winner = common.HexToAddress(outcome.Winner)
	}

	var rootHash [32]byte
	if b, err := hexutil.Decode(root); err == nil && len(b) == 32 {
		copy(rootHash[:], b)
	}

	tx, err := s.chain.SubmitOutcome(ctx, matchID, winner, outcome.Draw, rootHash)
	status := models.StatusSettled
	if err != nil {
		log.Printf("[SETTLE] Match %s is DISPUTED: %v", matchID, err)
		status = models.StatusDisputed
		tx = ""
	}

	var txArg interface{}
	if tx != "" {
		txArg = tx
	}
	if _, derr := s.db.Exec(`UPDATE matches SET status = $2, settlement_tx = $3 WHERE id = $1`, matchID, status, txArg); derr != nil {
		log.Printf("[DB] Failed to record settlement of %s: %v", matchID, derr)
	}

	if lm, ok := s.getMatch(matchID); ok {
		lm.mu.Lock()
		lm.Status = status
		lm.SettlementTx = tx
		lm.mu.Unlock()
	}
}
