package game

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dorkfun/backend/internal/models"
)

// Archive reads serve finished matches from Postgres. Live matches answer
// from memory first so a match stays queryable across its whole lifetime.

// MatchDetail returns one match: the live view while it is in memory, the
// archived row afterwards
func (s *Service) MatchDetail(ctx context.Context, matchID string) (map[string]interface{}, error) {
	if lm, ok := s.getMatch(matchID); ok {
		lm.mu.Lock()
		defer lm.mu.Unlock()

		out := map[string]interface{}{
			"id":        lm.ID,
			"gameId":    lm.GameID,
			"players":   lm.Players,
			"status":    lm.Status,
			"stakeWei":  lm.StakeWei.String(),
			"createdAt": lm.CreatedAt.UnixMilli(),
			"live":      true,
		}
		if lm.Orc != nil {
			out["moveCount"] = lm.Orc.MoveCount()
			out["transcriptRoot"] = lm.Orc.Root()
		}
		if lm.terminal() {
			out["winner"] = lm.Winner
			out["reason"] = lm.Reason
			out["completedAt"] = lm.CompletedAt.UnixMilli()
			if lm.SettlementTx != "" {
				out["settlementTx"] = lm.SettlementTx
			}
		}
		return out, nil
	}

	var m models.Match
	err := s.db.GetContext(ctx, &m, `
		SELECT id, game_id, players, status, stake_wei, winner, reason,
		       transcript_root, rng_seed, settlement_tx, created_at, completed_at
		FROM matches WHERE id = $1`, matchID)
	if err == sql.ErrNoRows {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load match: %w", err)
	}

	out := map[string]interface{}{
		"id":             m.ID,
		"gameId":         m.GameID,
		"players":        []string(m.Players),
		"status":         m.Status,
		"stakeWei":       m.StakeWei,
		"reason":         m.Reason,
		"transcriptRoot": m.TranscriptRoot,
		"rngSeed":        m.RNGSeed,
		"createdAt":      m.CreatedAt.UnixMilli(),
		"live":           false,
	}
	if m.Winner.Valid {
		out["winner"] = m.Winner.String
	}
	if m.SettlementTx.Valid {
		out["settlementTx"] = m.SettlementTx.String
	}
	if m.CompletedAt.Valid {
		out["completedAt"] = m.CompletedAt.Time.UnixMilli()
	}
	return out, nil
}

// MatchMoves returns the full transcript of a match, live or archived
func (s *Service) MatchMoves(ctx context.Context, matchID string) ([]models.MatchMove, error) {
	if lm, ok := s.getMatch(matchID); ok {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if lm.Orc == nil {
			return []models.MatchMove{}, nil
		}
		entries := lm.Orc.Entries()
		moves := make([]models.MatchMove, 0, len(entries))
		for _, e := range entries {
			moves = append(moves, models.MatchMove{
				MatchID:   matchID,
				Sequence:  e.Sequence,
				Player:    e.Player,
				Action:    e.Action,
				StateHash: e.StateHash,
				PrevHash:  e.PrevHash,
			})
		}
		return moves, nil
	}

	moves := []models.MatchMove{}
	err := s.db.SelectContext(ctx, &moves, `
		SELECT match_id, sequence, player, action, state_hash, prev_hash, created_at
		FROM match_moves WHERE match_id = $1 ORDER BY sequence ASC`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load moves: %w", err)
	}
	return moves, nil
}

// ListArchive pages through finished matches, optionally filtered by game
// and/or participant
func (s *Service) ListArchive(ctx context.Context, gameID, player string, limit, offset int) ([]models.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, game_id, players, status, stake_wei, winner, reason,
		       transcript_root, rng_seed, settlement_tx, created_at, completed_at
		FROM matches
		WHERE status IN ('COMPLETED', 'SETTLED', 'DISPUTED')`
	args := []interface{}{}
	n := 0

	if gameID != "" {
		n++
		query += fmt.Sprintf(" AND game_id = $%d", n)
		args = append(args, gameID)
	}
	if player != "" {
		n++
		query += fmt.Sprintf(" AND $%d = ANY(players)", n)
		args = append(args, player)
	}
	query += fmt.Sprintf(" ORDER BY completed_at DESC NULLS LAST LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, limit, offset)

	matches := []models.Match{}
	if err := s.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return matches, nil
}

// Leaderboard returns a rating page: overall when gameID is empty, per-game
// otherwise
func (s *Service) Leaderboard(ctx context.Context, gameID string, limit, offset int) ([]models.LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows := []models.LeaderboardRow{}
	var err error
	if gameID == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT ROW_NUMBER() OVER (ORDER BY rating DESC, games_won DESC) + $2 AS rank,
			       address, display_name, rating, games_played, games_won, games_drawn, earnings_wei
			FROM players
			WHERE games_played > 0
			ORDER BY rating DESC, games_won DESC
			LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT ROW_NUMBER() OVER (ORDER BY s.rating DESC, s.games_won DESC) + $3 AS rank,
			       s.address, p.display_name, s.rating, s.games_played, s.games_won, s.games_drawn, p.earnings_wei
			FROM player_game_stats s
			JOIN players p ON p.address = s.address
			WHERE s.game_id = $1 AND s.games_played > 0
			ORDER BY s.rating DESC, s.games_won DESC
			LIMIT $2 OFFSET $3`, gameID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return rows, nil
}

// PlayerProfile returns one player's overall record plus per-game splits
func (s *Service) PlayerProfile(ctx context.Context, address string) (map[string]interface{}, error) {
	var p models.Player
	err := s.db.GetContext(ctx, &p, `
		SELECT address, display_name, rating, games_played, games_won, games_drawn,
		       earnings_wei, created_at, last_seen_at
		FROM players WHERE address = $1`, address)
	if err == sql.ErrNoRows {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}

	stats := []models.PlayerGameStats{}
	if err := s.db.SelectContext(ctx, &stats, `
		SELECT address, game_id, rating, games_played, games_won, games_drawn
		FROM player_game_stats WHERE address = $1 ORDER BY game_id`, address); err != nil {
		return nil, fmt.Errorf("load game stats: %w", err)
	}

	return map[string]interface{}{
		"player":    p,
		"gameStats": stats,
	}, nil
}
