package game

import (
	"context"
	"encoding/hex"
	"log"

	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/ws"
)

// The Service implements ws.Gateway: the transport hands every authenticated
// session and inbound frame to these methods.

// AttachPlayer returns the frames a freshly attached (or reattached) player
// session should receive before entering the room
func (s *Service) AttachPlayer(ctx context.Context, matchID, playerID string) ([]*ws.Frame, error) {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}

	member := false
	lm.mu.Lock()
	for _, p := range lm.Players {
		if p == playerID {
			member = true
			break
		}
	}
	lm.mu.Unlock()
	if !member {
		return nil, ErrMatchNotFound
	}

	history := s.chatHistoryFrame(ctx, matchID)

	lm.mu.Lock()
	defer lm.mu.Unlock()

	frames := make([]*ws.Frame, 0, 2)
	switch {
	case lm.terminal():
		frames = append(frames, s.gameOverFrameLocked(lm))
	case lm.Status == models.StatusWaiting && lm.Staked() && len(lm.Players) == 2:
		frames = append(frames, s.depositRequiredFrameLocked(lm))
	default:
		frames = append(frames, s.gameStateFrameLocked(lm, playerID))
	}
	if history != nil {
		frames = append(frames, history)
	}
	return frames, nil
}

// AttachSpectator returns the public view frames for a new spectator session
func (s *Service) AttachSpectator(ctx context.Context, matchID string) ([]*ws.Frame, error) {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}

	history := s.chatHistoryFrame(ctx, matchID)

	lm.mu.Lock()
	defer lm.mu.Unlock()

	frames := []*ws.Frame{s.spectateFrameLocked(lm)}
	if lm.terminal() {
		frames = append(frames, s.gameOverFrameLocked(lm))
	}
	if history != nil {
		frames = append(frames, history)
	}
	return frames, nil
}

// DetachPlayer records a player's transport going away. The match keeps
// running; the stale sweep decides its fate if nobody returns.
func (s *Service) DetachPlayer(matchID, playerID string) {
	log.Printf("[MATCH] Player %s detached from %s", playerID, matchID)
}

// depositRequiredFrameLocked tells a staked match's players where to send
// their stake. Caller must hold lm.mu.
func (s *Service) depositRequiredFrameLocked(lm *LiveMatch) *ws.Frame {
	id := chain.MatchIDBytes32(lm.ID)
	return ws.NewFrame(ws.TypeDepositRequired, lm.ID, map[string]interface{}{
		"escrowAddress":  s.chain.EscrowAddress(),
		"stakeWei":       lm.StakeWei.String(),
		"matchIdBytes32": "0x" + hex.EncodeToString(id[:]),
	}, 0, "")
}

// gameOverFrameLocked replays the terminal result for late attachers.
// Caller must hold lm.mu.
func (s *Service) gameOverFrameLocked(lm *LiveMatch) *ws.Frame {
	root := ""
	seq := 0
	if lm.Orc != nil {
		root = lm.Orc.Root()
		seq = lm.Orc.MoveCount()
	}
	payload := map[string]interface{}{
		"status": lm.Status,
		"winner": lm.Winner,
		"reason": lm.Reason,
		"root":   root,
	}
	if lm.SettlementTx != "" {
		payload["settlementTx"] = lm.SettlementTx
	}
	return ws.NewFrame(ws.TypeGameOver, lm.ID, payload, seq, root)
}

// chatHistoryFrame loads the last 50 chat lines for attach-time replay.
// Returns nil when there is nothing to replay (or the read fails).
func (s *Service) chatHistoryFrame(ctx context.Context, matchID string) *ws.Frame {
	var rows []models.ChatMessage
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, match_id, player, message, created_at
		FROM (
			SELECT id, match_id, player, message, created_at
			FROM chat_messages WHERE match_id = $1
			ORDER BY id DESC LIMIT 50
		) recent
		ORDER BY id ASC`, matchID)
	if err != nil {
		log.Printf("[DB] Failed to load chat history for %s: %v", matchID, err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	messages := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, map[string]interface{}{
			"player":    row.Player,
			"message":   row.Message,
			"timestamp": row.CreatedAt.UnixMilli(),
		})
	}
	return ws.NewFrame(ws.TypeChatHistory, matchID, map[string]interface{}{
		"messages": messages,
	}, 0, "")
}
