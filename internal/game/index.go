package game

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// The active-match index lets a returning client find the match it should
// rejoin after a crash or tab close. Entries expire on their own; terminal
// matches are cross-checked and purged on read.

const activeIndexTTL = time.Hour

func activeKey(player string) string {
	return "active:" + player
}

type activeEntry struct {
	MatchID  string `json:"matchId"`
	GameID   string `json:"gameId"`
	StakeWei string `json:"stakeWei"`
}

func (s *Service) setActiveIndex(ctx context.Context, matchID, gameID, stakeWei string, players []string) {
	entry, err := json.Marshal(activeEntry{
		MatchID:  matchID,
		GameID:   gameID,
		StakeWei: stakeWei,
	})
	if err != nil {
		return
	}
	for _, p := range players {
		if err := s.rdb.SetEx(ctx, activeKey(p), entry, activeIndexTTL).Err(); err != nil {
			log.Printf("[MATCH] Failed to index active match for %s: %v", p, err)
		}
	}
}

func (s *Service) clearActiveIndex(ctx context.Context, players []string) {
	for _, p := range players {
		s.rdb.Del(ctx, activeKey(p))
	}
}

// CheckActiveMatch returns the live match a player should rejoin, if any.
// Stale index entries pointing at finished or evicted matches are deleted.
func (s *Service) CheckActiveMatch(ctx context.Context, player string) (map[string]interface{}, bool) {
	raw, err := s.rdb.Get(ctx, activeKey(player)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[MATCH] Active index read failed for %s: %v", player, err)
		return nil, false
	}

	var entry activeEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.rdb.Del(ctx, activeKey(player))
		return nil, false
	}

	lm, ok := s.getMatch(entry.MatchID)
	if !ok {
		s.rdb.Del(ctx, activeKey(player))
		return nil, false
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.terminal() {
		s.rdb.Del(ctx, activeKey(player))
		return nil, false
	}

	return map[string]interface{}{
		"matchId":  lm.ID,
		"gameId":   lm.GameID,
		"stakeWei": lm.StakeWei.String(),
		"status":   lm.Status,
		"players":  lm.Players,
	}, true
}
