package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Matchmaking queues live in Redis, one hash per (gameId, stake) bucket
// keyed by player address. Pairing happens inside the poll that finds an
// opponent; the other side learns about it on its next poll through a
// pending-notification key.

var (
	ErrUnknownGame        = errors.New("queue_unknown_game")
	ErrInvalidStake       = errors.New("queue_invalid_stake")
	ErrStakeBelowMinimum  = errors.New("queue_stake_below_minimum")
	ErrStakingUnavailable = errors.New("queue_staking_unavailable")
	ErrTicketNotFound     = errors.New("queue_ticket_not_found")
)

const (
	queueKeyTTL  = 10 * time.Minute
	pendingTTL   = 2 * time.Minute
	ticketKeyTTL = 10 * time.Minute
)

// JoinResult is what a queue poll returns: either a ticket to keep polling
// with, or the match the caller was paired into.
type JoinResult struct {
	Matched  bool   `json:"matched"`
	Ticket   string `json:"ticket,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	GameID   string `json:"gameId"`
	Opponent string `json:"opponent,omitempty"`
	StakeWei string `json:"stakeWei"`
	WSToken  string `json:"wsToken,omitempty"`
}

type queueEntry struct {
	Ticket    string `json:"ticket"`
	JoinedAt  int64  `json:"joinedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

type pendingMatch struct {
	MatchID  string `json:"matchId"`
	Opponent string `json:"opponent"`
	WSToken  string `json:"wsToken"`
}

func queueKey(gameID, stake string) string {
	return fmt.Sprintf("queue:%s:%s", gameID, stake)
}

func pendingKey(gameID, stake, player string) string {
	return fmt.Sprintf("pending:%s:%s:%s", gameID, stake, player)
}

func ticketKey(ticket string) string {
	return "queueticket:" + ticket
}

// parseStake validates a stake string against the escrow minimum
func (s *Service) parseStake(ctx context.Context, stake string) (*big.Int, error) {
	if stake == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(stake, 10)
	if !ok || v.Sign() < 0 {
		return nil, ErrInvalidStake
	}
	if v.Sign() == 0 {
		return v, nil
	}

	if s.chain == nil {
		return nil, ErrStakingUnavailable
	}
	min, err := s.chain.MinimumStake(ctx)
	if err != nil {
		log.Printf("[QUEUE] Failed to read minimum stake: %v", err)
		return nil, ErrStakingUnavailable
	}
	if v.Cmp(min) < 0 {
		return nil, ErrStakeBelowMinimum
	}
	return v, nil
}

// JoinQueue is the matchmaking poll. Passing the ticket from a previous poll
// refreshes the caller's queue slot; the first call may omit it.
func (s *Service) JoinQueue(ctx context.Context, player, gameID, stake, ticket string) (*JoinResult, error) {
	if s.isEmergency() {
		return nil, ErrEmergencyMode
	}
	if !s.registry.Has(gameID) {
		return nil, ErrUnknownGame
	}
	stakeWei, err := s.parseStake(ctx, stake)
	if err != nil {
		return nil, err
	}
	bucket := stakeWei.String()

	key := queueKey(gameID, bucket)
	unlock := s.joinLocks.Lock(key)
	defer unlock()

	// A previous poll may already have paired us.
	if raw, err := s.rdb.GetDel(ctx, pendingKey(gameID, bucket, player)).Result(); err == nil {
		var pm pendingMatch
		if jerr := json.Unmarshal([]byte(raw), &pm); jerr == nil {
			s.rdb.HDel(ctx, key, player)
			return &JoinResult{
				Matched:  true,
				MatchID:  pm.MatchID,
				GameID:   gameID,
				Opponent: pm.Opponent,
				StakeWei: bucket,
				WSToken:  pm.WSToken,
			}, nil
		}
	}

	entries, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("queue scan: %w", err)
	}

	now := time.Now()
	for candidate, raw := range entries {
		if strings.EqualFold(candidate, player) {
			continue
		}
		var qe queueEntry
		if jerr := json.Unmarshal([]byte(raw), &qe); jerr != nil || now.UnixMilli() > qe.ExpiresAt {
			s.rdb.HDel(ctx, key, candidate)
			continue
		}

		// Pair up. The candidate queued first, so they move first.
		s.rdb.HDel(ctx, key, candidate, player)
		s.rdb.Del(ctx, ticketKey(qe.Ticket))

		lm, tokens, cerr := s.createMatch(ctx, gameID, []string{candidate, player}, stakeWei)
		if cerr != nil {
			return nil, cerr
		}

		pm, _ := json.Marshal(pendingMatch{MatchID: lm.ID, Opponent: player, WSToken: tokens[candidate]})
		if perr := s.rdb.SetEx(ctx, pendingKey(gameID, bucket, candidate), pm, pendingTTL).Err(); perr != nil {
			log.Printf("[QUEUE] Failed to store pairing notice for %s: %v", candidate, perr)
		}

		return &JoinResult{
			Matched:  true,
			MatchID:  lm.ID,
			GameID:   gameID,
			Opponent: candidate,
			StakeWei: bucket,
			WSToken:  tokens[player],
		}, nil
	}

	// Nobody compatible: enqueue (or refresh the existing slot).
	if ticket == "" {
		ticket = generateToken(12)
	}
	ttl := time.Duration(s.cfg.QueueTicketTTLSeconds) * time.Second
	entry, _ := json.Marshal(queueEntry{
		Ticket:    ticket,
		JoinedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	})
	if err := s.rdb.HSet(ctx, key, player, entry).Err(); err != nil {
		return nil, fmt.Errorf("queue join: %w", err)
	}
	s.rdb.Expire(ctx, key, queueKeyTTL)
	s.rdb.SetEx(ctx, ticketKey(ticket), key+"|"+player, ticketKeyTTL)

	return &JoinResult{
		Ticket:   ticket,
		GameID:   gameID,
		StakeWei: bucket,
	}, nil
}

// LeaveQueue removes the caller's queue slot by ticket
func (s *Service) LeaveQueue(ctx context.Context, ticket string) error {
	raw, err := s.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err == redis.Nil {
		return ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("queue leave: %w", err)
	}

	parts := strings.SplitN(raw, "|", 2)
	if len(parts) != 2 {
		return ErrTicketNotFound
	}
	s.rdb.HDel(ctx, parts[0], parts[1])
	return nil
}

// QueueSnapshot lists the current queue buckets and their live depth,
// purging expired slots as it goes
func (s *Service) QueueSnapshot(ctx context.Context) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0)
	now := time.Now().UnixMilli()

	iter := s.rdb.Scan(ctx, 0, "queue:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		parts := strings.SplitN(key, ":", 3)
		if len(parts) != 3 {
			continue
		}

		entries, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		depth := 0
		for player, raw := range entries {
			var qe queueEntry
			if jerr := json.Unmarshal([]byte(raw), &qe); jerr != nil || now > qe.ExpiresAt {
				s.rdb.HDel(ctx, key, player)
				continue
			}
			depth++
		}
		if depth == 0 {
			continue
		}
		out = append(out, map[string]interface{}{
			"gameId":   parts[1],
			"stakeWei": parts[2],
			"waiting":  depth,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("queue snapshot: %w", err)
	}
	return out, nil
}
