package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/match"
	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/ws"
)

var (
	ErrInviteNotFound = errors.New("invite_not_found")
	ErrInviteOwnMatch = errors.New("invite_own_match")
)

const (
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLen  = 8
	inviteTTL      = 24 * time.Hour
)

func generateInviteCode() string {
	b := make([]byte, inviteCodeLen)
	rand.Read(b)
	for i := range b {
		b[i] = inviteAlphabet[int(b[i])%len(inviteAlphabet)]
	}
	return string(b)
}

func inviteKey(code string) string {
	return "invite:" + code
}

// CreatePrivateMatch opens a match that only the invite code can fill. The
// orchestrator is built once the opponent arrives; until then the match sits
// WAITING with a single player.
func (s *Service) CreatePrivateMatch(ctx context.Context, player, gameID, stake string) (map[string]interface{}, error) {
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

	matchID := uuid.New().String()
	code := generateInviteCode()
	now := time.Now()

	lm := &LiveMatch{
		ID:               matchID,
		GameID:           gameID,
		Players:          []string{player},
		StakeWei:         stakeWei,
		Status:           models.StatusWaiting,
		InviteCode:       code,
		Seed:             generateToken(16),
		DepositConfirmed: make(map[string]bool),
		CreatedAt:        now,
		LastActivity:     now,
	}

	s.mu.Lock()
	s.matches[matchID] = lm
	if lm.Staked() {
		s.byChainID[chain.MatchIDBytes32(matchID)] = matchID
	}
	s.mu.Unlock()

	s.persistMatch(lm)

	if err := s.rdb.SetEx(ctx, inviteKey(code), matchID, inviteTTL).Err(); err != nil {
		s.removeMatch(lm)
		return nil, fmt.Errorf("store invite: %w", err)
	}

	token, err := ws.MintToken(ctx, s.rdb, matchID, player, time.Duration(s.cfg.WSTokenTTLSeconds)*time.Second)
	if err != nil {
		log.Printf("[MATCH] Failed to mint WS token for host %s: %v", player, err)
	}

	log.Printf("[MATCH] Private match %s created game=%s stake=%s code=%s", matchID, gameID, stakeWei.String(), code)
	return map[string]interface{}{
		"matchId":    matchID,
		"gameId":     gameID,
		"inviteCode": code,
		"stakeWei":   stakeWei.String(),
		"wsToken":    token,
	}, nil
}

// AcceptPrivateMatch consumes an invite code, builds the orchestrator with
// both players, and either activates the match or arms the deposit gate
func (s *Service) AcceptPrivateMatch(ctx context.Context, player, code string) (map[string]interface{}, error) {
	if s.isEmergency() {
		return nil, ErrEmergencyMode
	}

	matchID, err := s.rdb.GetDel(ctx, inviteKey(code)).Result()
	if err == redis.Nil {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}

	lm, ok := s.getMatch(matchID)
	if !ok {
		return nil, ErrInviteNotFound
	}

	module, err := s.registry.Get(lm.GameID)
	if err != nil {
		return nil, ErrInviteNotFound
	}

	lm.mu.Lock()
	if lm.Status != models.StatusWaiting || len(lm.Players) != 1 {
		lm.mu.Unlock()
		return nil, ErrInviteNotFound
	}
	if lm.Players[0] == player {
		lm.mu.Unlock()
		// Put the code back so the real opponent can still use it.
		s.rdb.SetEx(ctx, inviteKey(code), matchID, inviteTTL)
		return nil, ErrInviteOwnMatch
	}

	lm.Players = append(lm.Players, player)
	orc, oerr := match.New(lm.ID, module, lm.Players, lm.Seed)
	if oerr != nil {
		lm.Players = lm.Players[:1]
		lm.mu.Unlock()
		return nil, fmt.Errorf("internal: %w", oerr)
	}
	lm.Orc = orc
	lm.LastActivity = time.Now()

	needDeposits := lm.Staked()
	if needDeposits {
		for _, p := range lm.Players {
			lm.DepositConfirmed[p] = false
		}
	}
	players := append([]string(nil), lm.Players...)
	lm.mu.Unlock()

	s.updateMatchPlayers(lm.ID, players)

	if needDeposits {
		s.startDepositTimer(lm)
		lm.mu.Lock()
		frame := s.depositRequiredFrameLocked(lm)
		lm.mu.Unlock()
		s.hub.Broadcast(lm.ID, frame, nil)
	} else {
		lm.mu.Lock()
		s.activateLocked(lm)
		lm.mu.Unlock()
	}

	token, terr := ws.MintToken(ctx, s.rdb, lm.ID, player, time.Duration(s.cfg.WSTokenTTLSeconds)*time.Second)
	if terr != nil {
		log.Printf("[MATCH] Failed to mint WS token for %s: %v", player, terr)
	}

	log.Printf("[MATCH] Private match %s filled by %s", lm.ID, player)
	return map[string]interface{}{
		"matchId":  lm.ID,
		"gameId":   lm.GameID,
		"stakeWei": lm.StakeWei.String(),
		"opponent": players[0],
		"wsToken":  token,
	}, nil
}
