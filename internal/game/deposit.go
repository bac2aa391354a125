package game

import (
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/ws"
)

// startDepositTimer arms the deposit window for a staked match. If the window
// lapses before every player's Deposited event lands, the match is dropped
// without ever reaching COMPLETED.
func (s *Service) startDepositTimer(lm *LiveMatch) {
	d := time.Duration(s.cfg.DepositTimeoutMs) * time.Millisecond
	matchID := lm.ID

	lm.mu.Lock()
	if lm.depositTimer != nil {
		lm.depositTimer.Stop()
	}
	lm.depositTimer = time.AfterFunc(d, func() {
		s.cancelForDepositTimeout(matchID)
	})
	lm.mu.Unlock()
}

// cancelForDepositTimeout drops a match still WAITING when the deposit window
// expires. Attached sessions get an ERROR and the room is closed.
func (s *Service) cancelForDepositTimeout(matchID string) {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return
	}

	lm.mu.Lock()
	if lm.Status != models.StatusWaiting {
		lm.mu.Unlock()
		return
	}
	lm.Status = models.StatusCancelled
	lm.depositTimer = nil
	lm.mu.Unlock()

	log.Printf("[ESCROW] Deposit window expired for %s, dropping match", matchID)
	s.updateMatchStatus(matchID, models.StatusCancelled)
	s.hub.Broadcast(matchID, ws.ErrorFrame(matchID, "deposit_timeout", "deposit window expired"), nil)
	s.hub.CloseMatch(matchID)
	s.removeMatch(lm)
}

// HandleDeposit is the escrow watcher callback. It marks the depositor
// confirmed and activates the match once every player has deposited.
func (s *Service) HandleDeposit(matchIDBytes [32]byte, player common.Address) {
	s.mu.RLock()
	matchID, ok := s.byChainID[matchIDBytes]
	s.mu.RUnlock()
	if !ok {
		// Deposits for matches we no longer track (dropped, restarted) are
		// refund territory for the contract, not ours.
		log.Printf("[ESCROW] Deposit for unknown match id %x", matchIDBytes[:8])
		return
	}

	lm, ok := s.getMatch(matchID)
	if !ok {
		return
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.Status != models.StatusWaiting {
		return
	}

	addr := strings.ToLower(player.Hex())
	confirmed, member := lm.DepositConfirmed[addr]
	if !member {
		log.Printf("[ESCROW] Deposit from non-participant %s on %s", addr, matchID)
		return
	}
	if confirmed {
		return
	}
	lm.DepositConfirmed[addr] = true

	pending := make([]string, 0, len(lm.Players))
	done := make([]string, 0, len(lm.Players))
	for _, p := range lm.Players {
		if lm.DepositConfirmed[p] {
			done = append(done, p)
		} else {
			pending = append(pending, p)
		}
	}

	// Single-player ack: only the depositor learns the roster state.
	s.hub.SendToPlayer(matchID, addr, ws.NewFrame(ws.TypeDepositsConfirmed, matchID, map[string]interface{}{
		"confirmed": done,
		"pending":   pending,
	}, 0, ""))

	if len(pending) == 0 {
		s.activateLocked(lm)
	}
}

// removeMatch drops a live match from the in-memory indexes
func (s *Service) removeMatch(lm *LiveMatch) {
	s.mu.Lock()
	delete(s.matches, lm.ID)
	for id, mid := range s.byChainID {
		if mid == lm.ID {
			delete(s.byChainID, id)
		}
	}
	s.mu.Unlock()
}
