package game

import (
	"testing"

	"github.com/dorkfun/backend/internal/models"
)

func TestExpiredTimerIgnoredAfterRearm(t *testing.T) {
	svc, lm, _ := newLiveService(t)
	first := lm.Orc.CurrentPlayer()

	lm.mu.Lock()
	svc.scheduleMoveTimer(lm, first)
	gen := lm.turnGen
	// The player's action lands and the clock is re-armed for the opponent
	// before the old timer's callback gets the lock.
	svc.scheduleMoveTimer(lm, lm.Players[1])
	lm.mu.Unlock()

	svc.expireMove(lm.ID, first, gen)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.Status != models.StatusActive {
		t.Errorf("Superseded move clock forfeited the match: status %s", lm.Status)
	}
}

func TestExpiredTimerIgnoredWhenNotTheirTurn(t *testing.T) {
	svc, lm, _ := newLiveService(t)
	waiting := lm.Players[1]
	if lm.Orc.CurrentPlayer() == waiting {
		waiting = lm.Players[0]
	}

	lm.mu.Lock()
	svc.scheduleMoveTimer(lm, waiting)
	gen := lm.turnGen
	lm.mu.Unlock()

	svc.expireMove(lm.ID, waiting, gen)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.Status != models.StatusActive {
		t.Errorf("Move clock forfeited a player not on turn: status %s", lm.Status)
	}
}
