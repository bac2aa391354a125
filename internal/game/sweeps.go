package game

import (
	"context"
	"log"
	"time"

	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/modules"
)

// scheduleMoveTimer arms the move clock for the player on turn. A module may
// override the default timeout through its metadata; zero disables the clock.
// Every re-arm bumps the turn generation so a timer that already fired for a
// superseded turn is discarded under the lock in expireMove.
// Caller must hold lm.mu.
func (s *Service) scheduleMoveTimer(lm *LiveMatch, player string) {
	if lm.moveTimer != nil {
		lm.moveTimer.Stop()
		lm.moveTimer = nil
	}
	lm.turnGen++
	if player == "" {
		return
	}

	timeout := s.cfg.MoveTimeoutMs
	if module, err := s.registry.Get(lm.GameID); err == nil {
		if override := module.Meta().MoveTimeoutMs; override != nil {
			timeout = *override
		}
	}
	if timeout <= 0 {
		return
	}

	matchID, gen := lm.ID, lm.turnGen
	lm.moveTimer = time.AfterFunc(time.Duration(timeout)*time.Millisecond, func() {
		s.expireMove(matchID, player, gen)
	})
}

// expireMove forfeits a match against the player whose move clock ran out.
// The check and the terminal transition happen under one lock acquisition;
// a generation mismatch means the player's action landed while the timer was
// firing, so the clock no longer applies.
func (s *Service) expireMove(matchID, player string, gen int) {
	lm, ok := s.getMatch(matchID)
	if !ok {
		return
	}

	lm.mu.Lock()
	if lm.terminal() || lm.Status != models.StatusActive || lm.Orc == nil ||
		lm.Orc.CurrentPlayer() != player || lm.turnGen != gen {
		lm.mu.Unlock()
		return
	}
	log.Printf("[SWEEP] Move clock expired in %s for %s", matchID, player)
	rec := s.forfeitLocked(lm, player, "timeout")
	lm.mu.Unlock()

	s.persistOutcome(context.Background(), rec)
}

// StartWorkers launches the background sweeps. They stop when ctx is
// cancelled.
func (s *Service) StartWorkers(ctx context.Context) {
	go s.staleSweepLoop(ctx)
	go s.evictionLoop(ctx)
}

func (s *Service) staleSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStale(ctx)
		}
	}
}

// sweepStale draws every ACTIVE match with no activity inside the stale
// window. Both players went silent, so neither deserves the win.
func (s *Service) sweepStale(ctx context.Context) {
	cutoff := time.Duration(s.cfg.StaleMatchTimeoutMs) * time.Millisecond

	s.mu.RLock()
	live := make([]*LiveMatch, 0, len(s.matches))
	for _, lm := range s.matches {
		live = append(live, lm)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, lm := range live {
		lm.mu.Lock()
		var rec *completionRecord
		if lm.Status == models.StatusActive && now.Sub(lm.LastActivity) > cutoff {
			log.Printf("[SWEEP] Match %s stale (last activity %s ago), drawing", lm.ID, now.Sub(lm.LastActivity).Round(time.Second))
			outcome := modules.Outcome{Draw: true, Reason: "stale"}
			if lm.Orc != nil {
				lm.Orc.ForceOutcome(outcome)
			}
			rec = s.completeLocked(lm, outcome)
		}
		lm.mu.Unlock()
		s.persistOutcome(ctx, rec)
	}
}

func (s *Service) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictCompleted()
		}
	}
}

// evictCompleted releases finished matches from memory once spectate/rejoin
// interest has had time to drain. The archive row is the durable record.
func (s *Service) evictCompleted() {
	keep := time.Duration(s.cfg.CompletedEvictMinutes) * time.Minute

	s.mu.RLock()
	live := make([]*LiveMatch, 0, len(s.matches))
	for _, lm := range s.matches {
		live = append(live, lm)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, lm := range live {
		lm.mu.Lock()
		evict := lm.terminal() && !lm.CompletedAt.IsZero() && now.Sub(lm.CompletedAt) > keep
		lm.mu.Unlock()
		if !evict {
			continue
		}
		log.Printf("[SWEEP] Evicting finished match %s", lm.ID)
		s.hub.CloseMatch(lm.ID)
		s.removeMatch(lm)
	}
}
