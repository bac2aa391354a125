package game

import (
	"context"
	"log"

	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/ws"
)

func (s *Service) isEmergency() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergency
}

// EmergencyStatus reports the flag and what is still live
func (s *Service) EmergencyStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"emergency":   s.emergency,
		"liveMatches": len(s.matches),
	}
}

// EmergencyDrawAll stops intake and drains every live match as a draw so
// staked escrows settle as refunds. Matches still waiting for an opponent
// are dropped instead. Returns how many matches were terminated.
func (s *Service) EmergencyDrawAll(ctx context.Context) int {
	s.mu.Lock()
	s.emergency = true
	live := make([]*LiveMatch, 0, len(s.matches))
	for _, lm := range s.matches {
		live = append(live, lm)
	}
	s.mu.Unlock()

	log.Printf("[ADMIN] Emergency mode engaged, draining %d live matches", len(live))

	drained := 0
	for _, lm := range live {
		lm.mu.Lock()
		switch {
		case lm.terminal():
			lm.mu.Unlock()
			continue

		case len(lm.Players) < 2:
			// Private match still waiting for its opponent: nothing to draw.
			lm.Status = models.StatusCancelled
			lm.mu.Unlock()
			s.updateMatchStatus(lm.ID, models.StatusCancelled)
			s.hub.Broadcast(lm.ID, ws.ErrorFrame(lm.ID, "match_emergency_mode", "match cancelled"), nil)
			s.hub.CloseMatch(lm.ID)
			s.removeMatch(lm)

		default:
			outcome := modules.Outcome{Draw: true, Reason: "emergency"}
			if lm.Orc != nil {
				lm.Orc.ForceOutcome(outcome)
			}
			rec := s.completeLocked(lm, outcome)
			lm.mu.Unlock()
			s.persistOutcome(ctx, rec)
		}
		drained++
	}
	return drained
}

// Resume lifts emergency mode and reopens intake
func (s *Service) Resume() {
	s.mu.Lock()
	s.emergency = false
	s.mu.Unlock()
	log.Printf("[ADMIN] Emergency mode lifted")
}
