package game

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/match"
	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/modules/tictactoe"
	"github.com/dorkfun/backend/internal/ws"
)

const (
	testPlayerA = "0x1111111111111111111111111111111111111111"
	testPlayerB = "0x2222222222222222222222222222222222222222"
)

// fakeHub records fan-out without a transport
type fakeHub struct {
	mu         sync.Mutex
	direct     map[string][]*ws.Frame
	broadcasts []*ws.Frame
	spectate   []*ws.Frame
	closed     []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{direct: make(map[string][]*ws.Frame)}
}

func (h *fakeHub) Broadcast(matchID string, frame *ws.Frame, exclude *ws.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, frame)
}

func (h *fakeHub) BroadcastSpectators(matchID string, frame *ws.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spectate = append(h.spectate, frame)
}

func (h *fakeHub) SendToPlayer(matchID, playerID string, frame *ws.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[playerID] = append(h.direct[playerID], frame)
}

func (h *fakeHub) CloseMatch(matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, matchID)
}

func (h *fakeHub) sentTo(playerID string) []*ws.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.direct[playerID]
}

// newLiveService builds a service with one ACTIVE unstaked match and no
// backing stores. MoveTimeoutMs is zero so no real timers arm.
func newLiveService(t *testing.T) (*Service, *LiveMatch, *fakeHub) {
	t.Helper()

	mod := tictactoe.New()
	reg := modules.NewRegistry()
	if err := reg.Register(mod); err != nil {
		t.Fatalf("Failed to register module: %v", err)
	}

	players := []string{testPlayerA, testPlayerB}
	orc, err := match.New("m-1", mod, players, "seed-1")
	if err != nil {
		t.Fatalf("Failed to build orchestrator: %v", err)
	}

	now := time.Now()
	lm := &LiveMatch{
		ID:               "m-1",
		GameID:           mod.Meta().GameID,
		Players:          players,
		StakeWei:         big.NewInt(0),
		Status:           models.StatusActive,
		Seed:             "seed-1",
		Orc:              orc,
		DepositConfirmed: make(map[string]bool),
		CreatedAt:        now,
		LastActivity:     now,
	}

	hub := newFakeHub()
	svc := NewService(nil, nil, &config.Config{}, reg, hub, nil)
	svc.matches[lm.ID] = lm
	return svc, lm, hub
}

func TestSyncResponsePrecedesGameState(t *testing.T) {
	svc, lm, _ := newLiveService(t)
	first := lm.Orc.CurrentPlayer()

	// Client believes it is not their turn; the server disagrees.
	frames, err := svc.SyncRequest(context.Background(), lm.ID, first, false)
	if err != nil {
		t.Fatalf("SyncRequest failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("Expected SYNC_RESPONSE then GAME_STATE, got %d frames", len(frames))
	}
	if frames[0].Type != ws.TypeSyncResponse {
		t.Errorf("First frame is %s, want %s", frames[0].Type, ws.TypeSyncResponse)
	}
	if frames[1].Type != ws.TypeGameState {
		t.Errorf("Second frame is %s, want %s", frames[1].Type, ws.TypeGameState)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(frames[0].Payload, &payload); err != nil {
		t.Fatalf("Bad SYNC_RESPONSE payload: %v", err)
	}
	if payload["yourTurn"] != true {
		t.Errorf("SYNC_RESPONSE reports yourTurn=%v, want true", payload["yourTurn"])
	}
}

func TestSyncAgreementSkipsGameState(t *testing.T) {
	svc, lm, _ := newLiveService(t)
	first := lm.Orc.CurrentPlayer()

	frames, err := svc.SyncRequest(context.Background(), lm.ID, first, true)
	if err != nil {
		t.Fatalf("SyncRequest failed: %v", err)
	}
	if len(frames) != 1 || frames[0].Type != ws.TypeSyncResponse {
		t.Fatalf("Expected a lone SYNC_RESPONSE, got %d frames", len(frames))
	}
}

func TestCompleteLockedDefersPersistence(t *testing.T) {
	// The service here has no database or Redis behind it; completion under
	// the lock must not touch either, only hand back the snapshot.
	svc, lm, hub := newLiveService(t)

	lm.mu.Lock()
	rec := svc.completeLocked(lm, modules.Outcome{Winner: testPlayerA, Reason: "forfeit"})
	lm.mu.Unlock()

	if rec == nil {
		t.Fatal("Expected a completion snapshot")
	}
	if rec.matchID != lm.ID || rec.outcome.Winner != testPlayerA || len(rec.players) != 2 {
		t.Errorf("Snapshot mismatch: %+v", rec)
	}
	if rec.staked {
		t.Error("Unstaked match snapshotted as staked")
	}

	lm.mu.Lock()
	status := lm.Status
	lm.mu.Unlock()
	if status != models.StatusCompleted {
		t.Errorf("Match not COMPLETED after completion: %s", status)
	}

	if len(hub.broadcasts) != 1 || hub.broadcasts[0].Type != ws.TypeGameOver {
		t.Fatalf("Expected one GAME_OVER broadcast, got %v", hub.broadcasts)
	}

	// Completing twice is a no-op.
	lm.mu.Lock()
	again := svc.completeLocked(lm, modules.Outcome{Draw: true})
	lm.mu.Unlock()
	if again != nil {
		t.Error("Second completion produced a snapshot")
	}
}

func TestChatValidation(t *testing.T) {
	if err := validateChat(""); err != ErrChatEmpty {
		t.Errorf("Empty message: got %v, want %v", err, ErrChatEmpty)
	}
	if err := validateChat(strings.Repeat("a", maxChatRunes)); err != nil {
		t.Errorf("Message at the cap rejected: %v", err)
	}
	if err := validateChat(strings.Repeat("a", maxChatRunes+1)); err != ErrChatTooLong {
		t.Errorf("Message over the cap: got %v, want %v", err, ErrChatTooLong)
	}
	// 400 runes of multibyte text is over 500 bytes but within the cap
	if err := validateChat(strings.Repeat("é", 400)); err != nil {
		t.Errorf("Multibyte message within the cap rejected: %v", err)
	}
}
