package game

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/models"
	"github.com/dorkfun/backend/internal/ws"
)

func TestDepositAckGoesToDepositorOnly(t *testing.T) {
	svc, lm, hub := newLiveService(t)

	lm.Status = models.StatusWaiting
	lm.StakeWei = big.NewInt(10000)
	lm.DepositConfirmed = map[string]bool{testPlayerA: false, testPlayerB: false}
	idBytes := chain.MatchIDBytes32(lm.ID)
	svc.byChainID[idBytes] = lm.ID

	svc.HandleDeposit(idBytes, common.HexToAddress(testPlayerA))

	acks := hub.sentTo(testPlayerA)
	if len(acks) != 1 || acks[0].Type != ws.TypeDepositsConfirmed {
		t.Fatalf("Depositor did not get a DEPOSITS_CONFIRMED ack, frames: %v", acks)
	}
	if frames := hub.sentTo(testPlayerB); len(frames) != 0 {
		t.Errorf("Non-depositor received %d frames, want none", len(frames))
	}
	if len(hub.broadcasts) != 0 {
		t.Errorf("Deposit ack was broadcast to the room (%d frames)", len(hub.broadcasts))
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if !lm.DepositConfirmed[testPlayerA] {
		t.Error("Depositor not marked confirmed")
	}
	if lm.Status != models.StatusWaiting {
		t.Errorf("Match left WAITING with one deposit pending: %s", lm.Status)
	}
}
