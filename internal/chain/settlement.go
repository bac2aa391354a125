package chain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const settlementABIJSON = `[
  {"type":"function","name":"submitOutcome","stateMutability":"nonpayable","inputs":[
    {"name":"matchId","type":"bytes32"},
    {"name":"winner","type":"address"},
    {"name":"draw","type":"bool"},
    {"name":"rootHash","type":"bytes32"}
  ],"outputs":[]}
]`

var settlementABI = mustABI(settlementABIJSON)

const settleAttempts = 5

// SettlementEnabled reports whether outcome submission is configured
func (c *Client) SettlementEnabled() bool {
	return c != nil && c.enabled && c.key != nil && c.settlement != (common.Address{})
}

// SubmitOutcome signs and sends the outcome tuple
// (matchIdBytes32, winnerOrZero, drawFlag, rootHash) to the Settlement
// contract, retrying with exponential backoff. Returns the tx hash of the
// mined submission.
func (c *Client) SubmitOutcome(ctx context.Context, matchID string, winner common.Address, draw bool, rootHash [32]byte) (string, error) {
	if !c.SettlementEnabled() {
		return "", fmt.Errorf("settlement not configured")
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(c.settlement, settlementABI, c.eth, c.eth, c.eth)
	idBytes := MatchIDBytes32(matchID)

	var lastErr error
	backoff := time.Second
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		tx, err := contract.Transact(opts, "submitOutcome", idBytes, winner, draw, rootHash)
		if err == nil {
			receipt, werr := bind.WaitMined(ctx, c.eth, tx)
			if werr == nil && receipt.Status == 1 {
				log.Printf("[SETTLE] Outcome submitted match=%s tx=%s attempt=%d", matchID, tx.Hash().Hex(), attempt)
				return tx.Hash().Hex(), nil
			}
			if werr != nil {
				err = werr
			} else {
				err = fmt.Errorf("tx %s reverted", tx.Hash().Hex())
			}
		}

		lastErr = err
		log.Printf("[SETTLE] Attempt %d/%d failed for match %s: %v", attempt, settleAttempts, matchID, err)

		if attempt < settleAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return "", fmt.Errorf("settlement failed after %d attempts: %w", settleAttempts, lastErr)
}
