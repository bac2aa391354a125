package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Escrow surface the server touches: the minimum-stake read and the
// Deposited(bytes32,address) event stream. Deposits themselves are
// client-side calls.
const escrowABIJSON = `[
  {"type":"function","name":"minimumStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Deposited","inputs":[{"name":"matchId","type":"bytes32","indexed":true},{"name":"player","type":"address","indexed":true}],"anonymous":false}
]`

var escrowABI = mustABI(escrowABIJSON)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

const minStakeCacheKey = "escrow:minimum_stake"

// MinimumStake reads the escrow's minimum stake in wei, served from a short
// Redis cache so join-queue validation does not hit the RPC on every poll
func (c *Client) MinimumStake(ctx context.Context) (*big.Int, error) {
	if c == nil || c.escrow == (common.Address{}) {
		return big.NewInt(0), nil
	}

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, minStakeCacheKey).Result(); err == nil {
			if v, ok := new(big.Int).SetString(cached, 10); ok {
				return v, nil
			}
		}
	}

	data, err := escrowABI.Pack("minimumStake")
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.escrow, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("minimumStake call: %w", err)
	}
	results, err := escrowABI.Unpack("minimumStake", out)
	if err != nil || len(results) != 1 {
		return nil, fmt.Errorf("minimumStake unpack: %w", err)
	}
	v, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("minimumStake returned %T", results[0])
	}

	if c.rdb != nil {
		c.rdb.SetEx(ctx, minStakeCacheKey, v.String(), time.Minute)
	}
	return v, nil
}

// DepositHandler receives one observed Deposited event
type DepositHandler func(matchID [32]byte, player common.Address)

// WatchDeposits polls the escrow contract's logs and invokes handler for
// every Deposited event. Runs until ctx is cancelled. Poll errors are
// logged and retried on the next tick.
func (c *Client) WatchDeposits(ctx context.Context, handler DepositHandler) {
	if c == nil || c.escrow == (common.Address{}) {
		log.Printf("[ESCROW] No escrow address configured - deposit watcher not started")
		return
	}

	depositedTopic := escrowABI.Events["Deposited"].ID

	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		log.Printf("[ESCROW] Failed to read head block, starting from 0: %v", err)
	}
	lastSeen := head

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	log.Printf("[ESCROW] Deposit watcher started (escrow=%s from block %d)", c.escrow.Hex(), lastSeen)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ESCROW] Deposit watcher stopped")
			return
		case <-ticker.C:
			current, err := c.eth.BlockNumber(ctx)
			if err != nil {
				log.Printf("[ESCROW] Failed to read block number: %v", err)
				continue
			}
			if current <= lastSeen {
				continue
			}

			logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(lastSeen + 1),
				ToBlock:   new(big.Int).SetUint64(current),
				Addresses: []common.Address{c.escrow},
				Topics:    [][]common.Hash{{depositedTopic}},
			})
			if err != nil {
				log.Printf("[ESCROW] FilterLogs failed (blocks %d-%d): %v", lastSeen+1, current, err)
				continue
			}

			for _, lg := range logs {
				matchID, player, err := parseDeposited(lg)
				if err != nil {
					log.Printf("[ESCROW] Skipping unparseable log tx=%s: %v", lg.TxHash.Hex(), err)
					continue
				}
				log.Printf("[ESCROW] Deposited match=%x player=%s block=%d", matchID[:8], player.Hex(), lg.BlockNumber)
				handler(matchID, player)
			}
			lastSeen = current
		}
	}
}

func parseDeposited(lg types.Log) ([32]byte, common.Address, error) {
	var matchID [32]byte
	if len(lg.Topics) != 3 {
		return matchID, common.Address{}, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}
	copy(matchID[:], lg.Topics[1].Bytes())
	player := common.BytesToAddress(lg.Topics[2].Bytes())
	return matchID, player, nil
}
