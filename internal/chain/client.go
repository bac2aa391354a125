package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/config"
)

// Client bundles the RPC connection, the server's settlement key and the
// contract addresses. A nil Client means the deployment runs chain-less
// (unstaked play only).
type Client struct {
	eth        *ethclient.Client
	rdb        *redis.Client
	key        *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	escrow     common.Address
	settlement common.Address
	enabled    bool
}

// Dial connects to the configured RPC endpoint and loads the server key.
// Returns (nil, nil) when RPC_URL is unset so unstaked deployments boot
// without a chain.
func Dial(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Client, error) {
	if cfg.RPCURL == "" {
		log.Printf("[CHAIN] RPC_URL not set - staked matches disabled")
		return nil, nil
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}

	c := &Client{
		eth:     eth,
		rdb:     rdb,
		chainID: chainID,
		enabled: cfg.SettlementEnabled,
	}

	if cfg.EscrowAddress != "" {
		if !common.IsHexAddress(cfg.EscrowAddress) {
			return nil, fmt.Errorf("invalid ESCROW_ADDRESS %q", cfg.EscrowAddress)
		}
		c.escrow = common.HexToAddress(cfg.EscrowAddress)
	}
	if cfg.SettlementAddress != "" {
		if !common.IsHexAddress(cfg.SettlementAddress) {
			return nil, fmt.Errorf("invalid SETTLEMENT_ADDRESS %q", cfg.SettlementAddress)
		}
		c.settlement = common.HexToAddress(cfg.SettlementAddress)
	}

	if cfg.ServerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.ServerPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse SERVER_PRIVATE_KEY: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
		log.Printf("[CHAIN] Settlement signer %s (chain %s)", c.from.Hex(), chainID)
	}

	return c, nil
}

// MatchIDBytes32 maps a match UUID to the bytes32 id used on-chain
func MatchIDBytes32(matchID string) [32]byte {
	return crypto.Keccak256Hash([]byte(matchID))
}

// EscrowAddress returns the escrow contract address as a 0x string
func (c *Client) EscrowAddress() string {
	if c == nil {
		return ""
	}
	return c.escrow.Hex()
}

// Close shuts the RPC connection down
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}
