package chain

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/config"
)

// ENSResolver performs reverse (address -> name) lookups against mainnet
// ENS, with a Redis cache in front of the RPC.
type ENSResolver struct {
	eth *ethclient.Client
	rdb *redis.Client
}

// ensRegistryAddress is the same on every network ENS is deployed to
var ensRegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABIJSON = `[
  {"type":"function","name":"resolver","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}]}
]`

var ensABI = mustABI(ensABIJSON)

const ensCacheTTL = time.Hour

// NewENSResolver dials ENS_RPC_URL (falling back to RPC_URL). Returns
// (nil, nil) when neither is configured; lookups then resolve to "".
func NewENSResolver(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*ENSResolver, error) {
	url := cfg.ENSRPCURL
	if url == "" {
		url = cfg.RPCURL
	}
	if url == "" {
		log.Printf("[ENS] No ENS RPC configured - name resolution disabled")
		return nil, nil
	}

	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial ens rpc: %w", err)
	}
	return &ENSResolver{eth: eth, rdb: rdb}, nil
}

// ResolveBatch reverse-resolves up to 50 addresses. Addresses without a
// reverse record map to "". Individual RPC failures degrade to "" rather
// than failing the batch.
func (r *ENSResolver) ResolveBatch(ctx context.Context, addrs []string) map[string]string {
	out := make(map[string]string, len(addrs))
	for _, addr := range addrs {
		canonical := strings.ToLower(addr)
		if r == nil {
			out[canonical] = ""
			continue
		}
		name, err := r.resolve(ctx, canonical)
		if err != nil {
			log.Printf("[ENS] Reverse lookup failed for %s: %v", canonical, err)
			name = ""
		}
		out[canonical] = name
	}
	return out
}

func (r *ENSResolver) resolve(ctx context.Context, addr string) (string, error) {
	cacheKey := "ens:reverse:" + addr
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	node := namehash(strings.TrimPrefix(addr, "0x") + ".addr.reverse")

	// registry.resolver(node)
	data, err := ensABI.Pack("resolver", node)
	if err != nil {
		return "", err
	}
	raw, err := r.eth.CallContract(ctx, ethereum.CallMsg{To: &ensRegistryAddress, Data: data}, nil)
	if err != nil {
		return "", err
	}
	results, err := ensABI.Unpack("resolver", raw)
	if err != nil || len(results) != 1 {
		return "", fmt.Errorf("resolver unpack: %w", err)
	}
	resolverAddr, _ := results[0].(common.Address)
	if resolverAddr == (common.Address{}) {
		r.cache(ctx, cacheKey, "")
		return "", nil
	}

	// resolver.name(node)
	data, err = ensABI.Pack("name", node)
	if err != nil {
		return "", err
	}
	raw, err = r.eth.CallContract(ctx, ethereum.CallMsg{To: &resolverAddr, Data: data}, nil)
	if err != nil {
		return "", err
	}
	results, err = ensABI.Unpack("name", raw)
	if err != nil || len(results) != 1 {
		return "", fmt.Errorf("name unpack: %w", err)
	}
	name, _ := results[0].(string)

	r.cache(ctx, cacheKey, name)
	return name, nil
}

func (r *ENSResolver) cache(ctx context.Context, key, value string) {
	if r.rdb != nil {
		r.rdb.SetEx(ctx, key, value, ensCacheTTL)
	}
}

// namehash implements the EIP-137 recursive name hash
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(append(node[:], labelHash...)))
	}
	return node
}

// Close shuts the ENS RPC connection down
func (r *ENSResolver) Close() {
	if r != nil && r.eth != nil {
		r.eth.Close()
	}
}
