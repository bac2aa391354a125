package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// WS tokens are single-use: minted at match creation, consumed by the first
// HELLO of the session they authorize. Reconnects use a signed HELLO.

func tokenKey(token string) string {
	return "wstoken:" + token
}

// MintToken creates a one-time token authorizing one upgrade for
// (matchID, playerID)
func MintToken(ctx context.Context, rdb *redis.Client, matchID, playerID string, ttl time.Duration) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	value := matchID + "|" + playerID
	if err := rdb.SetEx(ctx, tokenKey(token), value, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeToken atomically fetches and invalidates a token, returning the
// (matchID, playerID) it was bound to
func ConsumeToken(ctx context.Context, rdb *redis.Client, token string) (string, string, error) {
	value, err := rdb.GetDel(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return "", "", fmt.Errorf("transport_invalid_token")
	}
	if err != nil {
		return "", "", err
	}

	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("transport_invalid_token")
	}
	return parts[0], parts[1], nil
}
