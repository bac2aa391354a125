package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v4"
)

// AuthMessageFormat is the canonical EIP-191 personal-sign payload. Clients
// sign exactly this string; the server recovers the signer from it.
const AuthMessageFormat = "dork.fun authentication for %s at %d"

// DefaultWindow is how far a signed timestamp may drift from server time
const DefaultWindow = 5 * time.Minute

var (
	ErrBadAddress       = errors.New("auth_bad_address")
	ErrInvalidSignature = errors.New("auth_invalid_signature")
	ErrExpiredTimestamp = errors.New("auth_expired_timestamp")
)

// CanonicalAddress lowercases a 0x-hex EVM address, rejecting malformed input
func CanonicalAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", ErrBadAddress
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// AuthMessage builds the canonical auth message for addr at a ms timestamp
func AuthMessage(addr string, timestampMs int64) string {
	return fmt.Sprintf(AuthMessageFormat, addr, timestampMs)
}

// VerifyPlayer checks an EIP-191 personal-sign signature over the canonical
// auth message and the freshness of its timestamp. Returns the canonical
// address on success.
func VerifyPlayer(playerID, signature string, timestampMs int64, window time.Duration) (string, error) {
	addr, err := CanonicalAddress(playerID)
	if err != nil {
		return "", err
	}

	if window <= 0 {
		window = DefaultWindow
	}
	drift := time.Since(time.UnixMilli(timestampMs))
	if drift < 0 {
		drift = -drift
	}
	if drift > window {
		return "", ErrExpiredTimestamp
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrInvalidSignature
	}
	// personal_sign produces V in {27,28}; go-ethereum wants {0,1}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(AuthMessage(addr, timestampMs)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", ErrInvalidSignature
	}
	recovered := strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
	if recovered != addr {
		return "", ErrInvalidSignature
	}
	return addr, nil
}

// MintAdminToken issues a short-lived HS256 session token for the admin
// dashboard so the shared secret is not replayed on every request
func MintAdminToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin secret not configured")
	}
	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  jwt.NewNumericDate(time.Now().Add(ttl)).Unix(),
		"iat":  jwt.NewNumericDate(time.Now()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyAdmin accepts either the raw configured secret or a valid admin JWT
func VerifyAdmin(bearer, secret string) bool {
	if secret == "" || bearer == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(secret)) == 1 {
		return true
	}

	parsed, err := jwt.Parse(bearer, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}
