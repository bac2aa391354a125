package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signAuth produces a personal_sign-shaped signature (V in {27,28}) the way
// wallets do
func signAuth(t *testing.T, keyHex, addr string, timestampMs int64) string {
	t.Helper()
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	hash := accounts.TextHash([]byte(AuthMessage(addr, timestampMs)))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestCanonicalAddress(t *testing.T) {
	got, err := CanonicalAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	require.NoError(t, err)
	assert.Equal(t, "0x71c7656ec7ab88b098defb751b7401b5f6d8976f", got)

	_, err = CanonicalAddress("not-an-address")
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = CanonicalAddress("0x1234")
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestVerifyPlayerAcceptsFreshSignature(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().UnixMilli()
	sig := signAuth(t, testKeyHex, addr, ts)

	got, err := VerifyPlayer(addr, sig, ts, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestVerifyPlayerAcceptsMixedCaseAddress(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().UnixMilli()
	// The canonical message embeds the lowercase address regardless of how
	// the caller spells it
	sig := signAuth(t, testKeyHex, addr, ts)

	got, err := VerifyPlayer("0x"+strings.ToUpper(addr[2:]), sig, ts, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestVerifyPlayerRejectsStaleTimestamp(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().Add(-10 * time.Minute).UnixMilli()
	sig := signAuth(t, testKeyHex, addr, ts)

	_, err := VerifyPlayer(addr, sig, ts, DefaultWindow)
	assert.ErrorIs(t, err, ErrExpiredTimestamp)
}

func TestVerifyPlayerRejectsFutureTimestamp(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().Add(10 * time.Minute).UnixMilli()
	sig := signAuth(t, testKeyHex, addr, ts)

	_, err := VerifyPlayer(addr, sig, ts, DefaultWindow)
	assert.ErrorIs(t, err, ErrExpiredTimestamp)
}

func TestVerifyPlayerRejectsWrongSigner(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().UnixMilli()

	otherKey := "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
	sig := signAuth(t, otherKey, addr, ts)

	_, err := VerifyPlayer(addr, sig, ts, DefaultWindow)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyPlayerRejectsGarbageSignature(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().UnixMilli()

	_, err := VerifyPlayer(addr, "0xdeadbeef", ts, DefaultWindow)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = VerifyPlayer(addr, "not-hex", ts, DefaultWindow)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyPlayerRejectsTamperedTimestamp(t *testing.T) {
	addr := testAddress(t)
	ts := time.Now().UnixMilli()
	sig := signAuth(t, testKeyHex, addr, ts)

	// Same signature presented with a different timestamp must fail
	_, err := VerifyPlayer(addr, sig, ts+1000, DefaultWindow)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestAdminTokenRoundTrip(t *testing.T) {
	secret := "super-secret"
	token, err := MintAdminToken(secret, time.Hour)
	require.NoError(t, err)

	assert.True(t, VerifyAdmin(token, secret))
	assert.True(t, VerifyAdmin(secret, secret), "raw secret should be accepted")
	assert.False(t, VerifyAdmin(token, "other-secret"))
	assert.False(t, VerifyAdmin("garbage", secret))
	assert.False(t, VerifyAdmin("", secret))
	assert.False(t, VerifyAdmin(token, ""), "unconfigured secret accepts nothing")
}

func TestExpiredAdminTokenRejected(t *testing.T) {
	secret := "super-secret"
	token, err := MintAdminToken(secret, -time.Minute)
	require.NoError(t, err)
	assert.False(t, VerifyAdmin(token, secret))
}
