package ws

import (
	"encoding/json"
	"time"
)

// Frame is the wire envelope for every WebSocket message, both directions.
// On outbound server frames Sequence is the transcript sequence the event
// relates to (0 for non-move events) and PrevHash is the current transcript
// root.
type Frame struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"matchId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sequence  int             `json:"sequence"`
	PrevHash  string          `json:"prevHash,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Frame types
const (
	TypeHello             = "HELLO"
	TypeActionCommit      = "ACTION_COMMIT"
	TypeActionReveal      = "ACTION_REVEAL"
	TypeStepResult        = "STEP_RESULT"
	TypeGameState         = "GAME_STATE"
	TypeGameOver          = "GAME_OVER"
	TypeSpectateJoin      = "SPECTATE_JOIN"
	TypeSpectateState     = "SPECTATE_STATE"
	TypeChat              = "CHAT"
	TypeChatHistory       = "CHAT_HISTORY"
	TypeSyncRequest       = "SYNC_REQUEST"
	TypeSyncResponse      = "SYNC_RESPONSE"
	TypeDepositRequired   = "DEPOSIT_REQUIRED"
	TypeDepositsConfirmed = "DEPOSITS_CONFIRMED"
	TypeForfeit           = "FORFEIT"
	TypeError             = "ERROR"
)

// NewFrame builds an outbound frame with a fresh timestamp
func NewFrame(frameType, matchID string, payload interface{}, sequence int, prevHash string) *Frame {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	return &Frame{
		Type:      frameType,
		MatchID:   matchID,
		Payload:   raw,
		Sequence:  sequence,
		PrevHash:  prevHash,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ErrorFrame builds an ERROR frame with a taxonomy code and message
func ErrorFrame(matchID, code, message string) *Frame {
	return NewFrame(TypeError, matchID, map[string]string{
		"code":    code,
		"message": message,
	}, 0, "")
}

// HelloPayload covers both HELLO variants: first attach carries the
// single-use token, reattach carries a fresh signature + timestamp.
type HelloPayload struct {
	Token     string `json:"token,omitempty"`
	PlayerID  string `json:"playerId"`
	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// SyncRequestPayload is the client's periodic view assertion
type SyncRequestPayload struct {
	ClientIsMyTurn bool `json:"clientIsMyTurn"`
}

// ChatPayload is an inbound chat line
type ChatPayload struct {
	Message string `json:"message"`
}

// ActionPayload wraps a module action
type ActionPayload struct {
	Action json.RawMessage `json:"action"`
}
