package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameBytes  = 64 * 1024
	sendBufferSize = 64
)

// Gateway is the Match Service surface the transport calls into. All match
// mutation goes through it; the transport owns only the connection.
type Gateway interface {
	AttachPlayer(ctx context.Context, matchID, playerID string) ([]*Frame, error)
	AttachSpectator(ctx context.Context, matchID string) ([]*Frame, error)
	ApplyAction(ctx context.Context, matchID, playerID string, action json.RawMessage) error
	Forfeit(ctx context.Context, matchID, playerID string) error
	SyncRequest(ctx context.Context, matchID, playerID string, clientIsMyTurn bool) ([]*Frame, error)
	Chat(ctx context.Context, matchID, playerID, message string) error
	DetachPlayer(matchID, playerID string)
}

// Client is one attached transport bound to (matchId, playerId or spectator)
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	gateway  Gateway
	matchID  string
	playerID string // "" for spectators
	role     string
	send     chan []byte
	closed   sync.Once
}

func newClient(conn *websocket.Conn, hub *Hub, gateway Gateway, matchID, playerID, role string) *Client {
	return &Client{
		conn:     conn,
		hub:      hub,
		gateway:  gateway,
		matchID:  matchID,
		playerID: playerID,
		role:     role,
		send:     make(chan []byte, sendBufferSize),
	}
}

// enqueue posts raw bytes to the session's writer queue, dropping when the
// buffer is full (a stuck reader must not stall the room)
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for %s/%s, dropping frame", c.matchID, c.playerID)
	}
}

// SendFrame marshals and enqueues one frame for this session
func (c *Client) SendFrame(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[WS] Error marshaling frame: %v", err)
		return
	}
	c.enqueue(data)
}

// Close terminates the session's writer, which tears the connection down
func (c *Client) Close() {
	c.closed.Do(func() {
		close(c.send)
	})
}

// writePump serializes all outbound frames for one session
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Session is being replaced or cleaned up; best-effort close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for %s/%s: %v", c.matchID, c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump processes inbound frames in receive order until the transport
// closes
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		if c.role == RolePlayer {
			c.gateway.DetachPlayer(c.matchID, c.playerID)
		}
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for %s/%s: %v", c.matchID, c.playerID, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.SendFrame(ErrorFrame(c.matchID, "transport_bad_frame", "malformed frame"))
			continue
		}
		c.dispatch(&frame)
	}
}

// dispatch routes one inbound frame. Spectators are read-only after join.
func (c *Client) dispatch(frame *Frame) {
	ctx := context.Background()

	if c.role == RoleSpectator {
		c.SendFrame(ErrorFrame(c.matchID, "transport_read_only", "spectators cannot send"))
		return
	}
	if frame.MatchID != "" && frame.MatchID != c.matchID {
		c.SendFrame(ErrorFrame(c.matchID, "transport_bad_frame", "frame for a different match"))
		return
	}

	switch frame.Type {
	case TypeActionCommit, TypeActionReveal:
		var payload ActionPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || len(payload.Action) == 0 {
			c.SendFrame(ErrorFrame(c.matchID, "match_invalid_action", "missing action"))
			return
		}
		if err := c.gateway.ApplyAction(ctx, c.matchID, c.playerID, payload.Action); err != nil {
			c.SendFrame(ErrorFrame(c.matchID, err.Error(), "action rejected"))
		}

	case TypeSyncRequest:
		var payload SyncRequestPayload
		json.Unmarshal(frame.Payload, &payload)
		replies, err := c.gateway.SyncRequest(ctx, c.matchID, c.playerID, payload.ClientIsMyTurn)
		if err != nil {
			c.SendFrame(ErrorFrame(c.matchID, err.Error(), "sync failed"))
			return
		}
		// SYNC_RESPONSE first, then any corrective GAME_STATE, on one queue
		for _, f := range replies {
			c.SendFrame(f)
		}

	case TypeChat:
		var payload ChatPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			c.SendFrame(ErrorFrame(c.matchID, "transport_bad_frame", "malformed chat"))
			return
		}
		if err := c.gateway.Chat(ctx, c.matchID, c.playerID, payload.Message); err != nil {
			c.SendFrame(ErrorFrame(c.matchID, err.Error(), "chat rejected"))
		}

	case TypeForfeit:
		if err := c.gateway.Forfeit(ctx, c.matchID, c.playerID); err != nil {
			c.SendFrame(ErrorFrame(c.matchID, err.Error(), "forfeit rejected"))
		}

	default:
		c.SendFrame(ErrorFrame(c.matchID, "transport_bad_frame", "unknown frame type "+frame.Type))
	}
}
