package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/dorkfun/backend/internal/auth"
	"github.com/dorkfun/backend/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin enforcement happens in the CORS middleware
	},
}

var (
	gameHub   *Hub
	gateway   Gateway
	rdbClient *redis.Client
	wsConfig  *config.Config
)

// Init wires the transport's collaborators. Called once at boot.
func Init(hub *Hub, g Gateway, rdb *redis.Client, cfg *config.Config) {
	gameHub = hub
	gateway = g
	rdbClient = rdb
	wsConfig = cfg
}

// HandleGameWebSocket upgrades /ws/game/:matchId and authenticates the HELLO
func HandleGameWebSocket(c *gin.Context) {
	matchID := c.Param("matchId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed for match %s: %v", matchID, err)
		return
	}

	frame, ok := readFirstFrame(conn, matchID)
	if !ok {
		return
	}
	if frame.Type != TypeHello {
		rejectAndClose(conn, matchID, "transport_hello_timeout", "expected HELLO")
		return
	}

	var hello HelloPayload
	if err := json.Unmarshal(frame.Payload, &hello); err != nil {
		rejectAndClose(conn, matchID, "transport_bad_frame", "malformed HELLO")
		return
	}

	playerID, errCode := authenticateHello(c, matchID, &hello)
	if errCode != "" {
		rejectAndClose(conn, matchID, errCode, "authentication failed")
		return
	}

	client := newClient(conn, gameHub, gateway, matchID, playerID, RolePlayer)

	// If the player still has a session attached (zombie transport), the new
	// one replaces it.
	if old := gameHub.PlayerSession(matchID, playerID); old != nil {
		gameHub.Leave(old)
		old.Close()
	}

	frames, err := gateway.AttachPlayer(c.Request.Context(), matchID, playerID)
	if err != nil {
		rejectAndClose(conn, matchID, err.Error(), "attach failed")
		return
	}

	gameHub.Join(matchID, client, RolePlayer)
	go client.writePump()
	for _, f := range frames {
		client.SendFrame(f)
	}
	go client.readPump()
}

// HandleSpectateWebSocket upgrades /ws/spectate/:matchId. Spectators send
// SPECTATE_JOIN then are read-only.
func HandleSpectateWebSocket(c *gin.Context) {
	matchID := c.Param("matchId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Spectate upgrade failed for match %s: %v", matchID, err)
		return
	}

	frame, ok := readFirstFrame(conn, matchID)
	if !ok {
		return
	}
	if frame.Type != TypeSpectateJoin {
		rejectAndClose(conn, matchID, "transport_hello_timeout", "expected SPECTATE_JOIN")
		return
	}

	client := newClient(conn, gameHub, gateway, matchID, "", RoleSpectator)

	frames, err := gateway.AttachSpectator(c.Request.Context(), matchID)
	if err != nil {
		rejectAndClose(conn, matchID, err.Error(), "attach failed")
		return
	}

	gameHub.Join(matchID, client, RoleSpectator)
	go client.writePump()
	for _, f := range frames {
		client.SendFrame(f)
	}
	go client.readPump()
}

// readFirstFrame waits for the client's opening frame within the grace window
func readFirstFrame(conn *websocket.Conn, matchID string) (*Frame, bool) {
	grace := 10 * time.Second
	if wsConfig != nil && wsConfig.HelloTimeoutSeconds > 0 {
		grace = time.Duration(wsConfig.HelloTimeoutSeconds) * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(grace))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		rejectAndClose(conn, matchID, "transport_hello_timeout", "no HELLO within grace window")
		return nil, false
	}
	conn.SetReadDeadline(time.Time{})

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		rejectAndClose(conn, matchID, "transport_bad_frame", "malformed frame")
		return nil, false
	}
	return &frame, true
}

// authenticateHello validates either HELLO variant and returns the canonical
// player address, or an error code
func authenticateHello(c *gin.Context, matchID string, hello *HelloPayload) (string, string) {
	// First attach: consume the single-use token
	if hello.Token != "" {
		tokenMatch, tokenPlayer, err := ConsumeToken(c.Request.Context(), rdbClient, hello.Token)
		if err != nil {
			return "", "transport_invalid_token"
		}
		player, aerr := auth.CanonicalAddress(hello.PlayerID)
		if aerr != nil {
			return "", "auth_bad_address"
		}
		if tokenMatch != matchID || tokenPlayer != player {
			return "", "transport_invalid_token"
		}
		return player, ""
	}

	// Reattach: signed HELLO with a fresh timestamp
	window := auth.DefaultWindow
	if wsConfig != nil && wsConfig.AuthWindowMinutes > 0 {
		window = time.Duration(wsConfig.AuthWindowMinutes) * time.Minute
	}
	player, err := auth.VerifyPlayer(hello.PlayerID, hello.Signature, hello.Timestamp, window)
	if err != nil {
		return "", err.Error()
	}
	return player, ""
}

func rejectAndClose(conn *websocket.Conn, matchID, code, message string) {
	data, _ := json.Marshal(ErrorFrame(matchID, code, message))
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
	conn.Close()
}
