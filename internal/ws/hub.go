package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Roles a session can attach as
const (
	RolePlayer    = "player"
	RoleSpectator = "spectator"
)

// Hub maintains the per-match fan-out sets. Delivery to one session is
// serialized by that session's writer; across sessions it is best-effort
// FIFO with respect to enqueue order.
type Hub struct {
	rooms      map[string]map[*Client]bool // matchId -> player sessions
	spectators map[string]map[*Client]bool // matchId -> spectator sessions
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		spectators: make(map[string]map[*Client]bool),
	}
}

// Join attaches a session to a match room under the given role
func (h *Hub) Join(matchID string, c *Client, role string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.rooms
	if role == RoleSpectator {
		set = h.spectators
	}
	if set[matchID] == nil {
		set[matchID] = make(map[*Client]bool)
	}
	set[matchID][c] = true
}

// Leave detaches a session from its room
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[c.matchID]; exists {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.matchID)
		}
	}
	if room, exists := h.spectators[c.matchID]; exists {
		delete(room, c)
		if len(room) == 0 {
			delete(h.spectators, c.matchID)
		}
	}
}

// Broadcast sends a frame to every player and spectator session of a match,
// optionally excluding one session
func (h *Hub) Broadcast(matchID string, frame *Frame, exclude *Client) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[WS] Error marshaling frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[matchID] {
		if c != exclude {
			c.enqueue(data)
		}
	}
	for c := range h.spectators[matchID] {
		if c != exclude {
			c.enqueue(data)
		}
	}
}

// BroadcastSpectators sends a frame to spectator sessions only
func (h *Hub) BroadcastSpectators(matchID string, frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[WS] Error marshaling frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.spectators[matchID] {
		c.enqueue(data)
	}
}

// SendToPlayer sends a frame to one player's session in a match, if attached
func (h *Hub) SendToPlayer(matchID, playerID string, frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[WS] Error marshaling frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[matchID] {
		if c.playerID == playerID {
			c.enqueue(data)
		}
	}
}

// PlayerSession returns the attached session for a player, or nil
func (h *Hub) PlayerSession(matchID, playerID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[matchID] {
		if c.playerID == playerID {
			return c
		}
	}
	return nil
}

// Count returns the number of attached sessions (players + spectators)
func (h *Hub) Count(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID]) + len(h.spectators[matchID])
}

// CloseMatch disconnects every session of a match
func (h *Hub) CloseMatch(matchID string) {
	h.mu.Lock()
	var victims []*Client
	for c := range h.rooms[matchID] {
		victims = append(victims, c)
	}
	for c := range h.spectators[matchID] {
		victims = append(victims, c)
	}
	delete(h.rooms, matchID)
	delete(h.spectators, matchID)
	h.mu.Unlock()

	for _, c := range victims {
		c.Close()
	}
}
