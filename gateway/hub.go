// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/danielhkuo/quickly-rank/models"
)

// Hub tracks which live connections belong to which poll. A client is in
// exactly one room for its lifetime.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	closed bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Join adds c to the room for its poll. It returns false once the hub is
// closed.
func (h *Hub) Join(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	room, ok := h.rooms[c.pollID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[c.pollID] = room
	}
	room[c] = true

	slog.Debug("client joined room", "poll_id", c.pollID, "participant_id", c.participantID, "room_size", len(room))
	return true
}

// Leave removes c from its room and closes its send queue. Safe to call
// more than once. It reports whether the same participant is still in the
// room through another connection.
func (h *Hub) Leave(c *Client) (stillConnected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.pollID]
	if !ok {
		return false
	}

	if room[c] {
		delete(room, c)
		close(c.send)
	}
	if len(room) == 0 {
		delete(h.rooms, c.pollID)
		return false
	}

	for other := range room {
		if other.participantID == c.participantID {
			return true
		}
	}
	return false
}

// Broadcast queues event for every client in the poll's room. Clients whose
// queue is full miss the event rather than block the room.
func (h *Hub) Broadcast(pollID string, event models.Event) (sent, dropped int) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode event", "type", event.Type, "error", err)
		return 0, 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[pollID] {
		select {
		case c.send <- data:
			sent++
		default:
			dropped++
		}
	}

	if dropped > 0 {
		slog.Warn("broadcast dropped for slow clients", "poll_id", pollID, "type", event.Type, "dropped", dropped)
	}
	return sent, dropped
}

// SendTo queues event for c alone. Nothing is sent once c has left.
func (h *Hub) SendTo(c *Client, event models.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode event", "type", event.Type, "error", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.rooms[c.pollID][c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("dropping event for slow client", "poll_id", c.pollID, "participant_id", c.participantID, "type", event.Type)
		return false
	}
}

// RoomSize returns the number of clients connected to pollID.
func (h *Hub) RoomSize(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pollID])
}

// Close disconnects every client and rejects new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for pollID, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, pollID)
	}
}
