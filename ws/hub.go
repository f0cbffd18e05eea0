package ws

import (
	"encoding/json"
	"sync"

	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/logger"
)

// Hub routes gameplay events to the connected clients of each room and owns
// the client lifecycle. Sessions publish on the bus from their single-writer
// loops; the hub's synchronous listener enqueues each event on every room
// member's send queue, so per-session event order is preserved end to end.
type Hub struct {
	registry *game.Registry

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates a hub and subscribes it to the event bus.
func NewHub(registry *game.Registry, bus *events.Bus) *Hub {
	h := &Hub{
		registry: registry,
		rooms:    make(map[string]map[*Client]struct{}),
	}
	bus.SubscribeAll(h.handleEvent)
	return h
}

// handleEvent fans one gameplay event out to its room.
func (h *Hub) handleEvent(event *events.Event) {
	if event.RoomID == "" {
		return
	}
	data, err := json.Marshal(Envelope{Type: string(event.Type), Payload: event.Payload})
	if err != nil {
		logger.Error("event marshal failed", "event_type", event.Type, "error", err)
		return
	}
	h.broadcast(event.RoomID, data)
}

func (h *Hub) broadcast(roomID string, data []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(data)
	}
}

func (h *Hub) add(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *Hub) remove(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RoomSize returns the number of connected clients in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
