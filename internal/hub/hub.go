package hub

import (
	"sync"

	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
)

// Conn is a live client connection. Send must not block; it reports
// false when the message could not be queued.
type Conn interface {
	ID() string
	Send(msg []byte) bool
}

// Hub routes payloads to the connections subscribed to a room. Room ids
// are opaque: a group id or a conversation id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
	rooms map[string]map[string]Conn
	// connID -> rooms it joined, so LeaveAll does not scan every room
	joined map[string]map[string]struct{}
}

func New() *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register makes c reachable by global broadcasts.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
	if _, ok := h.joined[c.ID()]; !ok {
		h.joined[c.ID()] = make(map[string]struct{})
	}
}

// Unregister drops the connection and all of its room subscriptions.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(connID)
	delete(h.conns, connID)
	delete(h.joined, connID)
}

// Join subscribes a registered connection to roomID. Joining twice is a
// no-op. It reports false for an unknown connection.
func (h *Hub) Join(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[string]Conn)
		h.rooms[roomID] = set
	}
	set[connID] = c
	h.joined[connID][roomID] = struct{}{}
	return true
}

func (h *Hub) LeaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(connID)
}

func (h *Hub) leaveAllLocked(connID string) {
	for roomID := range h.joined[connID] {
		if set, ok := h.rooms[roomID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	if _, ok := h.joined[connID]; ok {
		h.joined[connID] = make(map[string]struct{})
	}
}

// Broadcast hands msg to every connection in roomID once. Delivery is
// fire and forget; it returns how many connections accepted it.
func (h *Hub) Broadcast(roomID string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return deliver(h.rooms[roomID], msg)
}

// BroadcastAll hands msg to every registered connection.
func (h *Hub) BroadcastAll(msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return deliver(h.conns, msg)
}

func deliver(set map[string]Conn, msg []byte) int {
	n := 0
	for _, c := range set {
		if c.Send(msg) {
			n++
			continue
		}
		metrics.DroppedSends.Inc()
	}
	return n
}

// Rooms lists the rooms connID has joined.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.joined[connID]))
	for r := range h.joined[connID] {
		out = append(out, r)
	}
	return out
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
