// Package clientsync reconciles the room events a client receives into
// the ordered message list it renders.
package clientsync

import (
	"encoding/json"
	"sync"

	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

// Older clients and the private chat screen used these names.
var (
	appendEvents  = map[string]bool{events.ReceiveMessage: true, "new_message": true, "receive_private_message": true}
	replaceEvents = map[string]bool{events.UpdateMessage: true, "update_private_message": true}
)

// Timeline is the arrival-ordered view of one room.
type Timeline struct {
	mu       sync.Mutex
	room     string
	msgs     []models.WireMessage
	index    map[string]int
	rendered int
}

func NewTimeline(room string) *Timeline {
	return &Timeline{room: room, index: make(map[string]int)}
}

func (t *Timeline) Room() string { return t.room }

// Load seeds the timeline with history, keeping the first copy of any id.
func (t *Timeline) Load(history []models.WireMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range history {
		t.appendLocked(m)
	}
}

// Apply folds one event into the timeline and reports whether anything
// changed. Events for other rooms and unknown types are ignored.
func (t *Timeline) Apply(typ string, payload json.RawMessage) (bool, error) {
	if !appendEvents[typ] && !replaceEvents[typ] {
		return false, nil
	}
	var m models.WireMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return false, err
	}
	return t.ApplyMessage(typ, m), nil
}

func (t *Timeline) ApplyMessage(typ string, m models.WireMessage) bool {
	if m.ID == "" || m.Room() != t.room {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if appendEvents[typ] {
		return t.appendLocked(m)
	}
	i, ok := t.index[m.ID]
	if !ok {
		// not loaded yet, e.g. older than the fetched history
		return false
	}
	t.msgs[i] = m
	return true
}

func (t *Timeline) appendLocked(m models.WireMessage) bool {
	if _, dup := t.index[m.ID]; dup {
		return false
	}
	t.index[m.ID] = len(t.msgs)
	t.msgs = append(t.msgs, m)
	return true
}

// Messages returns a copy of the current list.
func (t *Timeline) Messages() []models.WireMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.WireMessage(nil), t.msgs...)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Render marks the current state as drawn and reports whether the view
// should scroll to the bottom, which is only when the count grew since
// the previous render.
func (t *Timeline) Render() (msgs []models.WireMessage, scroll bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	scroll = len(t.msgs) > t.rendered
	t.rendered = len(t.msgs)
	return append([]models.WireMessage(nil), t.msgs...), scroll
}
