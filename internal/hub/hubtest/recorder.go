// Package hubtest provides an in-memory connection for exercising code
// that fans out through the hub.
package hubtest

import (
	"encoding/json"
	"sync"
)

// Event is a decoded envelope as a client would see it.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Recorder implements hub.Conn and keeps everything it is sent.
type Recorder struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func NewRecorder(id string) *Recorder { return &Recorder{id: id} }

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.frames = append(r.frames, append([]byte(nil), msg...))
	return true
}

// SetFull makes subsequent sends fail as if the buffer were saturated.
func (r *Recorder) SetFull(full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.full = full
}

func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

// Events decodes every frame. Frames that are not envelopes are skipped.
func (r *Recorder) Events() []Event {
	var out []Event
	for _, f := range r.Frames() {
		var e Event
		if json.Unmarshal(f, &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

// OfType returns the payloads of events named typ.
func (r *Recorder) OfType(typ string) []json.RawMessage {
	var out []json.RawMessage
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}
