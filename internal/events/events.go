package events

import (
	"encoding/json"
	"fmt"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

// Client -> server
const (
	UserOnline       = "user_online"
	JoinGroup        = "join_group"
	JoinConversation = "join_conversation"
	LikeMessage      = "like_message"
	DeleteMessage    = "delete_message"
)

// Server -> room
const (
	ReceiveMessage = "receive_message"
	UpdateMessage  = "update_message"
	NewThread      = "new_thread"
	ThreadDeleted  = "thread_deleted"
	ThreadUpdated  = "thread_updated"
	NoteCreated    = "note_created"
	NoteUpdated    = "note_updated"
	NoteDeleted    = "note_deleted"
)

// Server -> everyone
const (
	UserStatusChanged = "user_status_changed"
	UserBanned        = "user_banned"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(typ string, payload interface{}) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: p})
}

func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, apperr.Validation("malformed frame")
	}
	if e.Type == "" {
		return e, apperr.Validation("frame type required")
	}
	return e, nil
}

type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type UserBan struct {
	UserID string `json:"userId"`
}

type ThreadRef struct {
	ThreadID string `json:"threadId"`
	GroupID  string `json:"groupId,omitempty"`
}

type NoteRef struct {
	NoteID  string `json:"noteId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}
