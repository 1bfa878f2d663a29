package events

import (
	"encoding/json"
	"strings"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

// Inbound is one of the typed client commands below.
type Inbound interface {
	Name() string
}

type UserOnlineCmd struct {
	UserID string
}

type JoinCmd struct {
	Kind   string // JoinGroup or JoinConversation
	RoomID string
}

type LikeCmd struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type DeleteCmd struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
}

func (UserOnlineCmd) Name() string { return UserOnline }
func (c JoinCmd) Name() string     { return c.Kind }
func (LikeCmd) Name() string       { return LikeMessage }
func (DeleteCmd) Name() string     { return DeleteMessage }

// scalarOrField accepts either a bare JSON string or an object holding
// the value under one of keys.
func scalarOrField(raw json.RawMessage, keys ...string) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]interface{}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := obj[k].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ParseInbound decodes a client frame into its typed command and checks
// that any user id it carries belongs to the authenticated caller.
func ParseInbound(raw []byte, authUser string) (Inbound, error) {
	env, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case UserOnline:
		id := scalarOrField(env.Payload, "userId")
		if id == "" {
			return nil, apperr.Validation("userId required")
		}
		if id != authUser {
			return nil, apperr.Forbidden("userId does not match the authenticated user")
		}
		return UserOnlineCmd{UserID: id}, nil

	case JoinGroup, JoinConversation:
		room := scalarOrField(env.Payload, "roomId", "groupId", "conversationId")
		if room == "" {
			return nil, apperr.Validation("room id required")
		}
		return JoinCmd{Kind: env.Type, RoomID: room}, nil

	case LikeMessage:
		var c LikeCmd
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, apperr.Validation("malformed like_message payload")
		}
		if c.MessageID == "" {
			return nil, apperr.Validation("messageId required")
		}
		if err := sameUser(c.UserID, authUser); err != nil {
			return nil, err
		}
		c.UserID = authUser
		return c, nil

	case DeleteMessage:
		var c DeleteCmd
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, apperr.Validation("malformed delete_message payload")
		}
		if c.MessageID == "" {
			return nil, apperr.Validation("messageId required")
		}
		if err := sameUser(c.UserID, authUser); err != nil {
			return nil, err
		}
		c.UserID = authUser
		return c, nil
	}
	return nil, apperr.Validation("unsupported event %q", env.Type)
}

// sameUser allows an omitted id; a present one must match.
func sameUser(claimed, authUser string) error {
	if claimed != "" && claimed != authUser {
		return apperr.Forbidden("userId does not match the authenticated user")
	}
	return nil
}
