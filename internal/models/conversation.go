package models

import (
	"slices"
	"strconv"
	"time"
)

type Conversation struct {
	ID             string         `bson:"_id" json:"id"`
	Participants   []string       `bson:"participants" json:"participants"`
	ParticipantKey string         `bson:"participant_key" json:"-"`
	LastMessage    string         `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	UnreadCounts   map[string]int `bson:"unread_counts" json:"unreadCounts"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updatedAt"`
}

// PairKey is the canonical identity of an unordered pair of users. The
// first id is length-prefixed, so ids containing ':' cannot collide.
func PairKey(a, b string) string {
	ids := SortedPair(a, b)
	return strconv.Itoa(len(ids[0])) + ":" + ids[0] + ":" + ids[1]
}

func SortedPair(a, b string) []string {
	ids := []string{a, b}
	slices.Sort(ids)
	return ids
}

func (c *Conversation) Has(userID string) bool { return slices.Contains(c.Participants, userID) }

// Counterpart returns the other participant, or "" if userID is not one.
func (c *Conversation) Counterpart(userID string) string {
	if !c.Has(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationView is the listing shape returned to a participant.
type ConversationView struct {
	ID           string         `json:"id"`
	Participants []UserRef      `json:"participants"`
	LastMessage  *WireMessage   `json:"lastMessage,omitempty"`
	UnreadCounts map[string]int `json:"unreadCounts"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
