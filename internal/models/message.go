package models

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

const (
	AttachmentPlaceholder = "Sent an attachment"
	LocationPlaceholder   = "Shared a location"
)

type Attachment struct {
	DisplayName   string `bson:"display_name" json:"displayName"`
	StoragePath   string `bson:"storage_path" json:"storagePath"`
	MimeType      string `bson:"mime_type" json:"mimeType"`
	ThumbnailPath string `bson:"thumbnail_path,omitempty" json:"thumbnailPath,omitempty"`
	// URLs are resolved by the blob store at read time and never stored.
	URL          string `bson:"-" json:"url,omitempty"`
	ThumbnailURL string `bson:"-" json:"thumbnailUrl,omitempty"`
}

func (a Attachment) IsImage() bool { return strings.HasPrefix(a.MimeType, "image/") }

type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Valid reports whether both coordinates are finite and in range.
// NaN and infinities cannot be encoded as JSON.
func (g GeoPoint) Valid() bool {
	for _, v := range []float64{g.Lat, g.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

// Message is a single chat entry. Exactly one of GroupID or
// ConversationID is set; RecipientID accompanies ConversationID.
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	Content        string       `bson:"content" json:"content"`
	Sender         string       `bson:"sender" json:"sender"`
	GroupID        string       `bson:"group_id,omitempty" json:"groupId,omitempty"`
	ConversationID string       `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	RecipientID    string       `bson:"recipient_id,omitempty" json:"recipientId,omitempty"`
	Files          []Attachment `bson:"files" json:"files"`
	Location       *GeoPoint    `bson:"location,omitempty" json:"location,omitempty"`
	ReplyTo        string       `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	Likes          []string     `bson:"likes" json:"likes"`
	IsDeleted      bool         `bson:"is_deleted" json:"isDeleted"`
	DeletedBy      string       `bson:"deleted_by,omitempty" json:"deletedBy,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updatedAt"`
}

// Room is the broadcast channel the message belongs to.
func (m *Message) Room() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.ConversationID
}

func (m *Message) IsPrivate() bool { return m.ConversationID != "" }

func (m *Message) LikedBy(userID string) bool { return slices.Contains(m.Likes, userID) }

// Validate checks the target and that there is something to send.
func (m *Message) Validate() error {
	if m.Sender == "" {
		return apperr.Validation("sender required")
	}
	if (m.GroupID == "") == (m.ConversationID == "") {
		return apperr.Validation("message must target exactly one group or conversation")
	}
	if m.ConversationID != "" && m.RecipientID == "" {
		return apperr.Validation("recipient required for private message")
	}
	if !m.HasBody() {
		return apperr.Validation("message must contain text, files, or location")
	}
	if m.Location != nil && !m.Location.Valid() {
		return apperr.Validation("coordinates out of range")
	}
	return nil
}

func (m *Message) HasBody() bool {
	return strings.TrimSpace(m.Content) != "" || len(m.Files) > 0 || m.Location != nil
}

// ApplyContentDefault fills a placeholder when only files or a
// location were sent.
func (m *Message) ApplyContentDefault() {
	if strings.TrimSpace(m.Content) != "" {
		return
	}
	switch {
	case len(m.Files) > 0:
		m.Content = AttachmentPlaceholder
	case m.Location != nil:
		m.Content = LocationPlaceholder
	}
}

// Redacted returns the copy every reader sees. A deleted message keeps
// its identity, sender, likes and deletedBy but loses its payload.
func (m Message) Redacted() Message {
	m.Likes = slices.Clone(m.Likes)
	if m.Likes == nil {
		m.Likes = []string{}
	}
	if !m.IsDeleted {
		m.Files = slices.Clone(m.Files)
		if m.Files == nil {
			m.Files = []Attachment{}
		}
		return m
	}
	m.Content = ""
	m.Files = []Attachment{}
	m.Location = nil
	return m
}

// Clone deep copies the slices so callers can mutate freely.
func (m Message) Clone() Message {
	m.Likes = slices.Clone(m.Likes)
	m.Files = slices.Clone(m.Files)
	if m.Location != nil {
		loc := *m.Location
		m.Location = &loc
	}
	return m
}

// ToggleLike flips userID's membership in Likes.
func ToggleLike(likes []string, userID string) []string {
	if i := slices.Index(likes, userID); i >= 0 {
		return slices.Delete(slices.Clone(likes), i, i+1)
	}
	return append(slices.Clone(likes), userID)
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ReplyPreview struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Sender    *UserRef `json:"sender,omitempty"`
	IsDeleted bool     `json:"isDeleted"`
}

// WireMessage is the self-contained payload sent to clients.
type WireMessage struct {
	ID             string        `json:"id"`
	Content        string        `json:"content"`
	Sender         UserRef       `json:"sender"`
	GroupID        string        `json:"groupId,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	Recipient      *UserRef      `json:"recipient,omitempty"`
	Files          []Attachment  `json:"files"`
	Location       *GeoPoint     `json:"location,omitempty"`
	ReplyTo        *ReplyPreview `json:"replyTo,omitempty"`
	Likes          []string      `json:"likes"`
	IsDeleted      bool          `json:"isDeleted"`
	DeletedBy      *UserRef      `json:"deletedBy,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (w *WireMessage) Room() string {
	if w.GroupID != "" {
		return w.GroupID
	}
	return w.ConversationID
}
