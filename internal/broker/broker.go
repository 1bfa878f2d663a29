package broker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
)

// Router delivers encoded frames to rooms or to every connection.
type Router interface {
	Broadcast(roomID string, msg []byte) int
	BroadcastAll(msg []byte) int
}

// URLResolver turns a stored blob path into something a client can fetch.
type URLResolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// Broker owns the message lifecycle: it persists, projects and fans out.
// Persist and broadcast run under a per-room lock so clients in a room
// observe events in commit order.
type Broker struct {
	store *repository.Store
	out   Router
	pub   events.Publisher
	urls  URLResolver
	log   *zap.SugaredLogger
	rooms *keyedMutex
	now   func() time.Time
}

func New(store *repository.Store, out Router, pub events.Publisher, urls URLResolver, log *zap.SugaredLogger) *Broker {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Broker{
		store: store,
		out:   out,
		pub:   pub,
		urls:  urls,
		log:   log,
		rooms: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SendInput carries a new message. Set GroupID for a group message or
// ConversationID for a private one.
type SendInput struct {
	Sender         string
	GroupID        string
	ConversationID string
	Content        string
	ReplyTo        string
	Files          []models.Attachment
	Location       *models.GeoPoint
}

// Send validates, authorizes, persists and broadcasts receive_message.
// The returned payload is byte for byte what the room receives.
func (b *Broker) Send(ctx context.Context, in SendInput) (*models.WireMessage, error) {
	m := &models.Message{
		Sender:         in.Sender,
		GroupID:        in.GroupID,
		ConversationID: in.ConversationID,
		Content:        strings.TrimSpace(in.Content),
		ReplyTo:        in.ReplyTo,
		Files:          in.Files,
		Location:       in.Location,
		Likes:          []string{},
	}
	if m.Files == nil {
		m.Files = []models.Attachment{}
	}

	m.ApplyContentDefault()
	if !m.HasBody() {
		return nil, apperr.Validation("message must contain text, files, or location")
	}
	if (m.GroupID == "") == (m.ConversationID == "") {
		return nil, apperr.Validation("message must target exactly one group or conversation")
	}

	// conversation checks run under the room lock; conversation deletes
	// take the same lock
	unlock := b.rooms.Lock(m.Room())
	defer unlock()

	var conv *models.Conversation
	if m.ConversationID != "" {
		c, err := b.store.Conversations.Get(ctx, m.ConversationID)
		if err != nil {
			return nil, err
		}
		if !c.Has(m.Sender) {
			return nil, apperr.Forbidden("not a participant of this conversation")
		}
		conv = c
		m.RecipientID = c.Counterpart(m.Sender)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.GroupID != "" {
		if err := b.requireMember(ctx, m.GroupID, m.Sender); err != nil {
			return nil, err
		}
	}

	now := b.now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := b.store.Messages.Insert(ctx, m); err != nil {
		return nil, err
	}

	if conv != nil {
		if err := b.store.Conversations.RecordMessage(ctx, conv.ID, m.ID, m.RecipientID, now); err != nil {
			b.log.Warnw("update conversation after send", "conversation_id", conv.ID, "message_id", m.ID, "err", err)
		}
	}

	wire, err := b.populateOne(ctx, *m)
	if err != nil {
		return nil, err
	}
	b.emit(m.Room(), events.ReceiveMessage, wire, m.Sender)
	return wire, nil
}

// ToggleLike flips the actor's like and broadcasts the full message.
// Applying it twice restores the original likes.
func (b *Broker) ToggleLike(ctx context.Context, messageID, actor string) (*models.WireMessage, error) {
	m, err := b.store.Messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := b.authorizeRoom(ctx, m, actor); err != nil {
		return nil, err
	}

	unlock := b.rooms.Lock(m.Room())
	defer unlock()

	updated, err := b.store.Messages.ToggleLike(ctx, messageID, actor, b.now())
	if err != nil {
		return nil, err
	}
	wire, err := b.populateOne(ctx, *updated)
	if err != nil {
		return nil, err
	}
	b.emit(updated.Room(), events.UpdateMessage, wire, actor)
	return wire, nil
}

// Delete tombstones the message. Only the sender may delete; deleting an
// already deleted message returns it without a second broadcast.
func (b *Broker) Delete(ctx context.Context, messageID, actor string) (*models.WireMessage, error) {
	m, err := b.store.Messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.Sender != actor {
		return nil, apperr.Forbidden("only the sender can delete this message")
	}

	unlock := b.rooms.Lock(m.Room())
	defer unlock()

	updated, changed, err := b.store.Messages.MarkDeleted(ctx, messageID, actor, b.now())
	if err != nil {
		return nil, err
	}
	wire, err := b.populateOne(ctx, *updated)
	if err != nil {
		return nil, err
	}
	if changed {
		b.emit(updated.Room(), events.UpdateMessage, wire, actor)
	}
	return wire, nil
}

// GroupHistory returns a group's messages oldest first, for members only.
func (b *Broker) GroupHistory(ctx context.Context, groupID, user string) ([]models.WireMessage, error) {
	if err := b.requireMember(ctx, groupID, user); err != nil {
		return nil, err
	}
	msgs, err := b.store.Messages.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return b.Populate(ctx, msgs)
}

// AnnounceBan tells every client that userID has been banned.
func (b *Broker) AnnounceBan(userID string) error {
	if userID == "" {
		return apperr.Validation("userId required")
	}
	frame, err := events.Encode(events.UserBanned, events.UserBan{UserID: userID})
	if err != nil {
		return err
	}
	metrics.Broadcasts.WithLabelValues(events.UserBanned).Inc()
	b.out.BroadcastAll(frame)
	b.pub.Publish(events.DomainEvent{Type: events.UserBanned, ActorID: userID, Payload: events.UserBan{UserID: userID}})
	return nil
}

// Emit encodes payload as typ and sends it to roomID. Board fan-out and
// the message protocol share it.
func (b *Broker) Emit(roomID, typ string, payload interface{}, actor string) {
	b.emit(roomID, typ, payload, actor)
}

// LockRoom serializes a caller's persist and broadcast with every other
// mutation on roomID.
func (b *Broker) LockRoom(roomID string) func() {
	return b.rooms.Lock(roomID)
}

func (b *Broker) emit(roomID, typ string, payload interface{}, actor string) {
	frame, err := events.Encode(typ, payload)
	if err != nil {
		b.log.Errorw("encode event", "type", typ, "room", roomID, "err", err)
		return
	}
	metrics.Broadcasts.WithLabelValues(typ).Inc()
	n := b.out.Broadcast(roomID, frame)
	b.log.Debugw("broadcast", "type", typ, "room", roomID, "delivered", n)
	b.pub.Publish(events.DomainEvent{Type: typ, Room: roomID, ActorID: actor, Payload: payload, Occurred: b.now()})
}
