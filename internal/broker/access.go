package broker

import (
	"context"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

func (b *Broker) requireMember(ctx context.Context, groupID, user string) error {
	ok, err := b.store.Directory.IsGroupMember(ctx, groupID, user)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a member of this group")
	}
	return nil
}

func (b *Broker) requireParticipant(ctx context.Context, conversationID, user string) error {
	c, err := b.store.Conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !c.Has(user) {
		return apperr.Forbidden("not a participant of this conversation")
	}
	return nil
}

// authorizeRoom checks that user may act on messages in m's room.
func (b *Broker) authorizeRoom(ctx context.Context, m *models.Message, user string) error {
	if m.IsPrivate() {
		return b.requireParticipant(ctx, m.ConversationID, user)
	}
	return b.requireMember(ctx, m.GroupID, user)
}

// RequireMember is the group membership check shared with board fan-out.
func (b *Broker) RequireMember(ctx context.Context, groupID, user string) error {
	return b.requireMember(ctx, groupID, user)
}

// AuthorizeJoin decides whether user may subscribe to a room through a
// join_group or join_conversation request.
func (b *Broker) AuthorizeJoin(ctx context.Context, kind, roomID, user string) error {
	switch kind {
	case events.JoinGroup:
		return b.requireMember(ctx, roomID, user)
	case events.JoinConversation:
		return b.requireParticipant(ctx, roomID, user)
	}
	return apperr.Validation("unknown room kind %q", kind)
}
