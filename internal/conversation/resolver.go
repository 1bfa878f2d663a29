package conversation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
)

// Messages projects stored messages for clients and serializes writes
// to a conversation's room.
type Messages interface {
	Populate(ctx context.Context, msgs []models.Message) ([]models.WireMessage, error)
	LockRoom(roomID string) func()
}

// Resolver maps an unordered pair of users onto their single private
// conversation and serves the participant-facing conversation reads.
type Resolver struct {
	store *repository.Store
	msgs  Messages
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewResolver(store *repository.Store, msgs Messages, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		store: store,
		msgs:  msgs,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Resolve finds or creates the conversation between a and b. It is
// symmetric and idempotent.
func (r *Resolver) Resolve(ctx context.Context, a, b string) (*models.ConversationView, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, apperr.Validation("recipientId required")
	}
	if a == b {
		return nil, apperr.Validation("cannot start a conversation with yourself")
	}
	names, err := r.store.Directory.Usernames(ctx, []string{b})
	if err != nil {
		return nil, err
	}
	if _, ok := names[b]; !ok {
		return nil, apperr.NotFound("user")
	}

	c, err := r.store.Conversations.FindOrCreate(ctx, a, b, r.now())
	if err != nil {
		return nil, err
	}
	views, err := r.views(ctx, []models.Conversation{*c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns the user's conversations, most recent first, keeping
// only the newest conversation per counterpart.
func (r *Resolver) List(ctx context.Context, user string) ([]models.ConversationView, error) {
	all, err := r.store.Conversations.ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	unique := make([]models.Conversation, 0, len(all))
	for _, c := range all {
		other := c.Counterpart(user)
		if other == "" || seen[other] {
			continue
		}
		seen[other] = true
		unique = append(unique, c)
	}
	return r.views(ctx, unique)
}

// Messages returns the conversation history oldest first and clears
// the caller's unread count.
func (r *Resolver) Messages(ctx context.Context, conversationID, user string) ([]models.WireMessage, error) {
	if _, err := r.participantOf(ctx, conversationID, user); err != nil {
		return nil, err
	}
	msgs, err := r.store.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := r.store.Conversations.ResetUnread(ctx, conversationID, user); err != nil {
		r.log.Warnw("reset unread", "conversation_id", conversationID, "user_id", user, "err", err)
	}
	return r.msgs.Populate(ctx, msgs)
}

// Delete removes the conversation and every message in it. Sends to the
// conversation wait until the delete has finished and then fail.
func (r *Resolver) Delete(ctx context.Context, conversationID, user string) error {
	unlock := r.msgs.LockRoom(conversationID)
	defer unlock()
	if _, err := r.participantOf(ctx, conversationID, user); err != nil {
		return err
	}
	if err := r.store.Messages.DeleteByConversation(ctx, conversationID); err != nil {
		return err
	}
	return r.store.Conversations.Delete(ctx, conversationID)
}

func (r *Resolver) participantOf(ctx context.Context, conversationID, user string) (*models.Conversation, error) {
	c, err := r.store.Conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.Has(user) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return c, nil
}

func (r *Resolver) views(ctx context.Context, convs []models.Conversation) ([]models.ConversationView, error) {
	out := make([]models.ConversationView, 0, len(convs))
	if len(convs) == 0 {
		return out, nil
	}

	var userIDs, lastIDs []string
	for _, c := range convs {
		userIDs = append(userIDs, c.Participants...)
		if c.LastMessage != "" {
			lastIDs = append(lastIDs, c.LastMessage)
		}
	}
	names, err := r.store.Directory.Usernames(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	stored, err := r.store.Messages.GetMany(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	lastMsgs := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		lastMsgs = append(lastMsgs, m)
	}
	wires, err := r.msgs.Populate(ctx, lastMsgs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.WireMessage, len(wires))
	for i := range wires {
		byID[wires[i].ID] = &wires[i]
	}

	for _, c := range convs {
		v := models.ConversationView{
			ID:           c.ID,
			Participants: make([]models.UserRef, 0, len(c.Participants)),
			LastMessage:  byID[c.LastMessage],
			UnreadCounts: c.UnreadCounts,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if v.UnreadCounts == nil {
			v.UnreadCounts = map[string]int{}
		}
		for _, p := range c.Participants {
			v.Participants = append(v.Participants, models.UserRef{ID: p, Username: names[p]})
		}
		out = append(out, v)
	}
	return out, nil
}
