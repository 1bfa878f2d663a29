package broker

import (
	"context"

	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

func (b *Broker) populateOne(ctx context.Context, m models.Message) (*models.WireMessage, error) {
	out, err := b.Populate(ctx, []models.Message{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Populate projects stored messages into wire messages: tombstones are
// redacted, user ids become {id, username}, replyTo becomes a preview
// when it points into the same room, and attachment URLs are resolved.
func (b *Broker) Populate(ctx context.Context, msgs []models.Message) ([]models.WireMessage, error) {
	out := make([]models.WireMessage, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	var replyIDs []string
	for _, m := range msgs {
		if m.ReplyTo != "" {
			replyIDs = append(replyIDs, m.ReplyTo)
		}
	}
	replies, err := b.store.Messages.GetMany(ctx, replyIDs)
	if err != nil {
		return nil, err
	}

	userSet := map[string]struct{}{}
	add := func(id string) {
		if id != "" {
			userSet[id] = struct{}{}
		}
	}
	for _, m := range msgs {
		add(m.Sender)
		add(m.RecipientID)
		add(m.DeletedBy)
	}
	for _, r := range replies {
		add(r.Sender)
	}
	ids := make([]string, 0, len(userSet))
	for id := range userSet {
		ids = append(ids, id)
	}
	names, err := b.store.Directory.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	ref := func(id string) *models.UserRef {
		if id == "" {
			return nil
		}
		return &models.UserRef{ID: id, Username: names[id]}
	}

	for _, raw := range msgs {
		m := raw.Redacted()
		w := models.WireMessage{
			ID:             m.ID,
			Content:        m.Content,
			Sender:         models.UserRef{ID: m.Sender, Username: names[m.Sender]},
			GroupID:        m.GroupID,
			ConversationID: m.ConversationID,
			Recipient:      ref(m.RecipientID),
			Files:          b.resolveFiles(ctx, m.Files),
			Location:       m.Location,
			Likes:          m.Likes,
			IsDeleted:      m.IsDeleted,
			DeletedBy:      ref(m.DeletedBy),
			CreatedAt:      m.CreatedAt,
			UpdatedAt:      m.UpdatedAt,
		}
		if r, ok := replies[m.ReplyTo]; ok && r.Room() == m.Room() {
			r = r.Redacted()
			w.ReplyTo = &models.ReplyPreview{
				ID:        r.ID,
				Content:   r.Content,
				Sender:    ref(r.Sender),
				IsDeleted: r.IsDeleted,
			}
		}
		out = append(out, w)
	}
	return out, nil
}

// resolveFiles fills download URLs. A failed lookup leaves the URL empty
// rather than failing the whole message.
func (b *Broker) resolveFiles(ctx context.Context, files []models.Attachment) []models.Attachment {
	out := make([]models.Attachment, len(files))
	copy(out, files)
	if b.urls == nil {
		return out
	}
	for i := range out {
		if u, err := b.urls.URL(ctx, out[i].StoragePath); err == nil {
			out[i].URL = u
		} else {
			b.log.Warnw("resolve attachment url", "path", out[i].StoragePath, "err", err)
		}
		if out[i].ThumbnailPath != "" {
			if u, err := b.urls.URL(ctx, out[i].ThumbnailPath); err == nil {
				out[i].ThumbnailURL = u
			}
		}
	}
	return out
}
