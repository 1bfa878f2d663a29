package repository

import (
	"context"
	"time"

	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	Get(ctx context.Context, id string) (*models.Message, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.Message, error)
	// ListByGroup and ListByConversation return history oldest first.
	ListByGroup(ctx context.Context, groupID string) ([]models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// ToggleLike atomically flips userID in the likes set and returns the
	// document after the update.
	ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Message, error)
	// MarkDeleted sets the tombstone only if actor is the sender and the
	// message is live. changed is false when it was already deleted.
	MarkDeleted(ctx context.Context, id, actor string, now time.Time) (m *models.Message, changed bool, err error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type ConversationRepository interface {
	// FindOrCreate returns the single conversation for the unordered pair.
	FindOrCreate(ctx context.Context, a, b string, now time.Time) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// ListForUser returns the user's conversations, most recent activity first.
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	// RecordMessage sets lastMessage and bumps the recipient's unread count.
	RecordMessage(ctx context.Context, id, messageID, recipient string, now time.Time) error
	ResetUnread(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
}

type NoteRepository interface {
	Insert(ctx context.Context, n *models.Note) error
	Get(ctx context.Context, id string) (*models.Note, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Note, error)
	ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Note, error)
	Delete(ctx context.Context, id string) error
}

type ThreadRepository interface {
	Insert(ctx context.Context, t *models.Thread) error
	Get(ctx context.Context, id string) (*models.Thread, error)
	// View increments the view counter and returns the updated thread.
	View(ctx context.Context, id string) (*models.Thread, error)
	ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Thread, error)
	Delete(ctx context.Context, id string) error
}

type ReplyRepository interface {
	Insert(ctx context.Context, r *models.Reply) error
	Get(ctx context.Context, id string) (*models.Reply, error)
	ListByNotes(ctx context.Context, noteIDs []string) ([]models.Reply, error)
	ListByThread(ctx context.Context, threadID string) ([]models.Reply, error)
	ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Reply, error)
	Delete(ctx context.Context, id string) error
	DeleteByNote(ctx context.Context, noteID string) error
	DeleteByThread(ctx context.Context, threadID string) error
}

// Directory answers identity and membership questions owned by the
// user and group services.
type Directory interface {
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Store bundles every repository the service needs.
type Store struct {
	Messages      MessageRepository
	Conversations ConversationRepository
	Notes         NoteRepository
	Threads       ThreadRepository
	Replies       ReplyRepository
	Directory     Directory
}
