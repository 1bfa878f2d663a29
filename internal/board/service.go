package board

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
)

// Fanout is the slice of the message broker the board needs: group
// membership, per-room ordering and room emission.
type Fanout interface {
	RequireMember(ctx context.Context, groupID, user string) error
	LockRoom(roomID string) func()
	Emit(roomID, typ string, payload interface{}, actor string)
}

// Service runs the note and thread mutations that clients watch live.
// Every event goes to the room of the parent group.
type Service struct {
	store *repository.Store
	out   Fanout
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(store *repository.Store, out Fanout, log *zap.SugaredLogger) *Service {
	return &Service{
		store: store,
		out:   out,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Validation("%s required", field)
	}
	return nil
}

func (s *Service) authorRef(ctx context.Context, id string) models.UserRef {
	names, err := s.store.Directory.Usernames(ctx, []string{id})
	if err != nil {
		s.log.Warnw("lookup author", "user_id", id, "err", err)
	}
	return models.UserRef{ID: id, Username: names[id]}
}

// CreateThread starts a discussion thread and emits new_thread.
func (s *Service) CreateThread(ctx context.Context, groupID, author, title, body string) (*models.ThreadView, error) {
	if err := required("title", title); err != nil {
		return nil, err
	}
	if err := required("body", body); err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, groupID, author); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(groupID)
	defer unlock()

	now := s.now()
	t := &models.Thread{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Body:      body,
		Author:    author,
		GroupID:   groupID,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Threads.Insert(ctx, t); err != nil {
		return nil, err
	}
	view := &models.ThreadView{Thread: *t, AuthorRef: s.authorRef(ctx, author), Replies: []models.Reply{}}
	s.out.Emit(groupID, events.NewThread, view, author)
	return view, nil
}

// GetThread returns the thread with its replies and counts the view.
func (s *Service) GetThread(ctx context.Context, id, user string) (*models.ThreadView, error) {
	t, err := s.store.Threads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, t.GroupID, user); err != nil {
		return nil, err
	}
	if t, err = s.store.Threads.View(ctx, id); err != nil {
		return nil, err
	}
	replies, err := s.store.Replies.ListByThread(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ThreadView{Thread: *t, AuthorRef: s.authorRef(ctx, t.Author), Replies: replies}, nil
}

// DeleteThread removes the thread and its replies. Author only.
func (s *Service) DeleteThread(ctx context.Context, id, user string) error {
	t, err := s.store.Threads.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Author != user {
		return apperr.Forbidden("only the author can delete this thread")
	}

	unlock := s.out.LockRoom(t.GroupID)
	defer unlock()

	if err := s.store.Replies.DeleteByThread(ctx, id); err != nil {
		return err
	}
	if err := s.store.Threads.Delete(ctx, id); err != nil {
		return err
	}
	s.out.Emit(t.GroupID, events.ThreadDeleted, events.ThreadRef{ThreadID: id, GroupID: t.GroupID}, user)
	return nil
}

func (s *Service) ToggleThreadLike(ctx context.Context, id, user string) (*models.Thread, error) {
	t, err := s.store.Threads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, t.GroupID, user); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(t.GroupID)
	defer unlock()

	updated, err := s.store.Threads.ToggleLike(ctx, id, user, s.now())
	if err != nil {
		return nil, err
	}
	s.out.Emit(t.GroupID, events.ThreadUpdated, events.ThreadRef{ThreadID: id}, user)
	return updated, nil
}

func (s *Service) ReplyToThread(ctx context.Context, threadID, user, body, parent string) (*models.Reply, error) {
	if err := required("body", body); err != nil {
		return nil, err
	}
	t, err := s.store.Threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, t.GroupID, user); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(t.GroupID)
	defer unlock()

	r := s.newReply(user, body, parent)
	r.ThreadID = threadID
	if err := s.store.Replies.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.out.Emit(t.GroupID, events.ThreadUpdated, events.ThreadRef{ThreadID: threadID}, user)
	return r, nil
}

func (s *Service) newReply(author, body, parent string) *models.Reply {
	now := s.now()
	return &models.Reply{
		ID:          uuid.NewString(),
		Body:        body,
		Author:      author,
		ParentReply: parent,
		Likes:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateNote shares a note with optional attachments and emits
// note_created so members refetch the list.
func (s *Service) CreateNote(ctx context.Context, groupID, author, title, content string, files []models.Attachment) (*models.Note, error) {
	if err := required("title", title); err != nil {
		return nil, err
	}
	if err := required("content", content); err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, groupID, author); err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.Attachment{}
	}

	unlock := s.out.LockRoom(groupID)
	defer unlock()

	now := s.now()
	n := &models.Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Content:   content,
		Author:    author,
		GroupID:   groupID,
		Files:     files,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Notes.Insert(ctx, n); err != nil {
		return nil, err
	}
	s.out.Emit(groupID, events.NoteCreated, events.NoteRef{GroupID: groupID}, author)
	return n, nil
}

// ListNotes returns the group's notes newest first with their replies.
func (s *Service) ListNotes(ctx context.Context, groupID, user string) ([]models.NoteView, error) {
	if err := s.out.RequireMember(ctx, groupID, user); err != nil {
		return nil, err
	}
	notes, err := s.store.Notes.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.noteViews(ctx, notes)
}

// GetNote returns one note with its replies, for members of its group.
func (s *Service) GetNote(ctx context.Context, id, user string) (*models.NoteView, error) {
	n, err := s.store.Notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, n.GroupID, user); err != nil {
		return nil, err
	}
	views, err := s.noteViews(ctx, []models.Note{*n})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) noteViews(ctx context.Context, notes []models.Note) ([]models.NoteView, error) {
	ids := make([]string, 0, len(notes))
	authors := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID)
		authors = append(authors, n.Author)
	}
	replies, err := s.store.Replies.ListByNotes(ctx, ids)
	if err != nil {
		return nil, err
	}
	byNote := make(map[string][]models.Reply, len(notes))
	for _, r := range replies {
		byNote[r.NoteID] = append(byNote[r.NoteID], r)
	}
	names, err := s.store.Directory.Usernames(ctx, authors)
	if err != nil {
		return nil, err
	}

	out := make([]models.NoteView, 0, len(notes))
	for _, n := range notes {
		rs := byNote[n.ID]
		if rs == nil {
			rs = []models.Reply{}
		}
		out = append(out, models.NoteView{
			Note:       n,
			AuthorRef:  models.UserRef{ID: n.Author, Username: names[n.Author]},
			Replies:    rs,
			ReplyCount: len(rs),
		})
	}
	return out, nil
}

// DeleteNote removes the note and its replies. Author only.
func (s *Service) DeleteNote(ctx context.Context, id, user string) error {
	n, err := s.store.Notes.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Author != user {
		return apperr.Forbidden("only the author can delete this note")
	}

	unlock := s.out.LockRoom(n.GroupID)
	defer unlock()

	if err := s.store.Replies.DeleteByNote(ctx, id); err != nil {
		return err
	}
	if err := s.store.Notes.Delete(ctx, id); err != nil {
		return err
	}
	s.out.Emit(n.GroupID, events.NoteDeleted, events.NoteRef{NoteID: id, GroupID: n.GroupID}, user)
	return nil
}

func (s *Service) ToggleNoteLike(ctx context.Context, id, user string) (*models.Note, error) {
	n, err := s.store.Notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, n.GroupID, user); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(n.GroupID)
	defer unlock()

	updated, err := s.store.Notes.ToggleLike(ctx, id, user, s.now())
	if err != nil {
		return nil, err
	}
	s.out.Emit(n.GroupID, events.NoteUpdated, events.NoteRef{NoteID: id}, user)
	return updated, nil
}

func (s *Service) ReplyToNote(ctx context.Context, noteID, user, body, parent string) (*models.Reply, error) {
	if err := required("body", body); err != nil {
		return nil, err
	}
	n, err := s.store.Notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, n.GroupID, user); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(n.GroupID)
	defer unlock()

	r := s.newReply(user, body, parent)
	r.NoteID = noteID
	if err := s.store.Replies.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.out.Emit(n.GroupID, events.NoteUpdated, events.NoteRef{NoteID: noteID}, user)
	return r, nil
}

// replyParent resolves the group room and the event a reply change
// should announce.
func (s *Service) replyParent(ctx context.Context, r *models.Reply) (groupID, typ string, payload interface{}, err error) {
	if r.ThreadID != "" {
		t, err := s.store.Threads.Get(ctx, r.ThreadID)
		if err != nil {
			return "", "", nil, err
		}
		return t.GroupID, events.ThreadUpdated, events.ThreadRef{ThreadID: t.ID}, nil
	}
	n, err := s.store.Notes.Get(ctx, r.NoteID)
	if err != nil {
		return "", "", nil, err
	}
	return n.GroupID, events.NoteUpdated, events.NoteRef{NoteID: n.ID}, nil
}

// ToggleReplyLike works for note and thread replies alike.
func (s *Service) ToggleReplyLike(ctx context.Context, replyID, user string) (*models.Reply, error) {
	r, err := s.store.Replies.Get(ctx, replyID)
	if err != nil {
		return nil, err
	}
	groupID, typ, payload, err := s.replyParent(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := s.out.RequireMember(ctx, groupID, user); err != nil {
		return nil, err
	}

	unlock := s.out.LockRoom(groupID)
	defer unlock()

	updated, err := s.store.Replies.ToggleLike(ctx, replyID, user, s.now())
	if err != nil {
		return nil, err
	}
	s.out.Emit(groupID, typ, payload, user)
	return updated, nil
}

// DeleteReply removes a reply. Author only.
func (s *Service) DeleteReply(ctx context.Context, replyID, user string) error {
	r, err := s.store.Replies.Get(ctx, replyID)
	if err != nil {
		return err
	}
	if r.Author != user {
		return apperr.Forbidden("only the author can delete this reply")
	}
	groupID, typ, payload, err := s.replyParent(ctx, r)
	if err != nil {
		return err
	}

	unlock := s.out.LockRoom(groupID)
	defer unlock()

	if err := s.store.Replies.Delete(ctx, replyID); err != nil {
		return err
	}
	s.out.Emit(groupID, typ, payload, user)
	return nil
}
