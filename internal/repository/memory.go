package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

// MemoryStore keeps every collection in process. It backs the memory
// storage driver and the package tests.
type MemoryStore struct {
	mu            sync.RWMutex
	messages      map[string]*models.Message
	messageOrder  []string
	conversations map[string]*models.Conversation
	pairs         map[string]string // participant key -> conversation id
	notes         map[string]*models.Note
	threads       map[string]*models.Thread
	replies       map[string]*models.Reply
	replyOrder    []string

	users  map[string]string
	groups map[string]map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:      make(map[string]*models.Message),
		conversations: make(map[string]*models.Conversation),
		pairs:         make(map[string]string),
		notes:         make(map[string]*models.Note),
		threads:       make(map[string]*models.Thread),
		replies:       make(map[string]*models.Reply),
		users:         make(map[string]string),
		groups:        make(map[string]map[string]bool),
	}
}

// Store exposes the memory store through the repository bundle.
func (s *MemoryStore) Store() *Store {
	return &Store{
		Messages:      memMessages{s},
		Conversations: memConversations{s},
		Notes:         memNotes{s},
		Threads:       memThreads{s},
		Replies:       memReplies{s},
		Directory:     s,
	}
}

// PutUser registers a username for the directory.
func (s *MemoryStore) PutUser(id, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = username
}

// AddMember adds userID to the group roster.
func (s *MemoryStore) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[groupID] == nil {
		s.groups[groupID] = make(map[string]bool)
	}
	s.groups[groupID][userID] = true
}

func (s *MemoryStore) Usernames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := s.users[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (s *MemoryStore) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[groupID][userID], nil
}

type memMessages struct{ s *MemoryStore }

func (r memMessages) Insert(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, ok := r.s.messages[m.ID]; ok {
		return apperr.ErrConflict
	}
	cp := m.Clone()
	r.s.messages[m.ID] = &cp
	r.s.messageOrder = append(r.s.messageOrder, m.ID)
	return nil
}

func (r memMessages) Get(_ context.Context, id string) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	cp := m.Clone()
	return &cp, nil
}

func (r memMessages) GetMany(_ context.Context, ids []string) (map[string]models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]models.Message, len(ids))
	for _, id := range ids {
		if m, ok := r.s.messages[id]; ok {
			out[id] = m.Clone()
		}
	}
	return out, nil
}

func (r memMessages) list(match func(*models.Message) bool) []models.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.Message{}
	for _, id := range r.s.messageOrder {
		if m, ok := r.s.messages[id]; ok && match(m) {
			out = append(out, m.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memMessages) ListByGroup(_ context.Context, groupID string) ([]models.Message, error) {
	return r.list(func(m *models.Message) bool { return m.GroupID == groupID }), nil
}

func (r memMessages) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	return r.list(func(m *models.Message) bool { return m.ConversationID == conversationID }), nil
}

func (r memMessages) ToggleLike(_ context.Context, id, userID string, now time.Time) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	m.Likes = models.ToggleLike(m.Likes, userID)
	m.UpdatedAt = now
	cp := m.Clone()
	return &cp, nil
}

func (r memMessages) MarkDeleted(_ context.Context, id, actor string, now time.Time) (*models.Message, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, false, apperr.NotFound("message")
	}
	if m.Sender != actor {
		return nil, false, apperr.Forbidden("only the sender can delete this message")
	}
	changed := !m.IsDeleted
	if changed {
		m.IsDeleted = true
		m.DeletedBy = actor
		m.UpdatedAt = now
	}
	cp := m.Clone()
	return &cp, changed, nil
}

func (r memMessages) DeleteByConversation(_ context.Context, conversationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.messages {
		if m.ConversationID == conversationID {
			delete(r.s.messages, id)
		}
	}
	r.s.messageOrder = slices.DeleteFunc(r.s.messageOrder, func(id string) bool {
		_, ok := r.s.messages[id]
		return !ok
	})
	return nil
}

type memConversations struct{ s *MemoryStore }

func cloneConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	cp.UnreadCounts = make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		cp.UnreadCounts[k] = v
	}
	return &cp
}

func (r memConversations) FindOrCreate(_ context.Context, a, b string, now time.Time) (*models.Conversation, error) {
	key := models.PairKey(a, b)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.pairs[key]; ok {
		return cloneConversation(r.s.conversations[id]), nil
	}
	c := &models.Conversation{
		ID:             uuid.NewString(),
		Participants:   models.SortedPair(a, b),
		ParticipantKey: key,
		UnreadCounts:   map[string]int{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.conversations[c.ID] = c
	r.s.pairs[key] = c.ID
	return cloneConversation(c), nil
}

func (r memConversations) Get(_ context.Context, id string) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, apperr.NotFound("conversation")
	}
	return cloneConversation(c), nil
}

func (r memConversations) ListForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.Conversation{}
	for _, c := range r.s.conversations {
		if c.Has(userID) {
			out = append(out, *cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r memConversations) RecordMessage(_ context.Context, id, messageID, recipient string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return apperr.NotFound("conversation")
	}
	c.LastMessage = messageID
	c.UpdatedAt = now
	c.UnreadCounts[recipient]++
	return nil
}

func (r memConversations) ResetUnread(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.conversations[id]; ok {
		c.UnreadCounts[userID] = 0
	}
	return nil
}

func (r memConversations) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return apperr.NotFound("conversation")
	}
	delete(r.s.pairs, c.ParticipantKey)
	delete(r.s.conversations, id)
	return nil
}

type memNotes struct{ s *MemoryStore }

func cloneNote(n *models.Note) *models.Note {
	cp := *n
	cp.Files = slices.Clone(n.Files)
	cp.Likes = slices.Clone(n.Likes)
	return &cp
}

func (r memNotes) Insert(_ context.Context, n *models.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	r.s.notes[n.ID] = cloneNote(n)
	return nil
}

func (r memNotes) Get(_ context.Context, id string) (*models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notes[id]
	if !ok {
		return nil, apperr.NotFound("note")
	}
	return cloneNote(n), nil
}

func (r memNotes) ListByGroup(_ context.Context, groupID string) ([]models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.Note{}
	for _, n := range r.s.notes {
		if n.GroupID == groupID {
			out = append(out, *cloneNote(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memNotes) ToggleLike(_ context.Context, id, userID string, now time.Time) (*models.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notes[id]
	if !ok {
		return nil, apperr.NotFound("note")
	}
	n.Likes = models.ToggleLike(n.Likes, userID)
	n.UpdatedAt = now
	return cloneNote(n), nil
}

func (r memNotes) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notes[id]; !ok {
		return apperr.NotFound("note")
	}
	delete(r.s.notes, id)
	return nil
}

type memThreads struct{ s *MemoryStore }

func cloneThread(t *models.Thread) *models.Thread {
	cp := *t
	cp.Likes = slices.Clone(t.Likes)
	return &cp
}

func (r memThreads) Insert(_ context.Context, t *models.Thread) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.s.threads[t.ID] = cloneThread(t)
	return nil
}

func (r memThreads) Get(_ context.Context, id string) (*models.Thread, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.threads[id]
	if !ok {
		return nil, apperr.NotFound("thread")
	}
	return cloneThread(t), nil
}

func (r memThreads) View(_ context.Context, id string) (*models.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[id]
	if !ok {
		return nil, apperr.NotFound("thread")
	}
	t.ViewCount++
	return cloneThread(t), nil
}

func (r memThreads) ToggleLike(_ context.Context, id, userID string, now time.Time) (*models.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[id]
	if !ok {
		return nil, apperr.NotFound("thread")
	}
	t.Likes = models.ToggleLike(t.Likes, userID)
	t.UpdatedAt = now
	return cloneThread(t), nil
}

func (r memThreads) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.threads[id]; !ok {
		return apperr.NotFound("thread")
	}
	delete(r.s.threads, id)
	return nil
}

type memReplies struct{ s *MemoryStore }

func cloneReply(rp *models.Reply) *models.Reply {
	cp := *rp
	cp.Likes = slices.Clone(rp.Likes)
	return &cp
}

func (r memReplies) Insert(_ context.Context, rp *models.Reply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rp.ID == "" {
		rp.ID = uuid.NewString()
	}
	r.s.replies[rp.ID] = cloneReply(rp)
	r.s.replyOrder = append(r.s.replyOrder, rp.ID)
	return nil
}

func (r memReplies) Get(_ context.Context, id string) (*models.Reply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rp, ok := r.s.replies[id]
	if !ok {
		return nil, apperr.NotFound("reply")
	}
	return cloneReply(rp), nil
}

func (r memReplies) list(match func(*models.Reply) bool) []models.Reply {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.Reply{}
	for _, id := range r.s.replyOrder {
		if rp, ok := r.s.replies[id]; ok && match(rp) {
			out = append(out, *cloneReply(rp))
		}
	}
	return out
}

func (r memReplies) ListByNotes(_ context.Context, noteIDs []string) ([]models.Reply, error) {
	return r.list(func(rp *models.Reply) bool { return rp.NoteID != "" && slices.Contains(noteIDs, rp.NoteID) }), nil
}

func (r memReplies) ListByThread(_ context.Context, threadID string) ([]models.Reply, error) {
	return r.list(func(rp *models.Reply) bool { return rp.ThreadID == threadID }), nil
}

func (r memReplies) ToggleLike(_ context.Context, id, userID string, now time.Time) (*models.Reply, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rp, ok := r.s.replies[id]
	if !ok {
		return nil, apperr.NotFound("reply")
	}
	rp.Likes = models.ToggleLike(rp.Likes, userID)
	rp.UpdatedAt = now
	return cloneReply(rp), nil
}

func (r memReplies) deleteWhere(match func(*models.Reply) bool) {
	for id, rp := range r.s.replies {
		if match(rp) {
			delete(r.s.replies, id)
		}
	}
	r.s.replyOrder = slices.DeleteFunc(r.s.replyOrder, func(id string) bool {
		_, ok := r.s.replies[id]
		return !ok
	})
}

func (r memReplies) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.replies[id]; !ok {
		return apperr.NotFound("reply")
	}
	r.deleteWhere(func(rp *models.Reply) bool { return rp.ID == id })
	return nil
}

func (r memReplies) DeleteByNote(_ context.Context, noteID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.deleteWhere(func(rp *models.Reply) bool { return rp.NoteID == noteID })
	return nil
}

func (r memReplies) DeleteByThread(_ context.Context, threadID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.deleteWhere(func(rp *models.Reply) bool { return rp.ThreadID == threadID })
	return nil
}
