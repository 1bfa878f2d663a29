package board

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/broker"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/hub"
	"github.com/fathima-sithara/studycircle-realtime/internal/hub/hubtest"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
)

func setup(t *testing.T) (*Service, *hubtest.Recorder, *repository.Store) {
	t.Helper()
	mem := repository.NewMemoryStore()
	mem.PutUser("alice", "Alice")
	mem.PutUser("bob", "Bob")
	mem.AddMember("G1", "alice")
	mem.AddMember("G1", "bob")
	st := mem.Store()

	h := hub.New()
	room := hubtest.NewRecorder("watcher")
	h.Register(room)
	h.Join("watcher", "G1")

	log := zap.NewNop().Sugar()
	b := broker.New(st, h, nil, nil, log)
	return NewService(st, b, log), room, st
}

func TestThreadLifecycleEmitsToGroup(t *testing.T) {
	s, room, st := setup(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "G1", "alice", "Exam prep", "Who has chapter 3?")
	require.NoError(t, err)
	assert.Equal(t, "Alice", th.AuthorRef.Username)
	created := room.OfType(events.NewThread)
	require.Len(t, created, 1)
	var got models.ThreadView
	require.NoError(t, json.Unmarshal(created[0], &got))
	assert.Equal(t, th.ID, got.ID)

	_, err = s.ToggleThreadLike(ctx, th.ID, "bob")
	require.NoError(t, err)
	reply, err := s.ReplyToThread(ctx, th.ID, "bob", "I do", "")
	require.NoError(t, err)
	_, err = s.ToggleReplyLike(ctx, reply.ID, "alice")
	require.NoError(t, err)
	assert.Len(t, room.OfType(events.ThreadUpdated), 3)
	assert.JSONEq(t, `{"threadId":"`+th.ID+`"}`, string(room.OfType(events.ThreadUpdated)[0]))

	view, err := s.GetThread(ctx, th.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ViewCount)
	require.Len(t, view.Replies, 1)
	assert.Equal(t, []string{"alice"}, view.Replies[0].Likes)

	assert.True(t, errors.Is(s.DeleteThread(ctx, th.ID, "bob"), apperr.ErrForbidden))
	require.NoError(t, s.DeleteThread(ctx, th.ID, "alice"))
	deleted := room.OfType(events.ThreadDeleted)
	require.Len(t, deleted, 1)
	assert.JSONEq(t, `{"threadId":"`+th.ID+`","groupId":"G1"}`, string(deleted[0]))

	left, err := st.Replies.ListByThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestNoteLifecycleEmitsToGroup(t *testing.T) {
	s, room, _ := setup(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "G1", "bob", "Summary", "Key formulas", []models.Attachment{
		{DisplayName: "sheet.png", StoragePath: "2026/sheet.png", MimeType: "image/png"},
	})
	require.NoError(t, err)
	require.Len(t, room.OfType(events.NoteCreated), 1)
	assert.JSONEq(t, `{"groupId":"G1"}`, string(room.OfType(events.NoteCreated)[0]))

	_, err = s.ToggleNoteLike(ctx, n.ID, "alice")
	require.NoError(t, err)
	r, err := s.ReplyToNote(ctx, n.ID, "alice", "thanks!", "")
	require.NoError(t, err)
	_, err = s.ToggleReplyLike(ctx, r.ID, "bob")
	require.NoError(t, err)
	assert.True(t, errors.Is(s.DeleteReply(ctx, r.ID, "bob"), apperr.ErrForbidden))
	require.NoError(t, s.DeleteReply(ctx, r.ID, "alice"))
	assert.Len(t, room.OfType(events.NoteUpdated), 4)

	_, err = s.ReplyToNote(ctx, n.ID, "alice", "again", "")
	require.NoError(t, err)
	notes, err := s.ListNotes(ctx, "G1", "alice")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 1, notes[0].ReplyCount)
	assert.Equal(t, "Bob", notes[0].AuthorRef.Username)
	assert.Equal(t, []string{"alice"}, notes[0].Likes)

	one, err := s.GetNote(ctx, n.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Summary", one.Title)
	assert.Equal(t, 1, one.ReplyCount)
	_, err = s.GetNote(ctx, n.ID, "mallory")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	require.NoError(t, s.DeleteNote(ctx, n.ID, "bob"))
	deleted := room.OfType(events.NoteDeleted)
	require.Len(t, deleted, 1)
	assert.JSONEq(t, `{"noteId":"`+n.ID+`","groupId":"G1"}`, string(deleted[0]))
}

func TestBoardRequiresMembershipAndFields(t *testing.T) {
	s, room, _ := setup(t)
	ctx := context.Background()

	_, err := s.CreateThread(ctx, "G1", "mallory", "t", "b")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = s.CreateThread(ctx, "G1", "alice", "", "b")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = s.CreateNote(ctx, "G1", "alice", "t", " ", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = s.ListNotes(ctx, "G1", "mallory")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = s.GetThread(ctx, "missing", "alice")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.Empty(t, room.Frames())
}
