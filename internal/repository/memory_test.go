package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

func TestFindOrCreateConcurrentCreatesOne(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()

	const callers = 32
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			c, err := st.Conversations.FindOrCreate(ctx, a, b, time.Now())
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := st.Conversations.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMessageToggleLikeConcurrentUsers(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()
	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "m1", Sender: "u0", GroupID: "g", Content: "hi"}))

	var wg sync.WaitGroup
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, err := st.Messages.ToggleLike(ctx, "m1", u, time.Now())
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	m, err := st.Messages.Get(ctx, "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4"}, m.Likes)
}

func TestMarkDeleted(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()
	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "m1", Sender: "owner", GroupID: "g", Content: "hi"}))

	_, _, err := st.Messages.MarkDeleted(ctx, "m1", "intruder", time.Now())
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	m, changed, err := st.Messages.MarkDeleted(ctx, "m1", "owner", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, m.IsDeleted)
	assert.Equal(t, "owner", m.DeletedBy)
	assert.Equal(t, "hi", m.Content)

	_, changed, err = st.Messages.MarkDeleted(ctx, "m1", "owner", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = st.Messages.MarkDeleted(ctx, "missing", "owner", time.Now())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestConversationCascadeAndUnread(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()
	c, err := st.Conversations.FindOrCreate(ctx, "a", "b", time.Now())
	require.NoError(t, err)

	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "p1", Sender: "a", ConversationID: c.ID, RecipientID: "b", Content: "x"}))
	require.NoError(t, st.Conversations.RecordMessage(ctx, c.ID, "p1", "b", time.Now()))

	got, err := st.Conversations.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCounts["b"])
	assert.Equal(t, "p1", got.LastMessage)

	require.NoError(t, st.Conversations.ResetUnread(ctx, c.ID, "b"))
	got, _ = st.Conversations.Get(ctx, c.ID)
	assert.Equal(t, 0, got.UnreadCounts["b"])

	require.NoError(t, st.Messages.DeleteByConversation(ctx, c.ID))
	require.NoError(t, st.Conversations.Delete(ctx, c.ID))
	msgs, err := st.Messages.ListByConversation(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	again, err := st.Conversations.FindOrCreate(ctx, "b", "a", time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, again.ID)
}

func TestHistoryOrderedByCreation(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()
	base := time.Now()
	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "late", Sender: "u", GroupID: "g", Content: "2", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "early", Sender: "u", GroupID: "g", Content: "1", CreatedAt: base}))
	require.NoError(t, st.Messages.Insert(ctx, &models.Message{ID: "other", Sender: "u", GroupID: "h", Content: "x", CreatedAt: base}))

	msgs, err := st.Messages.ListByGroup(ctx, "g")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "early", msgs[0].ID)
	assert.Equal(t, "late", msgs[1].ID)
}

func TestRepliesCascade(t *testing.T) {
	st := NewMemoryStore().Store()
	ctx := context.Background()
	require.NoError(t, st.Replies.Insert(ctx, &models.Reply{ID: "r1", NoteID: "n1", Body: "a"}))
	require.NoError(t, st.Replies.Insert(ctx, &models.Reply{ID: "r2", NoteID: "n2", Body: "b"}))
	require.NoError(t, st.Replies.Insert(ctx, &models.Reply{ID: "r3", ThreadID: "t1", Body: "c"}))

	require.NoError(t, st.Replies.DeleteByNote(ctx, "n1"))
	left, err := st.Replies.ListByNotes(ctx, []string{"n1", "n2"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "r2", left[0].ID)

	require.NoError(t, st.Replies.DeleteByThread(ctx, "t1"))
	thread, err := st.Replies.ListByThread(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, thread)
}
