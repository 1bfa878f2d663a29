package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

func wire(id, content string) models.WireMessage {
	return models.WireMessage{
		ID:        id,
		GroupID:   "G1",
		Content:   content,
		Sender:    models.UserRef{ID: "u1", Username: "alice"},
		Files:     []models.Attachment{},
		Likes:     []string{},
		CreatedAt: time.Date(2026, 1, 2, 9, 30, 0, 0, time.Local),
	}
}

func frame(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	b, err := events.Encode(typ, payload)
	require.NoError(t, err)
	return b
}

func TestViewAppendsAndRedraws(t *testing.T) {
	var out bytes.Buffer
	v := newView("G1", &out)
	v.tl.Load([]models.WireMessage{wire("m1", "hello")})
	v.render()
	assert.Equal(t, "[09:30] alice: hello\n", out.String())

	out.Reset()
	v.handle(frame(t, events.ReceiveMessage, wire("m2", "second")))
	assert.Equal(t, "[09:30] alice: second\n", out.String())

	// a duplicate delivery prints nothing
	out.Reset()
	v.handle(frame(t, events.ReceiveMessage, wire("m2", "second")))
	assert.Empty(t, out.String())

	out.Reset()
	deleted := wire("m1", "")
	deleted.IsDeleted = true
	v.handle(frame(t, events.UpdateMessage, deleted))
	assert.Equal(t, "--- G1 ---\n[09:30] alice: (message deleted)\n[09:30] alice: second\n", out.String())

	out.Reset()
	v.handle(frame(t, events.UserStatusChanged, events.UserStatus{UserID: "u2", IsOnline: true}))
	assert.Equal(t, "* u2 is online\n", out.String())
}

func TestLineDecorations(t *testing.T) {
	m := wire("m1", models.AttachmentPlaceholder)
	m.Files = []models.Attachment{{DisplayName: "a.png"}}
	m.Likes = []string{"u2", "u3"}
	m.Location = &models.GeoPoint{Lat: 1.5, Lng: 2.25}
	m.ReplyTo = &models.ReplyPreview{ID: "m0", Sender: &models.UserRef{Username: "bob"}}
	assert.Equal(t, "[09:30] alice: (re bob) Sent an attachment [1 file(s)] @1.50000,2.25000 +2", line(m))
}

func TestWatchConfig(t *testing.T) {
	assert.Error(t, watchConfig{Token: "t"}.validate())
	assert.Error(t, watchConfig{Token: "t", Group: "g", Conversation: "c"}.validate())
	assert.Error(t, watchConfig{Group: "g"}.validate())

	w := watchConfig{Server: "https://chat.example.com/", Token: "a b", Conversation: "C1"}
	require.NoError(t, w.validate())
	u, err := w.socketURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?token=a+b", u)
	assert.Equal(t, "/api/private-chat/C1/messages", w.historyPath())
}
