package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/auth"
	"github.com/fathima-sithara/studycircle-realtime/internal/broker"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/hub"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/presence"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
)

type fixture struct {
	h       *Handler
	hub     *hub.Hub
	tracker *presence.Tracker
	broker  *broker.Broker
}

func setup(t *testing.T, perSec int) *fixture {
	t.Helper()
	mem := repository.NewMemoryStore()
	mem.PutUser("alice", "Alice")
	mem.PutUser("bob", "Bob")
	mem.AddMember("G1", "alice")
	mem.AddMember("G1", "bob")
	st := mem.Store()

	log := zap.NewNop().Sugar()
	h := hub.New()
	tr := presence.NewTracker(h, nil, log)
	b := broker.New(st, h, nil, nil, log)
	return &fixture{
		h:       NewHandler(h, tr, b, Options{SendBuffer: 16, RateLimitPerSec: perSec}, log),
		hub:     h,
		tracker: tr,
		broker:  b,
	}
}

func frame(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	b, err := events.Encode(typ, payload)
	require.NoError(t, err)
	return b
}

// queued returns the frames waiting in the session's buffer.
func queued(t *testing.T, s *Session) []events.Envelope {
	t.Helper()
	var out []events.Envelope
	for {
		select {
		case b := <-s.send:
			env, err := events.Decode(b)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestUserOnlineAnnouncesToEveryone(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	alice := f.h.attach("alice")
	bob := f.h.attach("bob")

	f.h.dispatch(ctx, alice, frame(t, events.UserOnline, "alice"))
	assert.True(t, f.tracker.IsOnline("alice"))

	got := queued(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, events.UserStatusChanged, got[0].Type)
	assert.JSONEq(t, `{"userId":"alice","isOnline":true}`, string(got[0].Payload))

	// claiming to be someone else is dropped
	f.h.dispatch(ctx, alice, frame(t, events.UserOnline, "bob"))
	assert.False(t, f.tracker.IsOnline("bob"))

	f.h.detach(alice)
	assert.False(t, f.tracker.IsOnline("alice"))
	got = queued(t, bob)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"userId":"alice","isOnline":false}`, string(got[0].Payload))
	assert.Equal(t, 1, f.hub.Connections())
}

func TestJoinChecksMembership(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	alice := f.h.attach("alice")
	mallory := f.h.attach("mallory")

	f.h.dispatch(ctx, alice, frame(t, events.JoinGroup, "G1"))
	f.h.dispatch(ctx, mallory, frame(t, events.JoinGroup, "G1"))
	assert.Equal(t, 1, f.hub.RoomSize("G1"))
	assert.Equal(t, []string{"G1"}, f.hub.Rooms(alice.ID()))
	assert.Empty(t, f.hub.Rooms(mallory.ID()))
}

func TestSocketLikeAndDeleteUseBroker(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()

	sent, err := f.broker.Send(ctx, broker.SendInput{Sender: "bob", GroupID: "G1", Content: "hi"})
	require.NoError(t, err)

	alice := f.h.attach("alice")
	bob := f.h.attach("bob")
	f.h.dispatch(ctx, alice, frame(t, events.JoinGroup, map[string]string{"roomId": "G1"}))
	f.h.dispatch(ctx, bob, frame(t, events.JoinGroup, "G1"))

	f.h.dispatch(ctx, alice, frame(t, events.LikeMessage, events.LikeCmd{MessageID: sent.ID, UserID: "alice"}))
	got := queued(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, events.UpdateMessage, got[0].Type)
	var liked models.WireMessage
	require.NoError(t, json.Unmarshal(got[0].Payload, &liked))
	assert.Equal(t, []string{"alice"}, liked.Likes)
	queued(t, alice)

	// alice cannot delete bob's message, nor like as bob
	f.h.dispatch(ctx, alice, frame(t, events.DeleteMessage, events.DeleteCmd{MessageID: sent.ID, UserID: "alice"}))
	f.h.dispatch(ctx, alice, frame(t, events.LikeMessage, events.LikeCmd{MessageID: sent.ID, UserID: "bob"}))
	assert.Empty(t, queued(t, bob))

	f.h.dispatch(ctx, bob, frame(t, events.DeleteMessage, events.DeleteCmd{MessageID: sent.ID, UserName: "Bob"}))
	got = queued(t, alice)
	require.Len(t, got, 1)
	var deleted models.WireMessage
	require.NoError(t, json.Unmarshal(got[0].Payload, &deleted))
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Content)
}

func TestInboundRateLimit(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	alice := f.h.attach("alice")

	f.h.dispatch(ctx, alice, frame(t, events.JoinGroup, "G1"))
	f.h.dispatch(ctx, alice, frame(t, events.UserOnline, "alice"))
	assert.Equal(t, 1, f.hub.RoomSize("G1"))
	assert.False(t, f.tracker.IsOnline("alice"))
}

func TestSessionSendAfterClose(t *testing.T) {
	s := newSession("u", 1, 1)
	assert.True(t, s.Send([]byte("a")))
	assert.False(t, s.Send([]byte("b")))
	s.close()
	s.close()
	assert.False(t, s.Send([]byte("c")))
}

type staticVerifier map[string]string

func (v staticVerifier) Verify(token string) (auth.Identity, error) {
	if id, ok := v[token]; ok {
		return auth.Identity{UserID: id}, nil
	}
	return auth.Identity{}, errors.New("bad token")
}

func TestServeOverRealSocket(t *testing.T) {
	f := setup(t, 50)
	f.h.opts.PingInterval = time.Second
	f.h.opts.PongWait = 5 * time.Second
	f.h.opts.WriteDeadline = time.Second

	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler(zap.NewNop().Sugar())})
	app.Get("/ws", Upgrade(staticVerifier{"tok-alice": "alice"}), f.h.Serve())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.Shutdown() }()

	base := "ws://" + ln.Addr().String() + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(base+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gws.DefaultDialer.Dial(base+"?token=tok-alice", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gws.TextMessage, frame(t, events.UserOnline, map[string]string{"userId": "alice"})))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := events.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, events.UserStatusChanged, env.Type)
	assert.JSONEq(t, `{"userId":"alice","isOnline":true}`, string(env.Payload))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !f.tracker.IsOnline("alice") }, 3*time.Second, 20*time.Millisecond)
}
