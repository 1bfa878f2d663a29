package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

func TestEncodeEnvelope(t *testing.T) {
	b, err := Encode(UserStatusChanged, UserStatus{UserID: "u1", IsOnline: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user_status_changed","payload":{"userId":"u1","isOnline":true}}`, string(b))

	env, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, UserStatusChanged, env.Type)
}

func TestParseInbound(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Inbound
		err  error
	}{
		{"online bare", `{"type":"user_online","payload":"u1"}`, UserOnlineCmd{UserID: "u1"}, nil},
		{"online object", `{"type":"user_online","payload":{"userId":"u1"}}`, UserOnlineCmd{UserID: "u1"}, nil},
		{"online spoofed", `{"type":"user_online","payload":"u2"}`, nil, apperr.ErrForbidden},
		{"join group", `{"type":"join_group","payload":"g1"}`, JoinCmd{Kind: JoinGroup, RoomID: "g1"}, nil},
		{"join conversation", `{"type":"join_conversation","payload":{"conversationId":"c1"}}`, JoinCmd{Kind: JoinConversation, RoomID: "c1"}, nil},
		{"join empty", `{"type":"join_group","payload":""}`, nil, apperr.ErrValidation},
		{"like", `{"type":"like_message","payload":{"messageId":"m1","userId":"u1"}}`, LikeCmd{MessageID: "m1", UserID: "u1"}, nil},
		{"like implicit user", `{"type":"like_message","payload":{"messageId":"m1"}}`, LikeCmd{MessageID: "m1", UserID: "u1"}, nil},
		{"like spoofed", `{"type":"like_message","payload":{"messageId":"m1","userId":"u9"}}`, nil, apperr.ErrForbidden},
		{"delete", `{"type":"delete_message","payload":{"messageId":"m1","userId":"u1","userName":"ann"}}`, DeleteCmd{MessageID: "m1", UserID: "u1", UserName: "ann"}, nil},
		{"delete no id", `{"type":"delete_message","payload":{"userId":"u1"}}`, nil, apperr.ErrValidation},
		{"socket send", `{"type":"send_message","payload":{"content":"hi"}}`, nil, apperr.ErrValidation},
		{"garbage", `not json`, nil, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tc.raw), "u1")
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	fail bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherWritesKeyedByRoom(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, zap.NewNop().Sugar())
	p.Publish(DomainEvent{Type: ReceiveMessage, Room: "g1", Payload: map[string]string{"id": "m1"}})
	p.Publish(DomainEvent{Type: UpdateMessage, Room: "g1"})
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "g1", string(w.msgs[0].Key))
	var e DomainEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &e))
	assert.Equal(t, ReceiveMessage, e.Type)
	assert.False(t, e.Occurred.IsZero())

	// publishing after close is ignored
	p.Publish(DomainEvent{Type: ReceiveMessage})
}

func TestKafkaPublisherSurvivesFailures(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newKafkaPublisher(w, zap.NewNop().Sugar())
	for i := 0; i < 10; i++ {
		p.Publish(DomainEvent{Type: ReceiveMessage, Room: "g"})
	}
	require.NoError(t, p.Close())
	assert.Empty(t, w.msgs)
}
