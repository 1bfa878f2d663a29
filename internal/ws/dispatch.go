package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/hub"
	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type Rooms interface {
	Register(c hub.Conn)
	Unregister(connID string)
	Join(connID, roomID string) bool
}

type Presence interface {
	MarkOnline(userID, connID string)
	MarkOffline(connID string)
}

// Messages is the broker surface reachable from a socket. Socket
// mutations go through the same path as HTTP ones.
type Messages interface {
	AuthorizeJoin(ctx context.Context, kind, roomID, user string) error
	ToggleLike(ctx context.Context, messageID, actor string) (*models.WireMessage, error)
	Delete(ctx context.Context, messageID, actor string) (*models.WireMessage, error)
}

type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteDeadline   time.Duration
	MaxMessageSize  int64
	RateLimitPerSec int
	SendBuffer      int
	// OpTimeout bounds each broker call made for an inbound frame.
	OpTimeout time.Duration
}

// Handler owns the socket side of the realtime service: it attaches
// sessions to the hub and presence tracker and dispatches client frames.
type Handler struct {
	rooms    Rooms
	presence Presence
	msgs     Messages
	opts     Options
	log      *zap.SugaredLogger
}

func NewHandler(rooms Rooms, presence Presence, msgs Messages, opts Options, log *zap.SugaredLogger) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 20
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	return &Handler{rooms: rooms, presence: presence, msgs: msgs, opts: opts, log: log}
}

func (h *Handler) attach(user string) *Session {
	s := newSession(user, h.opts.SendBuffer, h.opts.RateLimitPerSec)
	h.rooms.Register(s)
	metrics.Connections.Inc()
	h.log.Debugw("socket attached", "conn_id", s.ID(), "user_id", user)
	return s
}

// detach releases everything the session held. Room subscriptions go
// with Unregister.
func (h *Handler) detach(s *Session) {
	h.presence.MarkOffline(s.ID())
	h.rooms.Unregister(s.ID())
	s.close()
	metrics.Connections.Dec()
	h.log.Debugw("socket detached", "conn_id", s.ID(), "user_id", s.User())
}

func (h *Handler) reject(s *Session, reason string, err error) {
	metrics.InboundRejected.WithLabelValues(reason).Inc()
	h.log.Warnw("inbound event dropped", "conn_id", s.ID(), "user_id", s.User(), "reason", reason, "err", err)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}

// dispatch handles one client frame. Failures are logged and dropped;
// the client gets no error frame.
func (h *Handler) dispatch(ctx context.Context, s *Session, raw []byte) {
	if !s.limiter.Allow() {
		h.reject(s, "rate_limited", nil)
		return
	}
	cmd, err := events.ParseInbound(raw, s.User())
	if err != nil {
		h.reject(s, reasonFor(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.OpTimeout)
	defer cancel()

	switch c := cmd.(type) {
	case events.UserOnlineCmd:
		h.presence.MarkOnline(c.UserID, s.ID())

	case events.JoinCmd:
		if err := h.msgs.AuthorizeJoin(ctx, c.Kind, c.RoomID, s.User()); err != nil {
			h.reject(s, reasonFor(err), err)
			return
		}
		h.rooms.Join(s.ID(), c.RoomID)

	case events.LikeCmd:
		if _, err := h.msgs.ToggleLike(ctx, c.MessageID, c.UserID); err != nil {
			h.reject(s, reasonFor(err), err)
		}

	case events.DeleteCmd:
		if _, err := h.msgs.Delete(ctx, c.MessageID, c.UserID); err != nil {
			h.reject(s, reasonFor(err), err)
		}
	}
}
