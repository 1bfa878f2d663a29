package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
)

// Broadcaster reaches every connected client.
type Broadcaster interface {
	BroadcastAll(msg []byte) int
}

// Mirror records presence somewhere other processes can read it.
type Mirror interface {
	AddConnection(ctx context.Context, userID, connID string) error
	RemoveConnection(ctx context.Context, userID, connID string) error
}

// Tracker maps users to their live connections. A user is online while
// at least one connection is registered; status changes are announced
// only on the first and last connection so extra tabs are invisible.
type Tracker struct {
	mu       sync.Mutex
	byUser   map[string]map[string]struct{}
	byConn   map[string]string
	lastSeen map[string]time.Time

	out    Broadcaster
	mirror Mirror
	log    *zap.SugaredLogger
}

func NewTracker(out Broadcaster, mirror Mirror, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		byUser:   make(map[string]map[string]struct{}),
		byConn:   make(map[string]string),
		lastSeen: make(map[string]time.Time),
		out:      out,
		mirror:   mirror,
		log:      log,
	}
}

// MarkOnline binds connID to userID. A connection rebinding to another
// user is first released from the previous one.
func (t *Tracker) MarkOnline(userID, connID string) {
	t.mu.Lock()
	if prev, ok := t.byConn[connID]; ok {
		if prev == userID {
			t.mu.Unlock()
			return
		}
		t.removeLocked(connID)
	}
	set, ok := t.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		t.byUser[userID] = set
	}
	set[connID] = struct{}{}
	t.byConn[connID] = userID
	if len(set) == 1 {
		metrics.OnlineUsers.Inc()
		t.announce(userID, true)
	}
	t.mu.Unlock()

	t.mirrorCall(func(ctx context.Context) error { return t.mirror.AddConnection(ctx, userID, connID) }, userID)
}

// MarkOffline releases connID. Unknown connections are ignored.
func (t *Tracker) MarkOffline(connID string) {
	t.mu.Lock()
	userID, ok := t.byConn[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.removeLocked(connID)
	t.mu.Unlock()

	t.mirrorCall(func(ctx context.Context) error { return t.mirror.RemoveConnection(ctx, userID, connID) }, userID)
}

func (t *Tracker) removeLocked(connID string) {
	userID := t.byConn[connID]
	delete(t.byConn, connID)
	set := t.byUser[userID]
	delete(set, connID)
	if len(set) > 0 {
		return
	}
	delete(t.byUser, userID)
	t.lastSeen[userID] = time.Now().UTC()
	metrics.OnlineUsers.Dec()
	t.announce(userID, false)
}

// announce runs under t.mu so online/offline pairs reach clients in order.
func (t *Tracker) announce(userID string, online bool) {
	if t.out == nil {
		return
	}
	b, err := events.Encode(events.UserStatusChanged, events.UserStatus{UserID: userID, IsOnline: online})
	if err != nil {
		t.log.Errorw("encode presence", "user_id", userID, "err", err)
		return
	}
	metrics.Broadcasts.WithLabelValues(events.UserStatusChanged).Inc()
	t.out.BroadcastAll(b)
}

func (t *Tracker) mirrorCall(fn func(ctx context.Context) error, userID string) {
	if t.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		t.log.Warnw("presence mirror", "user_id", userID, "err", err)
	}
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byUser[userID]) > 0
}

// UserOf returns the user bound to connID.
func (t *Tracker) UserOf(connID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.byConn[connID]
	return u, ok
}

// LastSeen reports when the user's last connection closed in this
// process. Zero if never seen or currently online.
func (t *Tracker) LastSeen(userID string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.byUser[userID]) > 0 {
		return time.Time{}
	}
	return t.lastSeen[userID]
}

func (t *Tracker) Connections(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byUser[userID])
}
