package ws

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Session is one authenticated socket as seen by the hub and the
// presence tracker. Outbound frames queue on send and are written by
// the connection's write pump.
type Session struct {
	id      string
	user    string
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newSession(user string, buffer, perSec int) *Session {
	return &Session{
		id:      uuid.NewString(),
		user:    user,
		send:    make(chan []byte, buffer),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) User() string { return s.user }

// Send queues msg without blocking. A full buffer or a closed session
// drops the frame.
func (s *Session) Send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}
