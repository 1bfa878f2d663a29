package ws

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/middleware"
)

const localUser = "ws_user"

// Upgrade authenticates the ?token= query parameter before the protocol
// switch so bad tokens get a plain 401.
func Upgrade(v middleware.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			return apperr.ErrUnauthorized
		}
		id, err := v.Verify(token)
		if err != nil {
			return apperr.ErrUnauthorized
		}
		c.Locals(localUser, id.UserID)
		return c.Next()
	}
}

// Serve is the websocket endpoint, mounted after Upgrade.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(h.serve, websocket.Config{
		WriteBufferSize: 4096,
		ReadBufferSize:  4096,
	})
}

func (h *Handler) serve(c *websocket.Conn) {
	user, _ := c.Locals(localUser).(string)
	if user == "" {
		_ = c.Close()
		return
	}
	s := h.attach(user)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c, s)
	}()

	h.readPump(c, s)
	h.detach(s)
	// the write pump flushes the close frame once send is closed
	<-done
}

func (h *Handler) readPump(c *websocket.Conn, s *Session) {
	if h.opts.MaxMessageSize > 0 {
		c.SetReadLimit(h.opts.MaxMessageSize)
	}
	if h.opts.PongWait > 0 {
		_ = c.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		})
	}

	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("socket read", "conn_id", s.ID(), "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.dispatch(context.Background(), s, msg)
	}
}

func (h *Handler) writePump(c *websocket.Conn, s *Session) {
	interval := h.opts.PingInterval
	if interval <= 0 {
		interval = 25 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-s.send:
			h.deadline(c)
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debugw("socket write", "conn_id", s.ID(), "err", err)
				// unblock the reader so the session is torn down
				_ = c.Close()
				return
			}
		case <-ticker.C:
			h.deadline(c)
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debugw("socket ping", "conn_id", s.ID(), "err", err)
				_ = c.Close()
				return
			}
		}
	}
}

func (h *Handler) deadline(c *websocket.Conn) {
	if h.opts.WriteDeadline > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(h.opts.WriteDeadline))
	}
}
