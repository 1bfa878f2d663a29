package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fathima-sithara/studycircle-realtime/internal/clientsync"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type watchConfig struct {
	Server       string
	Token        string
	UserID       string
	Group        string
	Conversation string
}

func (w watchConfig) validate() error {
	if w.Token == "" {
		return errors.New("--token is required")
	}
	if (w.Group == "") == (w.Conversation == "") {
		return errors.New("set exactly one of --group or --conversation")
	}
	return nil
}

func (w watchConfig) room() string {
	if w.Group != "" {
		return w.Group
	}
	return w.Conversation
}

func (w watchConfig) historyPath() string {
	if w.Group != "" {
		return "/api/chat/" + url.PathEscape(w.Group)
	}
	return "/api/private-chat/" + url.PathEscape(w.Conversation) + "/messages"
}

func (w watchConfig) socketURL() (string, error) {
	u, err := url.Parse(w.Server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {w.Token}}.Encode()
	return u.String(), nil
}

func fetchHistory(ctx context.Context, client *http.Client, w watchConfig) ([]models.WireMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(w.Server, "/")+w.historyPath(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+w.Token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("history: %s %s", resp.Status, e.Message)
	}
	var msgs []models.WireMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// watch joins the room, prints its history and then every change until
// the socket closes or ctx is done.
func watch(ctx context.Context, w watchConfig, out io.Writer) error {
	sock, err := w.socketURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, sock, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sock, err)
	}
	defer conn.Close()

	joinType := events.JoinGroup
	if w.Conversation != "" {
		joinType = events.JoinConversation
	}
	if w.UserID != "" {
		if err := send(conn, events.UserOnline, w.UserID); err != nil {
			return err
		}
	}
	// join before fetching so nothing sent in between is missed; the
	// timeline drops the duplicates
	if err := send(conn, joinType, w.room()); err != nil {
		return err
	}

	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	history, err := fetchHistory(hctx, http.DefaultClient, w)
	cancel()
	if err != nil {
		return err
	}

	v := newView(w.room(), out)
	v.tl.Load(history)
	v.render()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		v.handle(raw)
	}
}

func send(conn *websocket.Conn, typ string, payload interface{}) error {
	b, err := events.Encode(typ, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// view prints a room timeline. New messages are appended; edits to
// earlier ones redraw the whole list.
type view struct {
	tl      *clientsync.Timeline
	out     io.Writer
	printed int
}

func newView(room string, out io.Writer) *view {
	return &view{tl: clientsync.NewTimeline(room), out: out}
}

func (v *view) handle(raw []byte) {
	env, err := events.Decode(raw)
	if err != nil {
		fmt.Fprintf(v.out, "! bad frame: %v\n", err)
		return
	}
	switch env.Type {
	case events.UserStatusChanged:
		var s events.UserStatus
		if json.Unmarshal(env.Payload, &s) == nil {
			state := "offline"
			if s.IsOnline {
				state = "online"
			}
			fmt.Fprintf(v.out, "* %s is %s\n", s.UserID, state)
		}
		return
	case events.UserBanned, events.NewThread, events.ThreadUpdated, events.ThreadDeleted,
		events.NoteCreated, events.NoteUpdated, events.NoteDeleted:
		fmt.Fprintf(v.out, "* %s %s\n", env.Type, string(env.Payload))
		return
	}

	changed, err := v.tl.Apply(env.Type, env.Payload)
	if err != nil {
		fmt.Fprintf(v.out, "! %s: %v\n", env.Type, err)
		return
	}
	if changed {
		v.render()
	}
}

func (v *view) render() {
	msgs, scroll := v.tl.Render()
	if scroll && v.printed <= len(msgs) {
		for _, m := range msgs[v.printed:] {
			fmt.Fprintln(v.out, line(m))
		}
	} else {
		fmt.Fprintf(v.out, "--- %s ---\n", v.tl.Room())
		for _, m := range msgs {
			fmt.Fprintln(v.out, line(m))
		}
	}
	v.printed = len(msgs)
}

func line(m models.WireMessage) string {
	who := m.Sender.Username
	if who == "" {
		who = m.Sender.ID
	}
	ts := m.CreatedAt.Local().Format("15:04")
	if m.IsDeleted {
		return fmt.Sprintf("[%s] %s: (message deleted)", ts, who)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: ", ts, who)
	if m.ReplyTo != nil && m.ReplyTo.Sender != nil {
		fmt.Fprintf(&b, "(re %s) ", m.ReplyTo.Sender.Username)
	}
	b.WriteString(m.Content)
	if n := len(m.Files); n > 0 {
		fmt.Fprintf(&b, " [%d file(s)]", n)
	}
	if m.Location != nil {
		fmt.Fprintf(&b, " @%.5f,%.5f", m.Location.Lat, m.Location.Lng)
	}
	if n := len(m.Likes); n > 0 {
		fmt.Fprintf(&b, " +%d", n)
	}
	return b.String()
}
