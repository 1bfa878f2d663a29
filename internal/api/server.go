package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/board"
	"github.com/fathima-sithara/studycircle-realtime/internal/broker"
	"github.com/fathima-sithara/studycircle-realtime/internal/conversation"
	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
	"github.com/fathima-sithara/studycircle-realtime/internal/middleware"
	"github.com/fathima-sithara/studycircle-realtime/internal/presence"
	"github.com/fathima-sithara/studycircle-realtime/internal/storage"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
	"github.com/fathima-sithara/studycircle-realtime/internal/ws"
)

type PresenceReader interface {
	IsOnline(userID string) bool
	LastSeen(userID string) time.Time
	Connections(userID string) int
}

// PresenceRecords is the shared presence view written by every instance.
type PresenceRecords interface {
	Get(ctx context.Context, userID string) (*presence.Record, error)
}

// Deps is everything the HTTP surface talks to. Records, RateLimit and
// UploadsDir are optional.
type Deps struct {
	Broker      *broker.Broker
	Resolver    *conversation.Resolver
	Board       *board.Service
	Presence    PresenceReader
	Records     PresenceRecords
	Attachments *storage.Attachments
	Verifier    middleware.TokenVerifier
	Sockets     *ws.Handler
	RateLimit   fiber.Handler
	UploadsDir  string
}

type Options struct {
	RequestTimeout time.Duration
	BodyLimit      int
	AccessLog      bool
}

type Handlers struct {
	d       Deps
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewServer(d Deps, opts Options, log *zap.SugaredLogger) *fiber.App {
	cfg := fiber.Config{
		AppName:      "studycircle-realtime",
		ErrorHandler: utils.ErrorHandler(log),
	}
	if opts.BodyLimit > 0 {
		cfg.BodyLimit = opts.BodyLimit
	}
	app := fiber.New(cfg)
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &Handlers{d: d, timeout: timeout, log: log}

	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"service": "studycircle-realtime"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if d.UploadsDir != "" {
		app.Static(storage.PublicPrefix, d.UploadsDir)
	}
	if d.Sockets != nil {
		app.Get("/ws", ws.Upgrade(d.Verifier), d.Sockets.Serve())
	}

	api := app.Group("/api", middleware.JWTAuth(d.Verifier))
	if d.RateLimit != nil {
		api.Use(d.RateLimit)
	}

	api.Get("/chat/:groupId", h.groupHistory)
	api.Post("/chat/:groupId", h.sendGroupMessage)
	api.Put("/chat/messages/:id/like", h.toggleLike)
	api.Delete("/chat/messages/:id", h.deleteMessage)

	pc := api.Group("/private-chat")
	pc.Post("/start", h.startConversation)
	pc.Get("/", h.listConversations)
	pc.Post("/messages", h.sendPrivateMessage)
	pc.Put("/messages/:id/like", h.toggleLike)
	pc.Delete("/messages/:id", h.deleteMessage)
	pc.Get("/:conversationId/messages", h.conversationMessages)
	pc.Delete("/:conversationId", h.deleteConversation)

	api.Post("/groups/:groupId/threads", h.createThread)
	api.Get("/threads/:id", h.getThread)
	api.Delete("/threads/:id", h.deleteThread)
	api.Put("/threads/:id/like", h.toggleThreadLike)
	api.Post("/threads/:id/replies", h.replyToThread)
	api.Put("/replies/:id/like", h.toggleReplyLike)
	api.Delete("/replies/:id", h.deleteReply)
	api.Post("/groups/:groupId/notes", h.createNote)
	api.Get("/groups/:groupId/notes", h.listNotes)
	api.Get("/notes/:id", h.getNote)
	api.Delete("/notes/:id", h.deleteNote)
	api.Put("/notes/:id/like", h.toggleNoteLike)
	api.Post("/notes/:id/replies", h.replyToNote)

	api.Get("/presence/:userId", h.presence)
	api.Post("/admin/users/:userId/banned", middleware.RequireAdmin(), h.announceBan)

	return app
}

// ctx bounds the request's persistence work.
func (h *Handlers) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}
