package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
)

type presenceView struct {
	UserID      string     `json:"userId"`
	IsOnline    bool       `json:"isOnline"`
	Connections int        `json:"connections"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
}

// presence answers from this instance first and falls back to the
// shared record for users connected elsewhere.
func (h *Handlers) presence(c *fiber.Ctx) error {
	id := c.Params("userId")
	v := presenceView{
		UserID:      id,
		IsOnline:    h.d.Presence.IsOnline(id),
		Connections: h.d.Presence.Connections(id),
	}
	if ls := h.d.Presence.LastSeen(id); !ls.IsZero() {
		v.LastSeen = &ls
	}

	if !v.IsOnline && h.d.Records != nil {
		ctx, cancel := h.ctx(c)
		defer cancel()
		rec, err := h.d.Records.Get(ctx, id)
		if err != nil {
			h.log.Debugw("presence record", "user_id", id, "err", err)
		} else if rec != nil {
			v.IsOnline = rec.Status == "online"
			if rec.LastSeen > 0 && v.LastSeen == nil {
				ls := time.Unix(rec.LastSeen, 0).UTC()
				v.LastSeen = &ls
			}
		}
	}
	return utils.JSON(c, fiber.StatusOK, v)
}

func (h *Handlers) announceBan(c *fiber.Ctx) error {
	id := c.Params("userId")
	if err := h.d.Broker.AnnounceBan(id); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"userId": id})
}
