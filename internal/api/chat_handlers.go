package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/broker"
	"github.com/fathima-sithara/studycircle-realtime/internal/middleware"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
)

func (h *Handlers) groupHistory(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	msgs, err := h.d.Broker.GroupHistory(ctx, c.Params("groupId"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, msgs)
}

func (h *Handlers) sendGroupMessage(c *fiber.Ctx) error {
	return h.send(c, c.Params("groupId"))
}

func (h *Handlers) sendPrivateMessage(c *fiber.Ctx) error {
	return h.send(c, "")
}

// send stores attachments first, then hands the message to the broker.
// Without a group id the conversation comes from the form.
func (h *Handlers) send(c *fiber.Ctx, groupID string) error {
	form, err := parseMessageForm(c)
	if err != nil {
		return err
	}
	conversationID := ""
	if groupID == "" {
		conversationID = form.ConversationID
		if conversationID == "" {
			return apperr.Validation("conversationId required")
		}
	}
	loc, err := form.location()
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	user := middleware.UserID(c)

	var files []models.Attachment
	if len(form.files) > 0 {
		if h.d.Attachments == nil {
			return apperr.Validation("attachments are not enabled")
		}
		if files, err = h.d.Attachments.Save(ctx, user, form.files); err != nil {
			return err
		}
	}

	msg, err := h.d.Broker.Send(ctx, broker.SendInput{
		Sender:         user,
		GroupID:        groupID,
		ConversationID: conversationID,
		Content:        form.Content,
		ReplyTo:        form.ReplyTo,
		Files:          files,
		Location:       loc,
	})
	if err != nil {
		if len(files) > 0 {
			h.d.Attachments.Discard(ctx, files)
		}
		return err
	}
	return utils.JSON(c, fiber.StatusCreated, msg)
}

func (h *Handlers) toggleLike(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	msg, err := h.d.Broker.ToggleLike(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, msg)
}

func (h *Handlers) deleteMessage(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	msg, err := h.d.Broker.Delete(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, msg)
}

func (h *Handlers) startConversation(c *fiber.Ctx) error {
	var body struct {
		RecipientID string `json:"recipientId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	conv, err := h.d.Resolver.Resolve(ctx, middleware.UserID(c), body.RecipientID)
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, conv)
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	convs, err := h.d.Resolver.List(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, convs)
}

func (h *Handlers) conversationMessages(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	msgs, err := h.d.Resolver.Messages(ctx, c.Params("conversationId"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, msgs)
}

func (h *Handlers) deleteConversation(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	id := c.Params("conversationId")
	if err := h.d.Resolver.Delete(ctx, id, middleware.UserID(c)); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}
