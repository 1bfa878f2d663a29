package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/middleware"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
)

type threadBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type replyBody struct {
	Body        string `json:"body"`
	ParentReply string `json:"parentReply"`
}

func (h *Handlers) createThread(c *fiber.Ctx) error {
	var in threadBody
	if err := c.BodyParser(&in); err != nil {
		return apperr.Validation("invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	t, err := h.d.Board.CreateThread(ctx, c.Params("groupId"), middleware.UserID(c), in.Title, in.Body)
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusCreated, t)
}

func (h *Handlers) getThread(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	t, err := h.d.Board.GetThread(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, t)
}

func (h *Handlers) deleteThread(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := h.d.Board.DeleteThread(ctx, id, middleware.UserID(c)); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (h *Handlers) toggleThreadLike(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	t, err := h.d.Board.ToggleThreadLike(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, t)
}

func (h *Handlers) replyToThread(c *fiber.Ctx) error {
	var in replyBody
	if err := c.BodyParser(&in); err != nil {
		return apperr.Validation("invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.d.Board.ReplyToThread(ctx, c.Params("id"), middleware.UserID(c), in.Body, in.ParentReply)
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusCreated, r)
}

func (h *Handlers) toggleReplyLike(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.d.Board.ToggleReplyLike(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, r)
}

func (h *Handlers) deleteReply(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := h.d.Board.DeleteReply(ctx, id, middleware.UserID(c)); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

// createNote accepts the same multipart shape as a chat message, with a
// title next to content.
func (h *Handlers) createNote(c *fiber.Ctx) error {
	form, err := parseMessageForm(c)
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
	n, err := h.d.Board.CreateNote(ctx, c.Params("groupId"), user, form.Title, form.Content, files)
	if err != nil {
		if len(files) > 0 {
			h.d.Attachments.Discard(ctx, files)
		}
		return err
	}
	return utils.JSON(c, fiber.StatusCreated, n)
}

func (h *Handlers) listNotes(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	notes, err := h.d.Board.ListNotes(ctx, c.Params("groupId"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, notes)
}

func (h *Handlers) getNote(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.d.Board.GetNote(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, n)
}

func (h *Handlers) deleteNote(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := h.d.Board.DeleteNote(ctx, id, middleware.UserID(c)); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (h *Handlers) toggleNoteLike(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.d.Board.ToggleNoteLike(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusOK, n)
}

func (h *Handlers) replyToNote(c *fiber.Ctx) error {
	var in replyBody
	if err := c.BodyParser(&in); err != nil {
		return apperr.Validation("invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.d.Board.ReplyToNote(ctx, c.Params("id"), middleware.UserID(c), in.Body, in.ParentReply)
	if err != nil {
		return err
	}
	return utils.JSON(c, fiber.StatusCreated, r)
}
