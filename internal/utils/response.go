package utils

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

// JSON writes a resource body as is. Clients parse messages and
// conversations directly, so successful bodies are not wrapped.
func JSON(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(payload)
}

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func JSONError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// ErrorHandler is the single place where domain errors become responses.
func ErrorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.Status(err)
		if status >= fiber.StatusInternalServerError {
			log.Errorw("request failed", "path", c.Path(), "method", c.Method(), "err", err)
		}
		return JSONError(c, status, apperr.Public(err))
	}
}
