package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/auth"
)

const (
	localUserID = "user_id"
	localRole   = "role"
)

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request locals.
func JWTAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrUnauthorized, err)
		}
		id, err := v.Verify(token)
		if err != nil {
			return fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
		}
		c.Locals(localUserID, id.UserID)
		c.Locals(localRole, id.Role)
		return c.Next()
	}
}

// RequireAdmin must run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if Role(c) != "admin" {
			return apperr.Forbidden("admin only")
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	s, _ := c.Locals(localUserID).(string)
	return s
}

func Role(c *fiber.Ctx) string {
	s, _ := c.Locals(localRole).(string)
	return s
}
