package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/auth"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
)

type staticVerifier map[string]auth.Identity

func (s staticVerifier) Verify(token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler(zap.NewNop().Sugar())})
}

func get(t *testing.T, app *fiber.App, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestJWTAuth(t *testing.T) {
	app := newApp()
	v := staticVerifier{"good": {UserID: "u1"}, "root": {UserID: "a1", Role: "admin"}}
	app.Use(JWTAuth(v))
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })
	app.Post("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return c.SendString("ok") })

	code, body := get(t, app, "/me", "good")
	assert.Equal(t, 200, code)
	assert.Equal(t, "u1", body)

	code, body = get(t, app, "/me", "")
	assert.Equal(t, 401, code)
	assert.JSONEq(t, `{"status":"error","message":"unauthorized: authorization header empty"}`, body)

	code, _ = get(t, app, "/me", "forged")
	assert.Equal(t, 401, code)

	req := httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	req = httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer root")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(60, 2, zap.NewNop().Sugar())
	defer l.Close()
	app := newApp()
	app.Use(l.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	code, _ := get(t, app, "/", "")
	assert.Equal(t, 204, code)
	code, _ = get(t, app, "/", "")
	assert.Equal(t, 204, code)
	code, body := get(t, app, "/", "")
	assert.Equal(t, 429, code)
	assert.Contains(t, body, "rate limit exceeded")
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	app := newApp()
	app.Use(NewRateLimiter(client, "test", 1, time.Minute, zap.NewNop().Sugar()).MiddlewareByKey(KeyByUser))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	for i := 0; i < 3; i++ {
		code, _ := get(t, app, "/", "")
		assert.Equal(t, 204, code)
	}
}
