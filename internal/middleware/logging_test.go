package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T, env string) *bytes.Buffer {
	t.Helper()
	prev := Logger
	var buf bytes.Buffer
	Logger = NewLogger(&buf, env, "debug")
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestNewLogger_AddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "production", "info").With("component", "feed")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "u1")
	l.InfoContext(ctx, "page served")
	l.DebugContext(ctx, "hidden")

	out := buf.String()
	assert.Contains(t, out, `"component":"feed"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestStructuredLogger(t *testing.T) {
	buf := captureLogger(t, "test")

	app := fiber.New()
	app.Use(requestid.New(), ContextMiddleware(), StructuredLogger())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	for _, target := range []string{"/health/live", "/api/posts/p1"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	out := buf.String()
	assert.NotContains(t, out, "/health/live")
	assert.Contains(t, out, "level=WARN msg=request status=404 method=GET path=/api/posts/p1")
	assert.Contains(t, out, "request_id=")
}
