package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"breaksphere/internal/config"
	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webOrigin = "http://localhost:5173"

// middlewareApp runs only the global middleware chain in front of a stub feed route.
func middlewareApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	srv := &Server{config: cfg}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/api/feed", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"posts": []string{}})
	})
	app.Post("/api/posts/:id/like/toggle", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"addedLike": true})
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, target string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSetupMiddleware_CORSOrigins(t *testing.T) {
	app := middlewareApp(t, &config.Config{AllowedOrigins: webOrigin})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed origin echoed", webOrigin, webOrigin},
		{"foreign origin gets nothing", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, app, http.MethodGet, "/api/feed", map[string]string{"Origin": tt.origin})
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSetupMiddleware_RateLimitKeepsCORSAndErrorShape(t *testing.T) {
	app := middlewareApp(t, &config.Config{AllowedOrigins: webOrigin, GlobalRateLimit: 3})
	origin := map[string]string{"Origin": webOrigin}

	for i := 0; i < 3; i++ {
		assert.Equal(t, fiber.StatusOK, send(t, app, http.MethodGet, "/api/feed", origin).StatusCode)
	}

	resp := send(t, app, http.MethodGet, "/api/feed", origin)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, webOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Code)
}

func TestSetupMiddleware_PreflightBypassesLimiter(t *testing.T) {
	app := middlewareApp(t, &config.Config{AllowedOrigins: webOrigin, GlobalRateLimit: 2})
	origin := map[string]string{"Origin": webOrigin}

	for i := 0; i < 2; i++ {
		send(t, app, http.MethodPost, "/api/posts/p1/like/toggle", origin)
	}
	assert.Equal(t, fiber.StatusTooManyRequests,
		send(t, app, http.MethodPost, "/api/posts/p1/like/toggle", origin).StatusCode)

	resp := send(t, app, http.MethodOptions, "/api/posts/p1/like/toggle", map[string]string{
		"Origin":                         webOrigin,
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "authorization,content-type",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, webOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestSetupMiddleware_SetsTraceAndRequestHeaders(t *testing.T) {
	app := middlewareApp(t, &config.Config{})

	resp := send(t, app, http.MethodGet, "/api/feed", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
}
