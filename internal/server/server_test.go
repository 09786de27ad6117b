package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"breaksphere/internal/config"
	"breaksphere/internal/middleware"
	"breaksphere/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func newTestEnv(t *testing.T, tweaks ...func(*config.Config)) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:       testSecret,
		Env:             "test",
		AvatarUploadDir: t.TempDir(),
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	app := srv.App()
	t.Cleanup(func() {
		srv.shutdownFn()
		srv.hints.Wait()
	})
	return &testEnv{srv: srv, app: app, db: db}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a request and decodes a JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, target, token string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, target)
	}
	return resp.StatusCode
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health/live", "", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]any
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/nope", "", nil, &body))
	assert.NotEmpty(t, body["error"])
}
