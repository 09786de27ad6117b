package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"breaksphere/internal/config"
	"breaksphere/internal/models"
	"breaksphere/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHintsWebsocket_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusUpgradeRequired, env.do(t, http.MethodGet, "/api/ws", "", nil, nil))
}

func TestHintsWebsocket_HiddenWhenRolledBack(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.FeatureFlags = "realtime_hints=off" })
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/ws", "", nil, nil))
}

func TestHintsWebsocket_ReceivesStaleHintAfterToggle(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "ana")
	fan := testutil.CreateUser(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, author.ID, "watch me", t0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	u := url.URL{Scheme: "ws", Host: ln.Addr().String(), Path: "/api/ws"}
	q := u.Query()
	q.Set("token", tokenFor(t, fan.ID))
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return env.srv.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	var res models.LikeToggleResponse
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like/toggle", tokenFor(t, fan.ID), nil, &res))
	require.True(t, res.AddedLike)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var hint models.StaleHint
	require.NoError(t, json.Unmarshal(data, &hint))
	assert.Equal(t, "stale", hint.Type)
	assert.Equal(t, models.HintPost, hint.Entity)
	assert.Equal(t, []string{post.ID}, hint.IDs)
}

func TestHintsWebsocket_AllowsAnonymousReaders(t *testing.T) {
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/ws", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.Eventually(t, func() bool { return env.srv.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return env.srv.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
