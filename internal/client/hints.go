package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"

	"github.com/gorilla/websocket"
)

// ListenHints connects to the hint websocket at wsURL and calls onHint for
// every stale hint until ctx is done or the connection drops.
func ListenHints(ctx context.Context, wsURL, token string, onHint func(models.StaleHint)) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return err
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return err
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ctx.Err()
			}
			return err
		}
		var hint models.StaleHint
		if json.Unmarshal(data, &hint) != nil || hint.Type != "stale" {
			continue
		}
		onHint(hint)
	}
}

// WatchHints listens for hints and applies each to the cache. Hints that
// fail to apply go to the client's hint error handler.
func (c *Client) WatchHints(ctx context.Context, wsURL string) error {
	return ListenHints(ctx, wsURL, c.session.Token(), func(h models.StaleHint) {
		if err := c.ApplyHint(ctx, h); err != nil {
			c.hintErrs(h, err)
		}
	})
}

func logHintError(h models.StaleHint, err error) {
	middleware.Logger.Warn("stale hint refresh failed",
		"entity", h.Entity, "ids", h.IDs, "error", err)
}

// ApplyHint refreshes the cached views a hint names. Cached posts are
// re-read (or dropped when gone); cached profiles are forgotten.
func (c *Client) ApplyHint(ctx context.Context, hint models.StaleHint) error {
	var errs []error
	switch hint.Entity {
	case models.HintProfile:
		for _, id := range hint.IDs {
			c.cache.DropProfile(id)
		}
	case models.HintPost:
		for _, id := range hint.IDs {
			if _, ok := c.cache.Post(id); !ok {
				continue
			}
			view, err := c.GetPost(ctx, id)
			switch {
			case IsNotFound(err):
				c.cache.RemovePost(id)
			case err != nil:
				errs = append(errs, err)
			default:
				c.cache.ReplacePost(view)
			}
		}
	}
	return errors.Join(errs...)
}
