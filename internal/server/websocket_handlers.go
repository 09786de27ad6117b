package server

import (
	"breaksphere/internal/featureflags"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgradeOnly rejects plain HTTP requests to websocket routes.
func (s *Server) upgradeOnly(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// hintsEnabled hides the hint socket from callers outside the realtime_hints rollout.
func (s *Server) hintsEnabled(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled(featureflags.RealtimeHints, middleware.UserID(c)) {
		return respondError(c, models.NewNotFoundError("Route", c.Path()))
	}
	return c.Next()
}

// HintsWebsocketHandler streams stale hints to connected clients. The session
// token is optional and may arrive as the token query parameter.
func (s *Server) HintsWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals(middleware.UserIDLocal).(string)

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("hint websocket rejected", "user_id", uid, "error", err)
			_ = conn.WriteJSON(models.ErrorResponse{Error: err.Error(), Code: "WS_LIMIT"})
			_ = conn.Close()
			return
		}

		client.Serve()
	})
}
