package server

import (
	"strconv"
	"strings"

	"breaksphere/internal/cursor"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status matching its AppError code.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return models.RespondWithError(c, status, err)
}

// parseLimit reads the limit query parameter. Missing means the service
// default; clamping to the maximum happens in the feed service.
func parseLimit(c *fiber.Ctx) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, models.NewValidationError("Invalid limit")
	}
	return limit, nil
}

// parseCursor accepts either the opaque cursor token or the structured
// cursorId + cursorCreatedAt pair. No cursor means the first page.
func parseCursor(c *fiber.Ctx) (*cursor.Cursor, error) {
	if token := c.Query("cursor"); token != "" {
		return cursor.Decode(token)
	}
	id, createdAt := c.Query("cursorId"), c.Query("cursorCreatedAt")
	if id == "" && createdAt == "" {
		return nil, nil
	}
	return cursor.FromParts(id, createdAt)
}

// parseBool reads an optional boolean query parameter.
func parseBool(c *fiber.Ctx, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.NewValidationError("Invalid " + key)
	}
	return v, nil
}

// pathID returns a trimmed route parameter, rejecting blanks.
func pathID(c *fiber.Ctx, param string) (string, error) {
	id := strings.TrimSpace(c.Params(param))
	if id == "" {
		return "", models.NewValidationError("Invalid " + param)
	}
	return id, nil
}
