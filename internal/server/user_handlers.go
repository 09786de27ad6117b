package server

import (
	"io"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	profile, err := s.profileService.GetProfile(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.EditProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetFollowList handles GET /api/users/:id/:kind for followers, following
// and suggested.
func (s *Server) GetFollowList(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	kind, err := models.ParseFollowListKind(c.Params("kind"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Route", c.Path()))
	}

	users, err := s.profileService.FollowList(c.UserContext(), id, kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// ToggleFollow handles POST /api/users/:id/follow/toggle
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	res, err := s.edgeService.ToggleFollow(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(models.FollowToggleResponse{AddedFollow: res.Added})
}

// UploadAvatar handles POST /api/users/me/avatar
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	url, err := s.avatarService.Upload(c.UserContext(), service.UploadAvatarInput{
		UserID:      middleware.UserID(c),
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"image": url})
}
