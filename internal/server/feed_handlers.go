package server

import (
	"breaksphere/internal/cursor"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed?onlyFollowing=&authorId=&cursor=&limit=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	onlyFollowing, err := parseBool(c, "onlyFollowing")
	if err != nil {
		return respondError(c, err)
	}
	return s.writeFeedPage(c, service.FeedFilter{
		AuthorID:      c.Query("authorId"),
		OnlyFollowing: onlyFollowing,
	})
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	return s.writeFeedPage(c, service.FeedFilter{AuthorID: id})
}

func (s *Server) writeFeedPage(c *fiber.Ctx, filter service.FeedFilter) error {
	limit, err := parseLimit(c)
	if err != nil {
		return respondError(c, err)
	}
	cur, err := parseCursor(c)
	if err != nil {
		return respondError(c, err)
	}

	page, err := s.feedService.FetchPage(c.UserContext(), middleware.UserID(c), filter, cur, limit)
	if err != nil {
		return respondError(c, err)
	}

	resp := models.FeedPageResponse{Posts: models.PostViews(page.Posts)}
	if page.NextCursor != nil {
		resp.NextCursor = cursor.MustEncode(*page.NextCursor)
	}
	return c.JSON(resp)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	view, err := s.feedService.GetPost(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}
