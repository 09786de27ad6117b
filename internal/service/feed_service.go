package service

import (
	"context"
	"time"

	"breaksphere/internal/cache"
	"breaksphere/internal/config"
	"breaksphere/internal/cursor"
	"breaksphere/internal/models"
	"breaksphere/internal/observability"
	"breaksphere/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultFeedLimit = 25
	MaxFeedLimit     = 100
)

// FeedFilter narrows the feed. The zero value is the global feed.
type FeedFilter struct {
	AuthorID      string
	OnlyFollowing bool
}

func (f FeedFilter) label() string {
	switch {
	case f.AuthorID != "" && f.OnlyFollowing:
		return "author_following"
	case f.AuthorID != "":
		return "author"
	case f.OnlyFollowing:
		return "following"
	default:
		return "global"
	}
}

// FeedPage is one window of the feed. NextCursor is nil at end of stream.
type FeedPage struct {
	Posts      []*models.Post
	NextCursor *cursor.Cursor
}

// FeedService reads pages of posts in (createdAt desc, id desc) order.
type FeedService struct {
	repo         repository.FeedRepository
	defaultLimit int
	maxLimit     int
}

// NewFeedService builds a FeedService; cfg may be nil.
func NewFeedService(repo repository.FeedRepository, cfg *config.Config) *FeedService {
	s := &FeedService{repo: repo, defaultLimit: DefaultFeedLimit, maxLimit: MaxFeedLimit}
	if cfg != nil {
		if cfg.FeedMaxLimit > 0 {
			s.maxLimit = cfg.FeedMaxLimit
		}
		if cfg.FeedDefaultLimit > 0 {
			s.defaultLimit = cfg.FeedDefaultLimit
		}
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

func (s *FeedService) clamp(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// FetchPage returns up to limit posts starting at c (inclusive). One extra row
// is read to decide whether another page exists; that row becomes NextCursor.
func (s *FeedService) FetchPage(ctx context.Context, requesterID string, filter FeedFilter, c *cursor.Cursor, limit int) (*FeedPage, error) {
	limit = s.clamp(limit)
	span, ctx := observability.StartSpan(ctx, "FeedService.FetchPage",
		attribute.String("feed.filter", filter.label()),
		attribute.Int("feed.limit", limit),
		attribute.Bool("feed.has_cursor", c != nil),
	)
	defer span.End()
	start := time.Now()

	if filter.OnlyFollowing && requesterID == "" {
		observability.ObserveFeedPage(filter.label(), start, 0)
		return &FeedPage{Posts: []*models.Post{}}, nil
	}

	q := repository.PostQuery{
		AuthorID:    filter.AuthorID,
		RequesterID: requesterID,
		Cursor:      c,
		Take:        limit + 1,
	}
	if filter.OnlyFollowing {
		q.FollowedBy = requesterID
	}

	posts, err := s.repo.List(ctx, q)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	page := &FeedPage{Posts: posts}
	if len(posts) > limit {
		page.NextCursor = cursor.FromPost(posts[limit])
		page.Posts = posts[:limit]
	}
	span.AddAttributes(attribute.Int("feed.returned", len(page.Posts)))
	observability.ObserveFeedPage(filter.label(), start, len(page.Posts))
	return page, nil
}

// GetPost reads a single post. Anonymous reads go through the Redis cache.
func (s *FeedService) GetPost(ctx context.Context, id, requesterID string) (*models.PostView, error) {
	load := func(view *models.PostView) error {
		post, err := s.repo.GetByID(ctx, id, requesterID)
		if err != nil {
			return err
		}
		*view = post.View()
		return nil
	}

	var view models.PostView
	var err error
	if requesterID == "" {
		err = cache.Aside(ctx, cache.PostKey(id), &view, cache.PostTTL, func() error { return load(&view) })
	} else {
		err = load(&view)
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}
