package service

import (
	"context"
	"errors"

	"breaksphere/internal/models"
	"breaksphere/internal/observability"
	"breaksphere/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// toggleAttempts bounds retries after a concurrent toggle wins the insert race.
const toggleAttempts = 2

// EdgeService flips likes and follows.
type EdgeService struct {
	edges repository.EdgeRepository
	posts repository.PostRepository
	users repository.UserRepository
	hints Invalidator
}

func NewEdgeService(edges repository.EdgeRepository, posts repository.PostRepository, users repository.UserRepository, hints Invalidator) *EdgeService {
	return &EdgeService{edges: edges, posts: posts, users: users, hints: orNop(hints)}
}

// ToggleLike likes postID for requesterID, or removes the like if present.
func (s *EdgeService) ToggleLike(ctx context.Context, requesterID, postID string) (models.ToggleResult, error) {
	if err := requireUser(requesterID); err != nil {
		return models.ToggleResult{}, err
	}
	ok, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	if !ok {
		return models.ToggleResult{}, models.NewNotFoundError("Post", postID)
	}

	added, err := s.toggle(ctx, models.EdgeLike, requesterID, postID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintPost, postID))
	return models.ToggleResult{Added: added}, nil
}

// ToggleFollow makes requesterID follow userID, or unfollow if already following.
// Following oneself is allowed.
func (s *EdgeService) ToggleFollow(ctx context.Context, requesterID, userID string) (models.ToggleResult, error) {
	if err := requireUser(requesterID); err != nil {
		return models.ToggleResult{}, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	if !ok {
		return models.ToggleResult{}, models.NewNotFoundError("User", userID)
	}

	added, err := s.toggle(ctx, models.EdgeFollow, requesterID, userID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintProfile, requesterID, userID))
	return models.ToggleResult{Added: added}, nil
}

func (s *EdgeService) toggle(ctx context.Context, kind models.EdgeKind, subjectID, objectID string) (bool, error) {
	span, ctx := observability.StartSpan(ctx, "EdgeService.toggle",
		attribute.String("edge.kind", string(kind)),
		attribute.String("edge.subject", subjectID),
		attribute.String("edge.object", objectID),
	)
	defer span.End()

	var err error
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		var added bool
		added, err = s.edges.Toggle(ctx, kind, subjectID, objectID)
		if err == nil {
			span.AddAttributes(attribute.Bool("edge.added", added), attribute.Int("edge.attempts", attempt))
			observability.EdgeToggles.WithLabelValues(string(kind), observability.Direction(added)).Inc()
			return added, nil
		}
		if !errors.Is(err, models.ErrConcurrentMutation) {
			break
		}
		observability.EdgeConflicts.WithLabelValues(string(kind)).Inc()
	}
	span.SetError(err)
	return false, err
}
