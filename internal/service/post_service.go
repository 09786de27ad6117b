package service

import (
	"context"

	"breaksphere/internal/models"
	"breaksphere/internal/repository"
	"breaksphere/internal/validation"
)

type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
	hints Invalidator
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, hints Invalidator) *PostService {
	return &PostService{posts: posts, users: users, hints: orNop(hints)}
}

// CreatePost stores a new post for userID and returns it with its author loaded.
func (s *PostService) CreatePost(ctx context.Context, userID, content string) (*models.Post, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	content, err := validation.NormalizePostContent(content)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{UserID: userID, Content: content}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	post.User = *author

	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintProfile, userID))
	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintFeed, post.ID))
	return post, nil
}

// DeletePost removes a post. Only its author may delete it.
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, postID, "")
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return models.NewForbiddenError("Only the author can delete this post")
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintPost, postID))
	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintProfile, userID))
	return nil
}
