// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"breaksphere/internal/cursor"
	"breaksphere/internal/models"
	"breaksphere/internal/observability"

	"gorm.io/gorm"
)

// PostQuery selects one keyset window of the feed.
type PostQuery struct {
	// AuthorID restricts the feed to one author.
	AuthorID string
	// FollowedBy restricts the feed to authors followed by this user.
	FollowedBy string
	// RequesterID drives likedByMe; empty means anonymous.
	RequesterID string
	// Cursor is inclusive: the named post is the first row returned.
	Cursor *cursor.Cursor
	Take   int
}

// FeedRepository is the read side used by the feed query engine.
type FeedRepository interface {
	List(ctx context.Context, q PostQuery) ([]*models.Post, error)
	GetByID(ctx context.Context, id, requesterID string) (*models.Post, error)
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	FeedRepository
	Create(ctx context.Context, post *models.Post) error
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// withPostDetails adds the like counter and the requester's like flag to a
// posts query and preloads the author.
func withPostDetails(db *gorm.DB, requesterID string) *gorm.DB {
	const likeCount = "(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count"
	if requesterID == "" {
		return db.Select("posts.*, " + likeCount + ", false AS liked_by_me").Preload("User")
	}
	return db.Select(
		"posts.*, "+likeCount+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked_by_me",
		requesterID,
	).Preload("User")
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, error) {
	db := r.db.WithContext(ctx).Model(&models.Post{})
	if q.AuthorID != "" {
		db = db.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.FollowedBy != "" {
		followees := r.db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", q.FollowedBy)
		db = db.Where("posts.user_id IN (?)", followees)
	}
	if q.Cursor != nil {
		db = db.Where("(posts.created_at < ? OR (posts.created_at = ? AND posts.id <= ?))",
			q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}

	posts := make([]*models.Post, 0, q.Take)
	err := withPostDetails(db, q.RequesterID).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(q.Take).
		Find(&posts).Error
	if err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) GetByID(ctx context.Context, id, requesterID string) (*models.Post, error) {
	var post models.Post
	err := withPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), requesterID).
		Where("posts.id = ?", id).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "id", post.ID, "user_id", post.UserID)
	return nil
}

func (r *postRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Delete removes a post together with its likes.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, "id", id)
	return nil
}
