package repository

import (
	"context"
	"errors"
	"strings"

	"breaksphere/internal/models"
	"breaksphere/internal/observability"

	"gorm.io/gorm"
)

// SuggestedLimit caps the suggested-users list.
const SuggestedLimit = 10

// UserRepository defines persistence operations for users and their profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	GetProfile(ctx context.Context, id, requesterID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error)
	SetImage(ctx context.Context, id, image string) (previous string, err error)
	ListFollowers(ctx context.Context, id string) ([]*models.User, error)
	ListFollowing(ctx context.Context, id string) ([]*models.User, error)
	ListSuggested(ctx context.Context, id string, limit int) ([]*models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("User already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "id", user.ID)
	return nil
}

func profileSelect(db *gorm.DB, requesterID string) *gorm.DB {
	const counters = "users.*, " +
		"(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id) AS posts_count, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.followee_id = users.id) AS followers_count, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id) AS follows_count"
	if requesterID == "" {
		return db.Select(counters + ", false AS is_following")
	}
	return db.Select(
		counters+", EXISTS(SELECT 1 FROM follows WHERE follows.followee_id = users.id AND follows.follower_id = ?) AS is_following",
		requesterID,
	)
}

func (r *userRepository) GetProfile(ctx context.Context, id, requesterID string) (*models.Profile, error) {
	var profile models.Profile
	err := profileSelect(r.db.WithContext(ctx).Model(&models.User{}), requesterID).
		Where("users.id = ?", id).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", id)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":     update.Name,
		"bio":      update.Bio,
		"location": update.Location,
		"website":  update.Website,
	})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_profile")
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) SetImage(ctx context.Context, id, image string) (string, error) {
	var previous string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "image").Where("id = ?", id).Take(&user).Error; err != nil {
			return err
		}
		previous = user.Image
		return tx.Model(&models.User{}).Where("id = ?", id).Update("image", image).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", models.NewNotFoundError("User", id)
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return previous, nil
}

func (r *userRepository) ListFollowers(ctx context.Context, id string) ([]*models.User, error) {
	users := make([]*models.User, 0)
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.*").
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", id).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListFollowing(ctx context.Context, id string) ([]*models.User, error) {
	users := make([]*models.User, 0)
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.*").
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", id).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ListSuggested returns users that id does not follow directly, excluding id.
func (r *userRepository) ListSuggested(ctx context.Context, id string, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = SuggestedLimit
	}
	followees := r.db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", id)
	users := make([]*models.User, 0, limit)
	err := r.db.WithContext(ctx).
		Where("id <> ?", id).
		Where("id NOT IN (?)", followees).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// isUniqueConstraintError checks message text for drivers that do not expose
// a typed error.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
