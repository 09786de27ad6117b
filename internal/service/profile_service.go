package service

import (
	"context"
	"time"

	"breaksphere/internal/cache"
	"breaksphere/internal/config"
	"breaksphere/internal/featureflags"
	"breaksphere/internal/models"
	"breaksphere/internal/repository"
	"breaksphere/internal/validation"
)

// ProfileService reads and edits user profiles and their follow lists.
type ProfileService struct {
	users repository.UserRepository
	flags *featureflags.Manager
	ttl   time.Duration
	hints Invalidator
}

func NewProfileService(users repository.UserRepository, flags *featureflags.Manager, cfg *config.Config, hints Invalidator) *ProfileService {
	ttl := cache.ProfileTTL
	if cfg != nil && cfg.ProfileCacheTTLSeconds > 0 {
		ttl = time.Duration(cfg.ProfileCacheTTLSeconds) * time.Second
	}
	return &ProfileService{users: users, flags: flags, ttl: ttl, hints: orNop(hints)}
}

// GetProfile returns the profile of id as seen by requesterID.
// Anonymous renderings are cached when the profile_cache flag is on.
func (s *ProfileService) GetProfile(ctx context.Context, id, requesterID string) (*models.Profile, error) {
	if requesterID != "" || !s.flags.Enabled(featureflags.ProfileCache, "") {
		return s.users.GetProfile(ctx, id, requesterID)
	}

	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &profile, s.ttl, func() error {
		p, err := s.users.GetProfile(ctx, id, "")
		if err != nil {
			return err
		}
		profile = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// EditProfile validates and stores the editable fields of the requester's profile.
func (s *ProfileService) EditProfile(ctx context.Context, requesterID string, in models.ProfileUpdate) (*models.Profile, error) {
	if err := requireUser(requesterID); err != nil {
		return nil, err
	}
	update, err := validation.NormalizeProfile(in)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.users.UpdateProfile(ctx, requesterID, update); err != nil {
		return nil, err
	}
	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintProfile, requesterID))
	return s.users.GetProfile(ctx, requesterID, requesterID)
}

// FollowList returns the followers, followees or follow suggestions of id.
// Unknown users yield an empty list.
func (s *ProfileService) FollowList(ctx context.Context, id string, kind models.FollowListKind) ([]models.Author, error) {
	var (
		users []*models.User
		err   error
	)
	switch kind {
	case models.FollowListFollowers:
		users, err = s.users.ListFollowers(ctx, id)
	case models.FollowListFollowing:
		users, err = s.users.ListFollowing(ctx, id)
	case models.FollowListSuggested:
		users, err = s.users.ListSuggested(ctx, id, repository.SuggestedLimit)
	default:
		return nil, models.NewValidationError("Unknown follow list " + string(kind))
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Author, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}
