package cache

import (
	"context"
	"log/slog"
	"time"

	"breaksphere/internal/middleware"
)

const (
	ProfileKeyPrefix = "profile:"
	PostKeyPrefix    = "post:"
)

const (
	// ProfileTTL is the default lifetime of a cached anonymous profile rendering.
	ProfileTTL = time.Minute
	// PostTTL bounds how long an anonymous post rendering may be served from cache.
	PostTTL = 5 * time.Minute
)

// ProfileKey is the cache key of a user's anonymous profile rendering.
func ProfileKey(userID string) string {
	return ProfileKeyPrefix + userID
}

// PostKey is the cache key of a post rendering.
func PostKey(postID string) string {
	return PostKeyPrefix + postID
}

// Invalidate deletes keys. Failures are logged and otherwise ignored.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidateProfiles drops cached profile renderings for the given users.
func InvalidateProfiles(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			keys = append(keys, ProfileKey(id))
		}
	}
	Invalidate(ctx, keys...)
}

// InvalidatePosts drops cached post renderings.
func InvalidatePosts(ctx context.Context, postIDs ...string) {
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		if id != "" {
			keys = append(keys, PostKey(id))
		}
	}
	Invalidate(ctx, keys...)
}
