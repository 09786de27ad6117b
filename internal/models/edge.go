package models

import "time"

// EdgeKind names a toggleable relation between a user and another entity.
type EdgeKind string

const (
	// EdgeLike relates a user to a post.
	EdgeLike EdgeKind = "like"
	// EdgeFollow relates a follower to a followee.
	EdgeFollow EdgeKind = "follow"
)

// Like records that a user likes a post.
type Like struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	PostID    string    `gorm:"primaryKey;size:36;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Follow records that FollowerID follows FolloweeID.
type Follow struct {
	FollowerID string    `gorm:"primaryKey;size:36" json:"followerId"`
	FolloweeID string    `gorm:"primaryKey;size:36;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToggleResult reports the direction a toggle took.
type ToggleResult struct {
	Added bool
}

// FollowListKind selects which related users a follow-list read returns.
type FollowListKind string

const (
	FollowListFollowers FollowListKind = "followers"
	FollowListFollowing FollowListKind = "following"
	FollowListSuggested FollowListKind = "suggested"
)

// ParseFollowListKind validates a follow-list kind from a route parameter.
func ParseFollowListKind(s string) (FollowListKind, error) {
	switch k := FollowListKind(s); k {
	case FollowListFollowers, FollowListFollowing, FollowListSuggested:
		return k, nil
	default:
		return "", NewValidationError("Unknown follow list " + s)
	}
}

// LikeToggleResponse is the wire form of a like toggle.
type LikeToggleResponse struct {
	AddedLike bool `json:"addedLike"`
}

// FollowToggleResponse is the wire form of a follow toggle.
type FollowToggleResponse struct {
	AddedFollow bool `json:"addedFollow"`
}
