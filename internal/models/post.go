package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is an immutable piece of authored content.
type Post struct {
	ID      string `gorm:"primaryKey;size:36;index:idx_posts_feed_order,priority:2,sort:desc;index:idx_posts_author_order,priority:3" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	UserID  string `gorm:"size:36;not null;index:idx_posts_author_order,priority:1" json:"userId"`
	User    User   `gorm:"foreignKey:UserID" json:"-"`
	// LikeCount is not persisted; computed at query time
	LikeCount int `gorm:"->" json:"likeCount"`
	// LikedByMe reports whether the requesting user liked this post (computed)
	LikedByMe bool      `gorm:"->" json:"likedByMe"`
	CreatedAt time.Time `gorm:"not null;index:idx_posts_feed_order,priority:1,sort:desc;index:idx_posts_author_order,priority:2" json:"createdAt"`
}

// BeforeCreate assigns a UUID and normalizes the timestamp to UTC.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	} else {
		p.CreatedAt = p.CreatedAt.UTC()
	}
	return nil
}

// PostView is the wire form of a post with its author summary.
type PostView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
	LikeCount int       `json:"likeCount"`
	LikedByMe bool      `json:"likedByMe"`
	Author    Author    `json:"author"`
}

// View converts a loaded post into its wire form.
func (p *Post) View() PostView {
	author := p.User.Summary()
	if author.ID == "" {
		author.ID = p.UserID
	}
	return PostView{
		ID:        p.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UserID:    p.UserID,
		LikeCount: p.LikeCount,
		LikedByMe: p.LikedByMe,
		Author:    author,
	}
}

// PostViews converts a slice of posts, never returning nil.
func PostViews(posts []*Post) []PostView {
	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.View())
	}
	return out
}

// FeedPageResponse is the wire form of one feed page.
type FeedPageResponse struct {
	Posts      []PostView `json:"posts"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
