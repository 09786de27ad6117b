// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a member who can post, like and follow.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Bio       string    `gorm:"size:150" json:"bio"`
	Location  string    `gorm:"size:50" json:"location"`
	Website   string    `gorm:"size:60" json:"website"`
	Image     string    `json:"image"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Author is the summary of a user embedded in a post.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Summary returns the author view of a user.
func (u User) Summary() Author {
	return Author{ID: u.ID, Name: u.Name, Image: u.Image}
}

// Profile is a user together with counters derived at read time.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Bio            string `json:"bio"`
	Location       string `json:"location"`
	Website        string `json:"website"`
	Image          string `json:"image"`
	PostsCount     int    `json:"postsCount"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	IsFollowing    bool   `json:"isFollowing"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
	Website  string `json:"website"`
}
