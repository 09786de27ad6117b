package seed

import (
	"fmt"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	// PostsPerUser is the upper bound of posts per user; each user gets 0..PostsPerUser.
	PostsPerUser int
	// FollowsPerUser is the upper bound of followees per user.
	FollowsPerUser int
	// LikeRatio is the chance, 0..1, that a given follower likes a followee's post.
	LikeRatio   float64
	MaxDays     int
	BatchSize   int
	RandSeed    int64
	ShouldClean bool
	DryRun      bool
}

// DefaultOptions is a small, well-connected demo graph.
func DefaultOptions() Options {
	return Options{
		NumUsers:       25,
		PostsPerUser:   12,
		FollowsPerUser: 8,
		LikeRatio:      0.35,
		MaxDays:        60,
	}
}

// Result summarises what Seed created.
type Result struct {
	Users   []*models.User
	Posts   int
	Likes   int
	Follows int
}

// Seeder populates a database through a Factory.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) (*Result, error) {
	return NewSeeder(db, opts).Run()
}

// Run creates users, then posts, then follows, then likes from followers
// on the posts of the users they follow.
func (s *Seeder) Run() (*Result, error) {
	log := middleware.Logger
	log.Info("starting database seeding", "users", s.opts.NumUsers, "dry_run", s.opts.DryRun)

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := Clean(s.db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	res := &Result{}
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		res.Users = append(res.Users, user)
	}
	log.Info("users created", "count", len(res.Users))

	fk := s.factory.Faker()
	postsByAuthor := make(map[string][]*models.Post, len(res.Users))
	var posts []*models.Post
	for _, u := range res.Users {
		n := fk.Number(0, max(s.opts.PostsPerUser, 0))
		for j := 0; j < n; j++ {
			p := s.factory.BuildPost(u)
			posts = append(posts, p)
			postsByAuthor[u.ID] = append(postsByAuthor[u.ID], p)
		}
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	res.Posts = len(posts)
	log.Info("posts created", "count", res.Posts)

	follows := s.followGraph(res.Users)
	if err := s.factory.CreateFollows(follows); err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}
	res.Follows = len(follows)

	var likes []models.Like
	for _, edge := range follows {
		for _, p := range postsByAuthor[edge.FolloweeID] {
			if fk.Float64() < s.opts.LikeRatio {
				likes = append(likes, models.Like{UserID: edge.FollowerID, PostID: p.ID, CreatedAt: p.CreatedAt})
			}
		}
	}
	if err := s.factory.CreateLikes(likes); err != nil {
		return nil, fmt.Errorf("failed to create likes: %w", err)
	}
	res.Likes = len(likes)

	log.Info("database seeding completed", "follows", res.Follows, "likes", res.Likes)
	return res, nil
}

// followGraph picks up to FollowsPerUser distinct followees per user. Users
// never follow themselves here even though the API allows it.
func (s *Seeder) followGraph(users []*models.User) []models.Follow {
	if len(users) < 2 || s.opts.FollowsPerUser <= 0 {
		return nil
	}
	fk := s.factory.Faker()
	var out []models.Follow
	for i, u := range users {
		n := fk.Number(1, min(s.opts.FollowsPerUser, len(users)-1))
		picked := make(map[int]bool, n)
		for len(picked) < n {
			j := fk.Number(0, len(users)-1)
			if j == i || picked[j] {
				continue
			}
			picked[j] = true
			out = append(out, models.Follow{FollowerID: u.ID, FolloweeID: users[j].ID, CreatedAt: u.CreatedAt})
		}
	}
	return out
}

// Clean removes all feed data, children first.
func Clean(db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	for _, table := range []string{"likes", "follows", "posts", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
