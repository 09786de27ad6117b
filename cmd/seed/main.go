// Command seed populates the database with fake users, posts, likes and follows.
package main

import (
	"flag"
	"log"
	"time"

	"breaksphere/internal/bootstrap"
	"breaksphere/internal/config"
	"breaksphere/internal/middleware"
	"breaksphere/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Maximum posts per user")
	followsPerUser := flag.Int("follows", defaults.FollowsPerUser, "Maximum followees per user")
	likeRatio := flag.Float64("like-ratio", defaults.LikeRatio, "Chance a follower likes a followee's post")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread timestamps over this many past days")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	tokens := flag.Int("tokens", 3, "Print bearer tokens for the first N seeded users")
	flag.Parse()

	opts := defaults
	opts.NumUsers = *numUsers
	opts.PostsPerUser = *postsPerUser
	opts.FollowsPerUser = *followsPerUser
	opts.LikeRatio = *likeRatio
	opts.MaxDays = *maxDays
	opts.RandSeed = *randSeed
	opts.ShouldClean = *shouldClean
	opts.DryRun = *dryRun

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, up to %d posts and %d follows each, clean=%v dry-run=%v\n",
		opts.NumUsers, opts.PostsPerUser, opts.FollowsPerUser, opts.ShouldClean, opts.DryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(db, opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Seeded %d users, %d posts, %d likes, %d follows\n",
		len(res.Users), res.Posts, res.Likes, res.Follows)

	if opts.DryRun {
		return
	}
	for i, u := range res.Users {
		if i >= *tokens {
			break
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, u.ID, 24*time.Hour)
		if err != nil {
			log.Fatalf("❌ Token issue failed: %v", err)
		}
		log.Printf("🔑 %s (%s): %s\n", u.Name, u.ID, token)
	}
}
