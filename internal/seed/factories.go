// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"time"
	"unicode/utf8"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var moves = []string{
	"windmill", "headspin", "flare", "airflare", "six-step", "freeze", "toprock",
	"baby freeze", "swipe", "backspin", "turtle", "halo", "jackhammer", "1990",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A nil db is
// allowed in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed)}
}

// Faker exposes the factory's deterministic generator.
func (f *Factory) Faker() *gofakeit.Faker { return f.faker }

// BuildUser constructs a user with plausible profile fields within the
// profile limits. It is not persisted.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	p := f.faker.Person()
	user := &models.User{
		ID:       uuid.NewString(),
		Name:     clip(p.FirstName+" "+p.LastName, validation.MaxNameRunes),
		Bio:      clip(fmt.Sprintf("B-%s from %s. %s", f.faker.RandomString(moves), f.faker.City(), f.faker.HipsterSentence(6)), validation.MaxBioRunes),
		Location: clip(f.faker.City()+", "+f.faker.Country(), validation.MaxLocationRunes),
		Image:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	if site := "https://" + f.faker.DomainName(); utf8.RuneCountInString(site) <= validation.MaxWebsiteRunes {
		user.Website = site
	}
	user.CreatedAt = f.pastTime()

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		middleware.Logger.Debug("[dry-run] CreateUser", "id", user.ID, "name", user.Name)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by user with a created_at spread over the last
// MaxDays days. It is not persisted.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	content := fmt.Sprintf("%s %s #%s",
		f.faker.Sentence(f.faker.Number(4, 16)),
		f.faker.RandomString([]string{"Hit a clean", "Still drilling the", "Finally landed a", "Cypher tonight, bring your", "Who taught you that"})+" "+f.faker.RandomString(moves)+".",
		f.faker.RandomString([]string{"bboy", "bgirl", "breaking", "cypher", "battle"}),
	)
	post := &models.Post{
		ID:        uuid.NewString(),
		Content:   clip(content, validation.MaxPostRunes),
		UserID:    user.ID,
		CreatedAt: f.pastTime(),
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun || len(posts) == 0 {
		return nil
	}
	return f.db.Omit("User").CreateInBatches(posts, f.batchSize()).Error
}

// CreateLikes persists likes, ignoring pairs that already exist.
func (f *Factory) CreateLikes(likes []models.Like) error {
	if f.opts.DryRun || len(likes) == 0 {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(likes, f.batchSize()).Error
}

// CreateFollows persists follow edges, ignoring pairs that already exist.
func (f *Factory) CreateFollows(follows []models.Follow) error {
	if f.opts.DryRun || len(follows) == 0 {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(follows, f.batchSize()).Error
}

func (f *Factory) batchSize() int {
	if f.opts.BatchSize > 0 {
		return f.opts.BatchSize
	}
	return 200
}

// pastTime returns a realistic timestamp within the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back).Truncate(time.Second)
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
