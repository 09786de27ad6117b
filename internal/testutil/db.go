// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"breaksphere/internal/database"
	"breaksphere/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database with the full schema.
// A single connection serializes access so concurrent tests see one database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewFileDB opens a file-backed SQLite database with up to conns
// connections, so transactions run on separate connections. Writers take the
// lock at BEGIN and wait for each other instead of failing.
func NewFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edges.db")
	dsn := "file:" + path + "?_txlock=immediate&_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with the given name.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post authored by userID at createdAt.
func CreatePost(t *testing.T, db *gorm.DB, userID, content string, createdAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: userID, Content: content, CreatedAt: createdAt}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreatePostWithID inserts a post with a fixed id so tie-break order is predictable.
func CreatePostWithID(t *testing.T, db *gorm.DB, id, userID string, createdAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{ID: id, UserID: userID, Content: "post " + id, CreatedAt: createdAt}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Like inserts a like edge.
func Like(t *testing.T, db *gorm.DB, userID, postID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Like{UserID: userID, PostID: postID, CreatedAt: time.Now().UTC()}).Error)
}

// Follow inserts a follow edge.
func Follow(t *testing.T, db *gorm.DB, followerID, followeeID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}).Error)
}
