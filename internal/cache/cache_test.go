package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedProfile struct {
	ID             string `json:"id"`
	FollowersCount int    `json:"followersCount"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedProfile) func() error {
		return func() error {
			calls++
			*dest = cachedProfile{ID: "u1", FollowersCount: 3}
			return nil
		}
	}

	var first cachedProfile
	require.NoError(t, Aside(ctx, ProfileKey("u1"), &first, time.Minute, fetch(&first)))
	assert.Equal(t, 3, first.FollowersCount)
	assert.True(t, mr.Exists("profile:u1"))

	var second cachedProfile
	require.NoError(t, Aside(ctx, ProfileKey("u1"), &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	var dest cachedProfile
	err := Aside(context.Background(), ProfileKey("u2"), &dest, time.Minute, func() error {
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("profile:u2"))
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	SetClient(nil)
	var dest cachedProfile
	called := false
	require.NoError(t, Aside(context.Background(), "profile:x", &dest, time.Minute, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestInvalidateProfiles(t *testing.T) {
	mr := withMiniredis(t)
	require.NoError(t, mr.Set("profile:a", "{}"))
	require.NoError(t, mr.Set("profile:b", "{}"))
	require.NoError(t, mr.Set("post:p", "{}"))

	InvalidateProfiles(context.Background(), "a", "", "b")
	assert.False(t, mr.Exists("profile:a"))
	assert.False(t, mr.Exists("profile:b"))

	InvalidatePosts(context.Background(), "p")
	assert.False(t, mr.Exists("post:p"))
}

func TestInitRedis_UnreachableLeavesNilClient(t *testing.T) {
	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())

	InitRedis("redis://%zz")
	assert.Nil(t, GetClient())
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	assert.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	_ = c.Close()

	c, err = Connect(ctx, "redis://"+mr.Addr()+"/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	_, err = Connect(ctx, "redis://%zz")
	assert.ErrorContains(t, err, "parse REDIS_URL")
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, "profile", keyspace(ProfileKey("u1")))
	assert.Equal(t, "post", keyspace(PostKey("p1")))
	assert.Equal(t, "bare", keyspace("bare"))
}
