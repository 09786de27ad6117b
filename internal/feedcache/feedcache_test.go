package feedcache

import (
	"sync"
	"testing"

	"breaksphere/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id string, likes int, liked bool) models.PostView {
	return models.PostView{ID: id, LikeCount: likes, LikedByMe: liked}
}

func seeded() *Cache {
	c := New()
	c.AppendPage(GlobalFeed(), Page{Posts: []models.PostView{post("a", 3, false), post("b", 0, false)}, NextCursor: "c1"})
	c.AppendPage(GlobalFeed(), Page{Posts: []models.PostView{post("c", 1, true)}})
	c.AppendPage(AuthorFeed("u1"), Page{Posts: []models.PostView{post("a", 3, false)}, NextCursor: "x"})
	return c
}

func TestApplyDelta_FansOutAcrossKeys(t *testing.T) {
	c := seeded()

	assert.Equal(t, 2, c.ApplyDelta(EntityPost, "a", true).Changed())
	for _, key := range []QueryKey{GlobalFeed(), AuthorFeed("u1")} {
		p := c.Posts(key)[0]
		assert.Equal(t, 4, p.LikeCount)
		assert.True(t, p.LikedByMe)
	}
}

func TestApplyDelta_IdempotentReplay(t *testing.T) {
	c := seeded()

	assert.Equal(t, 2, c.ApplyDelta(EntityPost, "a", true).Changed())
	assert.Equal(t, 0, c.ApplyDelta(EntityPost, "a", true).Changed())

	p, ok := c.Post("a")
	require.True(t, ok)
	assert.Equal(t, 4, p.LikeCount)
}

func TestRollbackRestoresOriginal(t *testing.T) {
	c := seeded()
	before := c.Posts(GlobalFeed())

	patch := c.ApplyDelta(EntityPost, "c", false)
	assert.Equal(t, 1, c.Rollback(patch))
	assert.Equal(t, before, c.Posts(GlobalFeed()))

	assert.Equal(t, 0, c.ApplyDelta(EntityPost, "missing", true).Changed())
}

func TestRollback_LeavesUnpatchedCopiesAlone(t *testing.T) {
	c := New()
	// The author feed was loaded after the like landed, the global feed before.
	c.AppendPage(GlobalFeed(), Page{Posts: []models.PostView{post("x", 0, false)}})
	c.AppendPage(AuthorFeed("u1"), Page{Posts: []models.PostView{post("x", 1, true)}})

	patch := c.ApplyDelta(EntityPost, "x", true)
	assert.Equal(t, 1, patch.Changed())

	assert.Equal(t, 1, c.Rollback(patch))
	assert.Equal(t, post("x", 0, false), c.Posts(GlobalFeed())[0])
	assert.Equal(t, post("x", 1, true), c.Posts(AuthorFeed("u1"))[0])
}

func TestRollback_SkipsResetKeys(t *testing.T) {
	c := seeded()
	patch := c.ApplyDelta(EntityPost, "a", true)
	require.Equal(t, 2, patch.Changed())

	c.Reset(GlobalFeed())
	c.AppendPage(GlobalFeed(), Page{Posts: []models.PostView{post("a", 4, true)}})

	assert.Equal(t, 1, c.Rollback(patch))
	assert.Equal(t, post("a", 4, true), c.Posts(GlobalFeed())[0])
	assert.Equal(t, post("a", 3, false), c.Posts(AuthorFeed("u1"))[0])
}

func TestApplyDelta_CounterNeverNegative(t *testing.T) {
	c := New()
	c.AppendPage(GlobalFeed(), Page{Posts: []models.PostView{post("z", 0, true)}})
	patch := c.ApplyDelta(EntityPost, "z", false)
	p, _ := c.Post("z")
	assert.Equal(t, 0, p.LikeCount)

	c.Rollback(patch)
	p, _ = c.Post("z")
	assert.Equal(t, 0, p.LikeCount)
	assert.True(t, p.LikedByMe)
}

func TestApplyDelta_Profile(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.ApplyDelta(EntityProfile, "u1", true).Changed())

	c.SetProfile(models.Profile{ID: "u1", FollowersCount: 5})
	patch := c.ApplyDelta(EntityProfile, "u1", true)
	assert.Equal(t, 1, patch.Changed())
	assert.Equal(t, 0, c.ApplyDelta(EntityProfile, "u1", true).Changed())

	p, ok := c.Profile("u1")
	require.True(t, ok)
	assert.Equal(t, 6, p.FollowersCount)
	assert.True(t, p.IsFollowing)

	assert.Equal(t, 1, c.Rollback(patch))
	assert.Zero(t, c.Rollback(patch))
	p, _ = c.Profile("u1")
	assert.Equal(t, 5, p.FollowersCount)
	assert.False(t, p.IsFollowing)

	c.DropProfile("u1")
	_, ok = c.Profile("u1")
	assert.False(t, ok)
}

func TestPagingState(t *testing.T) {
	c := New()
	key := FollowingFeed()
	assert.False(t, c.Loaded(key))
	assert.True(t, c.HasMore(key))
	assert.Empty(t, c.NextCursor(key))

	c.AppendPage(key, Page{Posts: []models.PostView{post("a", 0, false)}, NextCursor: "next"})
	assert.True(t, c.Loaded(key))
	assert.True(t, c.HasMore(key))
	assert.Equal(t, "next", c.NextCursor(key))

	c.AppendPage(key, Page{Posts: []models.PostView{post("b", 0, false)}})
	assert.False(t, c.HasMore(key))
	assert.Len(t, c.Pages(key), 2)

	c.Reset(key)
	assert.False(t, c.Loaded(key))
}

func TestPrependAndRemove(t *testing.T) {
	c := seeded()

	assert.True(t, c.PrependPost(GlobalFeed(), post("new", 0, false)))
	assert.False(t, c.PrependPost(GlobalFeed(), post("new", 0, false)))
	assert.False(t, c.PrependPost(FollowingFeed(), post("new", 0, false)))
	assert.Equal(t, "new", c.Posts(GlobalFeed())[0].ID)

	assert.Equal(t, 2, c.RemovePost("a"))
	assert.Equal(t, []string{"new", "b", "c"}, ids(c.Posts(GlobalFeed())))
	assert.Empty(t, c.Posts(AuthorFeed("u1")))
}

func TestPagesAreCopies(t *testing.T) {
	c := seeded()
	pages := c.Pages(GlobalFeed())
	pages[0].Posts[0].LikeCount = 99
	p, _ := c.Post("a")
	assert.Equal(t, 3, p.LikeCount)
}

func TestConcurrentDeltas(t *testing.T) {
	c := seeded()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.ApplyDelta(EntityPost, "b", i%2 == 0)
			_ = c.Posts(GlobalFeed())
		}(i)
	}
	wg.Wait()

	p, _ := c.Post("b")
	if p.LikedByMe {
		assert.Equal(t, 1, p.LikeCount)
	} else {
		assert.Equal(t, 0, p.LikeCount)
	}
}

func ids(posts []models.PostView) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestReplacePost(t *testing.T) {
	c := seeded()
	assert.Equal(t, 2, c.ReplacePost(post("a", 10, true)))
	for _, key := range []QueryKey{GlobalFeed(), AuthorFeed("u1")} {
		assert.Equal(t, 10, c.Posts(key)[0].LikeCount)
	}
	assert.Zero(t, c.ReplacePost(post("nope", 1, false)))
}
