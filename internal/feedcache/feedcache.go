// Package feedcache holds client-side cached feed pages and profile views and
// applies optimistic counter deltas across all of them.
package feedcache

import (
	"sync"

	"breaksphere/internal/models"
)

// QueryKind names the query that produced a set of cached pages.
type QueryKind string

const (
	KindFeed         QueryKind = "feed"
	KindProfilePosts QueryKind = "profile_posts"
)

// QueryKey identifies one paginated query and its filter parameters.
type QueryKey struct {
	Kind          QueryKind
	AuthorID      string
	OnlyFollowing bool
}

// GlobalFeed is the key of the unfiltered feed.
func GlobalFeed() QueryKey { return QueryKey{Kind: KindFeed} }

// FollowingFeed is the key of the feed restricted to followed authors.
func FollowingFeed() QueryKey { return QueryKey{Kind: KindFeed, OnlyFollowing: true} }

// AuthorFeed is the key of one author's posts on their profile.
func AuthorFeed(authorID string) QueryKey {
	return QueryKey{Kind: KindProfilePosts, AuthorID: authorID}
}

// EntityKind selects what ApplyDelta patches.
type EntityKind string

const (
	EntityPost    EntityKind = "post"
	EntityProfile EntityKind = "profile"
)

// Page is one fetched window. NextCursor is empty at end of stream.
type Page struct {
	Posts      []models.PostView
	NextCursor string
}

// Cache maps query keys to their ordered pages. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	pages    map[QueryKey][]Page
	gens     map[QueryKey]uint64
	profiles map[string]models.Profile
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		pages:    make(map[QueryKey][]Page),
		gens:     make(map[QueryKey]uint64),
		profiles: make(map[string]models.Profile),
	}
}

// Patch lists the views one ApplyDelta changed. Rollback reverts exactly
// these and nothing else.
type Patch struct {
	Kind  EntityKind
	ID    string
	Added bool

	posts   []patchedPost
	profile *patchedCount
}

type patchedPost struct {
	key  QueryKey
	gen  uint64
	page int
	patchedCount
}

// clamped is set when a removal found the counter already at zero.
type patchedCount struct {
	clamped bool
}

// Changed reports how many views the patch touched.
func (p Patch) Changed() int {
	n := len(p.posts)
	if p.profile != nil {
		n++
	}
	return n
}

// ApplyDelta sets the like (post) or follow (profile) flag of id to added and
// moves the matching counter by one, in every cached view. Views whose flag
// already equals added are left alone, so replaying a delta is harmless.
func (c *Cache) ApplyDelta(kind EntityKind, id string, added bool) Patch {
	c.mu.Lock()
	defer c.mu.Unlock()

	patch := Patch{Kind: kind, ID: id, Added: added}
	switch kind {
	case EntityPost:
		for key, pages := range c.pages {
			for pi := range pages {
				posts := pages[pi].Posts
				for i := range posts {
					if posts[i].ID != id || posts[i].LikedByMe == added {
						continue
					}
					var pc patchedCount
					posts[i].LikedByMe = added
					posts[i].LikeCount, pc.clamped = step(posts[i].LikeCount, added)
					patch.posts = append(patch.posts, patchedPost{key: key, gen: c.gens[key], page: pi, patchedCount: pc})
				}
			}
		}
	case EntityProfile:
		p, ok := c.profiles[id]
		if ok && p.IsFollowing != added {
			var pc patchedCount
			p.IsFollowing = added
			p.FollowersCount, pc.clamped = step(p.FollowersCount, added)
			c.profiles[id] = p
			patch.profile = &pc
		}
	}
	return patch
}

// Rollback reverts the views recorded in patch. Views reset, removed or
// refreshed since then are skipped. It returns how many views it restored.
func (c *Cache) Rollback(patch Patch) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	restored := 0
	for _, loc := range patch.posts {
		pages := c.pages[loc.key]
		if c.gens[loc.key] != loc.gen || loc.page >= len(pages) {
			continue
		}
		posts := pages[loc.page].Posts
		for i := range posts {
			if posts[i].ID != patch.ID || posts[i].LikedByMe != patch.Added {
				continue
			}
			posts[i].LikedByMe = !patch.Added
			posts[i].LikeCount = unstep(posts[i].LikeCount, patch.Added, loc.clamped)
			restored++
			break
		}
	}
	if patch.profile != nil {
		if p, ok := c.profiles[patch.ID]; ok && p.IsFollowing == patch.Added {
			p.IsFollowing = !patch.Added
			p.FollowersCount = unstep(p.FollowersCount, patch.Added, patch.profile.clamped)
			c.profiles[patch.ID] = p
			restored++
		}
	}
	return restored
}

// step moves n by one and reports whether a decrement was clamped at zero.
func step(n int, up bool) (int, bool) {
	if up {
		return n + 1, false
	}
	if n > 0 {
		return n - 1, false
	}
	return 0, true
}

// unstep inverts step.
func unstep(n int, up, clamped bool) int {
	switch {
	case clamped:
		return n
	case up:
		n, _ = step(n, false)
		return n
	default:
		return n + 1
	}
}

// AppendPage adds the next page for key.
func (c *Cache) AppendPage(key QueryKey, page Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	posts := append([]models.PostView(nil), page.Posts...)
	c.pages[key] = append(c.pages[key], Page{Posts: posts, NextCursor: page.NextCursor})
}

// PrependPost puts a newly created post at the head of key's first page.
// Keys that were never loaded are left for their first fetch.
func (c *Cache) PrependPost(key QueryKey, post models.PostView) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := c.pages[key]
	if len(pages) == 0 {
		return false
	}
	for _, page := range pages {
		for _, p := range page.Posts {
			if p.ID == post.ID {
				return false
			}
		}
	}
	pages[0].Posts = append([]models.PostView{post}, pages[0].Posts...)
	return true
}

// RemovePost drops a post from every cached page and returns how many copies
// were removed.
func (c *Cache) RemovePost(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, pages := range c.pages {
		for pi := range pages {
			kept := pages[pi].Posts[:0]
			for _, p := range pages[pi].Posts {
				if p.ID == id {
					removed++
					continue
				}
				kept = append(kept, p)
			}
			pages[pi].Posts = kept
		}
	}
	return removed
}

// ReplacePost overwrites every cached copy of post with a fresh rendering.
func (c *Cache) ReplacePost(post models.PostView) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	replaced := 0
	for _, pages := range c.pages {
		for pi := range pages {
			for i := range pages[pi].Posts {
				if pages[pi].Posts[i].ID == post.ID {
					pages[pi].Posts[i] = post
					replaced++
				}
			}
		}
	}
	return replaced
}

// Reset forgets every page of key. Patches taken before the reset no longer
// apply to key.
func (c *Cache) Reset(key QueryKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, key)
	c.gens[key]++
}

// Keys lists the loaded query keys.
func (c *Cache) Keys() []QueryKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]QueryKey, 0, len(c.pages))
	for k := range c.pages {
		keys = append(keys, k)
	}
	return keys
}

// Pages returns a copy of key's pages.
func (c *Cache) Pages(key QueryKey) []Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Page, 0, len(c.pages[key]))
	for _, p := range c.pages[key] {
		out = append(out, Page{Posts: append([]models.PostView(nil), p.Posts...), NextCursor: p.NextCursor})
	}
	return out
}

// Posts returns key's posts across pages in feed order.
func (c *Cache) Posts(key QueryKey) []models.PostView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PostView, 0)
	for _, p := range c.pages[key] {
		out = append(out, p.Posts...)
	}
	return out
}

// Post returns the first cached copy of a post.
func (c *Cache) Post(id string) (models.PostView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, pages := range c.pages {
		for _, page := range pages {
			for _, p := range page.Posts {
				if p.ID == id {
					return p, true
				}
			}
		}
	}
	return models.PostView{}, false
}

// Loaded reports whether at least one page of key has been fetched.
func (c *Cache) Loaded(key QueryKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages[key]) > 0
}

// HasMore reports whether another page of key can be requested.
func (c *Cache) HasMore(key QueryKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pages := c.pages[key]
	return len(pages) == 0 || pages[len(pages)-1].NextCursor != ""
}

// NextCursor is the token for key's next page, empty before the first fetch
// and at end of stream.
func (c *Cache) NextCursor(key QueryKey) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pages := c.pages[key]
	if len(pages) == 0 {
		return ""
	}
	return pages[len(pages)-1].NextCursor
}

// SetProfile stores a fetched profile view.
func (c *Cache) SetProfile(p models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.ID] = p
}

// Profile returns a cached profile view.
func (c *Cache) Profile(id string) (models.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[id]
	return p, ok
}

// DropProfile forgets a cached profile view.
func (c *Cache) DropProfile(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, id)
}
