// Package client is a Go client for the feed API. It keeps fetched pages in a
// feedcache.Cache and applies likes and follows optimistically, rolling the
// cache back when the server rejects a mutation.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"breaksphere/internal/feedcache"
	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
)

const defaultPageSize = 25

// ToggleResult is the outcome of an optimistic toggle.
type ToggleResult struct {
	// Added is the server's final direction.
	Added bool
	// Reconciled is set when the server disagreed with the optimistic guess.
	Reconciled bool
}

// Client talks to the API on behalf of one session.
type Client struct {
	transport Transport
	session   *Session
	theme     *Theme
	cache     *feedcache.Cache
	pageSize  int
	hintErrs  func(models.StaleHint, error)

	// mu guards the per-key load state. gens counts refreshes; inflight
	// holds the generation that owns the running load of a key.
	mu       sync.Mutex
	gens     map[feedcache.QueryKey]uint64
	inflight map[feedcache.QueryKey]uint64
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the number of posts requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTheme attaches a display preference object.
func WithTheme(t *Theme) Option {
	return func(c *Client) { c.theme = t }
}

// WithHintErrors replaces the handler for hints whose refresh failed. The
// default logs them.
func WithHintErrors(fn func(models.StaleHint, error)) Option {
	return func(c *Client) {
		if fn != nil {
			c.hintErrs = fn
		}
	}
}

// WithCache shares an existing cache.
func WithCache(fc *feedcache.Cache) Option {
	return func(c *Client) { c.cache = fc }
}

// New builds a client. A nil session is treated as signed out.
func New(t Transport, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	c := &Client{
		transport: t,
		session:   session,
		theme:     NewTheme(ThemeSystem),
		cache:     feedcache.New(),
		pageSize:  defaultPageSize,
		hintErrs:  logHintError,
		gens:      make(map[feedcache.QueryKey]uint64),
		inflight:  make(map[feedcache.QueryKey]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Cache() *feedcache.Cache { return c.cache }
func (c *Client) Session() *Session       { return c.session }
func (c *Client) Theme() *Theme           { return c.theme }

func (c *Client) call(ctx context.Context, req Request, out any) error {
	req.Token = c.session.Token()
	status, body, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return decodeAPIError(status, body)
	}
	if out == nil || status == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// LoadNextPage fetches the page after the last cached page of key and appends
// it. Only one request per key runs at a time. A response that arrives after
// Refresh reset key is dropped with ErrPageSuperseded.
func (c *Client) LoadNextPage(ctx context.Context, key feedcache.QueryKey) (feedcache.Page, error) {
	c.mu.Lock()
	gen := c.gens[key]
	if owner, busy := c.inflight[key]; busy && owner == gen {
		c.mu.Unlock()
		return feedcache.Page{}, ErrPageInFlight
	}
	if !c.cache.HasMore(key) {
		c.mu.Unlock()
		return feedcache.Page{}, ErrEndOfFeed
	}
	c.inflight[key] = gen
	next := c.cache.NextCursor(key)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if owner, busy := c.inflight[key]; busy && owner == gen {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
	}()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if next != "" {
		q.Set("cursor", next)
	}
	path := "/api/feed"
	if key.Kind == feedcache.KindProfilePosts {
		path = "/api/users/" + url.PathEscape(key.AuthorID) + "/posts"
	} else {
		if key.AuthorID != "" {
			q.Set("authorId", key.AuthorID)
		}
		if key.OnlyFollowing {
			q.Set("onlyFollowing", "true")
		}
	}

	var resp models.FeedPageResponse
	if err := c.call(ctx, Request{Method: fiber.MethodGet, Path: path, Query: q}, &resp); err != nil {
		return feedcache.Page{}, err
	}
	page := feedcache.Page{Posts: resp.Posts, NextCursor: resp.NextCursor}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return feedcache.Page{}, ErrPageSuperseded
	}
	c.cache.AppendPage(key, page)
	return page, nil
}

// Refresh drops key's pages and loads the first page again. A load of key
// still running is superseded and its page is discarded.
func (c *Client) Refresh(ctx context.Context, key feedcache.QueryKey) (feedcache.Page, error) {
	c.mu.Lock()
	c.gens[key]++
	c.cache.Reset(key)
	c.mu.Unlock()
	return c.LoadNextPage(ctx, key)
}

// ToggleLike flips the requester's like on postID. The cache is updated
// before the request and rolled back if it fails.
func (c *Client) ToggleLike(ctx context.Context, postID string) (ToggleResult, error) {
	if !c.session.SignedIn() {
		return ToggleResult{}, ErrNotSignedIn
	}
	guess := true
	if view, ok := c.cache.Post(postID); ok {
		guess = !view.LikedByMe
	}
	patch := c.cache.ApplyDelta(feedcache.EntityPost, postID, guess)

	var resp models.LikeToggleResponse
	err := c.call(ctx, Request{
		Method: fiber.MethodPost,
		Path:   "/api/posts/" + url.PathEscape(postID) + "/like/toggle",
	}, &resp)
	if err != nil {
		c.cache.Rollback(patch)
		return ToggleResult{}, err
	}
	return c.reconcile(patch, resp.AddedLike), nil
}

// ToggleFollow flips the requester's follow of userID with the same
// optimistic flow as ToggleLike.
func (c *Client) ToggleFollow(ctx context.Context, userID string) (ToggleResult, error) {
	if !c.session.SignedIn() {
		return ToggleResult{}, ErrNotSignedIn
	}
	guess := true
	if p, ok := c.cache.Profile(userID); ok {
		guess = !p.IsFollowing
	}
	patch := c.cache.ApplyDelta(feedcache.EntityProfile, userID, guess)

	var resp models.FollowToggleResponse
	err := c.call(ctx, Request{
		Method: fiber.MethodPost,
		Path:   "/api/users/" + url.PathEscape(userID) + "/follow/toggle",
	}, &resp)
	if err != nil {
		c.cache.Rollback(patch)
		return ToggleResult{}, err
	}
	return c.reconcile(patch, resp.AddedFollow), nil
}

// reconcile undoes the optimistic patch when the server moved the other way.
// A patch always goes from !Added to Added, so reverting it lands the patched
// views on the server's direction.
func (c *Client) reconcile(patch feedcache.Patch, added bool) ToggleResult {
	if patch.Added == added {
		return ToggleResult{Added: added}
	}
	c.cache.Rollback(patch)
	return ToggleResult{Added: added, Reconciled: true}
}

// CreatePost publishes a post and puts it at the head of the loaded global
// feed and the author's own profile feed.
func (c *Client) CreatePost(ctx context.Context, content string) (models.PostView, error) {
	if !c.session.SignedIn() {
		return models.PostView{}, ErrNotSignedIn
	}
	var view models.PostView
	err := c.call(ctx, Request{
		Method: fiber.MethodPost,
		Path:   "/api/posts",
		JSON:   map[string]string{"content": content},
	}, &view)
	if err != nil {
		return models.PostView{}, err
	}
	c.cache.PrependPost(feedcache.GlobalFeed(), view)
	c.cache.PrependPost(feedcache.AuthorFeed(view.UserID), view)
	return view, nil
}

// DeletePost removes a post on the server and from every cached page.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	if !c.session.SignedIn() {
		return ErrNotSignedIn
	}
	err := c.call(ctx, Request{Method: fiber.MethodDelete, Path: "/api/posts/" + url.PathEscape(postID)}, nil)
	if err != nil {
		return err
	}
	c.cache.RemovePost(postID)
	return nil
}

// GetPost reads one post.
func (c *Client) GetPost(ctx context.Context, postID string) (models.PostView, error) {
	var view models.PostView
	err := c.call(ctx, Request{Method: fiber.MethodGet, Path: "/api/posts/" + url.PathEscape(postID)}, &view)
	return view, err
}

// GetProfile reads a profile and caches it for follow toggles.
func (c *Client) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	if err := c.call(ctx, Request{Method: fiber.MethodGet, Path: "/api/users/" + url.PathEscape(userID)}, &p); err != nil {
		return models.Profile{}, err
	}
	c.cache.SetProfile(p)
	return p, nil
}

// EditProfile updates the signed-in user's profile.
func (c *Client) EditProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error) {
	if !c.session.SignedIn() {
		return models.Profile{}, ErrNotSignedIn
	}
	var p models.Profile
	if err := c.call(ctx, Request{Method: fiber.MethodPut, Path: "/api/users/me", JSON: update}, &p); err != nil {
		return models.Profile{}, err
	}
	c.cache.SetProfile(p)
	return p, nil
}

// UploadAvatar replaces the signed-in user's profile image.
func (c *Client) UploadAvatar(ctx context.Context, filename string, content []byte) (string, error) {
	if !c.session.SignedIn() {
		return "", ErrNotSignedIn
	}
	var resp struct {
		Image string `json:"image"`
	}
	err := c.call(ctx, Request{
		Method: fiber.MethodPost,
		Path:   "/api/users/me/avatar",
		File:   &fiber.FormFile{Fieldname: "image", Name: filename, Content: content},
	}, &resp)
	if err != nil {
		return "", err
	}
	c.cache.DropProfile(c.session.UserID())
	return resp.Image, nil
}

// FollowList reads followers, followees or suggestions of userID.
func (c *Client) FollowList(ctx context.Context, userID string, kind models.FollowListKind) ([]models.Author, error) {
	out := make([]models.Author, 0)
	err := c.call(ctx, Request{
		Method: fiber.MethodGet,
		Path:   "/api/users/" + url.PathEscape(userID) + "/" + string(kind),
	}, &out)
	return out, err
}
