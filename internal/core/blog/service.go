// Package blog retrieves the upstream Bearblog feed, posts and pages and
// serves them converted to gemtext from a time-bounded cache.
//
// The package is organized as:
//   - Service: cache lookup, miss coalescing and conversion
//   - Fetcher: HTTP retrieval with a per-host circuit breaker
//   - Syndication: the feed rewritten for the capsule's own URLs
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanbato/ursaproxy/internal/core/cache"
	"github.com/alanbato/ursaproxy/internal/core/converter"
)

const (
	// DefaultFeedTTL is how long the parsed feed is served from cache.
	DefaultFeedTTL = 5 * time.Minute

	// DefaultContentTTL is how long a rendered post or page is served from cache.
	DefaultContentTTL = 30 * time.Minute
)

// Config holds the cache lifetimes used by the service.
type Config struct {
	FeedTTL    time.Duration
	ContentTTL time.Duration
}

// DefaultConfig returns the default cache lifetimes.
func DefaultConfig() Config {
	return Config{
		FeedTTL:    DefaultFeedTTL,
		ContentTTL: DefaultContentTTL,
	}
}

var _ Service = (*BlogService)(nil)

// BlogService implements Service on top of a Fetcher and a cache.Store.
type BlogService struct {
	fetcher Fetcher
	store   *cache.Store[Cached]
	group   singleflight.Group
	now     func() time.Time
	config  Config
}

// ServiceOption configures a BlogService.
type ServiceOption func(*BlogService)

// WithServiceClock overrides the clock used for syndication date fallbacks.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *BlogService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a BlogService. Non-positive lifetimes in config fall
// back to their defaults.
func NewService(fetcher Fetcher, store *cache.Store[Cached], config Config, opts ...ServiceOption) (*BlogService, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher", ErrNilDependency)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilDependency)
	}
	if config.FeedTTL <= 0 {
		config.FeedTTL = DefaultFeedTTL
	}
	if config.ContentTTL <= 0 {
		config.ContentTTL = DefaultContentTTL
	}

	s := &BlogService{
		fetcher: fetcher,
		store:   store,
		config:  config,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Feed returns the upstream feed, cached under "feed".
func (s *BlogService) Feed(ctx context.Context) (*Feed, error) {
	return load(ctx, s, feedKey, s.config.FeedTTL, func(ctx context.Context) (*Feed, error) {
		feed, err := s.fetcher.FetchFeed(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("[BLOG] feed refreshed", "entries", len(feed.Entries))
		return feed, nil
	})
}

// RecentPosts returns the first limit feed entries that resolve to a slug,
// in feed order. A non-positive limit returns every such entry.
func (s *BlogService) RecentPosts(ctx context.Context, limit int) ([]FeedEntry, error) {
	feed, err := s.Feed(ctx)
	if err != nil {
		return nil, err
	}

	posts := make([]FeedEntry, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.Slug == "" {
			continue
		}
		posts = append(posts, entry)
		if limit > 0 && len(posts) == limit {
			break
		}
	}
	return posts, nil
}

// Post returns the rendered blog post at slug, cached under "post:<slug>".
func (s *BlogService) Post(ctx context.Context, slug string) (*RenderedContent, error) {
	return s.document(ctx, kindPost, slug)
}

// Page returns the rendered static page at slug, cached under "page:<slug>".
func (s *BlogService) Page(ctx context.Context, slug string) (*RenderedContent, error) {
	return s.document(ctx, kindPage, slug)
}

// CacheStats reports the content cache counters.
func (s *BlogService) CacheStats() cache.Stats {
	return s.store.Stats()
}

// PurgeCache drops every cached entry and returns how many were removed.
func (s *BlogService) PurgeCache() int {
	n := s.store.Clear()
	slog.Info("[BLOG] cache purged", "entries", n)
	return n
}

func (s *BlogService) document(ctx context.Context, kind contentKind, slug string) (*RenderedContent, error) {
	if err := validateSlug(slug); err != nil {
		return nil, err
	}

	return load(ctx, s, cacheKey(kind, slug), s.config.ContentTTL, func(ctx context.Context) (*RenderedContent, error) {
		src, err := s.fetcher.FetchDocument(ctx, slug)
		if err != nil {
			return nil, err
		}

		sourceURL := s.fetcher.DocumentURL(slug)
		res := converter.Convert(src, converter.WithBaseURL(sourceURL))
		slog.Debug("[BLOG] document converted",
			"kind", string(kind),
			"slug", slug,
			"bytes", len(src),
		)
		return &RenderedContent{
			Body:      res.Body,
			Title:     res.Title,
			Date:      res.Date,
			SourceURL: sourceURL,
		}, nil
	})
}

// load serves key from the store or runs fetch on a miss. Concurrent misses
// on the same key share one fetch. Only successful results are stored.
func load[T Cached](ctx context.Context, s *BlogService, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := s.store.Get(key, ttl); ok {
		if typed, ok := v.(T); ok {
			slog.Debug("[BLOG] cache hit", "key", key)
			return typed, nil
		}
		// A payload of the wrong kind under this key is treated as a miss.
		s.store.Delete(key)
	}

	// The shared fetch outlives any single caller; the fetcher bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.store.Set(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			slog.Debug("[BLOG] fetch failed", "key", key, "shared", res.Shared, "error", res.Err)
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func validateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if slug == "." || slug == ".." {
		return fmt.Errorf("%w: %q is a dot segment", ErrInvalidSlug, slug)
	}
	if strings.ContainsAny(slug, `/\?#`) {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidSlug, slug)
	}
	return nil
}
