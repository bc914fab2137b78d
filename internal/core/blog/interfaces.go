package blog

import (
	"context"

	"github.com/alanbato/ursaproxy/internal/core/cache"
)

// Fetcher retrieves raw content from the upstream blog.
// Errors wrap ErrNotFound or ErrTransient.
type Fetcher interface {
	// FetchFeed retrieves and parses the blog's RSS feed.
	FetchFeed(ctx context.Context) (*Feed, error)

	// FetchDocument retrieves the HTML of the post or page at slug.
	FetchDocument(ctx context.Context, slug string) (string, error)

	// DocumentURL returns the canonical upstream URL of slug.
	DocumentURL(slug string) string
}

// Service is the retrieval orchestrator: it serves feed, posts and pages
// from the cache, fetching and converting on a miss.
type Service interface {
	// Feed returns the upstream feed.
	Feed(ctx context.Context) (*Feed, error)

	// RecentPosts returns up to limit feed entries that resolve to a slug.
	RecentPosts(ctx context.Context, limit int) ([]FeedEntry, error)

	// Post returns the rendered blog post at slug.
	Post(ctx context.Context, slug string) (*RenderedContent, error)

	// Page returns the rendered static page at slug.
	Page(ctx context.Context, slug string) (*RenderedContent, error)

	// Syndication returns the feed with entry URLs rewritten under baseURL,
	// e.g. gemini://capsule.example/post/<slug>.
	Syndication(ctx context.Context, baseURL string) (*Syndication, error)

	// CacheStats reports the content cache counters.
	CacheStats() cache.Stats

	// PurgeCache drops every cached entry and returns how many were removed.
	PurgeCache() int
}
