package blog

import "time"

// Cached is the closed set of payloads stored in the content cache:
// *Feed and *RenderedContent.
type Cached interface {
	cached()
}

// RenderedContent is a post or page converted to gemtext.
type RenderedContent struct {
	Body      string // gemtext body, title heading excluded
	Title     string
	Date      string // empty when the document carries no timestamp
	SourceURL string // canonical upstream URL
}

func (*RenderedContent) cached() {}

// FeedEntry is one item of the upstream RSS feed.
type FeedEntry struct {
	Slug        string // empty when the link has no path segment
	Title       string
	Link        string
	Published   string // raw upstream value
	PublishedAt *time.Time
	Summary     string
}

// Feed is the parsed upstream feed. It is regenerated wholesale on every fetch.
type Feed struct {
	Title       string
	Description string
	Link        string
	Updated     *time.Time
	Entries     []FeedEntry
}

func (*Feed) cached() {}

// Syndication is the feed rewritten for the capsule's own address space.
type Syndication struct {
	BaseURL string
	Updated time.Time
	Entries []SyndicationEntry
}

// SyndicationEntry is a feed item pointing at its gemini:// location.
type SyndicationEntry struct {
	Title     string
	URL       string
	Published time.Time
	Summary   string
}

// contentKind distinguishes the two classes of rendered documents.
type contentKind string

const (
	kindPost contentKind = "post"
	kindPage contentKind = "page"
)

const feedKey = "feed"

// cacheKey builds the store key of a rendered document, e.g. "post:my-post".
func cacheKey(kind contentKind, slug string) string {
	return string(kind) + ":" + slug
}
