package blog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/alanbato/ursaproxy/internal/core/converter"
)

const (
	// DefaultFetchTimeout bounds a single upstream request.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultUserAgent identifies the proxy to the upstream blog.
	DefaultUserAgent = "UrsaProxy/1.0 (+gemini)"

	// maxBodyBytes caps upstream responses at 10MB.
	maxBodyBytes = 10 * 1024 * 1024
)

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher retrieves feeds and documents from a Bearblog site over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	breaker   *circuitBreaker
	baseURL   string
	host      string
	userAgent string
	timeout   time.Duration
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header for upstream requests.
func WithUserAgent(userAgent string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = userAgent
	}
}

// WithHTTPClient replaces the HTTP client used for upstream requests.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewHTTPFetcher creates a fetcher for the blog rooted at baseURL
// (e.g. "https://example.bearblog.dev"). A trailing slash is ignored.
func NewHTTPFetcher(baseURL string, opts ...FetcherOption) (*HTTPFetcher, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid upstream URL %q", baseURL)
	}

	f := &HTTPFetcher{
		breaker:   newCircuitBreaker(),
		baseURL:   baseURL,
		host:      parsed.Host,
		userAgent: DefaultUserAgent,
		timeout:   DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f, nil
}

// FeedURL returns the RSS endpoint of the blog.
func (f *HTTPFetcher) FeedURL() string {
	return f.baseURL + "/feed/?type=rss"
}

// DocumentURL returns the canonical URL of slug. Bearblog URLs end in a slash.
// The slug is escaped as a single path segment.
func (f *HTTPFetcher) DocumentURL(slug string) string {
	return f.baseURL + "/" + url.PathEscape(slug) + "/"
}

// CircuitStats reports the breaker state of the upstream host.
func (f *HTTPFetcher) CircuitStats() map[string]CircuitStats {
	return f.breaker.stats()
}

// FetchFeed retrieves and parses the blog's RSS feed.
func (f *HTTPFetcher) FetchFeed(ctx context.Context) (*Feed, error) {
	feedURL := f.FeedURL()
	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed feed at %s: %v", ErrTransient, feedURL, err)
	}
	return feedFromParsed(parsed), nil
}

// FetchDocument retrieves the HTML of the post or page at slug.
func (f *HTTPFetcher) FetchDocument(ctx context.Context, slug string) (string, error) {
	body, err := f.get(ctx, f.DocumentURL(slug))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// get performs a bounded GET and classifies the outcome:
//   - ErrNotFound for 404 responses
//   - ErrTransient for network errors, timeouts, other 4xx/5xx statuses,
//     oversized bodies and an open circuit
func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	if ok, err := f.breaker.canAttempt(f.host); !ok {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrTransient, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.breaker.recordFailure(f.host, err)
		if ctx.Err() != nil || isTimeoutError(err) {
			return nil, fmt.Errorf("%w: request to %s timed out", ErrTransient, target)
		}
		return nil, fmt.Errorf("%w: network error: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The upstream answered; a missing resource says nothing about its health.
		f.breaker.recordSuccess(f.host)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode >= 500:
		err := fmt.Errorf("%w: server error %d", ErrTransient, resp.StatusCode)
		f.breaker.recordFailure(f.host, err)
		return nil, err
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		err := fmt.Errorf("%w: HTTP error %d", ErrTransient, resp.StatusCode)
		f.breaker.recordFailure(f.host, err)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		f.breaker.recordFailure(f.host, err)
		if ctx.Err() != nil || isTimeoutError(err) {
			return nil, fmt.Errorf("%w: reading %s timed out", ErrTransient, target)
		}
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrTransient, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrTransient, maxBodyBytes)
	}

	f.breaker.recordSuccess(f.host)
	return body, nil
}

// feedFromParsed maps a gofeed result onto the domain feed.
func feedFromParsed(parsed *gofeed.Feed) *Feed {
	feed := &Feed{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Link:        parsed.Link,
		Updated:     parsed.UpdatedParsed,
		Entries:     make([]FeedEntry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		feed.Entries = append(feed.Entries, FeedEntry{
			Slug:        converter.ResolveSlug(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Published:   item.Published,
			PublishedAt: item.PublishedParsed,
			Summary:     strings.TrimSpace(item.Description),
		})
	}
	return feed
}

// isTimeoutError checks if the error is a timeout-related error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
