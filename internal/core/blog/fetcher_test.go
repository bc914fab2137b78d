package blog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Blog</title>
  <link>https://blog.example/</link>
  <description>A test blog</description>
  <lastBuildDate>Sat, 15 Jun 2024 12:00:00 +0000</lastBuildDate>
  <item>
    <title>First Post</title>
    <link>https://blog.example/first-post/</link>
    <description>Summary of the first post</description>
    <pubDate>Sat, 15 Jun 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Second Post</title>
    <link>https://blog.example/second-post</link>
    <pubDate>not a date</pubDate>
  </item>
  <item>
    <title>Home</title>
    <link>https://blog.example</link>
  </item>
</channel>
</rss>`

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*HTTPFetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher, err := NewHTTPFetcher(server.URL+"/", WithFetchTimeout(2*time.Second))
	require.NoError(t, err)
	return fetcher, server
}

func TestNewHTTPFetcher_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "blog.example", "ftp://blog.example", "://"} {
		_, err := NewHTTPFetcher(raw)
		assert.Error(t, err, "expected error for %q", raw)
	}
}

func TestHTTPFetcher_URLs(t *testing.T) {
	fetcher, err := NewHTTPFetcher("https://blog.example/")
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example/feed/?type=rss", fetcher.FeedURL())
	assert.Equal(t, "https://blog.example/my-post/", fetcher.DocumentURL("my-post"))
	assert.Equal(t, "https://blog.example/v1.2/", fetcher.DocumentURL("v1.2"))
}

func TestHTTPFetcher_DocumentURLEscapesSlug(t *testing.T) {
	fetcher, err := NewHTTPFetcher("https://blog.example")
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example/foo%3Fx/", fetcher.DocumentURL("foo?x"))
	assert.Equal(t, "https://blog.example/a%23b/", fetcher.DocumentURL("a#b"))
	assert.Equal(t, "https://blog.example/a%2Fb/", fetcher.DocumentURL("a/b"))
}

func TestHTTPFetcher_FetchDocumentKeepsQueryOutOfRequest(t *testing.T) {
	var gotPath, gotQuery string
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("<html></html>"))
	})

	_, err := fetcher.FetchDocument(context.Background(), "foo?x")
	require.NoError(t, err)
	assert.Equal(t, "/foo?x/", gotPath)
	assert.Empty(t, gotQuery)
}

func TestHTTPFetcher_FetchFeed(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	})

	feed, err := fetcher.FetchFeed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/feed/", gotPath)
	assert.Equal(t, "type=rss", gotQuery)
	assert.Equal(t, DefaultUserAgent, gotUA)

	assert.Equal(t, "Test Blog", feed.Title)
	assert.Equal(t, "A test blog", feed.Description)
	require.NotNil(t, feed.Updated)
	require.Len(t, feed.Entries, 3)

	first := feed.Entries[0]
	assert.Equal(t, "first-post", first.Slug)
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "Summary of the first post", first.Summary)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), first.PublishedAt.UTC())

	second := feed.Entries[1]
	assert.Equal(t, "second-post", second.Slug)
	assert.Nil(t, second.PublishedAt)
	assert.Equal(t, "not a date", second.Published)

	assert.Equal(t, "", feed.Entries[2].Slug)
}

func TestHTTPFetcher_FetchDocument(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/my-post/", r.URL.Path)
		_, _ = w.Write([]byte("<html><body><h1>Hi</h1></body></html>"))
	})

	body, err := fetcher.FetchDocument(context.Background(), "my-post")
	require.NoError(t, err)
	assert.Contains(t, body, "<h1>Hi</h1>")
}

func TestHTTPFetcher_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, "", ErrNotFound},
		{"server error", http.StatusInternalServerError, "", ErrTransient},
		{"bad gateway", http.StatusBadGateway, "", ErrTransient},
		{"forbidden", http.StatusForbidden, "", ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := fetcher.FetchDocument(context.Background(), "post")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPFetcher_MalformedFeedIsTransient(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	})

	_, err := fetcher.FetchFeed(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	fetcher, err := NewHTTPFetcher(server.URL, WithFetchTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = fetcher.FetchDocument(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	fetcher, err := NewHTTPFetcher(url)
	require.NoError(t, err)

	_, err = fetcher.FetchDocument(context.Background(), "post")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPFetcher_OversizedBody(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxBodyBytes+1)))
	})

	_, err := fetcher.FetchDocument(context.Background(), "huge")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPFetcher_CircuitOpensOnTransientFailures(t *testing.T) {
	var calls atomic.Int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 3; i++ {
		_, err := fetcher.FetchDocument(context.Background(), "post")
		require.ErrorIs(t, err, ErrTransient)
	}
	require.Equal(t, int32(3), calls.Load())

	// Open circuit fails fast without reaching the upstream
	_, err := fetcher.FetchDocument(context.Background(), "post")
	require.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(3), calls.Load())

	stats := fetcher.CircuitStats()
	require.Len(t, stats, 1)
	for _, s := range stats {
		assert.Equal(t, "open", s.State)
		assert.Equal(t, 3, s.Failures)
	}
}

func TestHTTPFetcher_NotFoundDoesNotTripCircuit(t *testing.T) {
	var calls atomic.Int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})

	for i := 0; i < 5; i++ {
		_, err := fetcher.FetchDocument(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(5), calls.Load())
}
