// Package config loads capsule settings from an optional TOML file and the
// environment. Environment variables take precedence over the file, which
// takes precedence over defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = "ursaproxy.toml"

// Config validation errors
var (
	// ErrMissingBearblogURL is returned when no upstream blog is configured
	ErrMissingBearblogURL = errors.New("bearblog_url is required")
	// ErrInvalidBearblogURL is returned when the upstream URL is not http(s)
	ErrInvalidBearblogURL = errors.New("bearblog_url must start with http:// or https://")
	// ErrMissingBlogName is returned when blog_name is empty
	ErrMissingBlogName = errors.New("blog_name is required")
	// ErrInvalidTTL is returned when a cache lifetime is not positive
	ErrInvalidTTL = errors.New("cache TTL must be positive")
	// ErrInvalidCacheSize is returned when cache_max_size is not positive
	ErrInvalidCacheSize = errors.New("cache_max_size must be positive")
	// ErrInvalidPort is returned when port is outside 1-65535
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
	// ErrIncompleteTLSPair is returned when only one of cert_file and key_file is set
	ErrIncompleteTLSPair = errors.New("cert_file and key_file must be set together")
	// ErrInvalidFetchTimeout is returned when fetch_timeout is not positive
	ErrInvalidFetchTimeout = errors.New("fetch_timeout must be positive")
)

// Settings holds the capsule configuration. Durations are whole seconds.
type Settings struct {
	// BearblogURL is the upstream blog, e.g. "https://example.bearblog.dev".
	// A trailing slash is removed.
	BearblogURL string `toml:"bearblog_url"`
	BlogName    string `toml:"blog_name"`

	CacheTTLFeed int `toml:"cache_ttl_feed"`
	CacheTTLPost int `toml:"cache_ttl_post"`
	CacheMaxSize int `toml:"cache_max_size"`

	// Pages maps static page slugs, which never appear in the feed, to titles.
	Pages map[string]string `toml:"pages"`

	// GeminiHost is the public capsule hostname used in feed URLs.
	GeminiHost string `toml:"gemini_host"`

	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	// CertDir holds generated self-signed certificates when no pair is configured.
	CertDir string `toml:"cert_dir"`

	FetchTimeout int `toml:"fetch_timeout"`

	// AdminAddr enables the HTTP admin listener when non-empty, e.g. "127.0.0.1:8080".
	AdminAddr string `toml:"admin_addr"`
	LogLevel  string `toml:"log_level"`
}

// Page is a static page entry.
type Page struct {
	Slug  string
	Title string
}

// Default returns Settings populated with default values. The required
// fields are left empty.
func Default() Settings {
	return Settings{
		CacheTTLFeed: 300,
		CacheTTLPost: 1800,
		CacheMaxSize: 1000,
		Pages:        map[string]string{},
		Host:         "localhost",
		Port:         1965,
		CertDir:      "certs",
		FetchTimeout: 30,
		LogLevel:     "info",
	}
}

// Load reads settings from path, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Settings, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("[CONFIG] settings file not found, using environment only", "path", path)
		case err != nil:
			return Settings{}, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Invalid numeric
// values are logged and ignored.
//
// Environment variables:
//   - BEARBLOG_URL, BLOG_NAME
//   - CACHE_TTL_FEED, CACHE_TTL_POST (seconds), CACHE_MAX_SIZE
//   - PAGES: JSON object of slug to title, e.g. {"about": "About Me"}
//   - GEMINI_HOST, HOST, PORT, CERT_FILE, KEY_FILE, CERT_DIR
//   - FETCH_TIMEOUT (seconds), ADMIN_ADDR, LOG_LEVEL
func (c *Settings) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			slog.Warn("[CONFIG] invalid "+key+" value, keeping previous",
				"value", v,
				"previous", *dst,
				"error", err,
			)
			return
		}
		*dst = n
	}

	str("BEARBLOG_URL", &c.BearblogURL)
	str("BLOG_NAME", &c.BlogName)
	num("CACHE_TTL_FEED", &c.CacheTTLFeed)
	num("CACHE_TTL_POST", &c.CacheTTLPost)
	num("CACHE_MAX_SIZE", &c.CacheMaxSize)
	str("GEMINI_HOST", &c.GeminiHost)
	str("HOST", &c.Host)
	num("PORT", &c.Port)
	str("CERT_FILE", &c.CertFile)
	str("KEY_FILE", &c.KeyFile)
	str("CERT_DIR", &c.CertDir)
	num("FETCH_TIMEOUT", &c.FetchTimeout)
	str("ADMIN_ADDR", &c.AdminAddr)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("PAGES"); ok && v != "" {
		var pages map[string]string
		if err := json.Unmarshal([]byte(v), &pages); err != nil {
			slog.Warn("[CONFIG] invalid PAGES value, keeping previous",
				"value", v,
				"error", err,
			)
		} else {
			c.Pages = pages
		}
	}
}

func (c *Settings) normalize() {
	c.BearblogURL = strings.TrimRight(strings.TrimSpace(c.BearblogURL), "/")
	c.BlogName = strings.TrimSpace(c.BlogName)
	if c.Pages == nil {
		c.Pages = map[string]string{}
	}
}

// Validate checks the settings for missing or invalid values.
func (c Settings) Validate() error {
	if c.BearblogURL == "" {
		return ErrMissingBearblogURL
	}
	u, err := url.Parse(c.BearblogURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: got %q", ErrInvalidBearblogURL, c.BearblogURL)
	}
	if c.BlogName == "" {
		return ErrMissingBlogName
	}
	if c.CacheTTLFeed <= 0 {
		return fmt.Errorf("%w: cache_ttl_feed got %d", ErrInvalidTTL, c.CacheTTLFeed)
	}
	if c.CacheTTLPost <= 0 {
		return fmt.Errorf("%w: cache_ttl_post got %d", ErrInvalidTTL, c.CacheTTLPost)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheSize, c.CacheMaxSize)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("%w: cert_file=%q key_file=%q", ErrIncompleteTLSPair, c.CertFile, c.KeyFile)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	return nil
}

// FeedTTL returns the feed cache lifetime.
func (c Settings) FeedTTL() time.Duration {
	return time.Duration(c.CacheTTLFeed) * time.Second
}

// PostTTL returns the post and page cache lifetime.
func (c Settings) PostTTL() time.Duration {
	return time.Duration(c.CacheTTLPost) * time.Second
}

// FetchTimeoutDuration returns the upstream request timeout.
func (c Settings) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// Addr returns the Gemini listen address.
func (c Settings) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SortedPages returns the static pages ordered by slug.
func (c Settings) SortedPages() []Page {
	pages := make([]Page, 0, len(c.Pages))
	for slug, title := range c.Pages {
		pages = append(pages, Page{Slug: slug, Title: title})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Slug < pages[j].Slug })
	return pages
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c Settings) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
