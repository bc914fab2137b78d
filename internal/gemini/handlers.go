// Package gemini serves the proxied blog as a Gemini capsule.
//
// Routing and rendering are pure: Dispatch maps a request URL to a
// Response, and ServeGemini writes that response to the connection.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"git.sr.ht/~adnano/go-gemini"
	"github.com/google/uuid"

	"github.com/alanbato/ursaproxy/internal/core/blog"
	"github.com/alanbato/ursaproxy/internal/core/converter"
)

const (
	// recentPostsLimit is the number of posts listed on the index.
	recentPostsLimit = 10

	// defaultDescription is shown on /about when the feed has none.
	defaultDescription = "A personal blog."
)

// Page is a static page listed on the index.
type Page struct {
	Slug  string
	Title string
}

// Site describes the capsule being served.
type Site struct {
	BlogName    string
	BearblogURL string
	// GeminiHost overrides the request hostname in feed URLs.
	GeminiHost string
	Pages      []Page
}

// Handler routes Gemini requests to the blog service.
type Handler struct {
	blog      blog.Service
	templates *Templates
	site      Site
}

// NewHandler creates a capsule handler.
func NewHandler(service blog.Service, templates *Templates, site Site) (*Handler, error) {
	if service == nil {
		return nil, errors.New("blog service is required")
	}
	if templates == nil {
		return nil, errors.New("templates are required")
	}
	site.BearblogURL = strings.TrimRight(site.BearblogURL, "/")
	return &Handler{blog: service, templates: templates, site: site}, nil
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ServeGemini implements gemini.Handler.
func (h *Handler) ServeGemini(ctx context.Context, w gemini.ResponseWriter, r *gemini.Request) {
	start := time.Now()
	id := uuid.NewString()
	ctx = context.WithValue(ctx, requestIDKey{}, id)

	resp := h.Dispatch(ctx, r.URL)
	if err := resp.Send(w); err != nil {
		slog.Warn("[GEMINI] failed to write response",
			"request_id", id,
			"error", err,
		)
	}

	slog.Info("[GEMINI] request",
		"request_id", id,
		"url", urlString(r.URL),
		"status", int(resp.Status),
		"bytes", len(resp.Body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Dispatch routes u to the matching page.
//
// Routes:
//   - /              index with pages and recent posts
//   - /post/{slug}   blog post
//   - /page/{slug}   static page
//   - /about         blog description
//   - /feed          Atom feed with gemini:// links
func (h *Handler) Dispatch(ctx context.Context, u *url.URL) Response {
	if u == nil {
		return failure(gemini.StatusBadRequest, "Bad request")
	}
	if u.Scheme != "" && u.Scheme != "gemini" {
		return failure(gemini.StatusProxyRequestRefused, "Proxy request refused")
	}

	path := u.Path
	switch {
	case path == "" || path == "/":
		return h.index(ctx)
	case path == "/about":
		return h.about(ctx)
	case path == "/feed":
		return h.feed(ctx, u.Hostname())
	}

	if slug, ok := strings.CutPrefix(path, "/post/"); ok {
		return h.content(ctx, slug, true)
	}
	if slug, ok := strings.CutPrefix(path, "/page/"); ok {
		return h.content(ctx, slug, false)
	}
	return failure(gemini.StatusNotFound, "Not found")
}

func (h *Handler) index(ctx context.Context) Response {
	feed, err := h.blog.Feed(ctx)
	if err != nil {
		return h.errorResponse(ctx, "index", err)
	}
	posts, err := h.blog.RecentPosts(ctx, recentPostsLimit)
	if err != nil {
		return h.errorResponse(ctx, "index", err)
	}

	data := indexData{
		BlogName:    h.site.BlogName,
		Description: feed.Description,
		Pages:       make([]indexPage, 0, len(h.site.Pages)),
		Posts:       make([]indexPost, 0, len(posts)),
	}
	for _, p := range h.site.Pages {
		data.Pages = append(data.Pages, indexPage{Slug: p.Slug, Title: p.Title})
	}
	for _, entry := range posts {
		data.Posts = append(data.Posts, indexPost{
			Slug:  entry.Slug,
			Title: entryTitle(entry.Title),
			Date:  entryDate(entry),
		})
	}
	return h.render(ctx, "index.gmi", data)
}

func (h *Handler) content(ctx context.Context, slug string, isPost bool) Response {
	kind := "page"
	get := h.blog.Page
	if isPost {
		kind = "post"
		get = h.blog.Post
	}

	doc, err := get(ctx, slug)
	if err != nil {
		return h.errorResponse(ctx, kind, err)
	}

	data := contentData{
		Title:  doc.Title,
		Body:   doc.Body,
		WebURL: h.site.BearblogURL + "/" + slug + "/",
	}
	if isPost {
		data.Date = doc.Date
	}
	return h.render(ctx, "post.gmi", data)
}

func (h *Handler) about(ctx context.Context) Response {
	feed, err := h.blog.Feed(ctx)
	if err != nil {
		return h.errorResponse(ctx, "about", err)
	}

	description := feed.Description
	if description == "" {
		description = defaultDescription
	}
	return h.render(ctx, "about.gmi", aboutData{
		BlogName:    h.site.BlogName,
		Description: description,
		BearblogURL: h.site.BearblogURL,
	})
}

func (h *Handler) feed(ctx context.Context, requestHost string) Response {
	host := h.site.GeminiHost
	if host == "" {
		host = requestHost
	}
	if host == "" {
		host = "localhost"
	}

	synd, err := h.blog.Syndication(ctx, "gemini://"+host)
	if err != nil {
		return h.errorResponse(ctx, "feed", err)
	}

	body, err := renderAtom(h.site.BlogName, synd)
	if err != nil {
		slog.Error("[GEMINI] failed to render feed", "request_id", RequestID(ctx), "error", err)
		return failure(gemini.StatusTemporaryFailure, "Internal error")
	}
	return success(mediaAtom, body)
}

func (h *Handler) render(ctx context.Context, name string, data any) Response {
	body, err := h.templates.Render(name, data)
	if err != nil {
		slog.Error("[GEMINI] failed to render template",
			"request_id", RequestID(ctx),
			"template", name,
			"error", err,
		)
		return failure(gemini.StatusTemporaryFailure, "Internal error")
	}
	return success(mediaGemtext, body)
}

// errorResponse maps service errors onto Gemini statuses.
func (h *Handler) errorResponse(ctx context.Context, route string, err error) Response {
	switch {
	case errors.Is(err, blog.ErrNotFound), errors.Is(err, blog.ErrInvalidSlug):
		return failure(gemini.StatusNotFound, "Not found")
	case errors.Is(err, blog.ErrTransient):
		slog.Warn("[GEMINI] upstream unavailable",
			"request_id", RequestID(ctx),
			"route", route,
			"error", err,
		)
		return failure(gemini.StatusTemporaryFailure, "Upstream temporarily unavailable")
	default:
		slog.Error("[GEMINI] request failed",
			"request_id", RequestID(ctx),
			"route", route,
			"error", err,
		)
		return failure(gemini.StatusTemporaryFailure, "Internal error")
	}
}

func entryTitle(title string) string {
	if title == "" {
		return converter.UntitledTitle
	}
	return title
}

// entryDate formats the publication date as YYYY-MM-DD, falling back to the
// leading part of the raw upstream value.
func entryDate(entry blog.FeedEntry) string {
	if entry.PublishedAt != nil && !entry.PublishedAt.IsZero() {
		return entry.PublishedAt.Format(time.DateOnly)
	}
	raw := strings.TrimSpace(entry.Published)
	if len(raw) > 16 {
		raw = strings.TrimSpace(raw[:16])
	}
	return raw
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
