package gemini

import (
	"fmt"

	"github.com/gorilla/feeds"

	"github.com/alanbato/ursaproxy/internal/core/blog"
	"github.com/alanbato/ursaproxy/internal/core/converter"
)

// renderAtom builds an Atom document for synd titled blogName.
func renderAtom(blogName string, synd *blog.Syndication) ([]byte, error) {
	feed := &feeds.Feed{
		Title:   blogName,
		Link:    &feeds.Link{Href: synd.BaseURL + "/"},
		Updated: synd.Updated,
		Items:   make([]*feeds.Item, 0, len(synd.Entries)),
	}

	for _, entry := range synd.Entries {
		title := entry.Title
		if title == "" {
			title = converter.UntitledTitle
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       title,
			Link:        &feeds.Link{Href: entry.URL},
			Id:          entry.URL,
			Created:     entry.Published,
			Updated:     entry.Published,
			Description: entry.Summary,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return nil, fmt.Errorf("failed to render atom feed: %w", err)
	}
	return []byte(atom), nil
}
