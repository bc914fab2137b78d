package blog

import (
	"context"
	"strings"
	"time"
)

// Syndication returns the feed with every post entry pointing at
// baseURL+"/post/"+slug. Entries without a slug are left out. Entries
// without a parseable publication date are stamped with the current time.
func (s *BlogService) Syndication(ctx context.Context, baseURL string) (*Syndication, error) {
	feed, err := s.Feed(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	baseURL = strings.TrimRight(baseURL, "/")

	out := &Syndication{
		BaseURL: baseURL,
		Updated: timeOr(feed.Updated, now),
		Entries: make([]SyndicationEntry, 0, len(feed.Entries)),
	}
	for _, entry := range feed.Entries {
		if entry.Slug == "" {
			continue
		}
		out.Entries = append(out.Entries, SyndicationEntry{
			Title:     entry.Title,
			URL:       baseURL + "/post/" + entry.Slug,
			Published: timeOr(entry.PublishedAt, now),
			Summary:   entry.Summary,
		})
	}
	return out, nil
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}
