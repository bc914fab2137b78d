package gemini

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbato/ursaproxy/internal/core/blog"
)

type atomDoc struct {
	Title   string `xml:"title"`
	Updated string `xml:"updated"`
	Entries []struct {
		Title   string `xml:"title"`
		ID      string `xml:"id"`
		Updated string `xml:"updated"`
		Link    struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func TestRenderAtom(t *testing.T) {
	updated := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	synd := &blog.Syndication{
		BaseURL: "gemini://capsule.example",
		Updated: updated,
		Entries: []blog.SyndicationEntry{
			{Title: "Hello & welcome", URL: "gemini://capsule.example/post/hello", Published: updated, Summary: "Hi <b>there</b>"},
			{Title: "", URL: "gemini://capsule.example/post/untitled", Published: updated},
		},
	}

	out, err := renderAtom("My Blog", synd)
	require.NoError(t, err)

	var doc atomDoc
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, "My Blog", doc.Title)
	assert.Equal(t, "2024-06-15T12:00:00Z", doc.Updated)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "Hello & welcome", doc.Entries[0].Title)
	assert.Equal(t, "gemini://capsule.example/post/hello", doc.Entries[0].ID)
	assert.Equal(t, "gemini://capsule.example/post/hello", doc.Entries[0].Link.Href)
	assert.Equal(t, "Untitled", doc.Entries[1].Title)
}

func TestRenderAtom_Empty(t *testing.T) {
	out, err := renderAtom("Empty", &blog.Syndication{BaseURL: "gemini://localhost", Updated: time.Now()})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<feed")
}
