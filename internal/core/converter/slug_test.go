package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSlug(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://b.example/my-post/", "my-post"},
		{"https://b.example/my-post", "my-post"},
		{"https://example.bearblog.dev/", ""},
		{"https://example.com", ""},
		{"", ""},
		{"https://blog.example.com/my-post/", "my-post"},
		{"https://example.com/blog/posts/my-post/", "my-post"},
		{"https://example.com/post-2024-01/", "post-2024-01"},
		{"https://example.com/v1.2-release/", "v1.2-release"},
		{"https://example.com/my-post/?ref=rss", "my-post"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSlug(tt.url))
		})
	}
}

func TestResolveSlug_Idempotent(t *testing.T) {
	for _, src := range []string{
		"https://b.example/my-post/",
		"https://b.example/a/b/c",
		"https://b.example/post-2024-01",
	} {
		slug := ResolveSlug(src)
		rebuilt := "https://b.example/" + slug + "/"
		assert.Equal(t, slug, ResolveSlug(rebuilt), "resolving %q", rebuilt)
	}
}
