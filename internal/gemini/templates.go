package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.gmi
var templatesFS embed.FS

// Templates holds the parsed gemtext templates.
type Templates struct {
	templates *template.Template
}

// NewTemplates parses all embedded templates.
func NewTemplates() (*Templates, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.gmi")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Templates{templates: tmpl}, nil
}

// Render executes the named template with data.
// Returns an error if the template doesn't exist or rendering fails.
func (t *Templates) Render(name string, data any) ([]byte, error) {
	tmpl := t.templates.Lookup(name)
	if tmpl == nil {
		return nil, fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

type indexPost struct {
	Slug  string
	Title string
	Date  string
}

type indexPage struct {
	Slug  string
	Title string
}

type indexData struct {
	BlogName    string
	Description string
	Pages       []indexPage
	Posts       []indexPost
}

type contentData struct {
	Title  string
	Date   string // empty for pages
	Body   string
	WebURL string
}

type aboutData struct {
	BlogName    string
	Description string
	BearblogURL string
}
