// Package converter turns Bearblog HTML into gemtext.
//
// The projection is rule-based and deterministic: the primary content region
// (<main>, falling back to <body>) is sanitized, then walked once to emit
// gemtext blocks. Inline formatting is dropped, links and media are moved to
// standalone link lines after their block, lists are flattened and tables
// become preformatted text. The conversion is lossy on purpose.
package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// excludedSelector lists elements that never contribute to the body.
const excludedSelector = "script, style, nav, footer, form, noscript, template"

// Result is the outcome of converting one document.
type Result struct {
	Title string
	Date  string
	Body  string
}

// Option configures a conversion.
type Option func(*options)

type options struct {
	base *url.URL
}

// WithBaseURL resolves relative link and media targets against base.
// An unparsable or empty base leaves targets untouched.
func WithBaseURL(base string) Option {
	return func(o *options) {
		if base == "" {
			return
		}
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			o.base = u
		}
	}
}

// Convert parses src once, extracts its metadata and renders its body.
// Metadata is read before sanitization because the title heading is
// removed from the rendered body.
func Convert(src string, opts ...Option) Result {
	doc, err := parse(src)
	if err != nil {
		return Result{Title: UntitledTitle}
	}

	title, date := metadataFrom(doc)
	return Result{
		Title: title,
		Date:  date,
		Body:  gemtextFrom(doc, buildOptions(opts)),
	}
}

// ToGemtext renders the primary content region of src as gemtext.
// Documents without a body yield an empty string.
func ToGemtext(src string, opts ...Option) string {
	doc, err := parse(src)
	if err != nil {
		return ""
	}
	return gemtextFrom(doc, buildOptions(opts))
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func parse(src string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(src))
}

// gemtextFrom sanitizes the content region of doc in place and renders it.
func gemtextFrom(doc *goquery.Document, o options) string {
	region := doc.Find("main").First()
	if region.Length() == 0 {
		region = doc.Find("body").First()
	}
	if region.Length() == 0 {
		return ""
	}

	region.Find(excludedSelector).Remove()
	region.Find("h1").First().Remove()

	r := newRenderer(o.base)
	r.walk(region.Get(0))
	return r.String()
}
