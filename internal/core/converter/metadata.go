package converter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UntitledTitle is used when a document has no top-level heading.
const UntitledTitle = "Untitled"

// ExtractMetadata returns the title and publication date of a Bearblog
// document. The title is the text of the first <h1>; the date is the
// datetime attribute of the first <time>, falling back to its text.
// Missing elements degrade to UntitledTitle and an empty date.
func ExtractMetadata(src string) (title, date string) {
	doc, err := parse(src)
	if err != nil {
		return UntitledTitle, ""
	}
	return metadataFrom(doc)
}

func metadataFrom(doc *goquery.Document) (string, string) {
	title := UntitledTitle
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if text := collapse(h1.Text()); text != "" {
			title = text
		}
	}

	var date string
	if t := doc.Find("time").First(); t.Length() > 0 {
		if v, ok := t.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
			date = strings.TrimSpace(v)
		} else {
			date = collapse(t.Text())
		}
	}

	return title, date
}
