package converter

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	linkPrefix  = "=> "
	quotePrefix = "> "
	bullet      = "* "
	fence       = "```"

	replacementChar = "\uFFFD"
)

// blockTags are containers whose children are laid out as separate blocks.
var blockTags = map[string]bool{
	"html": true, "body": true, "main": true, "div": true, "section": true,
	"article": true, "header": true, "aside": true, "figure": true,
	"figcaption": true, "details": true, "summary": true, "address": true,
	"center": true, "dl": true, "dt": true, "dd": true, "hgroup": true,
}

// mediaTags become link lines pointing at their source.
var mediaTags = map[string]bool{
	"img": true, "video": true, "audio": true, "iframe": true,
	"embed": true, "source": true, "object": true,
}

// skipTags never produce output even when they slip past sanitization.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "title": true, "meta": true, "link": true,
	"input": true, "button": true, "select": true, "textarea": true,
}

type link struct {
	url   string
	label string
}

func (l link) String() string {
	if l.label == "" {
		return linkPrefix + l.url
	}
	return linkPrefix + l.url + " " + l.label
}

// paragraph accumulates inline content until the enclosing block ends.
type paragraph struct {
	lines []string
	buf   strings.Builder
	links []link
}

func (p *paragraph) addText(s string) {
	p.buf.WriteString(s)
}

// breakLine ends the current line; blank lines are dropped.
func (p *paragraph) breakLine() {
	if line := collapse(p.buf.String()); line != "" {
		p.lines = append(p.lines, line)
	}
	p.buf.Reset()
}

func (p *paragraph) empty() bool {
	return len(p.lines) == 0 && len(p.links) == 0 && strings.TrimSpace(p.buf.String()) == ""
}

func (p *paragraph) reset() {
	p.lines = nil
	p.links = nil
	p.buf.Reset()
}

// renderer emits gemtext blocks in document order.
type renderer struct {
	base   *url.URL
	blocks []string
	para   paragraph
}

func newRenderer(base *url.URL) *renderer {
	return &renderer{base: base}
}

// String joins the emitted blocks, separated by blank lines.
func (r *renderer) String() string {
	r.flush()
	return strings.TrimSpace(strings.ToValidUTF8(strings.Join(r.blocks, "\n\n"), replacementChar))
}

func (r *renderer) emit(lines []string) {
	if len(lines) > 0 {
		r.blocks = append(r.blocks, strings.Join(lines, "\n"))
	}
}

// flush closes the pending implicit paragraph, if any.
func (r *renderer) flush() {
	if r.para.empty() {
		r.para.reset()
		return
	}
	r.para.breakLine()
	lines := append([]string{}, r.para.lines...)
	for _, l := range r.para.links {
		lines = append(lines, l.String())
	}
	r.emit(lines)
	r.para.reset()
}

func (r *renderer) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			r.para.addText(c.Data)
		case html.ElementNode:
			r.element(c)
		}
	}
}

func (r *renderer) element(n *html.Node) {
	tag := n.Data
	switch {
	case skipTags[tag]:
	case tag == "p":
		r.flush()
		r.inlineChildren(n, &r.para)
		r.flush()
	case headingLevel(tag) > 0:
		r.flush()
		r.heading(n, headingLevel(tag))
	case tag == "ul" || tag == "ol":
		r.flush()
		r.list(n)
	case tag == "table":
		r.flush()
		r.table(n)
	case tag == "pre":
		r.flush()
		r.pre(n)
	case tag == "blockquote":
		r.flush()
		r.quote(n)
	case tag == "hr":
		r.flush()
	case tag == "br":
		r.para.breakLine()
	case blockTags[tag]:
		r.flush()
		r.walk(n)
		r.flush()
	default:
		r.inline(n, &r.para)
	}
}

// headingLevel maps h1..h6 to a gemtext depth clipped to three.
func headingLevel(tag string) int {
	if len(tag) != 2 || tag[0] != 'h' || tag[1] < '1' || tag[1] > '6' {
		return 0
	}
	level := int(tag[1] - '0')
	if level > 3 {
		level = 3
	}
	return level
}

func (r *renderer) heading(n *html.Node, level int) {
	var p paragraph
	r.inlineChildren(n, &p)
	p.breakLine()

	var lines []string
	if text := strings.Join(p.lines, " "); text != "" {
		lines = append(lines, strings.Repeat("#", level)+" "+text)
	}
	for _, l := range p.links {
		lines = append(lines, l.String())
	}
	r.emit(lines)
}

// list flattens n and every nested list into one bullet block. Preformatted
// text, tables and quotes found inside items follow the list as their own
// blocks, after the list's link lines.
func (r *renderer) list(n *html.Node) {
	var items []string
	var links []link
	var deferred [][]string
	r.collectItems(n, &items, &links, &deferred)

	lines := make([]string, 0, len(items)+len(links))
	for _, item := range items {
		lines = append(lines, bullet+item)
	}
	for _, l := range links {
		lines = append(lines, l.String())
	}
	r.emit(lines)
	for _, block := range deferred {
		r.emit(block)
	}
}

func (r *renderer) collectItems(list *html.Node, items *[]string, links *[]link, deferred *[][]string) {
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "li":
			var p paragraph
			var nested []*html.Node
			r.itemContent(c, &p, &nested, deferred)
			p.breakLine()
			if text := strings.Join(p.lines, " "); text != "" {
				*items = append(*items, text)
			}
			*links = append(*links, p.links...)
			for _, sub := range nested {
				r.collectItems(sub, items, links, deferred)
			}
		case "ul", "ol":
			r.collectItems(c, items, links, deferred)
		}
	}
}

// itemContent gathers the inline text of a list item into p. Block children
// end the current line, nested lists are returned for flattening and
// preformatted blocks are deferred.
func (r *renderer) itemContent(n *html.Node, p *paragraph, nested *[]*html.Node, deferred *[][]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			r.inline(c, p)
			continue
		}

		tag := c.Data
		switch {
		case skipTags[tag]:
		case tag == "ul" || tag == "ol":
			*nested = append(*nested, c)
		case tag == "pre":
			if lines := preLines(c); lines != nil {
				*deferred = append(*deferred, lines)
			}
		case tag == "table":
			if lines := tableLines(c); lines != nil {
				*deferred = append(*deferred, lines)
			}
		case tag == "blockquote":
			*deferred = append(*deferred, r.quoteBlocks(c)...)
		case tag == "br":
			p.breakLine()
		case tag == "p" || headingLevel(tag) > 0 || blockTags[tag]:
			p.breakLine()
			r.itemContent(c, p, nested, deferred)
			p.breakLine()
		default:
			r.inline(c, p)
		}
	}
}

// table renders rows as preformatted lines with cells in source order.
func (r *renderer) table(n *html.Node) {
	r.emit(tableLines(n))
}

func tableLines(n *html.Node) []string {
	var rows []string
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "table":
				// nested tables are flattened into their cell text
			case "tr":
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						cells = append(cells, collapse(blockText(cell)))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, strings.TrimRight(strings.Join(cells, " | "), " "))
				}
			default:
				visit(c)
			}
		}
	}
	visit(n)

	if len(rows) == 0 {
		return nil
	}
	lines := append([]string{fence}, rows...)
	return append(lines, fence)
}

func (r *renderer) pre(n *html.Node) {
	r.emit(preLines(n))
}

func preLines(n *html.Node) []string {
	text := strings.TrimRight(textContent(n), "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []string{fence, text, fence}
}

// quote renders n in isolation and prefixes its text lines. Link lines and
// preformatted blocks are left alone so they keep their meaning.
func (r *renderer) quote(n *html.Node) {
	for _, block := range r.quoteBlocks(n) {
		r.emit(block)
	}
}

func (r *renderer) quoteBlocks(n *html.Node) [][]string {
	sub := newRenderer(r.base)
	sub.walk(n)
	sub.flush()

	blocks := make([][]string, 0, len(sub.blocks))
	for _, block := range sub.blocks {
		lines := strings.Split(block, "\n")
		inFence := false
		for i, line := range lines {
			switch {
			case line == fence:
				inFence = !inFence
			case inFence, strings.HasPrefix(line, linkPrefix):
			default:
				lines[i] = quotePrefix + line
			}
		}
		blocks = append(blocks, lines)
	}
	return blocks
}

func (r *renderer) inlineChildren(n *html.Node, p *paragraph) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.inline(c, p)
	}
}

// inline collects the text, links and media of n into p.
func (r *renderer) inline(n *html.Node, p *paragraph) {
	switch n.Type {
	case html.TextNode:
		p.addText(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	tag := n.Data
	switch {
	case skipTags[tag]:
		return
	case tag == "br":
		p.breakLine()
		return
	case tag == "a":
		if target, ok := r.target(attr(n, "href")); ok {
			p.links = append(p.links, link{url: target, label: collapse(textContent(n))})
		}
	case mediaTags[tag]:
		if target, ok := r.target(attr(n, "src")); ok {
			p.links = append(p.links, link{url: target, label: mediaLabel(n)})
			return
		}
		if tag != "video" && tag != "audio" && tag != "object" {
			return
		}
		// Players without src list their media as <source> children.
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "source" {
				r.inline(c, p)
			}
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.inline(c, p)
	}
}

// target normalizes a link or media reference. Fragment-only and script
// URLs are dropped.
func (r *renderer) target(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return "", false
	}
	if r.base == nil {
		return raw, true
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw, true
	}
	return r.base.ResolveReference(ref).String(), true
}

func mediaLabel(n *html.Node) string {
	for _, key := range []string{"alt", "title"} {
		if v := collapse(attr(n, key)); v != "" {
			return v
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates every text node below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && skipTags[node.Data] {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

// blockText is textContent with a space at every element boundary that
// would start a new line, so adjacent blocks do not run together.
func blockText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode {
			if skipTags[node.Data] {
				return
			}
			if lineBreaking(node.Data) {
				sb.WriteByte(' ')
				defer sb.WriteByte(' ')
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func lineBreaking(tag string) bool {
	switch tag {
	case "p", "br", "pre", "li", "ul", "ol", "blockquote", "table", "tr", "td", "th", "hr":
		return true
	}
	return blockTags[tag] || headingLevel(tag) > 0
}

// collapse trims s, folds whitespace runs into single spaces and replaces
// invalid UTF-8.
func collapse(s string) string {
	return strings.ToValidUTF8(strings.Join(strings.Fields(s), " "), replacementChar)
}
