package pagemodel

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extract parses rendered page markup and builds the Model. baseURL is the
// page's own URL, used to absolutize relative image sources. The markup is
// sanitized first so scripts, styles and event handlers never reach the
// walkers.
func Extract(source, baseURL string) (*Model, error) {
	doc, err := html.Parse(strings.NewReader(Sanitize(source)))
	if err != nil {
		return nil, fmt.Errorf("pagemodel: parse: %w", err)
	}
	return FromDocument(doc, baseURL), nil
}

// FromDocument builds the Model from an already-parsed document tree.
func FromDocument(doc *html.Node, baseURL string) *Model {
	m := &Model{
		Title:    findTitle(doc),
		Sections: NewSections(),
	}
	collectHeadings(doc, m)
	collectLinks(doc, m)
	collectImages(doc, m, baseURL)
	collectSections(doc, m)
	return m
}

// findTitle returns the <title> text, if any.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return nodeText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectHeadings gathers h1–h3 in document order, skipping empty ones.
func collectHeadings(n *html.Node, m *Model) {
	if lvl := headingLevel(n); lvl > 0 {
		text := nodeText(n)
		if text != "" {
			m.Headings = append(m.Headings, Heading{
				Text:  text,
				Level: lvl,
				ID:    attr(n, "id"),
			})
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectHeadings(c, m)
	}
}

// collectLinks gathers anchors that have both visible text and an href.
func collectLinks(n *html.Node, m *Model) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		text := nodeText(n)
		if text != "" && attr(n, "href") != "" {
			m.Links = append(m.Links, Link{
				Text:        text,
				Description: surroundingText(n, text),
				Location:    locationHint(n),
			})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLinks(c, m)
	}
}

// surroundingText slices the link's own text out of its parent's full text,
// giving the words before and after the link. Guards against the link text
// not being found in the parent (negative slice in the naive version).
func surroundingText(link *html.Node, linkText string) string {
	if link.Parent == nil {
		return ""
	}
	full := nodeText(link.Parent)
	pos := strings.Index(full, linkText)
	if pos < 0 {
		return ""
	}
	var parts []string
	if before := strings.TrimSpace(full[:pos]); before != "" {
		parts = append(parts, before)
	}
	if after := strings.TrimSpace(full[pos+len(linkText):]); after != "" {
		parts = append(parts, after)
	}
	return strings.Join(parts, " ")
}

// locationHint describes where an element sits: the first landmark ancestor
// (header/nav/footer/aside), its 1-based position among list items, or
// "in main content" when neither applies.
func locationHint(n *html.Node) string {
	var parts []string

	for p := n.Parent; p != nil; p = p.Parent {
		switch p.DataAtom {
		case atom.Header, atom.Nav, atom.Footer, atom.Aside:
			parts = append(parts, "in the "+p.Data)
		}
		if len(parts) > 0 {
			break
		}
	}

	if list := listAncestor(n); list != nil {
		items := findAll(list, atom.Li)
		for i, item := range items {
			if isDescendant(n, item) {
				parts = append(parts, fmt.Sprintf("item %d in a list", i+1))
				break
			}
		}
	}

	if len(parts) == 0 {
		return "in main content"
	}
	return strings.Join(parts, " ")
}

// collectImages gathers images with a non-empty src, absolutized against
// the page URL.
func collectImages(n *html.Node, m *Model, baseURL string) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		if src := attr(n, "src"); src != "" {
			context := "unknown"
			if n.Parent != nil && n.Parent.Type == html.ElementNode {
				context = n.Parent.Data
			}
			m.Images = append(m.Images, Image{
				Src:     absoluteURL(baseURL, src),
				Alt:     attr(n, "alt"),
				Context: context,
			})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectImages(c, m, baseURL)
	}
}

// absoluteURL joins a relative src onto the page URL. Sources that already
// carry a scheme pass through untouched.
func absoluteURL(base, src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if base == "" {
		return src
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(src, "/")
}

// collectSections runs a single forward pass over headings and text
// containers. A heading switches the current section; p/div text is
// appended to it with substring dedup (see Sections.Append).
func collectSections(doc *html.Node, m *Model) {
	current := DefaultSection

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if headingLevel(n) > 0 {
			if text := nodeText(n); text != "" {
				current = text
				m.Sections.Ensure(current)
			}
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.P || n.DataAtom == atom.Div) {
			if text := nodeText(n); text != "" {
				m.Sections.Append(current, text)
			}
			// Keep descending: nested containers may introduce headings
			// that start new sections.
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

// headingLevel returns 1–3 for h1–h3 element nodes, 0 otherwise.
func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	}
	return 0
}

// nodeText flattens all text under n, trimming each fragment and joining
// with single spaces.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func listAncestor(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Ul || p.DataAtom == atom.Ol {
			return p
		}
	}
	return nil
}

func findAll(root *html.Node, tag atom.Atom) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

func isDescendant(n, ancestor *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
