package pagemodel

import "github.com/microcosm-cc/bluemonday"

// sanitizePolicy keeps the structural elements and attributes extraction
// needs while dropping scripts, styles, and event handlers. The locator
// queries the live browser DOM, so stripping here never hides a clickable
// target from navigation.
var sanitizePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"html", "head", "title", "body",
		"header", "nav", "main", "footer", "aside", "article", "section",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "div", "span", "br",
		"a", "img",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tr", "th", "td",
		"em", "strong", "b", "i", "blockquote", "pre", "code",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("id", "title", "role", "aria-label").Globally()
	return p
}()

// Sanitize strips markup down to what the extractor understands.
func Sanitize(source string) string {
	return sanitizePolicy.Sanitize(source)
}
