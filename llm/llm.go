// Package llm talks to an OpenAI-compatible chat completions endpoint.
// It covers vLLM, Ollama, llama.cpp server, and OpenAI itself. The
// client does two jobs: free-form generation (descriptions, summaries,
// answers grounded in a page model) and intent classification for
// messages the deterministic classifier could not place.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/webguide/pagemodel"
)

// ErrIntentParse reports that the model's classification reply was not
// the expected JSON object. Callers treat the message as a generic
// question instead of failing.
var ErrIntentParse = errors.New("llm: intent reply is not valid JSON")

// Intent is a structured reading of a free-form user message.
type Intent struct {
	// Action is one of "navigate", "click", "back", "section",
	// "describe_images", "summarize", "question".
	Action string `json:"action"`
	// Target is the action's argument: a URL, link text, or section name.
	Target string `json:"target"`
	// Details carries any extra qualifier the model extracted.
	Details string `json:"details"`
}

// Client is the language-understanding boundary. Implementations must be
// safe for sequential use from a single dispatcher goroutine; nothing
// here is called concurrently.
type Client interface {
	// ClassifyIntent maps a raw message to an Intent, optionally grounded
	// in the current page. A syntactically broken reply is ErrIntentParse.
	ClassifyIntent(ctx context.Context, raw string, page *pagemodel.Model) (Intent, error)

	// Describe produces a short spoken-style description of the page.
	Describe(ctx context.Context, page *pagemodel.Model) (string, error)

	// Summarize condenses the page's markdown rendition.
	Summarize(ctx context.Context, markdown string) (string, error)

	// Answer responds to a question grounded in the page.
	Answer(ctx context.Context, question string, page *pagemodel.Model) (string, error)
}

// pageContext renders the parts of a page model worth showing a model:
// title, headings, link texts, and section titles. Kept compact so it
// fits small context windows.
func pageContext(page *pagemodel.Model) string {
	if page == nil {
		return "No page is currently loaded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Page title: %s\n", page.Title)
	if titles := page.HeadingTitles(); len(titles) > 0 {
		fmt.Fprintf(&b, "Headings: %s\n", strings.Join(titles, "; "))
	}
	if links := page.LinkTexts(); len(links) > 0 {
		if len(links) > 20 {
			links = links[:20]
		}
		fmt.Fprintf(&b, "Links: %s\n", strings.Join(links, "; "))
	}
	if page.Sections != nil {
		if sections := page.Sections.Titles(); len(sections) > 0 {
			fmt.Fprintf(&b, "Sections: %s\n", strings.Join(sections, "; "))
		}
	}
	return b.String()
}
