package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that a FindClickable probe matched nothing within its
// timeout. Probe misses are expected; callers try the next strategy.
var ErrNotFound = errors.New("browser: no matching clickable element")

// Strategy selects how FindClickable interprets its query.
type Strategy string

const (
	// ByLinkText matches an anchor whose visible text equals the query.
	ByLinkText Strategy = "link_text"
	// ByPartialLinkText matches an anchor whose visible text contains the query.
	ByPartialLinkText Strategy = "partial_link_text"
	// ByXPath evaluates the query as a raw XPath expression.
	ByXPath Strategy = "xpath"
)

// Clickable is a live element handle that can be clicked. Handles are only
// valid until the next navigation.
type Clickable interface {
	Click(ctx context.Context) error
}

// Driver is the narrow boundary between the navigation core and the
// underlying browser automation. Implementations must support headless,
// sandboxed operation. All blocking calls honor ctx.
type Driver interface {
	// Load navigates to the URL and waits for the page to settle.
	Load(ctx context.Context, url string) error

	// Source returns the current document's rendered markup.
	Source(ctx context.Context) (string, error)

	// CurrentURL returns the document's URL after any redirects.
	CurrentURL(ctx context.Context) (string, error)

	// Back performs a history navigation to the previous document.
	Back(ctx context.Context) error

	// FindClickable resolves a query to a clickable element handle,
	// waiting up to timeout. A miss returns ErrNotFound, never an
	// implementation-specific error the caller would have to unpack.
	FindClickable(ctx context.Context, s Strategy, query string, timeout time.Duration) (Clickable, error)
}
