// Package locator resolves a free-text target ("sign up", "pricing") to a
// live clickable element through an ordered cascade of DOM probes. Each
// probe is bounded by a short timeout and fails silently; the first hit
// wins. This is a retry cascade, not exception-driven control flow: every
// stage is an independent function returning an optional result.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/webguide/browser"
)

// DefaultStageTimeout bounds one probe. The cascade's total latency is the
// sum of its stage timeouts, so keep this short.
const DefaultStageTimeout = 2 * time.Second

// ErrNotFound reports that every stage of the cascade missed.
var ErrNotFound = errors.New("locator: element not found")

// probe is one stage: it builds a strategy+query pair for a target.
type probe struct {
	name  string
	build func(target string) (browser.Strategy, string)
}

// stages is the cascade in precedence order. Order is behavior: exact link
// text beats substring, anchors beat arbitrary elements, visible text
// beats labeling attributes.
var stages = []probe{
	{
		name: "link_text",
		build: func(t string) (browser.Strategy, string) {
			return browser.ByLinkText, t
		},
	},
	{
		name: "partial_link_text",
		build: func(t string) (browser.Strategy, string) {
			return browser.ByPartialLinkText, t
		},
	},
	{
		name: "any_text_folded",
		build: func(t string) (browser.Strategy, string) {
			return browser.ByXPath, foldedTextXPath(t)
		},
	},
	{
		name: "labelled",
		build: func(t string) (browser.Strategy, string) {
			lit := browser.XPathLiteral(t)
			return browser.ByXPath, fmt.Sprintf(
				"//*[@aria-label=%s or @title=%s or @alt=%s]", lit, lit, lit)
		},
	},
}

// Locator runs the cascade against a Driver.
type Locator struct {
	driver       browser.Driver
	stageTimeout time.Duration
}

// New creates a Locator. A non-positive stageTimeout uses the default.
func New(d browser.Driver, stageTimeout time.Duration) *Locator {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Locator{driver: d, stageTimeout: stageTimeout}
}

// Locate tries each stage in order and returns the first hit. Stage misses
// and timeouts are silent; exhaustion returns ErrNotFound.
func (l *Locator) Locate(ctx context.Context, target string) (browser.Clickable, error) {
	for _, stage := range stages {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		strategy, query := stage.build(target)
		el, err := l.driver.FindClickable(ctx, strategy, query, l.stageTimeout)
		if err == nil {
			return el, nil
		}
	}
	return nil, ErrNotFound
}

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// foldedTextXPath matches any element whose text equals or contains the
// target, case-insensitively. XPath 1.0 has no lower-case(); the fold is an
// explicit translate() over the ASCII range.
func foldedTextXPath(target string) string {
	lower := browser.XPathLiteral(strings.ToLower(target))
	folded := fmt.Sprintf("translate(text(), '%s', '%s')", upperAlpha, lowerAlpha)
	return fmt.Sprintf("//*[%s=%s or contains(%s, %s)]", folded, lower, folded, lower)
}
