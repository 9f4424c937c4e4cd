package session

import "errors"

var (
	// ErrNotLoaded reports a command that needs a page before any page
	// has been navigated to.
	ErrNotLoaded = errors.New("session: no page loaded")

	// ErrNavigationFailed wraps a bad or unreachable URL.
	ErrNavigationFailed = errors.New("session: navigation failed")

	// ErrElementNotFound reports that the locator cascade exhausted all
	// strategies without a hit.
	ErrElementNotFound = errors.New("session: element not found")

	// ErrSectionNotFound reports that neither the page model's sections
	// nor a clickable element matched the requested name.
	ErrSectionNotFound = errors.New("session: section not found")

	// ErrNoHistory reports a back command on an empty history stack.
	ErrNoHistory = errors.New("session: no navigation history")
)
