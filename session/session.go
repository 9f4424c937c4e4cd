// Package session owns the navigation state of one conversation: current
// URL, current page model, history stack, and current section. It is the
// exclusive owner of the browser driver; commands are processed one at a
// time, never pipelined, because the underlying handle has no safe
// concurrent-access mode.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/webguide/browser"
	"github.com/hazyhaar/webguide/caption"
	"github.com/hazyhaar/webguide/locator"
	"github.com/hazyhaar/webguide/pagemodel"
	"github.com/hazyhaar/webguide/textmatch"
)

// DefaultImageBatch is how many images DescribeImages captions per call
// when the caller passes a non-positive count.
const DefaultImageBatch = 3

// Notifier posts transient progress notices ("Loading ...") to the user.
// Notices are advisory and best-effort: implementations must never block
// or fail the primary operation, and posting a new notice retires the
// previous one.
type Notifier interface {
	Set(ctx context.Context, text string)
	Clear(ctx context.Context)
}

type nopNotifier struct{}

func (nopNotifier) Set(context.Context, string) {}
func (nopNotifier) Clear(context.Context)       {}

// Config configures a Session.
type Config struct {
	Driver    browser.Driver
	Locator   *locator.Locator
	Captioner caption.Captioner
	Notifier  Notifier
	Logger    *slog.Logger

	// MatchThreshold for section-title fuzzy matching. Default 0.5.
	MatchThreshold float64
}

// Session is the per-conversation navigation state machine: Empty until
// the first successful Navigate, Loaded afterwards, no terminal state.
// Not safe for concurrent use; the dispatcher serializes commands.
type Session struct {
	driver    browser.Driver
	locator   *locator.Locator
	captioner caption.Captioner
	notifier  Notifier
	logger    *slog.Logger
	threshold float64

	url            string
	source         string
	page           *pagemodel.Model
	history        []string
	currentSection string
}

// New creates a Session around an exclusively-owned driver.
func New(cfg Config) *Session {
	if cfg.Locator == nil {
		cfg.Locator = locator.New(cfg.Driver, 0)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = textmatch.DefaultThreshold
	}
	return &Session{
		driver:    cfg.Driver,
		locator:   cfg.Locator,
		captioner: cfg.Captioner,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		threshold: cfg.MatchThreshold,
	}
}

// Loaded reports whether a page has been navigated to.
func (s *Session) Loaded() bool { return s.page != nil }

// CurrentURL returns the current page's URL, empty when nothing is loaded.
func (s *Session) CurrentURL() string { return s.url }

// Page returns the current page model, nil when nothing is loaded.
func (s *Session) Page() *pagemodel.Model { return s.page }

// Source returns the current page's rendered markup.
func (s *Session) Source() string { return s.source }

// CurrentSection returns the active section name, empty when unset.
func (s *Session) CurrentSection() string { return s.currentSection }

// HistoryDepth returns how many pages "go back" can reach.
func (s *Session) HistoryDepth() int { return len(s.history) }

// Navigate loads a URL directly and rebuilds the page model. Direct
// navigation deliberately does not push history: the stack records link
// clicks only, so "go back" retraces the user's path through a site
// instead of hopping between unrelated visits.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	url := ensureScheme(rawURL)

	s.notifier.Set(ctx, "Loading "+url+" ...")
	defer s.notifier.Clear(ctx)

	if err := s.driver.Load(ctx, url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigationFailed, url, err)
	}

	s.notifier.Set(ctx, "Analyzing page content ...")
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.logger.Info("session: navigated", "url", s.url, "history_depth", len(s.history))
	return nil
}

// Click resolves target through the locator cascade and clicks it. The
// pre-click URL is pushed to history before the state is replaced.
func (s *Session) Click(ctx context.Context, target string) error {
	if !s.Loaded() {
		return ErrNotLoaded
	}

	el, err := s.locator.Locate(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrElementNotFound, target)
	}

	s.notifier.Set(ctx, "Navigating to \""+target+"\" ...")
	defer s.notifier.Clear(ctx)

	prev := s.url
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("%w: click %q: %v", ErrNavigationFailed, target, err)
	}
	s.history = append(s.history, prev)

	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.logger.Info("session: clicked", "target", target, "url", s.url, "history_depth", len(s.history))
	return nil
}

// Back pops the history stack and re-navigates to the popped URL.
func (s *Session) Back(ctx context.Context) error {
	if !s.Loaded() {
		return ErrNotLoaded
	}
	if len(s.history) == 0 {
		return ErrNoHistory
	}

	s.notifier.Set(ctx, "Going back to the previous page ...")
	defer s.notifier.Clear(ctx)

	if err := s.driver.Back(ctx); err != nil {
		return fmt.Errorf("%w: back: %v", ErrNavigationFailed, err)
	}

	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	if err := s.refresh(ctx); err != nil {
		return err
	}
	// History is authoritative for where "back" lands.
	s.url = prev
	s.logger.Info("session: went back", "url", s.url, "history_depth", len(s.history))
	return nil
}

// SectionResult is the outcome of a Section lookup.
type SectionResult struct {
	// Title is the matched section title.
	Title string
	// Paragraphs is the section's text, in document order.
	Paragraphs []string
	// Navigated reports that no on-page section matched but a link did,
	// so the session clicked through to a new page instead.
	Navigated bool
}

// Section resolves a free-text section reference against the current page
// model; when no section title matches, it falls back to clicking a
// matching link (many "sections" are separate pages reachable from a nav).
func (s *Session) Section(ctx context.Context, name string) (*SectionResult, error) {
	if !s.Loaded() {
		return nil, ErrNotLoaded
	}

	titles := s.page.Sections.Titles()
	if match, score, ok := textmatch.BestMatch(name, titles, s.threshold); ok {
		s.currentSection = match
		paragraphs, _ := s.page.Sections.Get(match)
		s.logger.Debug("session: section matched", "name", name, "match", match, "score", score)
		return &SectionResult{Title: match, Paragraphs: paragraphs}, nil
	}

	if err := s.Click(ctx, name); err == nil {
		return &SectionResult{Title: name, Navigated: true}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
}

// ImageDescription is one captioned image.
type ImageDescription struct {
	// Index is 1-based within the page's image list.
	Index   int
	Src     string
	Alt     string
	Caption string
}

// ImagesResult is the outcome of a DescribeImages batch.
type ImagesResult struct {
	Descriptions []ImageDescription
	// Remaining counts images after this batch.
	Remaining int
	// Total counts all images on the page.
	Total int
}

// DescribeImages captions a batch of the current page's images, starting
// at the 0-based start index. Caption failures skip the image; they never
// fail the command.
func (s *Session) DescribeImages(ctx context.Context, start, count int) (*ImagesResult, error) {
	if !s.Loaded() {
		return nil, ErrNotLoaded
	}
	if count <= 0 {
		count = DefaultImageBatch
	}

	images := s.page.Images
	res := &ImagesResult{Total: len(images)}
	if start >= len(images) {
		return res, nil
	}

	end := start + count
	if end > len(images) {
		end = len(images)
	}
	res.Remaining = len(images) - end

	for i, img := range images[start:end] {
		idx := start + i + 1
		if !strings.HasPrefix(img.Src, "http://") && !strings.HasPrefix(img.Src, "https://") {
			continue
		}
		s.notifier.Set(ctx, fmt.Sprintf("Analyzing image %d of %d ...", idx, end))

		var text string
		if s.captioner != nil {
			var err error
			text, err = s.captioner.Caption(ctx, img.Src)
			if err != nil {
				s.logger.Warn("session: caption failed", "src", img.Src, "error", err)
				continue
			}
		}
		res.Descriptions = append(res.Descriptions, ImageDescription{
			Index:   idx,
			Src:     img.Src,
			Alt:     img.Alt,
			Caption: text,
		})
	}
	s.notifier.Clear(ctx)
	return res, nil
}

// Close releases the driver if it owns closable resources.
func (s *Session) Close() error {
	if closer, ok := s.driver.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// refresh re-reads URL and markup from the driver and rebuilds the page
// model. Any successful navigation resets the current section.
func (s *Session) refresh(ctx context.Context) error {
	url, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: current url: %v", ErrNavigationFailed, err)
	}
	source, err := s.driver.Source(ctx)
	if err != nil {
		return fmt.Errorf("%w: page source: %v", ErrNavigationFailed, err)
	}
	page, err := pagemodel.Extract(source, url)
	if err != nil {
		return fmt.Errorf("%w: extract: %v", ErrNavigationFailed, err)
	}

	s.url = url
	s.source = source
	s.page = page
	s.currentSection = ""
	return nil
}

// ensureScheme defaults bare hosts to https.
func ensureScheme(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}
