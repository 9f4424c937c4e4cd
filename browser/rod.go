package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodDriver implements Driver on a single Rod page. It is not safe for
// concurrent use; the session serializes commands, so one page is enough.
type RodDriver struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *slog.Logger
}

// NewDriver opens a page on the managed browser and wraps it as a Driver.
func NewDriver(m *Manager) (*RodDriver, error) {
	page, err := m.NewPage()
	if err != nil {
		return nil, err
	}
	return &RodDriver{
		page:       page,
		navTimeout: m.cfg.NavTimeout,
		logger:     m.cfg.Logger,
	}, nil
}

// Load navigates to the URL and waits for the load event. A load-event
// timeout is logged but not fatal: many pages are usable long before the
// event fires.
func (d *RodDriver) Load(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	if err := d.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// Source returns the rendered document markup.
func (d *RodDriver) Source(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: page source: %w", err)
	}
	return html, nil
}

// CurrentURL returns the document URL after redirects.
func (d *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

// Back performs a history navigation and waits for the page to settle.
func (d *RodDriver) Back(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	if err := d.page.Context(navCtx).NavigateBack(); err != nil {
		return fmt.Errorf("browser: navigate back: %w", err)
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Warn("browser: wait load after back", "error", err)
	}
	return nil
}

// FindClickable resolves the query via XPath. Link-text strategies compile
// to anchor XPath; ByXPath queries run as given. Any miss or timeout maps
// to ErrNotFound.
func (d *RodDriver) FindClickable(ctx context.Context, s Strategy, query string, timeout time.Duration) (Clickable, error) {
	var xpath string
	switch s {
	case ByLinkText:
		xpath = fmt.Sprintf("//a[normalize-space(.)=%s]", XPathLiteral(query))
	case ByPartialLinkText:
		xpath = fmt.Sprintf("//a[contains(normalize-space(.), %s)]", XPathLiteral(query))
	case ByXPath:
		xpath = query
	default:
		return nil, fmt.Errorf("browser: unknown strategy %q", s)
	}

	el, err := d.page.Context(ctx).Timeout(timeout).ElementX(xpath)
	if err != nil {
		return nil, ErrNotFound
	}
	return &rodClickable{el: el, page: d.page, navTimeout: d.navTimeout}, nil
}

// Close releases the page. The Manager owns the browser itself.
func (d *RodDriver) Close() error {
	if d.page != nil {
		return d.page.Close()
	}
	return nil
}

// rodClickable wraps a located element. Click scrolls it into view, clicks,
// and waits for any resulting navigation to settle.
type rodClickable struct {
	el         *rod.Element
	page       *rod.Page
	navTimeout time.Duration
}

func (c *rodClickable) Click(ctx context.Context) error {
	clickCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()

	el := c.el.Context(clickCtx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll into view: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	// Best effort: in-page anchors never fire a load event.
	_ = c.page.Context(clickCtx).WaitLoad()
	return nil
}

// XPathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so strings containing both quote kinds need concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	var parts []string
	for i, chunk := range strings.Split(s, "'") {
		if i > 0 {
			parts = append(parts, `"'"`)
		}
		if chunk != "" {
			parts = append(parts, "'"+chunk+"'")
		}
	}
	return "concat(" + strings.Join(parts, ", ") + ")"
}
