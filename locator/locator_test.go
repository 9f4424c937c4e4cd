package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/webguide/browser"
)

// fakeDriver records probe attempts and answers from a canned table.
type fakeDriver struct {
	attempts []string // "strategy query" in call order
	match    func(s browser.Strategy, query string) bool
}

type fakeClickable struct{ clicked bool }

func (c *fakeClickable) Click(ctx context.Context) error {
	c.clicked = true
	return nil
}

func (d *fakeDriver) Load(ctx context.Context, url string) error     { return nil }
func (d *fakeDriver) Source(ctx context.Context) (string, error)     { return "", nil }
func (d *fakeDriver) CurrentURL(ctx context.Context) (string, error) { return "", nil }
func (d *fakeDriver) Back(ctx context.Context) error                 { return nil }

func (d *fakeDriver) FindClickable(ctx context.Context, s browser.Strategy, query string, timeout time.Duration) (browser.Clickable, error) {
	d.attempts = append(d.attempts, string(s)+" "+query)
	if d.match != nil && d.match(s, query) {
		return &fakeClickable{}, nil
	}
	return nil, browser.ErrNotFound
}

func TestLocateFirstStageWins(t *testing.T) {
	d := &fakeDriver{match: func(s browser.Strategy, q string) bool {
		return s == browser.ByLinkText && q == "Sign Up"
	}}
	el, err := New(d, time.Second).Locate(context.Background(), "Sign Up")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if el == nil {
		t.Fatal("nil element")
	}
	if len(d.attempts) != 1 {
		t.Errorf("later stages ran after a hit: %v", d.attempts)
	}
}

func TestLocateFallsThroughToAttributes(t *testing.T) {
	// Exact and partial link text miss; only an aria-label style attribute
	// query matches. The final stage must succeed without the earlier
	// stages erroring out.
	d := &fakeDriver{match: func(s browser.Strategy, q string) bool {
		return s == browser.ByXPath && strings.Contains(q, "@aria-label")
	}}
	el, err := New(d, time.Second).Locate(context.Background(), "Close dialog")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if el == nil {
		t.Fatal("nil element")
	}
	if len(d.attempts) != 4 {
		t.Errorf("expected all 4 stages attempted, got %v", d.attempts)
	}
}

func TestLocateExhaustion(t *testing.T) {
	d := &fakeDriver{}
	_, err := New(d, time.Second).Locate(context.Background(), "nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(d.attempts) != 4 {
		t.Errorf("expected 4 attempts, got %d", len(d.attempts))
	}
}

func TestLocateStageOrder(t *testing.T) {
	d := &fakeDriver{}
	_, _ = New(d, time.Second).Locate(context.Background(), "x")

	wantOrder := []browser.Strategy{
		browser.ByLinkText, browser.ByPartialLinkText, browser.ByXPath, browser.ByXPath,
	}
	for i, want := range wantOrder {
		if !strings.HasPrefix(d.attempts[i], string(want)) {
			t.Errorf("stage %d = %q, want strategy %q", i, d.attempts[i], want)
		}
	}
}

func TestLocateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDriver{}
	if _, err := New(d, time.Second).Locate(ctx, "x"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFoldedTextXPath(t *testing.T) {
	q := foldedTextXPath("Sign UP")
	if !strings.Contains(q, "translate(text()") {
		t.Errorf("missing translate fold: %s", q)
	}
	if !strings.Contains(q, "'sign up'") {
		t.Errorf("target not lowercased: %s", q)
	}
}
