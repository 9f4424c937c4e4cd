package pagemodel

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Acme Widgets</title></head>
<body>
<header>
  <nav>
    <ul>
      <li><a href="/">Home</a></li>
      <li><a href="/pricing">Pricing</a></li>
      <li><a href="/about">About Us</a></li>
    </ul>
  </nav>
</header>
<h1 id="top">Welcome</h1>
<p>Acme builds widgets. <a href="/signup">Sign Up Now</a> to get started.</p>
<h2 id="pricing">Pricing</h2>
<div><p>Plans start at $5 per month.</p></div>
<img src="/img/widget.png" alt="A widget">
<img src="https://cdn.example.com/logo.png" alt="">
<img alt="no source">
<h3>Contact</h3>
<p>Email us any time.</p>
<footer><a href="/legal">Legal</a></footer>
</body>
</html>`

func extractSample(t *testing.T) *Model {
	t.Helper()
	m, err := Extract(samplePage, "https://acme.example/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return m
}

func TestExtractTitle(t *testing.T) {
	m := extractSample(t)
	if m.Title != "Acme Widgets" {
		t.Errorf("Title = %q", m.Title)
	}
}

func TestExtractHeadingsInOrder(t *testing.T) {
	m := extractSample(t)
	want := []struct {
		text  string
		level int
		id    string
	}{
		{"Welcome", 1, "top"},
		{"Pricing", 2, "pricing"},
		{"Contact", 3, ""},
	}
	if len(m.Headings) != len(want) {
		t.Fatalf("got %d headings, want %d: %+v", len(m.Headings), len(want), m.Headings)
	}
	for i, w := range want {
		h := m.Headings[i]
		if h.Text != w.text || h.Level != w.level || h.ID != w.id {
			t.Errorf("heading[%d] = %+v, want %+v", i, h, w)
		}
	}
}

func TestExtractLinks(t *testing.T) {
	m := extractSample(t)

	byText := map[string]Link{}
	for _, l := range m.Links {
		byText[l.Text] = l
	}

	signup, ok := byText["Sign Up Now"]
	if !ok {
		t.Fatalf("missing Sign Up Now link: %+v", m.Links)
	}
	if !strings.Contains(signup.Description, "Acme builds widgets.") {
		t.Errorf("description missing leading text: %q", signup.Description)
	}
	if !strings.Contains(signup.Description, "to get started.") {
		t.Errorf("description missing trailing text: %q", signup.Description)
	}
	if signup.Location != "in main content" {
		t.Errorf("signup location = %q", signup.Location)
	}

	pricing, ok := byText["Pricing"]
	if !ok {
		t.Fatal("missing Pricing nav link")
	}
	if pricing.Location != "in the nav item 2 in a list" {
		t.Errorf("pricing location = %q", pricing.Location)
	}

	legal, ok := byText["Legal"]
	if !ok {
		t.Fatal("missing footer link")
	}
	if legal.Location != "in the footer" {
		t.Errorf("legal location = %q", legal.Location)
	}
}

func TestExtractImages(t *testing.T) {
	m := extractSample(t)
	if len(m.Images) != 2 {
		t.Fatalf("got %d images, want 2 (src-less dropped): %+v", len(m.Images), m.Images)
	}
	if m.Images[0].Src != "https://acme.example/img/widget.png" {
		t.Errorf("relative src not absolutized: %q", m.Images[0].Src)
	}
	if m.Images[0].Alt != "A widget" {
		t.Errorf("alt = %q", m.Images[0].Alt)
	}
	if m.Images[1].Src != "https://cdn.example.com/logo.png" {
		t.Errorf("absolute src altered: %q", m.Images[1].Src)
	}
}

func TestExtractSections(t *testing.T) {
	m := extractSample(t)

	titles := m.Sections.Titles()
	if titles[0] != DefaultSection {
		t.Fatalf("first section = %q, want %q", titles[0], DefaultSection)
	}

	pricing, ok := m.Sections.Get("Pricing")
	if !ok {
		t.Fatalf("no Pricing section; titles: %v", titles)
	}
	// The wrapping div and its inner p flatten to the same text; the
	// substring dedup keeps exactly one entry.
	if len(pricing) != 1 {
		t.Fatalf("Pricing entries = %v, want exactly one", pricing)
	}
	if pricing[0] != "Plans start at $5 per month." {
		t.Errorf("Pricing text = %q", pricing[0])
	}

	contact, ok := m.Sections.Get("Contact")
	if !ok || len(contact) == 0 || contact[0] != "Email us any time." {
		t.Errorf("Contact section = %v, ok=%v", contact, ok)
	}
}

func TestExtractDefaultSectionAlwaysExists(t *testing.T) {
	m, err := Extract("<html><body><h1>Only a heading</h1></body></html>", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Sections.Get(DefaultSection); !ok {
		t.Fatal("default section missing")
	}
}

func TestExtractStripsScripts(t *testing.T) {
	page := `<html><body><p>visible</p><script>var hidden = "secret";</script></body></html>`
	m, err := Extract(page, "")
	if err != nil {
		t.Fatal(err)
	}
	main, _ := m.Sections.Get(DefaultSection)
	for _, text := range main {
		if strings.Contains(text, "secret") {
			t.Errorf("script text leaked into sections: %q", text)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		base, src, want string
	}{
		{"https://a.example/", "/img/x.png", "https://a.example/img/x.png"},
		{"https://a.example", "img/x.png", "https://a.example/img/x.png"},
		{"https://a.example/page/", "https://b.example/y.png", "https://b.example/y.png"},
		{"", "x.png", "x.png"},
	}
	for _, tt := range tests {
		if got := absoluteURL(tt.base, tt.src); got != tt.want {
			t.Errorf("absoluteURL(%q, %q) = %q, want %q", tt.base, tt.src, got, tt.want)
		}
	}
}
