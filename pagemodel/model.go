// Package pagemodel converts rendered HTML into the structured, navigable
// model the rest of the system works against: headings, links with context,
// images, and sectioned text keyed by the nearest preceding heading.
package pagemodel

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultSection is the section that always exists, even when the page has
// no text before its first heading.
const DefaultSection = "Main Content"

// Heading is one h1–h3 element in document order.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	ID    string `json:"id"`
}

// Link is an anchor with its surrounding-text description and a free-text
// positional hint ("in the nav item 2 in a list", "in main content").
type Link struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Image is an image with an absolute source URL and the name of its
// containing tag.
type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Context string `json:"context"`
}

// Model is the structured extraction of one rendered page. It is rebuilt on
// every successful navigation and owned exclusively by the session.
type Model struct {
	Title    string    `json:"title"`
	Headings []Heading `json:"headings"`
	Links    []Link    `json:"links"`
	Images   []Image   `json:"images"`
	Sections *Sections `json:"main_text"`
}

// JSON serializes the model with the stable field names the language
// collaborators consume (title, headings, links, images, main_text).
func (m *Model) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// HeadingTitles returns the heading texts in document order.
func (m *Model) HeadingTitles() []string {
	titles := make([]string, 0, len(m.Headings))
	for _, h := range m.Headings {
		titles = append(titles, h.Text)
	}
	return titles
}

// LinkTexts returns the link texts in document order.
func (m *Model) LinkTexts() []string {
	texts := make([]string, 0, len(m.Links))
	for _, l := range m.Links {
		texts = append(texts, l.Text)
	}
	return texts
}

// Sections maps section titles to paragraph text, preserving insertion
// order (= document order). Titles are unique.
type Sections struct {
	titles  []string
	content map[string][]string
}

// NewSections creates a Sections with the default section pre-created.
func NewSections() *Sections {
	s := &Sections{content: make(map[string][]string)}
	s.Ensure(DefaultSection)
	return s
}

// Ensure creates the named section if it does not exist yet.
func (s *Sections) Ensure(title string) {
	if _, ok := s.content[title]; ok {
		return
	}
	s.titles = append(s.titles, title)
	s.content[title] = nil
}

// Append adds text to the named section unless an existing entry already
// contains it as a substring. Nested containers repeat their parents' text;
// the substring check keeps each passage once.
func (s *Sections) Append(title, text string) bool {
	s.Ensure(title)
	for _, existing := range s.content[title] {
		if strings.Contains(existing, text) {
			return false
		}
	}
	s.content[title] = append(s.content[title], text)
	return true
}

// Get returns the paragraphs of the named section.
func (s *Sections) Get(title string) ([]string, bool) {
	texts, ok := s.content[title]
	return texts, ok
}

// Titles returns the section titles in insertion order.
func (s *Sections) Titles() []string {
	return append([]string(nil), s.titles...)
}

// Len returns the number of sections.
func (s *Sections) Len() int { return len(s.titles) }

// MarshalJSON writes the sections as a JSON object with keys in insertion
// order. encoding/json sorts map keys, which would lose document order.
func (s *Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, title := range s.titles {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(title)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		texts := s.content[title]
		if texts == nil {
			texts = []string{}
		}
		val, err := json.Marshal(texts)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a plain JSON object. Key order within the object is
// not recoverable from encoding/json, so titles are restored in the order
// they appear in the raw bytes.
func (s *Sections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}
	s.titles = nil
	s.content = make(map[string][]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		title := keyTok.(string)
		var texts []string
		if err := dec.Decode(&texts); err != nil {
			return err
		}
		s.titles = append(s.titles, title)
		s.content[title] = texts
	}
	_, err = dec.Token() // closing brace
	return err
}
