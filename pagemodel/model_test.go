package pagemodel

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSectionsOrderedJSON(t *testing.T) {
	s := NewSections()
	s.Append("Zebra", "z text")
	s.Append("Alpha", "a text")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	// Insertion order, not key order: Main Content, Zebra, Alpha.
	got := string(data)
	iMain := strings.Index(got, `"Main Content"`)
	iZebra := strings.Index(got, `"Zebra"`)
	iAlpha := strings.Index(got, `"Alpha"`)
	if iMain < 0 || iZebra < 0 || iAlpha < 0 {
		t.Fatalf("missing keys in %s", got)
	}
	if !(iMain < iZebra && iZebra < iAlpha) {
		t.Errorf("keys not in insertion order: %s", got)
	}
}

func TestSectionsRoundtrip(t *testing.T) {
	s := NewSections()
	s.Append("Intro", "first")
	s.Append("Intro", "second")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var got Sections
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	texts, ok := got.Get("Intro")
	if !ok || len(texts) != 2 || texts[0] != "first" {
		t.Fatalf("roundtrip lost content: %v ok=%v", texts, ok)
	}
}

func TestSectionsAppendDedup(t *testing.T) {
	s := NewSections()
	if !s.Append("A", "the full passage of text") {
		t.Fatal("first append rejected")
	}
	if s.Append("A", "full passage") {
		t.Fatal("substring of existing entry should be rejected")
	}
	if !s.Append("A", "a different passage") {
		t.Fatal("distinct text rejected")
	}
	texts, _ := s.Get("A")
	if len(texts) != 2 {
		t.Fatalf("entries = %v", texts)
	}
}

func TestModelJSONFieldNames(t *testing.T) {
	m := &Model{
		Title:    "T",
		Headings: []Heading{{Text: "H", Level: 1}},
		Links:    []Link{{Text: "L", Location: "in main content"}},
		Images:   []Image{{Src: "https://x.example/a.png"}},
		Sections: NewSections(),
	}
	data, err := m.JSON()
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"title"`, `"headings"`, `"links"`, `"images"`, `"main_text"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialized model missing %s: %s", field, data)
		}
	}
}
