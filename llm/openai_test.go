package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/webguide/pagemodel"
)

// chatServer fakes an OpenAI-compatible endpoint that always replies
// with the given assistant content.
func chatServer(t *testing.T, content string, gotReq *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if gotReq != nil {
			if err := json.NewDecoder(r.Body).Decode(gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func testPage() *pagemodel.Model {
	m := &pagemodel.Model{Title: "Example Store", Sections: pagemodel.NewSections()}
	m.Headings = append(m.Headings, pagemodel.Heading{Text: "Products", Level: 2})
	m.Links = append(m.Links, pagemodel.Link{Text: "Pricing"})
	m.Sections.Ensure("Products")
	return m
}

func TestClassifyIntent(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, `{"action":"click","target":"sign up","details":""}`, &req)
	defer srv.Close()

	c := NewOpenAIClient(Config{Endpoint: srv.URL, Model: "test-model"})
	intent, err := c.ClassifyIntent(context.Background(), "hit the sign up thing", testPage())
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if intent.Action != "click" || intent.Target != "sign up" {
		t.Errorf("intent = %+v", intent)
	}
	if req.Model != "test-model" {
		t.Errorf("request model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, "Example Store") {
		t.Error("page context missing from user message")
	}
}

func TestClassifyIntentFencedJSON(t *testing.T) {
	srv := chatServer(t, "Here you go:\n```json\n{\"action\":\"back\",\"target\":\"\",\"details\":\"\"}\n```", nil)
	defer srv.Close()

	c := NewOpenAIClient(Config{Endpoint: srv.URL, Model: "m"})
	intent, err := c.ClassifyIntent(context.Background(), "go to the last one", nil)
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if intent.Action != "back" {
		t.Errorf("intent = %+v", intent)
	}
}

func TestClassifyIntentBadJSON(t *testing.T) {
	srv := chatServer(t, "I think the user wants to click something.", nil)
	defer srv.Close()

	c := NewOpenAIClient(Config{Endpoint: srv.URL, Model: "m"})
	_, err := c.ClassifyIntent(context.Background(), "do the thing", nil)
	if !errors.Is(err, ErrIntentParse) {
		t.Fatalf("got %v, want ErrIntentParse", err)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{Endpoint: srv.URL, Model: "m"})
	_, err := c.Describe(context.Background(), testPage())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("got %v, want HTTP 503 error", err)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Content: "ok"}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "sk-test"})
	if _, err := c.Summarize(context.Background(), "# Page"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestPageContextNilPage(t *testing.T) {
	got := pageContext(nil)
	if !strings.Contains(got, "No page") {
		t.Errorf("pageContext(nil) = %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prefix {\"a\":1} suffix", `{"a":1}`},
		{"no json here", "no json here"},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
