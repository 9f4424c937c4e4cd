package caption

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/caption" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req captionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.URL != "https://x.example/cat.png" {
			t.Errorf("url = %s", req.URL)
		}
		json.NewEncoder(w).Encode(captionResponse{Caption: "a cat on a sofa"})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	got, err := c.Caption(context.Background(), "https://x.example/cat.png")
	if err != nil {
		t.Fatalf("Caption: %v", err)
	}
	if got != "a cat on a sofa" {
		t.Errorf("caption = %q", got)
	}
}

func TestClientCaptionFailuresMapToUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{"empty caption", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(captionResponse{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(Config{Endpoint: srv.URL})
			_, err := c.Caption(context.Background(), "https://x.example/a.png")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}
