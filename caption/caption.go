// Package caption is the boundary to the image-captioning collaborator.
// The core treats captioning as strictly best-effort: an unavailable
// captioner means "no description", never a failed command.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable reports that the captioning service could not produce a
// description. Callers skip the image and move on.
var ErrUnavailable = errors.New("caption: captioning unavailable")

// Captioner produces a one-line description of an image by URL.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (string, error)
}

// Config configures the HTTP captioner client.
type Config struct {
	// Endpoint is the base URL of the captioning service.
	Endpoint string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Timeout bounds one caption call. Default: 15s.
	Timeout time.Duration
}

// Client calls a captioning service over HTTP: POST /v1/caption with
// {"url": ...}, expecting {"caption": ...} back.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates an HTTP captioner.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type captionRequest struct {
	URL string `json:"url"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

// Caption describes the image at imageURL. Every upstream failure maps
// to ErrUnavailable with the cause attached so callers can fall back to
// alt text.
func (c *Client) Caption(ctx context.Context, imageURL string) (string, error) {
	body, err := json.Marshal(captionRequest{URL: imageURL})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/caption", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var parsed captionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if parsed.Caption == "" {
		return "", fmt.Errorf("%w: empty caption", ErrUnavailable)
	}
	return parsed.Caption, nil
}
