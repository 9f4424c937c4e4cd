package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/webguide/pagemodel"
)

// Config configures the OpenAI-compatible client.
type Config struct {
	// Endpoint is the server base URL, e.g. "http://localhost:8001".
	Endpoint string `yaml:"endpoint"`
	// Model is the model name sent with every request.
	Model string `yaml:"model"`
	// APIKey is optional; local servers usually ignore it.
	APIKey string `yaml:"api_key"`
	// Timeout bounds each request. Default 30s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxTokens caps the completion length. Default 512.
	MaxTokens int `yaml:"max_tokens"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
}

// OpenAIClient implements Client against the /v1/chat/completions API.
type OpenAIClient struct {
	endpoint  string
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
}

// NewOpenAIClient builds a client from cfg.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg.applyDefaults()
	return &OpenAIClient{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// chatMessage is one turn in a chat completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body sent to /v1/chat/completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatResponse is the JSON response (OpenAI format).
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

const classifySystemPrompt = `You classify a user's message about a web page into a JSON object.
Reply with ONLY the JSON object, no prose, shaped exactly like:
{"action": "...", "target": "...", "details": "..."}
action must be one of: navigate, click, back, section, describe_images, summarize, question.
target is the URL, link text, or section name if the action takes one, else "".`

func (c *OpenAIClient) ClassifyIntent(ctx context.Context, raw string, page *pagemodel.Model) (Intent, error) {
	user := fmt.Sprintf("%s\nUser message: %s", pageContext(page), raw)
	reply, err := c.complete(ctx, classifySystemPrompt, user, 0)
	if err != nil {
		return Intent{}, err
	}

	var intent Intent
	if err := json.Unmarshal([]byte(extractJSON(reply)), &intent); err != nil {
		return Intent{}, fmt.Errorf("%w: %q", ErrIntentParse, truncate(reply, 120))
	}
	return intent, nil
}

const describeSystemPrompt = `You describe web pages for a user who cannot see the screen.
Be concise and concrete. Mention the page title, its main headings, and what the user can do next. Two or three sentences.`

func (c *OpenAIClient) Describe(ctx context.Context, page *pagemodel.Model) (string, error) {
	return c.complete(ctx, describeSystemPrompt, pageContext(page), 0.3)
}

const summarizeSystemPrompt = `You summarize web page content for a user who cannot see the screen.
Summarize the following page in a short paragraph, focusing on its substance rather than its layout.`

func (c *OpenAIClient) Summarize(ctx context.Context, markdown string) (string, error) {
	return c.complete(ctx, summarizeSystemPrompt, markdown, 0.3)
}

const answerSystemPrompt = `You answer questions about a web page for a user who cannot see the screen.
Ground your answer in the provided page content. If the page does not contain the answer, say so.`

func (c *OpenAIClient) Answer(ctx context.Context, question string, page *pagemodel.Model) (string, error) {
	user := fmt.Sprintf("%s\nQuestion: %s", pageContext(page), question)
	return c.complete(ctx, answerSystemPrompt, user, 0.3)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned from %s", url)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// extractJSON pulls the first {...} span out of a reply. Models wrap
// JSON in code fences or prose often enough that a strict parse alone
// rejects usable output.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
