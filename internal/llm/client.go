// Package llm provides an OpenAI-compatible chat-completions client tuned
// for short structured-extraction calls: JSON mode, code-fence stripping,
// request pacing, and bounded retry on transient API failures.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the default OpenAI API endpoint prefix.
	BaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 120 * time.Second

	// DefaultMinInterval spaces successive completion calls so concurrent
	// workers queue briefly instead of bursting at the API.
	DefaultMinInterval = 150 * time.Millisecond

	// SystemPrompt frames every completion call.
	SystemPrompt = "You are an academic assistant generating high-quality, publication-style summary statements of research outcomes."

	maxCompletionTokens = 350

	maxRetries        = 6
	baseRetryDelay    = 2 * time.Second
	minRateLimitDelay = 5 * time.Second
)

// ErrEmptyPrompt is returned when a completion is requested with no prompt.
var ErrEmptyPrompt = errors.New("empty prompt")

// Usage is the token accounting for one completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the assistant reply for one completion call.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	apiKey         string
	baseURL        string
	model          string
	retryDelay     time.Duration
	rateLimitDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key used for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel sets the model requested for completions.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithMinInterval sets the minimum spacing between completion calls.
// A non-positive interval disables pacing entirely.
func WithMinInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithBackoff sets the base delay between retry attempts.
func WithBackoff(backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = backoff
		c.rateLimitDelay = backoff
	}
}

// NewClient creates an LLM client. The API key and model default to the
// OPENAI_API_KEY and OPENAI_MODEL environment variables.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:        rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		apiKey:         os.Getenv("OPENAI_API_KEY"),
		baseURL:        BaseURL,
		model:          os.Getenv("OPENAI_MODEL"),
		retryDelay:     baseRetryDelay,
		rateLimitDelay: minRateLimitDelay,
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one prompt and returns the reply with surrounding
// whitespace trimmed.
func (c *Client) Complete(ctx context.Context, prompt string) (*Response, error) {
	resp, err := c.chat(ctx, prompt, false)
	if err != nil {
		return nil, err
	}
	resp.Content = strings.TrimSpace(resp.Content)
	return resp, nil
}

// CompleteJSON sends one prompt in JSON mode and decodes the reply into an
// object, stripping markdown code fences first. When decoding fails the
// Response is still returned so callers can account for token usage.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (map[string]any, *Response, error) {
	resp, err := c.chat(ctx, prompt, true)
	if err != nil {
		return nil, nil, err
	}

	cleaned := stripCodeFence(resp.Content)
	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, resp, fmt.Errorf("parsing JSON response: %w", err)
	}
	return out, resp, nil
}

func (c *Client) chat(ctx context.Context, prompt string, jsonMode bool) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   maxCompletionTokens,
	}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	respBody, err := c.doPost(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// retryableStatusCode returns true for HTTP status codes that warrant a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *Client) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llm: retrying request",
				"url", url,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Retry on network/timeout errors (not context cancellation).
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("LLM API error %d: %s", resp.StatusCode, string(respBody))

		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		// Rate limiting gets longer waits than ordinary retries.
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimitDelay := c.rateLimitDelay * time.Duration(1<<attempt)
			// Respect Retry-After if provided.
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					headerDelay := time.Duration(seconds) * time.Second
					if headerDelay > rateLimitDelay {
						rateLimitDelay = headerDelay
					}
				}
			}
			slog.Warn("llm: rate limited, waiting before retry",
				"url", url,
				"attempt", attempt+1,
				"delay", rateLimitDelay,
			)
			select {
			case <-time.After(rateLimitDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// stripCodeFence removes a surrounding markdown code fence from a model
// reply. Models in JSON mode still occasionally wrap the object in ```json
// fences.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	}
	if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}
