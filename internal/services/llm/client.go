package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cellar/internal/config"
	"cellar/internal/services"
)

const (
	jsonResponseType      = "json_object"
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	textTemperature       = 0.3
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// ConfigFrom maps application LLM settings onto client settings.
func ConfigFrom(cfg config.LLMConfig) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
}

// Client wraps the chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Configured reports whether the client has credentials to make requests.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// CompleteJSON issues a JSON-only chat completion request with the supplied
// prompts and returns the raw JSON text produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "complete json"
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "system and user prompts required", nil)
	}
	if err := c.requireKey(op); err != nil {
		return "", err
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &responseFormat{Type: jsonResponseType},
	}
	return c.completionContentWithRetry(ctx, payload, op)
}

// CompleteVisionJSON sends an instruction together with an image and returns
// the model's JSON answer. The image MIME type is sniffed from its bytes.
func (c *Client) CompleteVisionJSON(ctx context.Context, instruction string, image []byte) (string, error) {
	const op = "complete vision"
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "instruction required", nil)
	}
	if len(image) == 0 {
		return "", services.Wrap(services.ErrValidation, "llm", op, "image required", nil)
	}
	if err := c.requireKey(op); err != nil {
		return "", err
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with a single JSON object only."},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &imageURL{URL: ImageDataURL(image)}},
			}},
		},
		ResponseFormat: &responseFormat{Type: jsonResponseType},
	}
	return c.completionContentWithRetry(ctx, payload, op)
}

// CompleteText issues a free-text completion for a single prompt.
func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	const op = "complete text"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "prompt required", nil)
	}
	if err := c.requireKey(op); err != nil {
		return "", err
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: textTemperature,
	}
	return c.completionContentWithRetry(ctx, payload, op)
}

// ImageDataURL encodes image as a base64 data URL with a sniffed MIME type.
func ImageDataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))
}

func (c *Client) requireKey(op string) error {
	if !c.Configured() {
		return services.Wrap(services.ErrProviderUnavailable, "llm", op, "api key not configured", nil)
	}
	return nil
}
