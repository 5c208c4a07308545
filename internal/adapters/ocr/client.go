// Package ocr extracts result rows from a screenshot with a vision-capable
// chat completion model (OpenRouter compatible).
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
	"github.com/eito54/grosoq/pkg/metrics"
)

const (
	defaultBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel        = "google/gemini-2.0-flash-001"
	defaultTimeout      = 45 * time.Second
	defaultMaxRetries   = 2
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
	maxResponseBytes    = 1 << 20
	maxTokens           = 2000
)

// Config captures the settings required to talk to the model.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Referer           string
	Title             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// Client implements recognition over the chat completion API.
type Client struct {
	cfg      Config
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   logger.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the transport used underneath the retry layer.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http.HTTPClient = hc
		}
	}
}

// WithRetryWait overrides the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		if minWait >= 0 && maxWait >= minWait {
			c.http.RetryWaitMin = minWait
			c.http.RetryWaitMax = maxWait
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	c := &Client{
		cfg:      cfg,
		http:     rc,
		limiter:  rate.NewLimiter(limit, 1),
		validate: validator.New(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	rc.Logger = leveledLogger{l: c.logger}
	return c
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string      `json:"message"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// Recognize sends image to the model and returns the rows it read. The
// mapping is only used as a spelling hint.
func (c *Client) Recognize(ctx context.Context, image []byte, mode model.Mode, mapping model.PlayerMapping) ([]model.RawPlayerResult, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	content, err := c.complete(ctx, c.buildRequest(image, mode, mapping))
	if err != nil {
		return nil, err
	}

	rows, dropped, err := parseScreen(content, c.validate)
	for _, d := range dropped {
		c.logger.Warn(ctx, "dropped unreadable row", logger.Error(d))
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordPlayersPerResult(len(rows))
	return rows, nil
}

func (c *Client) buildRequest(image []byte, mode model.Mode, mapping model.PlayerMapping) chatRequest {
	dataURI := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: buildPrompt(mode, mapping)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			}},
		},
		Temperature:    0,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
}

// complete performs the request and returns the first non-empty message.
func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, body)
	if err != nil {
		return "", fmt.Errorf("%w: new request: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordOCRLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("%w: decode envelope: %v", ErrMalformedResponse, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%w: api error: %s", ErrTransport, strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	if len(completion.Choices) > 0 && completion.Choices[0].Message.Refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", ErrNotResultScreen, completion.Choices[0].Message.Refusal)
	}
	return "", fmt.Errorf("%w: empty content (%s)", ErrMalformedResponse, snippet(string(raw)))
}

// leveledLogger routes retry diagnostics to the service logger.
type leveledLogger struct {
	l logger.Logger
}

func (ll leveledLogger) Error(msg string, kv ...interface{}) {
	ll.l.Error(context.Background(), msg, kvFields(kv)...)
}

func (ll leveledLogger) Info(msg string, kv ...interface{}) {
	ll.l.Debug(context.Background(), msg, kvFields(kv)...)
}

func (ll leveledLogger) Debug(msg string, kv ...interface{}) {
	ll.l.Debug(context.Background(), msg, kvFields(kv)...)
}

func (ll leveledLogger) Warn(msg string, kv ...interface{}) {
	ll.l.Warn(context.Background(), msg, kvFields(kv)...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
