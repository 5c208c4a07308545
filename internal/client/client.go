// Package client is a typed HTTP client for the grosoq API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	service "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 90 * time.Second
	defaultRetries = 2
)

// Config holds the client settings.
type Config struct {
	BaseURL    string        // Base URL of the service
	Timeout    time.Duration // HTTP request timeout
	MaxRetries int           // Retries on connection errors and 5xx
}

// Client talks to a running grosoq server.
type Client struct {
	base   *url.URL
	http   *retryablehttp.Client
	logger logger.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryWait overrides the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultRetries
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = cfg.MaxRetries
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	c := &Client{base: base, http: rc, logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// checkRetry retries transport failures and 5xx, except the 502 the
// server uses to report a failed recognition.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusBadGateway {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Analyze uploads image for mode. A failed analysis is reported through
// the returned Outcome, not through err.
func (c *Client) Analyze(ctx context.Context, image []byte, mode model.Mode) (*service.Outcome, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	q := url.Values{"mode": {mode.String()}}
	resp, err := c.do(ctx, http.MethodPost, "/analyze?"+q.Encode(), image, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out service.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrUnexpectedResponse, resp.StatusCode, err)
	}
	if !out.Success && out.Code == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return &out, nil
}

// Scores returns the ranked ledger.
func (c *Client) Scores(ctx context.Context) ([]model.Standing, error) {
	return c.standings(ctx, http.MethodGet, "/scores", nil)
}

// SetScore overwrites the score of team.
func (c *Client) SetScore(ctx context.Context, team string, score int) ([]model.Standing, error) {
	return c.standings(ctx, http.MethodPut, "/scores/"+url.PathEscape(team), map[string]int{"score": score})
}

// DeleteTeam removes team from the ledger.
func (c *Client) DeleteTeam(ctx context.Context, team string) ([]model.Standing, error) {
	return c.standings(ctx, http.MethodDelete, "/scores/"+url.PathEscape(team), nil)
}

// ResetScores empties the ledger.
func (c *Client) ResetScores(ctx context.Context) error {
	_, err := c.standings(ctx, http.MethodDelete, "/scores", nil)
	return err
}

// Pin sets the current-team override; "" clears it.
func (c *Client) Pin(ctx context.Context, team string) ([]model.Standing, error) {
	return c.standings(ctx, http.MethodPut, "/current-team", map[string]string{"team": team})
}

// CurrentTeam returns the pinned team.
func (c *Client) CurrentTeam(ctx context.Context) (string, error) {
	var out struct {
		Team string `json:"team"`
	}
	if err := c.getJSON(ctx, "/current-team", &out); err != nil {
		return "", err
	}
	return out.Team, nil
}

// Mappings returns the learned player-to-team mapping.
func (c *Client) Mappings(ctx context.Context) (model.PlayerMapping, error) {
	out := model.PlayerMapping{}
	if err := c.getJSON(ctx, "/mappings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResetMappings clears the mapping and the self-player record.
func (c *Client) ResetMappings(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/mappings", nil, "")
	if err != nil {
		return err
	}
	return drain(resp)
}

// SelfPlayer returns the recorded self player, or nil.
func (c *Client) SelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	var out struct {
		Player *model.SelfPlayerRecord `json:"player"`
	}
	if err := c.getJSON(ctx, "/self-player", &out); err != nil {
		return nil, err
	}
	return out.Player, nil
}

// Stats returns the server statistics.
func (c *Client) Stats(ctx context.Context) (service.Stats, error) {
	var out service.Stats
	err := c.getJSON(ctx, "/stats", &out)
	return out, err
}

// Health checks that the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *Client) standings(ctx context.Context, method, path string, body any) ([]model.Standing, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	resp, err := c.do(ctx, method, path, payload, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Teams []model.Standing `json:"teams"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return out.Teams, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// do sends the request and turns error statuses other than the analyze
// outcomes into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	target := c.base.String() + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	c.logger.Debug(ctx, "request done",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)))

	if resp.StatusCode < http.StatusBadRequest || strings.HasPrefix(path, "/analyze") {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
