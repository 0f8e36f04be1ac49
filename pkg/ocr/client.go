// Package ocr implements a client for HunyuanOCR inference servers
// exposing the OpenAI-compatible chat-completion API.
//
// A Client performs single-image OCR exchanges, health probes and
// bounded-concurrency batch runs. All methods take a context; passing
// context.Background() gives plain blocking behavior, a cancellable
// context makes every network wait and health-poll sleep cooperative.
package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

const (
	healthPath          = "/health"
	chatCompletionsPath = "/v1/chat/completions"

	// Pooled connections are retired after a bounded lifetime so a
	// long-lived client does not hold stale connections to a restarted
	// server.
	idleConnLifetime = 2 * time.Minute
)

// Client is the transport client for one HunyuanOCR server. It is safe
// for concurrent use: the underlying connection pool serializes at the
// transport level, and the only mutable state is the closed flag.
type Client struct {
	cfg        Config
	httpClient *http.Client
	ownsClient bool
	cache      Cache
	log        zerolog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Service = (*Client)(nil)

// NewClient builds a client owning its connection pool. The pool is
// sized and timed out from cfg; zero-valued cfg fields fall back to
// DefaultConfig values.
func NewClient(cfg Config) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg),
		ownsClient: true,
		log:        zerolog.Nop(),
	}
}

// NewClientWithHTTPClient builds a client on a caller-supplied
// *http.Client. The caller keeps ownership: Close never tears the
// supplied client down.
func NewClientWithHTTPClient(cfg Config, hc *http.Client) *Client {
	cfg = cfg.WithDefaults()
	if hc == nil {
		return NewClient(cfg)
	}
	return &Client{
		cfg:        cfg,
		httpClient: hc,
		log:        zerolog.Nop(),
	}
}

func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &http.Client{
		Timeout: cfg.ReadTimeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        cfg.MaxConnections,
			MaxIdleConnsPerHost: cfg.MaxConnections,
			MaxConnsPerHost:     cfg.MaxConnections,
			IdleConnTimeout:     idleConnLifetime,
		},
	}
}

// SetLogger attaches a logger. The default discards everything.
func (c *Client) SetLogger(log zerolog.Logger) {
	c.log = log
}

// SetCache attaches a result cache consulted before each OCR exchange.
func (c *Client) SetCache(cache Cache) {
	c.cache = cache
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// HealthCheck probes GET /health. Any 2xx status means the server is up
// and the model is loaded. Failures never surface as Go errors; they are
// folded into the returned status, with connection-level failures
// described distinctly from everything else.
func (c *Client) HealthCheck(ctx context.Context) ServerStatus {
	if c.closed.Load() {
		return ServerStatus{Error: ErrClientClosed.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+healthPath, nil)
	if err != nil {
		return ServerStatus{Error: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return ServerStatus{Error: fmt.Sprintf("connection error: %v", urlErr.Err)}
		}
		return ServerStatus{Error: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ServerStatus{Healthy: true, ModelLoaded: true}
	}
	return ServerStatus{Error: fmt.Sprintf("health check returned %d", resp.StatusCode)}
}

// WaitForReady polls the health endpoint until the server reports
// healthy. Zero timeout or interval fall back to the configured values.
// Cancellation surfaces as ctx.Err(), distinct from ErrNotReady.
func (c *Client) WaitForReady(ctx context.Context, timeout, interval time.Duration) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if timeout <= 0 {
		timeout = c.cfg.HealthCheckTimeout
	}
	if interval <= 0 {
		interval = c.cfg.HealthCheckInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		if c.closed.Load() {
			return ErrClientClosed
		}
		status := c.HealthCheck(ctx)
		if status.Healthy {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Add(interval).Before(deadline) {
			return ErrNotReady
		}
		c.log.Debug().Str("error", status.Error).Msg("server not ready yet")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// OCRImage performs one OCR exchange: encode the input as a data URL,
// POST a chat-completion request, unwrap the first choice. The call
// either fully succeeds or fails as a whole; there are no retries and no
// partial results.
func (c *Client) OCRImage(ctx context.Context, img Image, opts *Options) (*Result, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	prompt := opts.prompt()
	dataURL, err := img.dataURL()
	if err != nil {
		return nil, err
	}

	maxTokens := c.cfg.MaxTokens
	if opts != nil && opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := c.cfg.Temperature
	if opts != nil && opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	var key string
	if c.cache != nil {
		key = cacheKey(c.cfg.Model, prompt, dataURL)
		if res, ok := c.cacheGet(ctx, key); ok {
			c.log.Debug().Msg("served from cache")
			return res, nil
		}
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: ""},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: prompt},
			}},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := c.postJSON(ctx, chatCompletionsPath, payload)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	res := &Result{
		Text:             messageText(resp.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if c.cache != nil {
		c.cacheSet(ctx, key, res)
	}
	return res, nil
}

// Close releases the connection pool if the client owns it. It is
// idempotent and safe to call concurrently; once called, every other
// method reports ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.ownsClient {
			c.httpClient.CloseIdleConnections()
		}
	})
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" && c.cfg.APIKey != NoAPIKey {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func cacheKey(model, prompt, dataURL string) string {
	h := sha256.New()
	io.WriteString(h, model)
	io.WriteString(h, "\x00")
	io.WriteString(h, prompt)
	io.WriteString(h, "\x00")
	io.WriteString(h, dataURL)
	return "ocr:" + hex.EncodeToString(h.Sum(nil))
}

func (c *Client) cacheGet(ctx context.Context, key string) (*Result, bool) {
	val, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache get error")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var res Result
	if err := sonic.Unmarshal([]byte(val), &res); err != nil {
		c.log.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return &res, true
}

func (c *Client) cacheSet(ctx context.Context, key string, res *Result) {
	val, err := sonic.Marshal(res)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(val)); err != nil {
		c.log.Warn().Err(err).Msg("failed to set cache")
	}
}
