package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var ErrEmptyFEN = errors.New("game api: response without fen")

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client talks to the remote game service over fasthttp.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	paths   Paths
	logger  *zap.Logger

	defaultTimeout time.Duration
	attempts       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the total number of attempts. 1 means no retry.
func WithRetry(attempts int) Option {
	return func(c *Client) { c.attempts = attempts }
}

// WithDial replaces the dialer, e.g. with an in-memory listener in tests.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithPaths(p Paths) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(p.Reset); s != "" {
			c.paths.Reset = s
		}
		if s := strings.TrimSpace(p.Move); s != "" {
			c.paths.Move = s
		}
		if s := strings.TrimSpace(p.AI); s != "" {
			c.paths.AI = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		paths:          Paths{Reset: DefaultResetPath, Move: DefaultMovePath, AI: DefaultAIPath},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		attempts:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Reset asks the service for a fresh game.
func (c *Client) Reset(ctx context.Context) (*Response, error) {
	return c.post(ctx, c.paths.Reset, struct{}{})
}

// MakeMove submits a move in SAN.
func (c *Client) MakeMove(ctx context.Context, san string) (*Response, error) {
	return c.post(ctx, c.paths.Move, MoveRequest{Move: san})
}

// AIMove asks the service to play for the side to move.
func (c *Client) AIMove(ctx context.Context, difficulty string) (*Response, error) {
	return c.post(ctx, c.paths.AI, AIMoveRequest{Difficulty: difficulty})
}

func (c *Client) post(ctx context.Context, path string, in any) (*Response, error) {
	var out Response
	start := time.Now()
	if err := c.doJSON(ctx, fasthttp.MethodPost, path, in, &out); err != nil {
		c.logger.Debug("game_api_call_failed",
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	if strings.TrimSpace(out.FEN) == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFEN)
	}
	c.logger.Debug("game_api_call",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("move", out.Move),
	)
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := c.attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts {
				return fmt.Errorf("request %s failed: %w", path, err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := newAPIError(path, status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func newAPIError(path string, status int, body []byte) *APIError {
	e := &APIError{Path: path, StatusCode: status, Body: truncate(string(body), 512)}
	var r Response
	if err := json.Unmarshal(body, &r); err == nil {
		e.Message = r.Message
	}
	return e
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
