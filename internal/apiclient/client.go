// Package apiclient performs idempotent GET requests against public APIs
// with rate limiting and bounded retries. Exhausted retries degrade to a nil
// response instead of an error so harvests stop paging and keep what they
// already have.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

const defaultTimeout = 30 * time.Second

// Attempt outcomes reported to Options.OnAttempt.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeRejected  = "rejected"
	OutcomeTransient = "transient"
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	// Params are added to every request.
	Params url.Values
	// OnAttempt is called once per HTTP attempt with its outcome.
	OnAttempt func(outcome string)
}

// Client wraps resty with the retry policy.
type Client struct {
	http       *resty.Client
	limiter    ratelimit.Limiter
	maxRetries int
	params     url.Values
	onAttempt  func(string)
	logger     *zap.Logger
}

// Response is a successful reply. Body is empty for Download.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
	// Size is the number of body bytes written by Download.
	Size int64
}

// NextLink returns the rel="next" target of the Link header, if any.
func (r *Response) NextLink() string {
	return NextLink(r.Header)
}

// New creates a client. MaxRetries is the total number of attempts per call.
func New(limiter ratelimit.Limiter, opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = ratelimit.DefaultConfig().MaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetLogger(logger.Sugar())
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{
		http:       rc,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		params:     opts.Params,
		onAttempt:  opts.OnAttempt,
		logger:     logger,
	}
}

// Get fetches endpoint, which is relative to the base URL or absolute. It
// returns nil when the server reports no match, rejects the request, or
// every attempt failed. err is non-nil only when ctx ends.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	return c.do(ctx, endpoint, params, request{})
}

// Download streams the body of endpoint into dst without buffering it. The
// file is written under a temporary name and renamed on success, so dst is
// never left half-written. Retries and the nil result follow Get.
func (c *Client) Download(ctx context.Context, endpoint string, params url.Values, dst string) (*Response, error) {
	return c.do(ctx, endpoint, params, request{dst: dst})
}

// GetJSON fetches endpoint and decodes the body into out. A body that does not
// decode counts as a failed attempt. out is only valid when the returned
// response is non-nil.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) (*Response, error) {
	return c.do(ctx, endpoint, params, request{decode: func(r *Response) error {
		if err := json.Unmarshal(r.Body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}})
}

type request struct {
	decode func(*Response) error
	// dst streams the body to a file instead of memory.
	dst string
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, req request) (*Response, error) {
	query := url.Values{}
	for k, vs := range c.params {
		query[k] = append([]string(nil), vs...)
	}
	for k, vs := range params {
		query[k] = append(query[k], vs...)
	}

	log := c.logger.With(zap.String("endpoint", endpoint))

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, outcome, failure := c.attempt(ctx, endpoint, query, req)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.onAttempt != nil {
			c.onAttempt(outcome)
		}

		switch outcome {
		case OutcomeOK:
			return resp, nil
		case OutcomeNotFound:
			log.Info("no match", zap.Int("attempt", attempt))
			return nil, nil
		case OutcomeRejected:
			log.Warn("request rejected", zap.Int("attempt", attempt), zap.Error(failure))
			return nil, nil
		}

		log.Warn("request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Error(failure),
		)

		if !ratelimit.ShouldRetry(attempt, c.maxRetries) {
			log.Error("retries exhausted", zap.Int("attempts", attempt), zap.Error(failure))
			return nil, nil
		}

		if err := ratelimit.Sleep(ctx, c.limiter.RetryAfter(attempt)); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, endpoint string, query url.Values, req request) (*Response, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetDoNotParseResponse(req.dst != "").
		Get(endpoint)
	if err != nil {
		return nil, OutcomeTransient, fmt.Errorf("execute request: %w", err)
	}
	if req.dst != "" {
		defer func() {
			_ = resp.RawBody().Close()
		}()
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return nil, OutcomeNotFound, nil
	case retryable(status):
		return nil, OutcomeTransient, &StatusError{Status: status}
	case !resp.IsSuccess():
		return nil, OutcomeRejected, &StatusError{Status: status}
	}

	out := &Response{
		URL:    resp.Request.URL,
		Status: status,
		Header: resp.Header(),
	}
	if req.dst != "" {
		n, err := saveBody(resp.RawBody(), req.dst)
		if err != nil {
			return nil, OutcomeTransient, err
		}
		out.Size = n
		return out, OutcomeOK, nil
	}

	out.Body = resp.Body()
	if req.decode != nil {
		if err := req.decode(out); err != nil {
			return nil, OutcomeTransient, err
		}
	}
	return out, OutcomeOK, nil
}

// saveBody copies body into dst through a temporary file in the same
// directory.
func saveBody(body io.Reader, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("read body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("install download: %w", err)
	}
	return n, nil
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Status)
}
