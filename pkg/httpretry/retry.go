package httpretry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	pkgError "github.com/AzielCF/az-audit/pkg/error"
	"github.com/sirupsen/logrus"
)

// Client wraps a single outbound HTTP call with classification-aware retry.
// 401/403 are never retried, 429 honors Retry-After, network errors and
// 500/502/503/504 back off exponentially. Everything else is handed back to
// the caller untouched.
type Client struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Client)

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request, retrying per classification. The response body of
// retried attempts is always drained and closed; the returned response (if
// any) is the caller's to close.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				// Body already consumed and not replayable
				return nil, lastErr
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, lastErr
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = pkgError.TransientError(fmt.Sprintf("request to %s failed: %v", req.URL.Path, err))
			logrus.Warnf("[HTTP_RETRY] Attempt %d/%d for %s %s failed: %v", attempt+1, c.maxRetries+1, req.Method, req.URL.Path, err)
			if attempt == c.maxRetries {
				break
			}
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			logrus.Errorf("[HTTP_RETRY] %s %s returned %d, not retrying", req.Method, req.URL.Path, resp.StatusCode)
			return nil, pkgError.AuthError(fmt.Sprintf("upstream rejected request to %s with status %d", req.URL.Path, resp.StatusCode))

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := c.backoff(attempt)
			if ra := retryAfter(resp); ra > 0 {
				delay = ra
			}
			drain(resp)
			lastErr = pkgError.RateLimitError(fmt.Sprintf("upstream throttled request to %s", req.URL.Path))
			logrus.Warnf("[HTTP_RETRY] Attempt %d/%d for %s %s throttled (429), waiting %v", attempt+1, c.maxRetries+1, req.Method, req.URL.Path, delay)
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		case isTransientStatus(resp.StatusCode):
			drain(resp)
			lastErr = pkgError.TransientError(fmt.Sprintf("upstream returned %d for %s", resp.StatusCode, req.URL.Path))
			logrus.Warnf("[HTTP_RETRY] Attempt %d/%d for %s %s returned %d", attempt+1, c.maxRetries+1, req.Method, req.URL.Path, resp.StatusCode)
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}

		default:
			logrus.Debugf("[HTTP_RETRY] %s %s -> %d (attempt %d)", req.Method, req.URL.Path, resp.StatusCode, attempt+1)
			return resp, nil
		}
	}

	return nil, lastErr
}

// backoff returns base * 2^attempt.
func (c *Client) backoff(attempt int) time.Duration {
	return c.baseDelay * (1 << attempt)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses the Retry-After header as delay seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
