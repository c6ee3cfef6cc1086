// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
	"github.com/lodgekeeper/lodgekeeper/internal/metrics"
)

// maxErrorBodyBytes bounds how much of an error response body is kept for
// error messages and logs.
const maxErrorBodyBytes = 2048

// Client is the resilient HTTP client for one external system. Every call
// passes, in order: the circuit breaker (fail fast when open), the rate
// limiter (fail with retry-after when exhausted), then the HTTP request with
// a bounded timeout. Retryable failures are re-attempted with bounded
// exponential backoff; the breaker sees only real upstream failures.
type Client struct {
	system     string
	baseURL    string
	propertyID string
	username   string
	credential string

	httpClient *http.Client
	limiter    *RateLimiter
	breaker    *Breaker
	retry      config.RetryConfig
}

// requestOptions tune a single call.
type requestOptions struct {
	query       url.Values
	skipLimiter bool
	idempotency bool
}

// RequestOption mutates per-call behavior.
type RequestOption func(*requestOptions)

// WithQuery attaches query parameters to the call.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithoutRateLimit opts a call out of the local token bucket. Used by pull
// paths that implement their own pacing.
func WithoutRateLimit() RequestOption {
	return func(o *requestOptions) { o.skipLimiter = true }
}

// NewClient builds a resilient client for one external system. The
// credential must already be decrypted; the client never sees ciphertext.
func NewClient(system string, cfg *config.ChannelConfig, credential string) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ConfigurationError{System: system, Reason: "base URL is empty"}
	}
	if credential == "" {
		return nil, &ConfigurationError{System: system, Reason: "credential is empty"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		system:     system,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		propertyID: cfg.PropertyID,
		username:   cfg.Username,
		credential: credential,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(cfg.RateLimit),
		breaker:    NewBreaker(system, cfg.Breaker),
		retry:      cfg.Retry,
	}, nil
}

// System returns the external system this client talks to.
func (c *Client) System() string { return c.system }

// BreakerState exposes the breaker state for status surfaces.
func (c *Client) BreakerState() string { return c.breaker.State() }

// Request performs one resilient call and returns the raw response body.
// Mutating methods carry an idempotency key header so a retried write is
// safe to repeat upstream.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) ([]byte, error) {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if method != http.MethodGet && method != http.MethodHead {
		options.idempotency = true
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &ConfigurationError{System: c.system, Reason: fmt.Sprintf("encode request body: %v", err)}
		}
	}

	// One idempotency key spans all retry attempts of this logical call.
	idemKey := ""
	if options.idempotency {
		idemKey = uuid.NewString()
	}

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt - 1)
			var rateErr *RateLimitError
			if errors.As(lastErr, &rateErr) && rateErr.RetryAfter > delay {
				delay = rateErr.RetryAfter
			}
			logging.Debug().
				Str("system", c.system).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying channel request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &NetworkError{System: c.system, Err: ctx.Err()}
			}
		}

		respBody, err := c.do(ctx, method, endpoint, payload, idemKey, options)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

// do executes a single attempt: breaker gate, limiter gate, HTTP, classify.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, idemKey string, options requestOptions) ([]byte, error) {
	// An open circuit outranks the limiter, but a local rate-limit rejection
	// is not a call outcome: the upstream never saw it, so it must not touch
	// the breaker's consecutive-failure count. Check the open state first,
	// then the token bucket, and only reserve a breaker slot for a call that
	// actually goes upstream.
	if err := c.breaker.FastFail(); err != nil {
		return nil, err
	}

	if !options.skipLimiter && !c.limiter.TryConsume() {
		metrics.ChannelRateLimited.WithLabelValues(c.system).Inc()
		return nil, &RateLimitError{
			System:     c.system,
			RetryAfter: c.limiter.TimeUntilNextToken(),
			Local:      true,
		}
	}

	done, err := c.breaker.CanProceed()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	respBody, err := c.execute(ctx, method, endpoint, payload, idemKey, options.query)
	metrics.ChannelRequestDuration.WithLabelValues(c.system, endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		done(!countsAsBreakerFailure(err))
		metrics.ChannelRequestErrors.WithLabelValues(c.system, endpoint, ErrorCode(err)).Inc()
		return nil, err
	}
	done(true)
	return respBody, nil
}

// execute performs the bare HTTP exchange and classifies the outcome.
func (c *Client) execute(ctx context.Context, method, endpoint string, payload []byte, idemKey string, query url.Values) ([]byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, &ConfigurationError{System: c.system, Reason: fmt.Sprintf("build request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	// Recomputed per request; plaintext credentials are never cached in a
	// preformatted header.
	req.Header.Set("Authorization", "Basic "+basicAuth(c.username, c.credential))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{System: c.system, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &NetworkError{System: c.system, Err: err}
		}
		return body, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drainBody(resp.Body)
		return nil, &AuthenticationError{System: c.system, StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests:
		drainBody(resp.Body)
		return nil, &RateLimitError{
			System:     c.system,
			RetryAfter: retryAfterHeader(resp),
		}

	case resp.StatusCode >= 500:
		return nil, &ServerError{
			System:     c.system,
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
		}

	default: // remaining 4xx: the payload was wrong, retrying cannot help
		return nil, &ValidationError{
			System:     c.system,
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
		}
	}
}

// backoffDelay computes base × multiplier^attempt, capped at the configured
// maximum.
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retry.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	multiplier := c.retry.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	maxDelay := c.retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func basicAuth(username, credential string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + credential))
}

func retryAfterHeader(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return time.Second
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	return strings.TrimSpace(string(body))
}

func drainBody(r io.Reader) {
	io.Copy(io.Discard, io.LimitReader(r, maxErrorBodyBytes)) //nolint:errcheck
}
