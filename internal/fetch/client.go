// Package fetch provides clients for the upstream services behind the dashboard:
// the transaction datastore, the wallet indexer and the token price service.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/kol-feed-api/internal/circuitbreaker"
	"github.com/yourorg/kol-feed-api/internal/otel"
	"github.com/yourorg/kol-feed-api/internal/types"
)

// maxBodySize caps how much of an upstream response is read
const maxBodySize = 16 << 20

// FailureHook is notified for every failed upstream call
type FailureHook func(upstream types.Upstream)

// Option configures a Client
type Option func(*Client)

// WithBreaker guards the client with a circuit breaker
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithFailureHook registers a callback for failed calls
func WithFailureHook(hook FailureHook) Option {
	return func(c *Client) {
		c.onFailure = hook
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client performs GET requests against a single upstream. Each call gets its
// own deadline, a tracing span and, when configured, circuit breaker accounting.
type Client struct {
	upstream   types.Upstream
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	onFailure  FailureHook
}

// NewClient creates a client for the given upstream
func NewClient(upstream types.Upstream, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		upstream:   upstream,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: StandardClient(newRetryClient(upstream)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upstream returns the upstream this client talks to
func (c *Client) Upstream() types.Upstream {
	return c.upstream
}

// Breaker returns the circuit breaker guarding the client, if any
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// newRetryClient creates a retryablehttp client that performs exactly one
// attempt. Upstream calls are never retried.
func newRetryClient(upstream types.Upstream) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.CheckRetry = noRetry
	c.Logger = leveledLogger{entry: logrus.WithField("upstream", upstream.String())}
	return c
}

func noRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	return false, ctx.Err()
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// Get issues a GET request for path with the given query and headers and
// returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header) ([]byte, error) {
	ctx, span := otel.Tracer().Start(ctx, "upstream."+c.upstream.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.name", c.upstream.String()),
			attribute.String("upstream.path", path),
		))
	defer span.End()

	if c.baseURL == "" {
		return nil, c.fail(ctx, &UpstreamError{Upstream: c.upstream, Message: "base URL not configured"}, false)
	}
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, c.fail(ctx, &UpstreamError{Upstream: c.upstream, Message: "circuit open"}, false)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	logrus.WithFields(logrus.Fields{
		"upstream": c.upstream,
		"path":     path,
	}).Debug("Calling upstream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := strings.ReplaceAll(transportMessage(err), endpoint, c.baseURL+path)
		return nil, c.fail(ctx, &UpstreamError{Upstream: c.upstream, Message: msg}, true)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(ctx, &UpstreamError{Upstream: c.upstream, Message: "error reading response: " + transportMessage(err)}, true)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(ctx, &UpstreamError{
			Upstream:   c.upstream,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}, countsTowardsBreaker(resp.StatusCode))
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return body, nil
}

// fail records err on the span, the failure hook and, when countTowardsBreaker
// is set, the circuit breaker.
func (c *Client) fail(ctx context.Context, err *UpstreamError, countTowardsBreaker bool) error {
	otel.RecordError(ctx, err)
	if countTowardsBreaker && c.breaker != nil {
		c.breaker.RecordFailure(err.Error())
	}
	if c.onFailure != nil {
		c.onFailure(c.upstream)
	}
	logrus.WithFields(logrus.Fields{
		"upstream": c.upstream,
		"status":   err.StatusCode,
	}).Warnf("Upstream call failed: %s", err.Message)
	return err
}

// countsTowardsBreaker reports whether a non-2xx status signals an unhealthy
// upstream. Other 4xx answers are caused by the request itself.
func countsTowardsBreaker(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// transportMessage describes a transport failure without the request URL,
// which may carry credentials in its query string.
func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	// The innermost url.Error holds the transport cause without the URL.
	var cause error
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ue, ok := e.(*url.Error); ok {
			cause = ue.Err
		}
	}
	if cause == nil {
		return "connection failed"
	}
	return cause.Error()
}
