// Package dockerproxy is a minimal client for the restricted docker socket
// proxy the agent watches containers through. The proxy exposes a subset of
// the docker engine API; the agent only ever lists containers and restarts
// them by ID.
package dockerproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wiktac/node-agent/internal/telemetry"
)

// Container is one entry of the engine's container list.
type Container struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	Image  string   `json:"Image"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

// Name returns the first name entry, or an empty string.
func (c Container) Name() string {
	if len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

// Client interacts with the docker socket proxy.
type Client struct {
	base      string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// Options configures the proxy client behavior.
type Options struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	RateLimit             rate.Limit
	RateLimitBurst        int
	UserAgent             string
}

const (
	defaultTimeout        = 10 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
)

// New creates a proxy client for the given base URL.
func New(base string, opts Options) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	nopts := normalizeOptions(opts)

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: nopts.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
	}

	return &Client{
		base: trimmed,
		http: &http.Client{
			Timeout: nopts.Timeout,
			// HTTP-level spans nest under the per-operation spans created in do.
			Transport: otelhttp.NewTransport(transport),
		},
		limiter:   rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		userAgent: nopts.UserAgent,
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = opts.Timeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "wiktac-agent"
	}
	return opts
}

// BaseURL returns the configured proxy base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Containers lists all containers, including stopped ones.
func (c *Client) Containers(ctx context.Context) ([]Container, error) {
	resp, err := c.do(ctx, http.MethodGet, "/containers/json?all=1", "list")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("list", resp)
	}

	var containers []Container
	if err := json.NewDecoder(resp.Body).Decode(&containers); err != nil {
		return nil, &ProxyError{
			Sentinel:  ErrBadResponse,
			Operation: "list",
			Err:       err,
		}
	}
	return containers, nil
}

// Restart asks the engine to restart the container with the given ID.
// The engine answers 204 on restart and 304 when the container was already
// in the requested state; both count as success.
func (c *Client) Restart(ctx context.Context, id string) error {
	path := "/containers/" + url.PathEscape(id) + "/restart"
	resp, err := c.do(ctx, http.MethodPost, path, "restart")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return nil
	}

	perr := c.statusError("restart", resp)
	var pe *ProxyError
	if errors.As(perr, &pe) && pe.Sentinel == ErrBadResponse {
		// Restarts that fail with an unclassified status are policy rejections.
		pe.Sentinel = ErrRestartRejected
	}
	return perr
}

// Ping probes the proxy's engine endpoint. It is used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/_ping", "ping")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("ping", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do performs one request against the proxy. There is deliberately no retry
// here: a failed call surfaces to the caller and the next tick starts fresh.
func (c *Client) do(ctx context.Context, method, path, operation string) (*http.Response, error) {
	tracer := telemetry.Tracer("wiktac.dockerproxy")
	route := routeLabel(path)
	ctx, span := tracer.Start(ctx, "dockerproxy."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.HTTPAttributes(method, route, c.base+path, 0)...)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, c.transportError(operation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &ProxyError{Sentinel: ErrUpstreamUnavailable, Operation: operation, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	observeRequest(operation, status, duration, err)

	span.SetAttributes(telemetry.HTTPAttributes(method, route, c.base+path, status)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.transportError(operation, err)
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp, nil
}

// statusError drains the body and builds a ProxyError for an unexpected status.
func (c *Client) statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &ProxyError{
		Sentinel:  sentinelForStatus(resp.StatusCode),
		Operation: operation,
		Status:    resp.StatusCode,
		Body:      strings.TrimSpace(string(body)),
	}
}

// transportError classifies a transport-level failure.
func (c *Client) transportError(operation string, err error) error {
	sentinel := ErrUpstreamUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		sentinel = ErrTimeout
	} else {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			sentinel = ErrTimeout
		}
	}
	return &ProxyError{Sentinel: sentinel, Operation: operation, Err: err}
}

func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

// String renders the client target for logs.
func (c *Client) String() string {
	return fmt.Sprintf("dockerproxy(%s)", c.base)
}
