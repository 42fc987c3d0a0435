package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 8 << 20 // 8MB

// ErrBodyTooLarge is returned when a response body exceeds the client limit.
var ErrBodyTooLarge = errors.New("response body too large")

// connection pooling limits; batch workers hit the same host repeatedly
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the response body.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed
	// before a response was received.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration
}

// OK reports whether the status code is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Request describes one call made through [Client.Do].
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Client is a pooled HTTP client shared by every worker of a run.
//
// Timeouts are applied per request via the context rather than globally, so
// sources and sinks can use different limits with one connection pool.
type Client struct {
	httpClient  *http.Client
	maxBodySize int64
}

// NewClient creates a [Client] that accepts response bodies of at most
// maxBodySize bytes. A value below one selects [DefaultMaxBodySize].
//
// MaxConnsPerHost is raised to maxConns when it is larger than the default,
// so that a run with many workers is not throttled by the transport.
func NewClient(maxBodySize int64, maxConns int) *Client {
	if maxBodySize < 1 {
		maxBodySize = DefaultMaxBodySize
	}
	perHost := defaultMaxConnsPerHost
	if maxConns > perHost {
		perHost = maxConns
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: max(defaultMaxIdleConnsPerHost, perHost),
				MaxConnsPerHost:     perHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		maxBodySize: maxBodySize,
	}
}

// Do performs req and returns the response.
//
// An empty method defaults to GET. A zero timeout leaves the deadline to ctx.
// A non-2xx status is not an error here; callers decide what it means.
// A body larger than the client limit fails with [ErrBodyTooLarge].
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{Latency: time.Since(start)}, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{Latency: time.Since(start)}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells a full body from an oversized one
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return Response{StatusCode: resp.StatusCode, Latency: time.Since(start)},
			fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return Response{StatusCode: resp.StatusCode, Latency: time.Since(start)},
			fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, c.maxBodySize)
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}, nil
}

// Close closes idle connections in the pool. Safe to call on a nil client
// and more than once; the client stays usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
