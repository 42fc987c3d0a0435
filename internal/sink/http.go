package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jpalmerr/batchflow/internal/source"
)

// HTTPConfig describes the endpoint batches are delivered to.
type HTTPConfig struct {
	URL string

	// Method defaults to POST.
	Method string

	Headers map[string]string
	Timeout time.Duration
}

// HTTPSink sends every batch as a JSON [Record] in a request body.
type HTTPSink struct {
	client *source.Client
	cfg    HTTPConfig
}

// NewHTTPSink returns a sink that delivers batches with client.
func NewHTTPSink(client *source.Client, cfg HTTPConfig) (*HTTPSink, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if cfg.URL == "" {
		return nil, errors.New("sink URL required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	return &HTTPSink{client: client, cfg: cfg}, nil
}

// Write delivers one batch. A non-2xx response fails the batch.
func (s *HTTPSink) Write(ctx context.Context, items []json.RawMessage, key int) error {
	body, err := json.Marshal(Record{Key: key, Items: items})
	if err != nil {
		return fmt.Errorf("encode batch %d: %w", key, err)
	}

	resp, err := s.client.Do(ctx, source.Request{
		Method:  s.cfg.Method,
		URL:     s.cfg.URL,
		Headers: s.cfg.Headers,
		Body:    body,
		Timeout: s.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("deliver batch %d: %w", key, err)
	}
	if !resp.OK() {
		return fmt.Errorf("deliver batch %d: %w", key, &source.StatusError{URL: s.cfg.URL, StatusCode: resp.StatusCode})
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *HTTPSink) Close() error {
	return nil
}
