package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// HTTPConfig describes a paginated JSON API.
type HTTPConfig struct {
	// URL is a text/template rendered for every batch. Available fields are
	// {{.Offset}}, {{.Size}} and {{.Index}}.
	URL string

	// Method defaults to GET.
	Method string

	Headers map[string]string

	// Timeout applies to each request. Zero means no per-request limit.
	Timeout time.Duration

	// Items is the dot path of the array holding the batch. Empty means
	// the response body is the array.
	Items string
}

// pageParams is the data the URL template is rendered with.
type pageParams struct {
	Offset int
	Size   int
	Index  int
}

// HTTPSource fetches batches from a paginated JSON API.
type HTTPSource struct {
	client  *Client
	tmpl    *template.Template
	method  string
	headers map[string]string
	timeout time.Duration
	items   string
}

// NewHTTPSource validates cfg and parses its URL template.
func NewHTTPSource(client *Client, cfg HTTPConfig) (*HTTPSource, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("URL template required")
	}

	// missingkey=error so a typo in the template fails at the first fetch
	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	return &HTTPSource{
		client:  client,
		tmpl:    tmpl,
		method:  cfg.Method,
		headers: cfg.Headers,
		timeout: cfg.Timeout,
		items:   cfg.Items,
	}, nil
}

// FetchOffset fetches the batch starting at offset. Index is set to the page
// number offset/size so page-based URLs also work in offset mode.
func (s *HTTPSource) FetchOffset(ctx context.Context, offset, size int) ([]json.RawMessage, error) {
	index := 0
	if size > 0 {
		index = offset / size
	}
	return s.fetch(ctx, pageParams{Offset: offset, Size: size, Index: index})
}

// FetchIndex fetches the page with the given index.
func (s *HTTPSource) FetchIndex(ctx context.Context, index int) ([]json.RawMessage, error) {
	return s.fetch(ctx, pageParams{Index: index})
}

func (s *HTTPSource) fetch(ctx context.Context, params pageParams) ([]json.RawMessage, error) {
	url, err := s.render(params)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(ctx, Request{
		Method:  s.method,
		URL:     url,
		Headers: s.headers,
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return ItemsAt(resp.Body, s.items)
}

func (s *HTTPSource) render(params pageParams) (string, error) {
	var buf strings.Builder
	if err := s.tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
