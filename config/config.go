// Package config parses YAML job files for the batchflow CLI.
//
// A job names a source, a sink and how to walk the source:
//
//	name: users-export
//	mode: offset
//	batch:
//	  size: 100
//	  concurrency: 4
//
//	source:
//	  type: http
//	  url: "https://api.example.com/users?offset={{.Offset}}&limit={{.Size}}"
//	  headers:
//	    Authorization: "Bearer ${API_TOKEN}"
//	  items: data.users
//
//	sink:
//	  type: file
//	  path: users.ndjson
//
// "batch: 100" is shorthand for "batch: {size: 100}".
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/batchflow"
	"github.com/jpalmerr/batchflow/internal/source"
)

// Source and sink types.
const (
	SourceHTTP = "http"
	SourceFile = "file"

	SinkStdout = "stdout"
	SinkFile   = "file"
	SinkHTTP   = "http"
)

// Config is the root of a job file. Use [Load] or [Parse] to create one.
type Config struct {
	// Name identifies the run in logs and in the status API.
	Name string `yaml:"name"`

	// Mode is "offset" (default) or "index".
	Mode string `yaml:"mode"`

	Batch BatchConfig `yaml:"batch"`

	// StatusPort serves the run status API when non-zero.
	StatusPort int `yaml:"status_port"`

	Source SourceConfig `yaml:"source"`
	Sink   SinkConfig   `yaml:"sink"`
}

// BatchConfig controls batch size and parallelism.
//
// It accepts a bare integer (the size) or a mapping:
//
//	batch: 50
//
//	batch:
//	  size: 50
//	  concurrency: 8
type BatchConfig struct {
	// Size is items per batch in offset mode. Must be unset in index mode.
	Size int

	// Concurrency is the number of workers. Defaults to 1.
	Concurrency int
}

// SourceConfig describes where batches come from.
type SourceConfig struct {
	// Type is "http" or "file".
	Type string `yaml:"type"`

	// URL is a text/template with {{.Offset}}, {{.Size}} and {{.Index}}.
	// Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// Method is GET or POST. Defaults to GET.
	Method string `yaml:"method"`

	// Headers values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	Timeout Duration `yaml:"timeout"`

	// Items is the dot path of the item array in each response.
	Items string `yaml:"items"`

	// MaxBodySize caps response bodies in bytes. Defaults to 8MB.
	MaxBodySize int64 `yaml:"max_body_size"`

	// Path is the input file (type: file).
	Path string `yaml:"path"`

	// Format is "ndjson" (default) or "lines" (type: file).
	Format string `yaml:"format"`

	// PageSize is the number of file items per index in index mode.
	PageSize int `yaml:"page_size"`
}

// SinkConfig describes where processed batches go.
type SinkConfig struct {
	// Type is "stdout" (default), "file" or "http".
	Type string `yaml:"type"`

	Path string `yaml:"path"`

	URL string `yaml:"url"`

	// Method is POST, PUT or PATCH. Defaults to POST.
	Method string `yaml:"method"`

	Headers map[string]string `yaml:"headers"`

	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for BatchConfig.
func (b *BatchConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var size int
		if err := node.Decode(&size); err != nil {
			return fmt.Errorf("batch must be an integer size or an object: %w", err)
		}
		b.Size = size
		return nil

	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Size        int `yaml:"size"`
			Concurrency int `yaml:"concurrency"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		b.Size = raw.Size
		b.Concurrency = raw.Concurrency
		return nil
	}

	return fmt.Errorf("batch must be an integer or object, got %v", node.Kind)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1: variable name
// Group 2: ":-default" (present when a default was given)
// Group 3: the default value, possibly empty
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(s string) (string, error) {
	return expandEnvVarsWith(s, nil)
}

// expandTemplateEnvVars expands env vars in a URL template. Substituted
// values are escaped so "{{" in a value stays literal text.
func expandTemplateEnvVars(s string) (string, error) {
	return expandEnvVarsWith(s, escapeTemplateText)
}

func escapeTemplateText(v string) string {
	return strings.ReplaceAll(v, "{{", `{{"{{"}}`)
}

// expandEnvVarsWith expands env vars, passing each substituted value through
// escape when it is non-nil.
func expandEnvVarsWith(s string, escape func(string) string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if !hasDefault {
				firstErr = fmt.Errorf("environment variable %q is not set", varName)
				return match
			}
			value = submatches[3]
		}
		if escape != nil {
			value = escape(value)
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a job file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML job data.
//
// Environment variables are expanded in URLs, header values and paths.
// Defaults are applied for mode (offset) and sink type (stdout).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Mode == "" {
		cfg.Mode = string(batchflow.ModeOffset)
	}
	if cfg.Sink.Type == "" {
		cfg.Sink.Type = SinkStdout
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the job.
func (c *Config) expandAndValidate() error {
	mode, err := batchflow.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}

	if c.Batch.Size < 0 {
		return fmt.Errorf("batch.size cannot be negative, got %d", c.Batch.Size)
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency cannot be negative, got %d", c.Batch.Concurrency)
	}
	if mode == batchflow.ModeIndex && c.Batch.Size != 0 {
		return errors.New("batch.size must not be set in index mode; the source decides batch size")
	}

	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status_port must be between 0 and 65535, got %d", c.StatusPort)
	}

	if err := c.Source.expandAndValidate(mode); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Sink.expandAndValidate(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}

	return nil
}

func (s *SourceConfig) expandAndValidate(mode batchflow.Mode) error {
	if s.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", s.Timeout.Duration())
	}

	switch s.Type {
	case SourceHTTP:
		if s.URL == "" {
			return errors.New("url is required")
		}
		expanded, err := expandTemplateEnvVars(s.URL)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		s.URL = expanded

		if err := validateURLTemplate(s.URL); err != nil {
			return err
		}
		if err := expandHeaders(s.Headers); err != nil {
			return err
		}
		if s.Method != "" && s.Method != "GET" && s.Method != "POST" {
			return errors.New("method must be GET or POST")
		}
		if s.MaxBodySize < 0 {
			return fmt.Errorf("max_body_size cannot be negative, got %d", s.MaxBodySize)
		}

	case SourceFile:
		if s.Path == "" {
			return errors.New("path is required")
		}
		expanded, err := expandEnvVars(s.Path)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		s.Path = expanded

		switch source.Format(s.Format) {
		case "", source.FormatNDJSON, source.FormatLines:
		default:
			return fmt.Errorf("format must be ndjson or lines, got %q", s.Format)
		}
		if s.PageSize < 0 {
			return fmt.Errorf("page_size cannot be negative, got %d", s.PageSize)
		}
		if mode == batchflow.ModeOffset && s.PageSize != 0 {
			return errors.New("page_size only applies in index mode; use batch.size")
		}

	case "":
		return errors.New("type is required (http or file)")
	default:
		return fmt.Errorf("unknown type %q (expected http or file)", s.Type)
	}

	return nil
}

func (s *SinkConfig) expandAndValidate() error {
	if s.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", s.Timeout.Duration())
	}

	switch s.Type {
	case SinkStdout:

	case SinkFile:
		if s.Path == "" {
			return errors.New("path is required")
		}
		expanded, err := expandEnvVars(s.Path)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		s.Path = expanded

	case SinkHTTP:
		if s.URL == "" {
			return errors.New("url is required")
		}
		expanded, err := expandEnvVars(s.URL)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		s.URL = expanded

		if err := validateHTTPURL(s.URL); err != nil {
			return err
		}
		if err := expandHeaders(s.Headers); err != nil {
			return err
		}
		switch s.Method {
		case "", "POST", "PUT", "PATCH":
		default:
			return errors.New("method must be POST, PUT or PATCH")
		}

	default:
		return fmt.Errorf("unknown type %q (expected stdout, file or http)", s.Type)
	}

	return nil
}

func expandHeaders(headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		headers[k] = expanded
	}
	return nil
}

// validateURLTemplate parses the template and checks that a rendered URL
// is an http(s) URL, so typos fail at load time rather than mid-run.
func validateURLTemplate(raw string) error {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url template: %w", err)
	}

	var buf bytes.Buffer
	sample := struct{ Offset, Size, Index int }{0, 1, 0}
	if err := tmpl.Execute(&buf, sample); err != nil {
		return fmt.Errorf("invalid url template: %w", err)
	}
	return validateHTTPURL(buf.String())
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}
