package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// WriterSink writes each batch as one NDJSON [Record].
type WriterSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	closed bool
}

// NewWriterSink writes records to w. Close does not close w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// OpenFile creates (or truncates) the file at path and writes records to it.
// An empty path or "-" writes to stdout.
func OpenFile(path string) (*WriterSink, error) {
	if path == "" || path == "-" {
		return NewWriterSink(os.Stdout), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	s := NewWriterSink(f)
	s.closer = f
	return s, nil
}

// Write encodes one record. Records from concurrent workers never interleave.
func (s *WriterSink) Write(ctx context.Context, items []json.RawMessage, key int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a batch still in flight when the run failed may arrive after Close
	if s.closed {
		return ErrClosed
	}
	if err := s.enc.Encode(Record{Key: key, Items: items}); err != nil {
		return fmt.Errorf("write batch %d: %w", key, err)
	}
	return nil
}

// Close closes the underlying file, if the sink opened one. It waits for a
// Write in progress; later writes return [ErrClosed].
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
