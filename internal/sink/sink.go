package sink

import (
	"context"
	"encoding/json"
)

// Sink receives processed batches.
type Sink interface {
	Write(ctx context.Context, items []json.RawMessage, key int) error
	Close() error
}

// Record is the JSON form of one batch as written by every sink.
type Record struct {
	Key   int               `json:"key"`
	Items []json.RawMessage `json:"items"`
}
