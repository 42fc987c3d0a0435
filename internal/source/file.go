package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Format selects how a file is split into items.
type Format string

const (
	// FormatNDJSON treats every non-blank line as one JSON value.
	FormatNDJSON Format = "ndjson"

	// FormatLines treats every non-blank line as a string item.
	FormatLines Format = "lines"
)

// maxLineSize bounds a single line of an input file.
const maxLineSize = 4 << 20

// ReadFile loads every item of the file at path.
//
// The whole file is read up front; batches are then cut from memory with
// batchflow.FromSlice.
func ReadFile(path string, format Format) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := ReadItems(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// ReadItems splits r into items according to format. An empty format
// means [FormatNDJSON].
func ReadItems(r io.Reader, format Format) ([]json.RawMessage, error) {
	if format == "" {
		format = FormatNDJSON
	}
	if format != FormatNDJSON && format != FormatLines {
		return nil, fmt.Errorf("unknown file format %q", format)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var items []json.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		switch format {
		case FormatNDJSON:
			if !json.Valid(text) {
				return nil, fmt.Errorf("line %d: invalid JSON", line)
			}
			items = append(items, json.RawMessage(bytes.Clone(text)))
		case FormatLines:
			encoded, err := json.Marshal(string(text))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			items = append(items, encoded)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	return items, nil
}
