package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedShape is returned when a response does not have the JSON
// structure the items path expects.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// ItemsAt returns the elements of the JSON array found at path in body.
//
// path uses dot notation to walk nested objects: "data.items" selects
// {"data": {"items": [...]}}. An empty path means the body itself is the
// array. A missing key or a null value yields a nil slice, which ends the
// worker that fetched it.
func ItemsAt(body []byte, path string) ([]json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrUnexpectedShape)
	}

	current := json.RawMessage(body)
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			if isNull(current) {
				return nil, nil
			}
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(current, &obj); err != nil {
				return nil, fmt.Errorf("%w: cannot select %q from a non-object", ErrUnexpectedShape, part)
			}
			next, ok := obj[part]
			if !ok {
				return nil, nil
			}
			current = next
		}
	}

	if isNull(current) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(current, &items); err != nil {
		return nil, fmt.Errorf("%w: value at %q is not an array", ErrUnexpectedShape, path)
	}
	return items, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
