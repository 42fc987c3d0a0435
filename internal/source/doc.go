// Package source provides the batch sources used by job files: a paginated
// HTTP API addressed by offset or page index, and a local NDJSON or
// plain-text file.
//
// Both return items as [encoding/json.RawMessage] so that batches can be
// forwarded to a sink without decoding them into concrete types.
package source
