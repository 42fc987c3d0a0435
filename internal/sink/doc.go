// Package sink provides the batch processors used by job files.
//
// A sink's Write method has the shape of batchflow.ProcessFunc for
// json.RawMessage items, so it can be passed to a run directly. Sinks are
// safe for concurrent use by every worker of a run.
package sink
