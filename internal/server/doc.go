// Package server exposes the state of batch runs over HTTP.
//
// Endpoints:
//
//   - GET /api/runs: JSON array of every run
//   - GET /api/runs/{id}: JSON object for one run
//   - GET /api/sse: Server-Sent Events stream of run updates, optionally
//     filtered with ?run=<id>
//   - GET /healthz: liveness probe
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
