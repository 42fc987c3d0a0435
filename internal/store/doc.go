// Package store keeps the state of batch runs and publishes every change.
//
// The main components are:
//
//   - [Store]: interface for storage and subscription
//   - [MemoryStore]: in-memory implementation with pub/sub
//   - [RunRecord]: JSON representation of one run
//
// Subscribers receive updates via buffered channels with non-blocking sends;
// a slow subscriber misses updates rather than stalling the run that
// produced them.
package store
