// Package scheduler provides the bounded-concurrency batch loop behind batchflow.
//
// This package is internal to batchflow. It owns the shared cursor, spawns a
// fixed pool of workers and joins their outcomes so that the first fetch or
// process failure becomes the outcome of the whole run.
//
// The main components are:
//
//   - [Strategy]: how the cursor advances (offset+size or bare index)
//   - [Scheduler]: runs the worker pool for one strategy and concurrency
//   - [Claim]: the unit of work handed to fetch and process
//   - [PanicError]: a recovered panic from a user function
//
// Users of the batchflow library should not need to interact with this
// package directly. Configuration is done through the main batchflow package.
package scheduler
