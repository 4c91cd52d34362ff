// Package queue holds the pending generation jobs.
// It is an unbounded FIFO: producers (HTTP handlers, the TUI, the CLI)
// never block when enqueueing, and the single worker blocks in Dequeue
// until a job is available.
package queue
