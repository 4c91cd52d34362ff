// Package worker drains the job queue with a single background loop so that
// only one generation pipeline runs at a time. Progress and outcomes are
// published as Events through a Hub that any number of front ends (TUI,
// HTTP, CLI) can subscribe to.
package worker
