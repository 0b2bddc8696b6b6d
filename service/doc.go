// Package service coordinates the engine: Engine is the single write
// entry point over the book, tape and outbox; Dispatcher is the
// worker pool that drives it from feed sources.
package service
