// Package memory provides the low-level primitives for memory
// management around the book: global epoch tracking with per-reader
// epochs, a RetireRing carrying tombstoned nodes that still need a
// physical unlink, and a typed Pool for transient allocations.
//
// The memory package is dependency-free and forms the foundation
// for the janitor's RCU-style epoch advancement.
package memory
