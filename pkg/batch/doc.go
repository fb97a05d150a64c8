// Package batch provides the ordered parallel dispatch primitives used by
// every batched remote operation: InOrder fans groups out one goroutine
// per group and reassembles by ordinal, StreamOrdered pushes single items
// through a bounded worker pool with size/time windowed collection.
//
// Both primitives guarantee that output order equals input order
// regardless of completion order, and both fail the whole dispatch on the
// first error instead of returning partial results.
package batch
