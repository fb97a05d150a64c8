// Package types defines the data model shared across the vectorpipe
// packages: text items with optional boost phrases, sparse vectors, and
// scored candidates. Values here are constructed by callers per request
// and treated as immutable by the pipeline.
package types
